package logformat

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/logeagle/logeagle/internal/model"
)

// timestampKeys are field names whose values are treated as timestamps by
// the dynamic formats.
var timestampKeys = map[string]bool{
	"time":       true,
	"timestamp":  true,
	"ts":         true,
	"@timestamp": true,
	"datetime":   true,
	"date":       true,
}

// JSONFormat parses one JSON object per line. The schema is derived from
// the keys present, in lexical order, so identical shapes map to identical
// schemas across lines.
type JSONFormat struct{}

func NewJSONFormat() *JSONFormat { return &JSONFormat{} }

func (f *JSONFormat) Name() string { return "json" }

func (f *JSONFormat) Match(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return false
	}
	return json.Valid([]byte(trimmed))
}

func (f *JSONFormat) Parse(line string) (model.Record, *model.Schema, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &raw); err != nil {
		return model.Record{}, nil, &ParseError{Format: f.Name(), Reason: "invalid JSON object", Line: line}
	}

	rec := model.Record{Values: make(map[string]any, len(raw))}
	fields := make([]model.Field, 0, len(raw))

	for _, key := range sortedKeys(raw) {
		name := safeFieldName(key)
		value := raw[key]
		ft, v := typeJSONValue(key, value)
		rec.Values[name] = v
		fields = append(fields, model.Field{Name: name, Type: ft, Nullable: true})
	}
	return rec, model.NewSchema(fields), nil
}

// typeJSONValue maps a decoded JSON value to a field type and a stored
// value. Nested objects and arrays are retained as JSON text.
func typeJSONValue(key string, value any) (model.FieldType, any) {
	switch v := value.(type) {
	case string:
		if timestampKeys[key] {
			return model.TypeTimestamp, v
		}
		return model.TypeString, v
	case float64:
		if timestampKeys[key] {
			return model.TypeTimestamp, v
		}
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return model.TypeInt, int64(v)
		}
		return model.TypeFloat, v
	case bool:
		if v {
			return model.TypeString, "true"
		}
		return model.TypeString, "false"
	case nil:
		return model.TypeString, nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return model.TypeString, nil
		}
		return model.TypeString, string(encoded)
	}
}

// safeFieldName keeps user keys from colliding with reserved columns.
func safeFieldName(key string) string {
	if strings.HasPrefix(key, "_") {
		return "field" + key
	}
	return key
}

func sortedKeys(m map[string]any) []string {
	r := model.Record{Values: m}
	return r.SortedKeys()
}
