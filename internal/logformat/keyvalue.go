package logformat

import (
	"regexp"
	"sort"

	"github.com/logeagle/logeagle/internal/model"
)

// keyValueRegex matches key=value tokens; values may be double-quoted.
var keyValueRegex = regexp.MustCompile(`([A-Za-z_][\w.-]*)=(?:"([^"]*)"|(\S+))`)

var (
	intValueRegex   = regexp.MustCompile(`^-?\d+$`)
	floatValueRegex = regexp.MustCompile(`^-?\d+\.\d+(?:[eE][+-]?\d+)?$`)
)

// KeyValueFormat parses logfmt-style key=value lines. Like JSONFormat, the
// schema is derived per line with keys in lexical order.
type KeyValueFormat struct{}

func NewKeyValueFormat() *KeyValueFormat { return &KeyValueFormat{} }

func (f *KeyValueFormat) Name() string { return "keyvalue" }

func (f *KeyValueFormat) Match(line string) bool {
	return len(keyValueRegex.FindAllStringIndex(line, 2)) >= 2
}

func (f *KeyValueFormat) Parse(line string) (model.Record, *model.Schema, error) {
	matches := keyValueRegex.FindAllStringSubmatch(line, -1)
	if len(matches) < 2 {
		return model.Record{}, nil, &ParseError{Format: f.Name(), Reason: "fewer than two key=value pairs", Line: line}
	}

	values := make(map[string]string, len(matches))
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		key := m[1]
		val := m[2]
		if val == "" {
			val = m[3]
		}
		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = val
	}
	sort.Strings(keys)

	rec := model.Record{Values: make(map[string]any, len(values))}
	fields := make([]model.Field, 0, len(values))
	for _, key := range keys {
		name := safeFieldName(key)
		val := values[key]
		rec.Values[name] = val
		fields = append(fields, model.Field{Name: name, Type: kvFieldType(key, val), Nullable: true})
	}
	return rec, model.NewSchema(fields), nil
}

func kvFieldType(key, value string) model.FieldType {
	switch {
	case timestampKeys[key]:
		return model.TypeTimestamp
	case intValueRegex.MatchString(value):
		return model.TypeInt
	case floatValueRegex.MatchString(value):
		return model.TypeFloat
	default:
		return model.TypeString
	}
}
