// Package clean normalizes parsed records. Cleaning is pure and total: it
// never fails, and values that cannot be coerced to their declared type
// degrade to null with the original text retained in the shadow column.
package clean

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"github.com/logeagle/logeagle/internal/model"
	"github.com/logeagle/logeagle/internal/timestamp"
)

// Cleaner normalizes Records against their Schema.
type Cleaner struct {
	ts *timestamp.Parser
}

func NewCleaner() *Cleaner {
	return &Cleaner{ts: timestamp.NewParser()}
}

// Normalize returns a cleaned copy of rec: string fields are stripped of
// control characters and collapsed whitespace, numeric-looking strings are
// coerced per the schema's declared types, and timestamp-shaped values
// become canonical epoch milliseconds.
func (c *Cleaner) Normalize(rec model.Record, schema *model.Schema) model.Record {
	out := model.Record{Values: make(map[string]any, schema.Len())}
	shadow := map[string]string{}

	for _, field := range schema.Fields() {
		raw, present := rec.Values[field.Name]
		if !present || raw == nil {
			out.Values[field.Name] = nil
			continue
		}

		switch field.Name {
		case model.FieldSource, model.FieldParseError:
			out.Values[field.Name] = raw
			continue
		case model.FieldShadow:
			continue
		}

		value, ok := c.coerce(raw, field.Type)
		if !ok {
			shadow[field.Name] = stringify(raw)
			out.Values[field.Name] = nil
			continue
		}
		out.Values[field.Name] = value
	}

	if len(shadow) > 0 {
		if encoded, err := json.Marshal(shadow); err == nil {
			out.Values[model.FieldShadow] = string(encoded)
		}
	} else {
		out.Values[model.FieldShadow] = nil
	}
	return out
}

func (c *Cleaner) coerce(raw any, t model.FieldType) (any, bool) {
	switch t {
	case model.TypeString:
		return coerceString(raw)
	case model.TypeInt:
		return coerceInt(raw)
	case model.TypeFloat:
		return coerceFloat(raw)
	case model.TypeTimestamp:
		return c.coerceTimestamp(raw)
	default:
		return nil, false
	}
}

func coerceString(raw any) (any, bool) {
	s, ok := raw.(string)
	if !ok {
		return stringify(raw), true
	}
	s = cleanString(s)
	if s == "" {
		return nil, true
	}
	return s, true
}

func coerceInt(raw any) (any, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case string:
		s := cleanString(v)
		// CLF writes "-" for missing numeric fields.
		if s == "" || s == "-" {
			return nil, true
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	default:
		return nil, false
	}
}

func coerceFloat(raw any) (any, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case string:
		s := cleanString(v)
		if s == "" || s == "-" {
			return nil, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	default:
		return nil, false
	}
}

func (c *Cleaner) coerceTimestamp(raw any) (any, bool) {
	switch v := raw.(type) {
	case int64:
		return epochToMillis(float64(v)), true
	case float64:
		return epochToMillis(v), true
	case string:
		s := cleanString(v)
		if s == "" || s == "-" {
			return nil, true
		}
		ts, ok := c.ts.ParseTimestamp(s)
		if !ok {
			return nil, false
		}
		return timestamp.UnixMillis(ts), true
	default:
		return nil, false
	}
}

// epochToMillis interprets a bare number as epoch milliseconds when it is
// too large to be a plausible epoch-seconds value.
func epochToMillis(v float64) int64 {
	if v >= 1e11 || v <= -1e11 {
		return int64(v)
	}
	return int64(v * 1000)
}

// cleanString trims the value, replaces control characters with spaces and
// collapses runs of whitespace.
func cleanString(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
