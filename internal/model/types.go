package model

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"
)

// FieldType enumerates the value types a Record field can carry.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeTimestamp // epoch milliseconds, stored as int64
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("fieldtype(%d)", int(t))
	}
}

// Reserved column names present in every Record.
const (
	FieldSource     = "_source"      // originating source name
	FieldParseError = "_parse_error" // raw text of a line no format matched
	FieldShadow     = "_shadow"      // JSON of field -> original string for degraded values
)

// Field describes one column of a Schema.
type Field struct {
	Name     string
	Type     FieldType
	Nullable bool
}

// Schema is the ordered, immutable shape of the Records in one Batch.
type Schema struct {
	fields      []Field
	fingerprint string
}

// NewSchema builds a Schema from ordered fields and appends the reserved
// columns when the caller did not include them.
func NewSchema(fields []Field) *Schema {
	out := make([]Field, 0, len(fields)+3)
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		out = append(out, f)
		seen[f.Name] = true
	}
	if !seen[FieldSource] {
		out = append(out, Field{Name: FieldSource, Type: TypeString, Nullable: false})
	}
	if !seen[FieldParseError] {
		out = append(out, Field{Name: FieldParseError, Type: TypeString, Nullable: true})
	}
	if !seen[FieldShadow] {
		out = append(out, Field{Name: FieldShadow, Type: TypeString, Nullable: true})
	}

	var sb strings.Builder
	for _, f := range out {
		sb.WriteString(f.Name)
		sb.WriteByte(':')
		sb.WriteString(f.Type.String())
		sb.WriteByte(';')
	}
	h := fnv.New64a()
	h.Write([]byte(sb.String()))

	return &Schema{
		fields:      out,
		fingerprint: fmt.Sprintf("%016x", h.Sum64()),
	}
}

// Fields returns the ordered column list.
func (s *Schema) Fields() []Field { return s.fields }

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.fields) }

// Fingerprint returns a stable identifier for the column layout.
func (s *Schema) Fingerprint() string { return s.fingerprint }

// Equal reports whether two schemas have identical column layouts.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.fingerprint == o.fingerprint
}

// CompatibleWith reports whether records of schema o can be stored in a
// Batch currently holding schema s, possibly after widening. Column names
// must match in order; per column the types must be equal or one of the
// pair int and the other float.
func (s *Schema) CompatibleWith(o *Schema) bool {
	if s.Equal(o) {
		return true
	}
	if len(s.fields) != len(o.fields) {
		return false
	}
	for i, f := range s.fields {
		g := o.fields[i]
		if f.Name != g.Name {
			return false
		}
		if f.Type == g.Type {
			continue
		}
		if (f.Type == TypeInt && g.Type == TypeFloat) || (f.Type == TypeFloat && g.Type == TypeInt) {
			continue
		}
		return false
	}
	return true
}

// Widen returns the schema covering both s and o: columns where the types
// differ between int and float become float. Callers must have checked
// CompatibleWith first.
func (s *Schema) Widen(o *Schema) *Schema {
	if s.Equal(o) {
		return s
	}
	fields := make([]Field, len(s.fields))
	copy(fields, s.fields)
	for i := range fields {
		if fields[i].Type != o.fields[i].Type {
			fields[i].Type = TypeFloat
		}
	}
	return NewSchema(fields)
}

// Record is one structured, typed representation of a single log line.
// Values hold string, int64, float64 or nil; timestamp columns hold epoch
// milliseconds as int64.
type Record struct {
	Values map[string]any
}

// NewRecord creates a Record tagged with its source name.
func NewRecord(source string) Record {
	return Record{Values: map[string]any{FieldSource: source}}
}

// SortedKeys returns the value keys in lexical order. Used by dynamic
// formats to derive deterministic schemas.
func (r Record) SortedKeys() []string {
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RawLine is one line of input plus the byte range it occupied.
type RawLine struct {
	Text  string
	Start int64 // byte offset of the first byte of the line
	End   int64 // byte offset just past the trailing newline
}

// Batch is a bounded, schema-homogeneous group of Records awaiting flush.
type Batch struct {
	Schema      *Schema
	Records     []Record
	StartOffset int64 // first source byte covered by this batch
	EndOffset   int64 // byte just past the last line in this batch
	OpenedAt    time.Time
}

// OutputFile describes one immutable columnar artifact.
type OutputFile struct {
	Path        string
	Rows        int64
	StartOffset int64
	EndOffset   int64
	SchemaID    string
	Sequence    uint64
}
