package logformat

import (
	"regexp"

	"github.com/logeagle/logeagle/internal/model"
)

// errorLogRegex matches nginx error log lines:
//
//	2024/01/15 10:30:45 [error] 1234#5678: *90 open() failed ...
//
// The connection id ("*90") is optional.
var errorLogRegex = regexp.MustCompile(
	`^(\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}) \[(\w+)\] (\d+)#(\d+): (?:\*(\d+) )?(.*)$`)

// ErrorLogFormat parses nginx-style error logs.
type ErrorLogFormat struct {
	schema *model.Schema
}

func NewErrorLogFormat() *ErrorLogFormat {
	return &ErrorLogFormat{
		schema: model.NewSchema([]model.Field{
			{Name: "time", Type: model.TypeTimestamp, Nullable: true},
			{Name: "level", Type: model.TypeString, Nullable: true},
			{Name: "pid", Type: model.TypeInt, Nullable: true},
			{Name: "tid", Type: model.TypeInt, Nullable: true},
			{Name: "connection", Type: model.TypeInt, Nullable: true},
			{Name: "message", Type: model.TypeString, Nullable: true},
		}),
	}
}

func (f *ErrorLogFormat) Name() string { return "error" }

func (f *ErrorLogFormat) Match(line string) bool {
	return errorLogRegex.MatchString(line)
}

func (f *ErrorLogFormat) Schema() *model.Schema { return f.schema }

func (f *ErrorLogFormat) Parse(line string) (model.Record, *model.Schema, error) {
	m := errorLogRegex.FindStringSubmatch(line)
	if m == nil {
		return model.Record{}, nil, &ParseError{Format: f.Name(), Reason: "line does not match error log pattern", Line: line}
	}

	rec := model.Record{Values: map[string]any{
		"time":    m[1],
		"level":   NormalizeSeverity(m[2]),
		"pid":     m[3],
		"tid":     m[4],
		"message": m[6],
	}}
	if m[5] != "" {
		rec.Values["connection"] = m[5]
	}
	return rec, f.schema, nil
}
