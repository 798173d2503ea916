package logformat

import (
	"regexp"
	"strings"

	"github.com/logeagle/logeagle/internal/model"
)

// accessLogRegex matches NCSA common and combined access log lines, as
// written by nginx and apache. The referer/user-agent pair is optional so
// both variants share one format.
var accessLogRegex = regexp.MustCompile(
	`^(\S+) (\S+) (\S+) \[([^\]]+)\] "([^"]*)" (\d{3}) (\d+|-)(?: "([^"]*)" "([^"]*)")?\s*$`)

// AccessLogFormat parses NCSA common/combined access logs.
type AccessLogFormat struct {
	schema *model.Schema
}

// NewAccessLogFormat creates the access log format. Its schema is fixed:
// a garbled line degrades to all-null fields without changing shape.
func NewAccessLogFormat() *AccessLogFormat {
	return &AccessLogFormat{
		schema: model.NewSchema([]model.Field{
			{Name: "remote_addr", Type: model.TypeString, Nullable: true},
			{Name: "remote_user", Type: model.TypeString, Nullable: true},
			{Name: "time", Type: model.TypeTimestamp, Nullable: true},
			{Name: "request", Type: model.TypeString, Nullable: true},
			{Name: "method", Type: model.TypeString, Nullable: true},
			{Name: "path", Type: model.TypeString, Nullable: true},
			{Name: "protocol", Type: model.TypeString, Nullable: true},
			{Name: "status", Type: model.TypeInt, Nullable: true},
			{Name: "body_bytes", Type: model.TypeInt, Nullable: true},
			{Name: "referer", Type: model.TypeString, Nullable: true},
			{Name: "user_agent", Type: model.TypeString, Nullable: true},
		}),
	}
}

func (f *AccessLogFormat) Name() string { return "access" }

func (f *AccessLogFormat) Match(line string) bool {
	return accessLogRegex.MatchString(line)
}

func (f *AccessLogFormat) Schema() *model.Schema { return f.schema }

func (f *AccessLogFormat) Parse(line string) (model.Record, *model.Schema, error) {
	m := accessLogRegex.FindStringSubmatch(line)
	if m == nil {
		return model.Record{}, nil, &ParseError{Format: f.Name(), Reason: "line does not match access log pattern", Line: line}
	}

	rec := model.Record{Values: map[string]any{
		"remote_addr": m[1],
		"remote_user": m[3],
		"time":        m[4],
		"request":     m[5],
		"status":      m[6],
		"body_bytes":  m[7],
	}}

	// "GET /index.html HTTP/1.1" -> method, path, protocol
	if parts := strings.SplitN(m[5], " ", 3); len(parts) == 3 {
		rec.Values["method"] = parts[0]
		rec.Values["path"] = parts[1]
		rec.Values["protocol"] = parts[2]
	}
	if m[8] != "" && m[8] != "-" {
		rec.Values["referer"] = m[8]
	}
	if m[9] != "" && m[9] != "-" {
		rec.Values["user_agent"] = m[9]
	}
	return rec, f.schema, nil
}
