// Package logformat classifies raw log lines by format and extracts
// structured fields. Formats form an ordered, pluggable list; detection is
// performed once per source and the winner is cached until parsing against
// it starts failing persistently.
package logformat

import (
	"fmt"

	"github.com/logeagle/logeagle/internal/model"
)

// Format parses lines of one log dialect.
type Format interface {
	// Name is the stable identifier used in config hints and offset state.
	Name() string
	// Match is a cheap structural check used during detection.
	Match(line string) bool
	// Parse extracts a Record and its Schema from one line. Parsing is
	// pure: the same line always yields the same Record. Failures return
	// a *ParseError.
	Parse(line string) (model.Record, *model.Schema, error)
}

// ParseError reports a line that a format could not extract.
type ParseError struct {
	Format string
	Reason string
	Line   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("logformat: %s: %s: %.120q", e.Format, e.Reason, e.Line)
}

// BuiltinFormats returns the built-in formats in detection priority order:
// access log, error log, then the generic JSON and key=value fallbacks.
func BuiltinFormats() []Format {
	return []Format{
		NewAccessLogFormat(),
		NewErrorLogFormat(),
		NewJSONFormat(),
		NewKeyValueFormat(),
	}
}

// FallbackRecord builds the Record emitted for a line no format could
// parse: every typed field of schema is null and the raw text is retained
// in the parse-error column. When schema is nil the minimal reserved-column
// schema is used.
func FallbackRecord(source, line string, schema *model.Schema) (model.Record, *model.Schema) {
	if schema == nil {
		schema = model.NewSchema(nil)
	}
	rec := model.NewRecord(source)
	rec.Values[model.FieldParseError] = line
	return rec, schema
}
