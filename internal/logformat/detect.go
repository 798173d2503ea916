package logformat

import (
	"github.com/logeagle/logeagle/internal/model"
)

// redetectThreshold is the number of consecutive parse failures against the
// cached format before detection is retried.
const redetectThreshold = 5

// Detector resolves the active format for one source: the declared hint is
// tried first, then the ordered format list; the first structural match is
// cached for subsequent lines.
type Detector struct {
	formats  []Format
	byName   map[string]Format
	declared string

	active     Format
	failStreak int
}

// NewDetector creates a detector over formats with an optional declared
// format name. An unknown declared name is ignored and auto-detection used.
func NewDetector(formats []Format, declared string) *Detector {
	byName := make(map[string]Format, len(formats))
	for _, f := range formats {
		byName[f.Name()] = f
	}
	return &Detector{
		formats:  formats,
		byName:   byName,
		declared: declared,
	}
}

// ActiveName returns the cached format's name, or "" when undetected.
func (d *Detector) ActiveName() string {
	if d.active == nil {
		return ""
	}
	return d.active.Name()
}

// Restore installs a previously detected format by name, skipping
// detection after a restart. Unknown names leave the detector unset.
func (d *Detector) Restore(name string) {
	if f, ok := d.byName[name]; ok {
		d.active = f
	}
}

// ParseLine classifies and parses one line for the given source. It never
// fails: a line no format accepts yields a fallback Record with the parse
// error column set, keeping the active schema stable when one exists.
func (d *Detector) ParseLine(source, line string) (model.Record, *model.Schema) {
	if d.active == nil {
		d.active = d.detect(line)
	}
	if d.active == nil {
		return FallbackRecord(source, line, nil)
	}

	rec, schema, err := d.active.Parse(line)
	if err == nil {
		d.failStreak = 0
		rec.Values[model.FieldSource] = source
		return rec, schema
	}

	d.failStreak++
	if d.failStreak >= redetectThreshold {
		d.failStreak = 0
		if next := d.detect(line); next != nil && next != d.active {
			d.active = next
			if rec, schema, err := next.Parse(line); err == nil {
				rec.Values[model.FieldSource] = source
				return rec, schema
			}
		}
	}

	fallbackSchema := activeSchema(d.active)
	return FallbackRecord(source, line, fallbackSchema)
}

// detect returns the first format accepting the line, trying the declared
// hint before the ordered list.
func (d *Detector) detect(line string) Format {
	if d.declared != "" {
		if f, ok := d.byName[d.declared]; ok && f.Match(line) {
			return f
		}
	}
	for _, f := range d.formats {
		if f.Match(line) {
			return f
		}
	}
	return nil
}

// staticSchema is implemented by formats whose schema does not depend on
// line content; their schema anchors fallback records.
type staticSchema interface {
	Schema() *model.Schema
}

func activeSchema(f Format) *model.Schema {
	if s, ok := f.(staticSchema); ok {
		return s.Schema()
	}
	return nil
}
