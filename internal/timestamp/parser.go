// Package timestamp parses timestamps out of log text using a prioritized
// list of known layouts. Parsing is best effort: callers receive a zero
// time and ok=false rather than an error when nothing matches.
package timestamp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of scanning text for a leading timestamp.
type Result struct {
	Found     bool
	Timestamp time.Time
	Remaining string
}

// pattern pairs a structural regex with the layouts tried against a match.
type pattern struct {
	re      *regexp.Regexp
	layouts []string
	// yearless patterns (syslog, time-only) get the current year/date filled in
	yearless bool
	timeOnly bool
}

// Parser recognizes timestamps in prioritized order: RFC3339 variants,
// ISO space-separated (dot or comma subseconds), nginx error log, common
// access log, syslog, epoch seconds/millis, and bare time-of-day.
type Parser struct {
	patterns []pattern
	now      func() time.Time
}

// NewParser creates a Parser using the wall clock for yearless formats.
func NewParser() *Parser {
	return &Parser{
		patterns: []pattern{
			{
				re:      regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})`),
				layouts: []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999999-0700", "2006-01-02T15:04:05-0700"},
			},
			{
				re:      regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?: ?(?:Z|[+-]\d{2}:?\d{2}))?`),
				layouts: []string{"2006-01-02 15:04:05.999999999Z07:00", "2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05,999999999", "2006-01-02 15:04:05 -0700", "2006-01-02 15:04:05"},
			},
			{
				re:      regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}`),
				layouts: []string{"2006/01/02 15:04:05"},
			},
			{
				re:      regexp.MustCompile(`^\d{2}/[A-Z][a-z]{2}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4}`),
				layouts: []string{"02/Jan/2006:15:04:05 -0700"},
			},
			{
				re:       regexp.MustCompile(`^[A-Z][a-z]{2} {1,2}\d{1,2} \d{2}:\d{2}:\d{2}`),
				layouts:  []string{"Jan _2 15:04:05", "Jan 2 15:04:05"},
				yearless: true,
			},
			{
				re:       regexp.MustCompile(`^\d{2}:\d{2}:\d{2}(?:[.,]\d+)?`),
				layouts:  []string{"15:04:05.999999999", "15:04:05,999999999", "15:04:05"},
				timeOnly: true,
			},
		},
		now: time.Now,
	}
}

// ParseFromText scans the start of text for a timestamp in any known
// layout. When found, Remaining holds the text after the timestamp with
// leading separators trimmed; otherwise Remaining is the original text.
func (p *Parser) ParseFromText(text string) Result {
	for _, pat := range p.patterns {
		loc := pat.re.FindStringIndex(text)
		if loc == nil || loc[0] != 0 {
			continue
		}
		ts, ok := p.parseMatch(text[:loc[1]], pat)
		if !ok {
			continue
		}
		remaining := strings.TrimLeft(text[loc[1]:], " \t-:,]")
		return Result{Found: true, Timestamp: ts, Remaining: remaining}
	}
	return Result{Found: false, Remaining: text}
}

// ParseTimestamp parses a whole string as a timestamp. Epoch seconds and
// epoch milliseconds are accepted in addition to the textual layouts.
func (p *Parser) ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if ts, ok := parseEpoch(s); ok {
		return ts, true
	}

	for _, pat := range p.patterns {
		if pat.timeOnly {
			// A bare time of day is too ambiguous for a whole-value parse.
			continue
		}
		loc := pat.re.FindStringIndex(s)
		if loc == nil || loc[0] != 0 || loc[1] != len(s) {
			continue
		}
		if ts, ok := p.parseMatch(s, pat); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

func (p *Parser) parseMatch(match string, pat pattern) (time.Time, bool) {
	for _, layout := range pat.layouts {
		ts, err := time.Parse(layout, match)
		if err != nil {
			continue
		}
		if pat.yearless {
			now := p.now()
			ts = ts.AddDate(now.Year(), 0, 0)
			// A syslog line from late December read in early January
			// belongs to the previous year.
			if ts.After(now.AddDate(0, 0, 7)) {
				ts = ts.AddDate(-1, 0, 0)
			}
		}
		if pat.timeOnly {
			now := p.now()
			ts = time.Date(now.Year(), now.Month(), now.Day(),
				ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), time.Local)
		}
		return ts, true
	}
	return time.Time{}, false
}

// parseEpoch interprets a bare integer as epoch seconds (10 digits) or
// epoch milliseconds (13 digits).
func parseEpoch(s string) (time.Time, bool) {
	if len(s) != 10 && len(s) != 13 {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	if len(s) == 13 {
		return time.UnixMilli(n), true
	}
	return time.Unix(n, 0), true
}

// UnixMillis converts a time to canonical epoch milliseconds.
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}
