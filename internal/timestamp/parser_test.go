package timestamp

import (
	"testing"
	"time"
)

func TestParseFromText_ISO8601(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name  string
		input string
	}{
		{"RFC3339", "2024-01-15T10:30:45Z some log message"},
		{"RFC3339Nano", "2024-01-15T10:30:45.123456789Z some log message"},
		{"RFC3339 offset", "2024-01-15T10:30:45+05:00 some message"},
		{"space separated", "2024-01-15 10:30:45 some log message"},
		{"millis", "2024-01-15 10:30:45.123 some log message"},
		{"micros", "2024-01-15 10:30:45.123456 some log message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.ParseFromText(tt.input)
			if !result.Found {
				t.Errorf("ParseFromText(%q) did not find timestamp", tt.input)
			}
			if result.Timestamp.IsZero() {
				t.Errorf("ParseFromText(%q) returned zero timestamp", tt.input)
			}
		})
	}
}

func TestParseFromText_Syslog(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("Jan 15 10:30:45 some syslog message")
	if !result.Found {
		t.Error("syslog format not parsed")
	}
}

func TestParseFromText_NginxError(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("2024/01/15 10:30:45 [error] 123#0: message")
	if !result.Found {
		t.Error("nginx error log format not parsed")
	}
	if result.Timestamp.Hour() != 10 {
		t.Errorf("hour = %d, want 10", result.Timestamp.Hour())
	}
}

func TestParseFromText_TimeOnly(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("10:30:45.123 some log message")
	if !result.Found {
		t.Error("time-only format not parsed")
	}
}

func TestParseFromText_NoTimestamp(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("just a regular log message")
	if result.Found {
		t.Error("should not find timestamp in plain text")
	}
	if result.Remaining != "just a regular log message" {
		t.Errorf("remaining = %q, want original text", result.Remaining)
	}
}

func TestParseFromText_CommaDecimal(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("2024-01-15 10:30:45,123 international format")
	if !result.Found {
		t.Error("comma decimal format not parsed")
	}
}

func TestParseTimestamp_String(t *testing.T) {
	p := NewParser()

	ts, ok := p.ParseTimestamp("2024-01-15T10:30:45Z")
	if !ok {
		t.Fatal("ParseTimestamp string failed")
	}
	want := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("timestamp = %v, want %v", ts, want)
	}
}

func TestParseTimestamp_CommonLogFormat(t *testing.T) {
	p := NewParser()

	ts, ok := p.ParseTimestamp("15/Jan/2024:10:30:45 +0000")
	if !ok {
		t.Fatal("ParseTimestamp CLF failed")
	}
	if ts.UTC().Hour() != 10 || ts.Day() != 15 {
		t.Errorf("unexpected parse result: %v", ts)
	}
}

func TestParseTimestamp_Epoch(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"seconds", "1705314645", time.Unix(1705314645, 0)},
		{"millis", "1705314645123", time.UnixMilli(1705314645123)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok := p.ParseTimestamp(tt.input)
			if !ok {
				t.Fatalf("ParseTimestamp(%q) failed", tt.input)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("timestamp = %v, want %v", ts, tt.want)
			}
		})
	}
}

func TestParseTimestamp_Garbage(t *testing.T) {
	p := NewParser()

	for _, input := range []string{"", "   ", "not a time", "12345", "99/99/9999"} {
		if _, ok := p.ParseTimestamp(input); ok {
			t.Errorf("ParseTimestamp(%q) = ok, want failure", input)
		}
	}
}

func TestUnixMillis(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 45, 123_000_000, time.UTC)
	if got := UnixMillis(ts); got != ts.UnixMilli() {
		t.Errorf("UnixMillis = %d, want %d", got, ts.UnixMilli())
	}
}
