package clean

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/logeagle/logeagle/internal/model"
)

func testSchema() *model.Schema {
	return model.NewSchema([]model.Field{
		{Name: "message", Type: model.TypeString, Nullable: true},
		{Name: "status", Type: model.TypeInt, Nullable: true},
		{Name: "latency", Type: model.TypeFloat, Nullable: true},
		{Name: "time", Type: model.TypeTimestamp, Nullable: true},
	})
}

func TestNormalize_Strings(t *testing.T) {
	c := NewCleaner()
	rec := model.NewRecord("test")
	rec.Values["message"] = "  hello\t\tworld\x00\x1b[0m  again  "

	out := c.Normalize(rec, testSchema())
	got := out.Values["message"]
	if got != "hello world [0m again" {
		t.Errorf("message = %q", got)
	}
}

func TestNormalize_NumericCoercion(t *testing.T) {
	c := NewCleaner()

	tests := []struct {
		name   string
		field  string
		input  any
		want   any
		shadow bool
	}{
		{"int from string", "status", "200", int64(200), false},
		{"int dash is null", "status", "-", nil, false},
		{"int garbage shadows", "status", "20x", nil, true},
		{"float from string", "latency", "1.25", 1.25, false},
		{"float from int", "latency", int64(3), 3.0, false},
		{"int already typed", "status", int64(404), int64(404), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.NewRecord("test")
			rec.Values[tt.field] = tt.input
			out := c.Normalize(rec, testSchema())
			if out.Values[tt.field] != tt.want {
				t.Errorf("%s = %v (%T), want %v", tt.field, out.Values[tt.field], out.Values[tt.field], tt.want)
			}
			hasShadow := out.Values[model.FieldShadow] != nil
			if hasShadow != tt.shadow {
				t.Errorf("shadow present = %v, want %v", hasShadow, tt.shadow)
			}
		})
	}
}

func TestNormalize_Timestamps(t *testing.T) {
	c := NewCleaner()

	wantMillis := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC).UnixMilli()

	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"RFC3339", "2024-01-15T10:30:45Z", wantMillis},
		{"CLF", "15/Jan/2024:10:30:45 +0000", wantMillis},
		{"epoch seconds string", "1705314645", int64(1705314645000)},
		{"epoch seconds number", float64(1705314645), int64(1705314645000)},
		{"epoch millis number", float64(1705314645123), int64(1705314645123)},
		{"unparseable is null", "last tuesday", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.NewRecord("test")
			rec.Values["time"] = tt.input
			out := c.Normalize(rec, testSchema())
			if out.Values["time"] != tt.want {
				t.Errorf("time = %v, want %v", out.Values["time"], tt.want)
			}
		})
	}
}

func TestNormalize_ShadowRetainsOriginal(t *testing.T) {
	c := NewCleaner()
	rec := model.NewRecord("test")
	rec.Values["status"] = "not-a-number"
	rec.Values["time"] = "not-a-time"

	out := c.Normalize(rec, testSchema())
	raw, _ := out.Values[model.FieldShadow].(string)
	if raw == "" {
		t.Fatal("shadow column empty")
	}
	var shadow map[string]string
	if err := json.Unmarshal([]byte(raw), &shadow); err != nil {
		t.Fatalf("shadow is not JSON: %v", err)
	}
	if shadow["status"] != "not-a-number" || shadow["time"] != "not-a-time" {
		t.Errorf("shadow = %v", shadow)
	}
}

func TestNormalize_IsTotal(t *testing.T) {
	c := NewCleaner()
	schema := testSchema()

	// Whatever garbage arrives, Normalize returns a record with every
	// schema column present.
	rec := model.NewRecord("test")
	rec.Values["status"] = []byte{0xff}
	rec.Values["latency"] = struct{}{}

	out := c.Normalize(rec, schema)
	for _, f := range schema.Fields() {
		if _, ok := out.Values[f.Name]; !ok && f.Name != model.FieldShadow {
			t.Errorf("missing column %s", f.Name)
		}
	}
}

func TestNormalize_PreservesReservedColumns(t *testing.T) {
	c := NewCleaner()
	rec := model.NewRecord("mysource")
	rec.Values[model.FieldParseError] = "raw \x01 line"

	out := c.Normalize(rec, model.NewSchema(nil))
	if out.Values[model.FieldSource] != "mysource" {
		t.Errorf("source = %v", out.Values[model.FieldSource])
	}
	// Parse error text is kept verbatim for debugging.
	if out.Values[model.FieldParseError] != "raw \x01 line" {
		t.Errorf("parse error = %v", out.Values[model.FieldParseError])
	}
}
