package columnar

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	pfile "github.com/apache/arrow-go/v18/parquet/file"

	"github.com/logeagle/logeagle/internal/model"
)

func sampleBatch(n int) *model.Batch {
	schema := model.NewSchema([]model.Field{
		{Name: "time", Type: model.TypeTimestamp, Nullable: true},
		{Name: "status", Type: model.TypeInt, Nullable: true},
		{Name: "latency", Type: model.TypeFloat, Nullable: true},
		{Name: "message", Type: model.TypeString, Nullable: true},
	})
	batch := &model.Batch{
		Schema:      schema,
		StartOffset: 0,
		EndOffset:   int64(n * 10),
		OpenedAt:    time.Now(),
	}
	base := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC).UnixMilli()
	for i := 0; i < n; i++ {
		rec := model.NewRecord("test.log")
		rec.Values["time"] = base + int64(i)*1000
		rec.Values["status"] = int64(200 + i%3)
		rec.Values["latency"] = float64(i) / 10
		rec.Values["message"] = fmt.Sprintf("line %d", i)
		batch.Records = append(batch.Records, rec)
	}
	return batch
}

func TestWrite_ProducesReadableParquet(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "snappy")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	batch := sampleBatch(25)
	out, err := w.Write("test_log-a1b2c3d4", 1, batch)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(out.Path) != "test_log-a1b2c3d4-000001.parquet" {
		t.Errorf("file name = %s", filepath.Base(out.Path))
	}
	if out.Rows != 25 || out.SchemaID != batch.Schema.Fingerprint() {
		t.Errorf("output meta = %+v", out)
	}

	r, err := pfile.OpenParquetFile(out.Path, false)
	if err != nil {
		t.Fatalf("OpenParquetFile: %v", err)
	}
	defer r.Close()
	if r.NumRows() != 25 {
		t.Errorf("NumRows = %d, want 25", r.NumRows())
	}

	kv := r.MetaData().KeyValueMetadata()
	if kv == nil {
		t.Fatal("no key-value metadata")
	}
	if got := kv.FindValue("logeagle:schema_id"); got == nil || *got != batch.Schema.Fingerprint() {
		t.Errorf("schema_id metadata = %v", got)
	}
	if got := kv.FindValue("logeagle:end_offset"); got == nil || *got != "250" {
		t.Errorf("end_offset metadata = %v", got)
	}
}

func TestWrite_NullsSurvive(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "")
	if err != nil {
		t.Fatal(err)
	}

	batch := sampleBatch(2)
	batch.Records[1].Values["status"] = nil
	batch.Records[1].Values["message"] = nil

	out, err := w.Write("src-x", 1, batch)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := pfile.OpenParquetFile(out.Path, false)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.NumRows() != 2 {
		t.Errorf("NumRows = %d, want 2", r.NumRows())
	}
}

func TestWrite_NoTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "none")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write("src-x", 7, sampleBatch(3)); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
}

func TestPublish_IdempotentAfterRename(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "")
	if err != nil {
		t.Fatal(err)
	}

	tmp, err := w.WriteTemp("src-x", 2, sampleBatch(4))
	if err != nil {
		t.Fatal(err)
	}
	final := w.FileName("src-x", 2)

	p1, err := w.Publish(tmp, final)
	if err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	// Re-publishing after the temp is gone must succeed (restart recovery).
	p2, err := w.Publish(tmp, final)
	if err != nil {
		t.Fatalf("second Publish: %v", err)
	}
	if p1 != p2 {
		t.Errorf("paths differ: %s vs %s", p1, p2)
	}
}

func TestWriteTemp_FailureIsWriteError(t *testing.T) {
	w := &Writer{dir: filepath.Join(t.TempDir(), "missing", "deeper")}

	_, err := w.WriteTemp("src-x", 1, sampleBatch(1))
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("err = %v, want *WriteError", err)
	}
}

func TestNewWriter_UnknownCompression(t *testing.T) {
	if _, err := NewWriter(t.TempDir(), "lzma"); err == nil {
		t.Fatal("expected error for unknown compression")
	}
}
