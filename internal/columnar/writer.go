// Package columnar serializes batches into immutable Parquet files.
// Files are written to a temporary name, fsynced, and atomically renamed,
// so a concurrent reader of the output directory never observes a partial
// file.
package columnar

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/logeagle/logeagle/internal/model"
)

// WriteError reports a failed flush attempt. It is retriable: the batch
// stays in memory and the orchestrator retries with backoff.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("columnar: write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Writer produces sequence-numbered Parquet files in one output directory.
type Writer struct {
	dir   string
	codec compress.Compression
}

// NewWriter creates a writer for dir, creating the directory when needed.
// Compression is one of snappy (default when empty), zstd, gzip, none.
func NewWriter(dir, compression string) (*Writer, error) {
	codec, err := parseCompression(compression)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("columnar: create output dir: %w", err)
	}
	return &Writer{dir: dir, codec: codec}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// FileName returns the final, published name for a flush of source.
// Names embed the source identity and a monotonically increasing sequence
// number, so no two sources ever contend for the same name.
func (w *Writer) FileName(sourceID string, seq uint64) string {
	return fmt.Sprintf("%s-%06d.parquet", sourceID, seq)
}

// tempName returns the in-progress name for a flush. The dot prefix keeps
// half-written files out of *.parquet globs.
func (w *Writer) tempName(sourceID string, seq uint64) string {
	return fmt.Sprintf(".%s-%06d.parquet.tmp", sourceID, seq)
}

// WriteTemp serializes the batch to a durable temporary file and returns
// its path. The file becomes visible only after Publish renames it.
func (w *Writer) WriteTemp(sourceID string, seq uint64, batch *model.Batch) (string, error) {
	tmpPath := filepath.Join(w.dir, w.tempName(sourceID, seq))

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return "", &WriteError{Path: tmpPath, Err: err}
	}

	if err := w.serialize(f, sourceID, seq, batch); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return "", &WriteError{Path: tmpPath, Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return "", &WriteError{Path: tmpPath, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", &WriteError{Path: tmpPath, Err: err}
	}
	return tmpPath, nil
}

// Publish atomically renames a temporary file to its final name and syncs
// the directory entry. It is idempotent: a missing temp alongside an
// existing final file means an earlier Publish already completed.
func (w *Writer) Publish(tmpPath, finalName string) (string, error) {
	finalPath := filepath.Join(w.dir, finalName)

	if _, err := os.Stat(tmpPath); err != nil {
		if os.IsNotExist(err) {
			if _, serr := os.Stat(finalPath); serr == nil {
				return finalPath, nil
			}
		}
		return "", &WriteError{Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", &WriteError{Path: finalPath, Err: err}
	}
	if d, err := os.Open(w.dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return finalPath, nil
}

// Write is the single-step flush: temp write then publish. The pipeline
// uses the two-phase form with an offset commit in between.
func (w *Writer) Write(sourceID string, seq uint64, batch *model.Batch) (*model.OutputFile, error) {
	tmpPath, err := w.WriteTemp(sourceID, seq, batch)
	if err != nil {
		return nil, err
	}
	finalPath, err := w.Publish(tmpPath, w.FileName(sourceID, seq))
	if err != nil {
		return nil, err
	}
	return &model.OutputFile{
		Path:        finalPath,
		Rows:        int64(len(batch.Records)),
		StartOffset: batch.StartOffset,
		EndOffset:   batch.EndOffset,
		SchemaID:    batch.Schema.Fingerprint(),
		Sequence:    seq,
	}, nil
}

func (w *Writer) serialize(f io.Writer, sourceID string, seq uint64, batch *model.Batch) error {
	props := parquet.NewWriterProperties(
		parquet.WithCompression(w.codec),
		parquet.WithCreatedBy("logeagle"),
	)
	fw, err := pqarrow.NewFileWriter(arrowSchema(batch.Schema), onlyWriter{f}, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return err
	}

	rec := buildArrowRecord(batch.Schema, batch)
	defer rec.Release()

	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return err
	}

	// Provenance lives in the file itself: consumers can audit coverage
	// without the offset state file.
	kv := map[string]string{
		"logeagle:schema":       schemaJSON(batch.Schema),
		"logeagle:schema_id":    batch.Schema.Fingerprint(),
		"logeagle:source":       sourceID,
		"logeagle:sequence":     strconv.FormatUint(seq, 10),
		"logeagle:start_offset": strconv.FormatInt(batch.StartOffset, 10),
		"logeagle:end_offset":   strconv.FormatInt(batch.EndOffset, 10),
	}
	for k, v := range kv {
		if err := fw.AppendKeyValueMetadata(k, v); err != nil {
			_ = fw.Close()
			return err
		}
	}
	return fw.Close()
}

// schemaJSON renders the logical field list for the key-value metadata.
// Parquet carries the physical schema; this keeps the logical types
// (timestamp vs plain int64) available to consumers.
func schemaJSON(s *model.Schema) string {
	type field struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	fields := make([]field, 0, s.Len())
	for _, f := range s.Fields() {
		fields = append(fields, field{Name: f.Name, Type: f.Type.String()})
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// onlyWriter hides Close from the parquet writer so the file handle stays
// ours to sync and close.
type onlyWriter struct {
	io.Writer
}

func parseCompression(name string) (compress.Compression, error) {
	switch name {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "none":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("columnar: unknown compression %q", name)
	}
}
