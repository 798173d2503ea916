// Package batch accumulates cleaned records into schema-homogeneous,
// size- and age-bounded batches. A Buffer is owned by a single source
// runner and is not safe for concurrent use.
package batch

import (
	"time"

	"github.com/logeagle/logeagle/internal/model"
)

const (
	DefaultMaxCount = 1000
	DefaultMaxAge   = 30 * time.Second
)

// Buffer is the in-memory staging area between the cleaner and the
// columnar writer.
type Buffer struct {
	maxCount int
	maxAge   time.Duration
	now      func() time.Time

	cur *model.Batch
}

// NewBuffer creates a buffer flushing at maxCount records or maxAge since
// the first record of the open batch, whichever comes first.
func NewBuffer(maxCount int, maxAge time.Duration) *Buffer {
	if maxCount <= 0 {
		maxCount = DefaultMaxCount
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Buffer{maxCount: maxCount, maxAge: maxAge, now: time.Now}
}

// Add appends one record covering source bytes [start, end). When the
// record's schema is incompatible with the open batch, the open batch is
// force-drained and returned so the caller flushes it before anything
// else; the record then opens a new batch. Compatible-but-wider schemas
// widen the open batch in place.
func (b *Buffer) Add(rec model.Record, schema *model.Schema, start, end int64) *model.Batch {
	var forced *model.Batch

	if b.cur != nil && !b.cur.Schema.CompatibleWith(schema) {
		forced = b.Drain()
	}

	if b.cur == nil {
		b.cur = &model.Batch{
			Schema:      schema,
			StartOffset: start,
			OpenedAt:    b.now(),
		}
	} else if !b.cur.Schema.Equal(schema) {
		b.cur.Schema = b.cur.Schema.Widen(schema)
	}

	b.cur.Records = append(b.cur.Records, rec)
	b.cur.EndOffset = end
	return forced
}

// ShouldFlush reports whether the open batch hit its count or age bound.
func (b *Buffer) ShouldFlush() bool {
	if b.cur == nil || len(b.cur.Records) == 0 {
		return false
	}
	if len(b.cur.Records) >= b.maxCount {
		return true
	}
	return b.now().Sub(b.cur.OpenedAt) >= b.maxAge
}

// Drain closes and returns the open batch, or nil when empty.
func (b *Buffer) Drain() *model.Batch {
	batch := b.cur
	b.cur = nil
	if batch == nil || len(batch.Records) == 0 {
		return nil
	}
	return batch
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	if b.cur == nil {
		return 0
	}
	return len(b.cur.Records)
}

// SetClock overrides the time source. Tests drive age-based flushes with it.
func (b *Buffer) SetClock(now func() time.Time) {
	if now != nil {
		b.now = now
	}
}
