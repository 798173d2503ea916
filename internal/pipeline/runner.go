// Package pipeline wires sources, parsing, cleaning, batching, and the
// columnar writer into per-source runners driven by one orchestrator.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/phuslu/log"

	"github.com/logeagle/logeagle/internal/batch"
	"github.com/logeagle/logeagle/internal/clean"
	"github.com/logeagle/logeagle/internal/columnar"
	"github.com/logeagle/logeagle/internal/logformat"
	"github.com/logeagle/logeagle/internal/model"
	"github.com/logeagle/logeagle/internal/offset"
	"github.com/logeagle/logeagle/internal/source"
)

// State is the runner's position in its processing cycle.
type State int

const (
	StateIdle State = iota
	StateReading
	StateParsing
	StateBuffering
	StateFlushing
	StateRetryBackoff
	StateFailed
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateParsing:
		return "parsing"
	case StateBuffering:
		return "buffering"
	case StateFlushing:
		return "flushing"
	case StateRetryBackoff:
		return "retry_backoff"
	case StateFailed:
		return "failed"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Runner owns one source file end to end. Offsets advance in memory as
// lines are buffered and are committed only when the batch covering them
// has been durably written, so a crash replays at most one uncommitted
// batch and never skips bytes.
type Runner struct {
	cfg      Config
	file     *source.File
	tracker  *offset.Tracker
	writer   *columnar.Writer
	detector *logformat.Detector
	cleaner  *clean.Cleaner
	buffer   *batch.Buffer

	state    State
	identity string
	offset   int64  // next byte to read; may be ahead of the committed offset
	seq      uint64 // last published sequence number

	linesRead    int64
	filesWritten int64
}

func newRunner(cfg Config, file *source.File, tracker *offset.Tracker, writer *columnar.Writer) *Runner {
	return &Runner{
		cfg:      cfg,
		file:     file,
		tracker:  tracker,
		writer:   writer,
		detector: logformat.NewDetector(logformat.BuiltinFormats(), file.FormatHint),
		cleaner:  clean.NewCleaner(),
		buffer:   batch.NewBuffer(cfg.MaxBatchSize, cfg.MaxBatchAge),
		state:    StateIdle,
	}
}

// State returns the runner's current state.
func (r *Runner) State() State { return r.state }

// Offset returns the next byte the runner will read.
func (r *Runner) Offset() int64 { return r.offset }

// FilesWritten returns the number of output files published so far.
func (r *Runner) FilesWritten() int64 { return r.filesWritten }

// init restores the persisted bookmark and finishes any publish that was
// committed but not yet renamed when the previous process stopped.
func (r *Runner) init() error {
	e, ok := r.tracker.Entry(r.file.Path)
	if !ok {
		return nil
	}
	if e.Pending != nil {
		final := e.Pending.Final
		if _, err := r.writer.Publish(e.Pending.Temp, final); err != nil {
			return err
		}
		e.Pending = nil
		if err := r.tracker.Commit(r.file.Path, e); err != nil {
			return err
		}
		log.Info().Str("source", r.file.Path).Str("file", final).Msg("completed interrupted publish")
	}
	r.identity = e.Identity
	r.offset = e.Offset
	r.seq = e.Sequence
	r.detector.Restore(e.Format)
	return nil
}

// Step runs one poll cycle: reconcile rotation, read available lines,
// parse, clean, buffer, and flush when a bound is hit. It returns done=true
// when the source is finished (one-shot mode) and an error only when the
// source has permanently failed.
func (r *Runner) Step(ctx context.Context) (done bool, err error) {
	if r.state == StateFailed {
		return true, nil
	}
	if r.state == StateDone {
		return true, nil
	}

	identity, size, ok, err := r.file.Stat()
	if err != nil {
		return false, r.fail(err)
	}
	if !ok {
		if r.cfg.Mode == ModeOnce {
			return true, r.finish(ctx)
		}
		r.state = StateIdle
		return false, nil
	}

	// Rotation and truncation reconciliation. The tracker archives the old
	// bookmark; the runner discards its uncommitted tail (those bytes
	// belonged to the replaced file) and restarts at 0.
	e := r.tracker.Resume(r.file.Path, identity, size)
	if (r.identity != "" && identity != r.identity) || size < r.offset {
		log.Info().Str("source", r.file.Path).
			Int64("old_offset", r.offset).
			Msg("rotation detected, restarting from offset 0")
		r.buffer.Drain()
		r.offset = e.Offset
		r.seq = e.Sequence
	}
	r.identity = identity

	for {
		r.state = StateReading
		includePartial := r.cfg.Mode == ModeOnce
		lines, err := r.file.ReadAvailable(r.offset, r.cfg.ReadChunk, includePartial)
		if err != nil {
			return false, r.fail(err)
		}
		if len(lines) == 0 {
			break
		}

		for _, line := range lines {
			r.state = StateParsing
			rec, schema := r.detector.ParseLine(r.file.Path, line.Text)
			rec = r.cleaner.Normalize(rec, schema)

			r.state = StateBuffering
			if forced := r.buffer.Add(rec, schema, line.Start, line.End); forced != nil {
				if err := r.flush(ctx, forced); err != nil {
					return false, err
				}
			}
			r.offset = line.End
			r.linesRead++

			if r.buffer.ShouldFlush() {
				if err := r.flush(ctx, r.buffer.Drain()); err != nil {
					return false, err
				}
			}
		}

		if len(lines) < r.cfg.ReadChunk {
			break
		}
		if ctx.Err() != nil {
			return false, nil
		}
	}

	if r.cfg.Mode == ModeOnce {
		return true, r.finish(ctx)
	}
	// Age-based flush fires even when no new bytes arrived this cycle.
	if r.buffer.ShouldFlush() {
		if err := r.flush(ctx, r.buffer.Drain()); err != nil {
			return false, err
		}
	}
	r.state = StateIdle
	return false, nil
}

// finish drains the remaining buffer and marks the runner done.
func (r *Runner) finish(ctx context.Context) error {
	if b := r.buffer.Drain(); b != nil {
		if err := r.flush(ctx, b); err != nil {
			return err
		}
	}
	r.state = StateDone
	log.Info().Str("source", r.file.Path).
		Int64("lines", r.linesRead).
		Int64("files", r.filesWritten).
		Msg("source drained")
	return nil
}

// flush durably publishes one batch with the two-phase protocol: temp file
// write, offset commit carrying the pending rename, rename, commit again
// to clear the pending marker. Failed attempts retry with exponential
// backoff; exhausting the retries fails the source.
func (r *Runner) flush(ctx context.Context, b *model.Batch) error {
	if b == nil || len(b.Records) == 0 {
		return nil
	}
	r.state = StateFlushing
	seq := r.seq + 1
	finalName := r.writer.FileName(r.file.ID, seq)

	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxWriteRetries; attempt++ {
		if attempt > 0 {
			r.state = StateRetryBackoff
			delay := backoffDelay(attempt, r.cfg.RetryBackoff, r.cfg.RetryBackoffMax)
			log.Warn().Str("source", r.file.Path).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Err(lastErr).
				Msg("flush failed, backing off")
			// Cancellation must not look like success: a later batch
			// committing its offsets would skip this batch's bytes.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			r.state = StateFlushing
		}

		lastErr = r.publishBatch(b, seq, finalName)
		if lastErr == nil {
			r.seq = seq
			r.filesWritten++
			log.Info().Str("source", r.file.Path).
				Str("file", finalName).
				Int("rows", len(b.Records)).
				Str("schema", b.Schema.Fingerprint()).
				Msg("batch flushed")
			r.state = StateBuffering
			return nil
		}
	}
	return r.fail(lastErr)
}

// publishBatch is one flush attempt, all phases.
func (r *Runner) publishBatch(b *model.Batch, seq uint64, finalName string) error {
	tmpPath, err := r.writer.WriteTemp(r.file.ID, seq, b)
	if err != nil {
		return err
	}

	entry := offset.Entry{
		Identity: r.identity,
		Offset:   b.EndOffset,
		Format:   r.detector.ActiveName(),
		Sequence: seq,
		Pending:  &offset.PendingPublish{Temp: tmpPath, Final: finalName},
	}
	if err := r.tracker.Commit(r.file.Path, entry); err != nil {
		return err
	}

	if _, err := r.writer.Publish(tmpPath, finalName); err != nil {
		return err
	}

	entry.Pending = nil
	return r.tracker.Commit(r.file.Path, entry)
}

// fail marks the runner permanently failed. Other sources keep running.
func (r *Runner) fail(err error) error {
	r.state = StateFailed
	log.Error().Str("source", r.file.Path).Err(err).Msg("source failed")
	return err
}

// Run drives Step on the poll interval until the source is done, the
// context is cancelled, or the source fails. A failed source returns its
// error for the orchestrator to contain.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.init(); err != nil {
		return r.fail(err)
	}
	log.Debug().Str("source", r.file.Path).
		Int64("offset", r.offset).
		Str("format", r.detector.ActiveName()).
		Msg("source runner started")

	for {
		done, err := r.Step(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			// Graceful shutdown flushes the open batch so its lines are
			// not re-read on the next start. A failed final flush is only
			// logged; the uncommitted bytes stay safe to re-read.
			if b := r.buffer.Drain(); b != nil {
				if err := r.flush(context.Background(), b); err != nil {
					log.Warn().Str("source", r.file.Path).Err(err).
						Msg("final flush failed, lines will be re-read")
				}
			}
			return nil
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// backoffDelay doubles the base per attempt, capped at max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
