// Package offset persists, per source file, how far ingestion has durably
// progressed. State is a single YAML file written atomically (temp file,
// fsync, rename) so loads and saves are idempotent and a crash never leaves
// a torn state file.
package offset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// PendingPublish records an output file that was committed but possibly not
// yet renamed into place when the process stopped. Recovery completes the
// rename on the next start.
type PendingPublish struct {
	Temp  string `yaml:"temp"`
	Final string `yaml:"final"`
}

// Entry is the persisted bookmark for one source.
type Entry struct {
	Identity  string          `yaml:"identity"`
	Offset    int64           `yaml:"offset"`
	Format    string          `yaml:"format,omitempty"`
	Sequence  uint64          `yaml:"sequence"`
	Pending   *PendingPublish `yaml:"pending,omitempty"`
	UpdatedAt time.Time       `yaml:"updated_at"`
}

type state struct {
	Sources  map[string]Entry `yaml:"sources"`
	Archived []Entry          `yaml:"archived,omitempty"`
}

// Tracker loads and saves per-source offsets.
type Tracker struct {
	mu    sync.Mutex
	path  string
	state state
}

// Open loads the tracker state at path, starting empty when the file does
// not exist yet.
func Open(path string) (*Tracker, error) {
	if path == "" {
		return nil, errors.New("offset: state path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return nil, fmt.Errorf("offset: mkdir state dir: %w", err)
	}

	t := &Tracker{path: path, state: state{Sources: map[string]Entry{}}}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return t, nil
		}
		return nil, fmt.Errorf("offset: read state: %w", err)
	}
	if err := yaml.Unmarshal(data, &t.state); err != nil {
		return nil, fmt.Errorf("offset: parse state: %w", err)
	}
	if t.state.Sources == nil {
		t.state.Sources = map[string]Entry{}
	}
	return t, nil
}

// Resume returns the bookmark for source, reconciled against the file's
// current identity and size. When the identity changed or the file shrank
// below the recorded offset, the source was rotated or truncated: the old
// entry is archived and ingestion restarts at offset 0 (the sequence
// counter is retained so output file names never collide).
func (t *Tracker) Resume(source, identity string, size int64) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.state.Sources[source]
	if !ok {
		return Entry{Identity: identity}
	}
	if (e.Identity != "" && identity != "" && e.Identity != identity) || size < e.Offset {
		t.state.Archived = append(t.state.Archived, e)
		fresh := Entry{Identity: identity, Sequence: e.Sequence, Format: e.Format}
		t.state.Sources[source] = fresh
		return fresh
	}
	if e.Identity == "" {
		e.Identity = identity
	}
	return e
}

// Commit durably records the bookmark for source.
func (t *Tracker) Commit(source string, e Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e.UpdatedAt = time.Now().UTC()
	t.state.Sources[source] = e
	return t.save()
}

// Entry returns the current bookmark without rotation reconciliation.
func (t *Tracker) Entry(source string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.state.Sources[source]
	return e, ok
}

// save writes the whole state atomically. Callers hold t.mu.
func (t *Tracker) save() error {
	data, err := yaml.Marshal(&t.state)
	if err != nil {
		return fmt.Errorf("offset: marshal state: %w", err)
	}

	tmp := t.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return fmt.Errorf("offset: open state tmp: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("offset: write state tmp: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("offset: sync state tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("offset: close state tmp: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("offset: rename state: %w", err)
	}
	return nil
}
