package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Mode selects how sources terminate.
type Mode string

const (
	// ModeContinuous polls sources for new bytes until shutdown.
	ModeContinuous Mode = "continuous"
	// ModeOnce drains each source to end-of-file and exits.
	ModeOnce Mode = "once"
)

// ConfigError is fatal at startup: no sources can be processed and the
// process exits non-zero.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "pipeline: config: " + e.Reason }

// Config is the resolved pipeline configuration. The CLI layer produces
// it; the orchestrator consumes it.
type Config struct {
	Inputs          []string
	OutputDir       string
	StatePath       string
	Mode            Mode
	PollInterval    time.Duration
	MaxBatchSize    int
	MaxBatchAge     time.Duration
	FormatHints     map[string]string
	MaxLineSize     int
	ReadChunk       int
	Compression     string
	MaxWriteRetries int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
}

// withDefaults fills unset knobs.
func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeContinuous
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 1000
	}
	if c.MaxBatchAge <= 0 {
		c.MaxBatchAge = 30 * time.Second
	}
	if c.ReadChunk <= 0 {
		c.ReadChunk = 10_000
	}
	if c.MaxWriteRetries <= 0 {
		c.MaxWriteRetries = 5
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 250 * time.Millisecond
	}
	if c.RetryBackoffMax <= 0 {
		c.RetryBackoffMax = 30 * time.Second
	}
	if c.StatePath == "" && c.OutputDir != "" {
		c.StatePath = filepath.Join(c.OutputDir, ".logeagle-state.yml")
	}
	return c
}

// Validate checks everything that must hold before any source is touched.
func (c Config) Validate() error {
	if len(c.Inputs) == 0 {
		return &ConfigError{Reason: "no inputs configured"}
	}
	if c.OutputDir == "" {
		return &ConfigError{Reason: "output directory not configured"}
	}
	if c.Mode != ModeContinuous && c.Mode != ModeOnce {
		return &ConfigError{Reason: fmt.Sprintf("invalid mode %q", c.Mode)}
	}

	// The output directory must be writable at startup, not at first flush.
	if err := os.MkdirAll(c.OutputDir, 0755); err != nil {
		return &ConfigError{Reason: fmt.Sprintf("output directory: %v", err)}
	}
	probe := filepath.Join(c.OutputDir, ".logeagle-probe")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		return &ConfigError{Reason: fmt.Sprintf("output directory not writable: %v", err)}
	}
	_ = os.Remove(probe)
	return nil
}

// hintFor resolves the declared format for a path: exact match first, then
// glob-pattern keys, then base-name keys.
func hintFor(hints map[string]string, path string) string {
	if len(hints) == 0 {
		return ""
	}
	if h, ok := hints[path]; ok {
		return h
	}
	for pattern, h := range hints {
		if ok, err := filepath.Match(pattern, path); err == nil && ok {
			return h
		}
		if ok, err := filepath.Match(pattern, filepath.Base(path)); err == nil && ok {
			return h
		}
	}
	return hints[filepath.Base(path)]
}
