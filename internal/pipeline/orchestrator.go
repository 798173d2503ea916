package pipeline

import (
	"context"
	"fmt"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/logeagle/logeagle/internal/columnar"
	"github.com/logeagle/logeagle/internal/offset"
	"github.com/logeagle/logeagle/internal/source"
)

// Orchestrator owns one runner per source file plus the shared offset
// tracker and columnar writer. Sources are isolated: one failing source
// never stops the others.
type Orchestrator struct {
	cfg     Config
	tracker *offset.Tracker
	writer  *columnar.Writer
	runners []*Runner
}

// New validates the configuration, expands input globs, and builds a
// runner per resolved source. Configuration problems surface as
// *ConfigError so the CLI exits non-zero before touching any source.
func New(cfg Config) (*Orchestrator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	paths, err := source.Expand(cfg.Inputs)
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}
	if len(paths) == 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("inputs %v matched no files", cfg.Inputs)}
	}

	writer, err := columnar.NewWriter(cfg.OutputDir, cfg.Compression)
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}
	tracker, err := offset.Open(cfg.StatePath)
	if err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}

	o := &Orchestrator{cfg: cfg, tracker: tracker, writer: writer}
	for _, p := range paths {
		f := source.NewFile(p, hintFor(cfg.FormatHints, p))
		if cfg.MaxLineSize > 0 {
			f.MaxLineSize = cfg.MaxLineSize
		}
		o.runners = append(o.runners, newRunner(cfg, f, tracker, writer))
	}
	return o, nil
}

// Runners exposes the per-source runners, mainly for status inspection.
func (o *Orchestrator) Runners() []*Runner { return o.runners }

// Run starts every runner and blocks until all finish. In one-shot mode
// that is end-of-file on every source; in continuous mode it is context
// cancellation. Per-source errors are logged and contained so sibling
// sources keep running; Run reports how many sources failed.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().Int("sources", len(o.runners)).
		Str("mode", string(o.cfg.Mode)).
		Str("output", o.cfg.OutputDir).
		Msg("pipeline starting")

	g, gctx := errgroup.WithContext(ctx)
	failed := make([]bool, len(o.runners))
	for i, r := range o.runners {
		i, r := i, r
		g.Go(func() error {
			if err := r.Run(gctx); err != nil {
				failed[i] = true
			}
			// Errors are contained here so one bad source does not
			// cancel the group.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var n int
	for _, f := range failed {
		if f {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("pipeline: %d of %d sources failed", n, len(o.runners))
	}
	log.Info().Msg("pipeline finished")
	return nil
}
