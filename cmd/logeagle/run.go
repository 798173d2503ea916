package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"

	"github.com/logeagle/logeagle/internal/pipeline"
)

// run builds the pipeline from config and drives it until the sources are
// drained (once mode) or a shutdown signal arrives (continuous mode).
func run(cfg appConfig) error {
	setupLogging(cfg.LogLevel)
	if cfg.ConfigPath != "" {
		log.Debug().Str("config", cfg.ConfigPath).Msg("config loaded")
	}

	orch, err := pipeline.New(cfg.pipelineConfig())
	if err != nil {
		return err
	}

	// Set up context and signal handling before starting the runners.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "Shutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now - not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "Force shutdown.")
		case <-deadline.C:
			fmt.Fprintln(os.Stderr, "Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	return orch.Run(ctx)
}

func setupLogging(level string) {
	log.DefaultLogger = log.Logger{
		Level:      log.ParseLevel(level),
		TimeFormat: time.RFC3339,
		Writer: &log.ConsoleWriter{
			Writer:      os.Stderr,
			ColorOutput: false,
		},
	}
}
