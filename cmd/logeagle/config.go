package main

import (
	"time"

	"github.com/logeagle/logeagle/internal/batch"
	"github.com/logeagle/logeagle/internal/pipeline"
	"github.com/logeagle/logeagle/internal/source"
)

const (
	defaultMode            = string(pipeline.ModeContinuous)
	defaultPollInterval    = 2 * time.Second
	defaultMaxBatchSize    = batch.DefaultMaxCount
	defaultMaxBatchAge     = batch.DefaultMaxAge
	defaultMaxLineSize     = source.DefaultMaxLineSize
	defaultCompression     = "snappy"
	defaultMaxWriteRetries = 5
	defaultRetryBackoff    = 250 * time.Millisecond
	defaultRetryBackoffMax = 30 * time.Second
	defaultLogLevel        = "info"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Inputs          []string          `mapstructure:"inputs"`
	OutputDir       string            `mapstructure:"output-dir"`
	StateFile       string            `mapstructure:"state-file"`
	Mode            string            `mapstructure:"mode"`
	PollInterval    time.Duration     `mapstructure:"poll-interval"`
	MaxBatchSize    int               `mapstructure:"max-batch-size"`
	MaxBatchAge     time.Duration     `mapstructure:"max-batch-age"`
	FormatHints     map[string]string `mapstructure:"format-hints"`
	MaxLineSize     int               `mapstructure:"max-line-size"`
	Compression     string            `mapstructure:"compression"`
	MaxWriteRetries int               `mapstructure:"max-write-retries"`
	RetryBackoff    time.Duration     `mapstructure:"retry-backoff"`
	RetryBackoffMax time.Duration     `mapstructure:"retry-backoff-max"`
	LogLevel        string            `mapstructure:"log-level"`
	ConfigPath      string            `mapstructure:"-"` // not from config file
}

// pipelineConfig translates the CLI shape into the pipeline's.
func (c appConfig) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		Inputs:          c.Inputs,
		OutputDir:       c.OutputDir,
		StatePath:       c.StateFile,
		Mode:            pipeline.Mode(c.Mode),
		PollInterval:    c.PollInterval,
		MaxBatchSize:    c.MaxBatchSize,
		MaxBatchAge:     c.MaxBatchAge,
		FormatHints:     c.FormatHints,
		MaxLineSize:     c.MaxLineSize,
		Compression:     c.Compression,
		MaxWriteRetries: c.MaxWriteRetries,
		RetryBackoff:    c.RetryBackoff,
		RetryBackoffMax: c.RetryBackoffMax,
	}
}
