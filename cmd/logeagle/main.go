package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var configPath string
	var showVersion bool
	var once bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/logeagle/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.BoolVar(&once, "once", false, "drain sources to end-of-file and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("logeagle - log file to Parquet converter\n")
		fmt.Printf("  Version: %s\n", version)
		fmt.Printf("  Commit:  %s\n", commit)
		fmt.Printf("  Built:   %s\n", buildTime)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if once {
		cfg.Mode = "once"
	}
	// Positional arguments are extra inputs, so `logeagle -once app.log`
	// works without a config file.
	cfg.Inputs = append(cfg.Inputs, flag.Args()...)

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("LOGEAGLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("output-dir", filepath.Join(home, ".local", "share", "logeagle", "output"))
	v.SetDefault("state-file", "")
	v.SetDefault("mode", defaultMode)
	v.SetDefault("poll-interval", defaultPollInterval)
	v.SetDefault("max-batch-size", defaultMaxBatchSize)
	v.SetDefault("max-batch-age", defaultMaxBatchAge)
	v.SetDefault("max-line-size", defaultMaxLineSize)
	v.SetDefault("compression", defaultCompression)
	v.SetDefault("max-write-retries", defaultMaxWriteRetries)
	v.SetDefault("retry-backoff", defaultRetryBackoff)
	v.SetDefault("retry-backoff-max", defaultRetryBackoffMax)
	v.SetDefault("log-level", defaultLogLevel)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "logeagle", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if cfg.MaxBatchSize <= 0 {
		return cfg, fmt.Errorf("invalid max-batch-size: %d", cfg.MaxBatchSize)
	}
	if cfg.PollInterval <= 0 {
		return cfg, fmt.Errorf("invalid poll-interval: %s", cfg.PollInterval)
	}
	return cfg, nil
}
