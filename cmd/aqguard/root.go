package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hed1ad/aqguard/internal/config"
	"github.com/hed1ad/aqguard/internal/logging"
	"github.com/hed1ad/aqguard/pkg/io/sqlite"
)

const version = "v0.1.0"

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "aqguard",
	Short:        "Air-quality anomaly detection",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger, err = logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// openStore opens the SQLite row store when one is configured.
func openStore() (*sqlite.Store, error) {
	if cfg.Output.SQLitePath == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Output.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return sqlite.NewStore(cfg.Output.SQLitePath, logger)
}
