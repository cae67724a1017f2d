package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/couchcryptid/forest-loss-pipeline/internal/config"
	"github.com/couchcryptid/forest-loss-pipeline/internal/observability"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	cfg     *config.Config
	logger  = slog.Default()
	metrics *observability.Metrics
)

var rootCmd = &cobra.Command{
	Use:           "forestloss",
	Short:         "Join the Romanian virgin forest catalog with forest-loss rasters and train a loss-year model",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.Log.Level = "debug"
		}

		logger = observability.NewLogger(os.Stderr, cfg.Log)
		metrics = observability.NewMetrics()
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Metrics.Textfile == "" {
			return nil
		}
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
		logger.Debug("metrics written", "path", cfg.Metrics.Textfile)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "forestloss.toml", "Path to TOML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
