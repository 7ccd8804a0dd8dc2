// Package main implements the groundd CLI for obligation grounding,
// coverage validation and template alignment.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/complykit/groundd/internal/config"
	"github.com/complykit/groundd/internal/logging"
	"github.com/complykit/groundd/internal/store"
)

var (
	// configPath is the optional YAML config file location.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "groundd",
	Short: "Obligation grounding and coverage validation",
	Long: `groundd grounds compliance template slots in regulatory obligations,
validates coverage against mandatory obligations, and aligns custom
templates to reference standards.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: built-in defaults plus GROUNDD_* environment)")
	rootCmd.AddCommand(groundCmd)
	rootCmd.AddCommand(alignCmd)
	rootCmd.AddCommand(obligationsCmd)
	rootCmd.AddCommand(overrideCmd)
}

// setup loads configuration, builds the logger and opens the store. The
// caller owns both returned resources.
func setup() (*config.Config, *zap.Logger, *store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		logging.Sync(logger)
		return nil, nil, nil, fmt.Errorf("opening store: %w", err)
	}
	return cfg, logger, s, nil
}
