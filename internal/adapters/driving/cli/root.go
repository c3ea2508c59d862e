// Package cli implements the fhir-mcp command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/config/file"
	"github.com/the-momentum/fhir-mcp-server/internal/config"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driving"
	"github.com/the-momentum/fhir-mcp-server/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=1.2.3".
var version = "dev"

var (
	verbose   bool
	logJSON   bool
	configDir string
)

// Services shared by the commands. They are built on first use so that
// commands such as version and config never contact a backend.
var (
	configStore      driven.ConfigStore
	ingestionService driving.IngestionService
	queryService     driving.QueryService
	metricsHandler   http.Handler
	closeServices    func() error
)

var rootCmd = &cobra.Command{
	Use:   "fhir-mcp",
	Short: "Document retrieval for FHIR MCP agents",
	Long: `fhir-mcp downloads documents referenced by clinical records, splits them
into passages, embeds them and stores them in a vector index. Agents then
search a single document through the MCP tools exposed by "fhir-mcp serve".

Settings are read from ~/.fhir-mcp/config.toml and can be overridden with
FHIR_MCP_* environment variables or a .env file.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON lines")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default ~/.fhir-mcp)")
}

// Execute runs the root command and releases any opened backends.
func Execute(ctx context.Context) error {
	defer shutdown()
	return rootCmd.ExecuteContext(ctx)
}

// setup configures logging and opens the config store.
func setup(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	logger.SetJSON(logJSON)

	if configStore != nil {
		return nil
	}
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	configStore = store
	return nil
}

// ensureServices builds the pipeline from the effective settings unless the
// services are already set.
func ensureServices(ctx context.Context) error {
	if ingestionService != nil && queryService != nil {
		return nil
	}

	settings, err := config.Load(configStore)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a, err := newApp(ctx, settings, dataDir(settings.Ledger.DataDir))
	if err != nil {
		return err
	}

	ingestionService = a.ingestion
	queryService = a.query
	metricsHandler = a.metrics.Handler()
	closeServices = a.Close
	return nil
}

// dataDir returns where embedded databases live: the configured directory,
// or data/ next to the config file.
func dataDir(configured string) string {
	if configured != "" {
		return configured
	}
	if configStore != nil && filepath.IsAbs(configStore.Path()) {
		return filepath.Join(filepath.Dir(configStore.Path()), "data")
	}
	dir, err := file.DefaultDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "data")
}

func shutdown() {
	if closeServices == nil {
		return
	}
	if err := closeServices(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("closing services: %v", err)
	}
	closeServices = nil
}
