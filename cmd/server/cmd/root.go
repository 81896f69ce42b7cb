package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rungomx/server/internal/config"
)

var (
	// Global flags
	logLevel  string
	logFormat string
)

func newRootCommand() *cobra.Command {
	serve := newServeCommand()
	root := &cobra.Command{
		Use:   "server",
		Short: "RunGoMX server - event registration backend",
		Long: `RunGoMX server is the registration backend for RunGoMX events.

It provides:
- Registration groups with join tokens and group discount tiers
- Event slug redirects for renamed series and editions
- Localized message bundles for every page
- Account deletion with PII anonymization`,
		SilenceUsage: true,
		// With no subcommand the server starts.
		RunE: serve.RunE,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console) (default: json)")

	root.AddCommand(serve)
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newMessagesCommand())
	root.AddCommand(newRedirectsCommand())
	root.AddCommand(newVersionCommand())
	root.AddCommand(newHealthcheckCommand())
	return root
}

// Execute runs the CLI. It is called once by main.main.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loggingConfig reads logging settings from the environment and applies the
// command line overrides.
func loggingConfig(cfg config.LoggingConfig) config.LoggingConfig {
	if logLevel != "" {
		cfg.Level = logLevel
	}
	if logFormat != "" {
		cfg.Format = logFormat
	}
	return cfg
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	cfg.Logging = loggingConfig(cfg.Logging)
	return cfg, nil
}
