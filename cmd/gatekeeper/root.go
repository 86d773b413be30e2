package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/gatekeeper/internal/config"
	"github.com/vyrodovalexey/gatekeeper/internal/observability"
)

const defaultConfigPath = "configs/gatekeeper.yaml"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "gatekeeper",
		Short: "Request gatekeeper for the retail platform",
		Long: `Gatekeeper authenticates bearer tokens, binds the caller's tenant to the
request and enforces per-client fixed-window rate limits before traffic
reaches the platform's services.

Token and counter store failures never reject a request: an invalid token
continues anonymously and an unreachable counter store allows the request.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c",
		getEnvOrDefault("GATEKEEPER_CONFIG", defaultConfigPath), "config file path")

	cmd.AddCommand(
		newServeCmd(flags),
		newConfigCmd(flags),
		newTokenCmd(flags),
		newFetchCmd(flags),
		newVersionCmd(),
	)

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads, defaults and validates the configuration file.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg config.LoggingConfig) (observability.Logger, error) {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Level,
		Format: cfg.Format,
		Output: cfg.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
