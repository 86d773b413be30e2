package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/gatekeeper/internal/config"
)

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect gatekeeper configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Load the configuration file, substitute environment variables, apply
defaults and report every invalid field.

Examples:
  gatekeeper config validate --config configs/gatekeeper.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return validateConfig(cmd, flags.configPath)
		},
	})

	return cmd
}

func validateConfig(cmd *cobra.Command, path string) error {
	cfg, err := config.NewLoader().Load(path)
	if err != nil {
		return err
	}

	if err := config.ValidateConfig(cfg); err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			for i := range verrs {
				fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", verrs[i].Error())
			}
			return fmt.Errorf("%s: %d invalid field(s)", path, len(verrs))
		}
		return err
	}

	counterStore := "memory"
	if cfg.Redis.Enabled {
		counterStore = "redis " + cfg.Redis.Address
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: configuration is valid\n", path)
	fmt.Fprintf(out, "  address:        %s\n", cfg.Server.Address)
	fmt.Fprintf(out, "  rate limiting:  %t (default %d per %s, position %s)\n",
		cfg.RateLimit.IsEnabled(), cfg.RateLimit.DefaultLimit, cfg.RateLimit.Window, cfg.RateLimit.Position)
	fmt.Fprintf(out, "  counter store:  %s\n", counterStore)
	fmt.Fprintf(out, "  strict auth:    %t\n", cfg.Auth.RequireAuthentication)
	if cfg.Server.Upstream != "" {
		fmt.Fprintf(out, "  upstream:       %s\n", cfg.Server.Upstream)
	}

	return nil
}
