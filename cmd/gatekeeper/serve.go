package main

import (
	"context"
	"fmt"
	"os/signal"
	"reflect"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/gatekeeper/internal/config"
	"github.com/vyrodovalexey/gatekeeper/internal/observability"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gatekeeper",
		Long: `Load the configuration, assemble the request pipeline and serve until
SIGINT or SIGTERM. The log level follows changes to the configuration file;
every other setting is read once at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, flags.configPath)
		},
	}
}

// serve runs the gatekeeper until ctx is cancelled.
func serve(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	observability.SetGlobalLogger(logger)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting gatekeeper",
		observability.String("version", Version),
		observability.String("config", configPath),
		observability.String("address", cfg.Server.Address),
		observability.Bool("redis", cfg.Redis.Enabled),
		observability.Bool("rate_limit", cfg.RateLimit.IsEnabled()),
		observability.Bool("strict_auth", cfg.Auth.RequireAuthentication),
	)

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := app.server.Start(ctx); err != nil {
		app.close()
		return fmt.Errorf("failed to start server: %w", err)
	}

	watcher := startConfigWatcher(ctx, app, configPath)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	return app.shutdown(watcher)
}

// startConfigWatcher applies log level changes from the configuration file.
// A nil watcher is returned when the file cannot be watched.
func startConfigWatcher(ctx context.Context, app *application, configPath string) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		applyConfigChange(app, newCfg)
	}, config.WithLogger(app.logger))
	if err != nil {
		app.logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		app.logger.Warn("failed to start config watcher", observability.Error(err))
		return nil
	}

	return watcher
}

// applyConfigChange hot-applies the log level and reports other changes as
// needing a restart. app.config is only read.
func applyConfigChange(app *application, newCfg *config.Config) {
	app.levelMu.Lock()
	defer app.levelMu.Unlock()

	if newCfg.Logging.Level != app.logLevel {
		if setter, ok := app.logger.(observability.LevelSetter); ok {
			if err := setter.SetLevel(newCfg.Logging.Level); err != nil {
				app.logger.Error("failed to change log level", observability.Error(err))
			} else {
				app.logger.Info("log level changed",
					observability.String("from", app.logLevel),
					observability.String("to", newCfg.Logging.Level),
				)
				app.logLevel = newCfg.Logging.Level
			}
		}
	}

	current := *app.config
	current.Logging = newCfg.Logging
	if !reflect.DeepEqual(current, *newCfg) {
		app.logger.Warn("configuration changed; restart to apply settings other than logging.level")
	}
}
