package main

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/gatekeeper/internal/config"
	"github.com/vyrodovalexey/gatekeeper/internal/observability"
)

// shutdown drains the server, then releases the rest. The server goes
// first so in-flight requests can still reach the counter store.
func (app *application) shutdown(watcher *config.Watcher) error {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout.Duration())
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	var errs []error

	if err := app.server.Stop(ctx); err != nil {
		app.logger.Error("failed to stop server gracefully", observability.Error(err))
		errs = append(errs, err)
	}

	app.close()

	if err := app.tracer.Shutdown(ctx); err != nil {
		app.logger.Error("failed to shutdown tracer", observability.Error(err))
		errs = append(errs, err)
	}

	app.logger.Info("gatekeeper stopped")

	return errors.Join(errs...)
}
