package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/gatekeeper/internal/observability"
)

type levelRecorder struct {
	observability.Logger
	mu     sync.Mutex
	levels []string
}

func (l *levelRecorder) SetLevel(level string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levels = append(l.levels, level)
	return nil
}

func TestApplyConfigChange_LogLevel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	logger := &levelRecorder{Logger: observability.NopLogger()}
	app := &application{config: cfg, logger: logger, logLevel: cfg.Logging.Level}
	startLevel := cfg.Logging.Level

	next := *cfg
	next.Logging.Level = "debug"
	applyConfigChange(app, &next)

	assert.Equal(t, []string{"debug"}, logger.levels)
	assert.Equal(t, "debug", app.logLevel)
	assert.Equal(t, startLevel, app.config.Logging.Level, "startup config is left untouched")

	applyConfigChange(app, &next)
	assert.Len(t, logger.levels, 1)
}

func TestApplyConfigChange_ConcurrentReloads(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	logger := &levelRecorder{Logger: observability.NopLogger()}
	app := &application{config: cfg, logger: logger, logLevel: cfg.Logging.Level}

	levels := []string{"debug", "warn", "error", "info"}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(level string) {
			defer wg.Done()
			next := *cfg
			next.Logging.Level = level
			applyConfigChange(app, &next)
			_ = app.config.Server.Address
		}(levels[i%len(levels)])
	}
	wg.Wait()

	app.levelMu.Lock()
	defer app.levelMu.Unlock()
	assert.Contains(t, levels, app.logLevel)
	assert.Equal(t, app.logLevel, logger.levels[len(logger.levels)-1])
}

func TestServe_StartsAndStops(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gatekeeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalConfig(`
server:
  address: 127.0.0.1:0
  shutdownTimeout: 5s
logging:
  output: stderr
  level: error
`)), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, path) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gatekeeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  secret: short\n"), 0o600))

	err := serve(context.Background(), path)
	assert.Error(t, err)
}
