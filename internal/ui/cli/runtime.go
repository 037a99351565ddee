package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"time"

	coreapp "snippethost/internal/core/app"
	"snippethost/internal/core/config"
	"snippethost/internal/engine/registry"
)

const shutdownTimeout = 10 * time.Second

// runtime carries flag values and the lazily built app across one command.
type runtime struct {
	stdout       io.Writer
	stderr       io.Writer
	configPath   string
	verbose      bool
	registryOpts []registry.Option

	cfg         *config.Config
	app         *coreapp.App
	cleanupLogs func()
}

// config loads the configuration once. A missing file at the default path is
// not an error: defaults plus environment overrides apply.
func (rt *runtime) config() (*config.Config, error) {
	if rt.cfg != nil {
		return rt.cfg, nil
	}
	cfg, err := loadConfig(rt.configPath)
	if err != nil {
		return nil, err
	}
	rt.cfg = cfg
	return cfg, nil
}

// open builds the app and preloads the configured libraries.
func (rt *runtime) open(ctx context.Context) (*coreapp.App, error) {
	if rt.app != nil {
		return rt.app, nil
	}
	cfg, err := rt.config()
	if err != nil {
		return nil, err
	}
	a, err := coreapp.New(ctx, cfg, rt.registryOpts...)
	if err != nil {
		return nil, err
	}
	rt.app = a
	if err := a.Preload(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (rt *runtime) close() {
	if rt.app != nil {
		ctx, cancel := shutdownContext()
		defer cancel()
		if err := rt.app.Close(ctx); err != nil {
			slog.Warn("shutdown incomplete", "error", err)
		}
		rt.app = nil
	}
	if rt.cleanupLogs != nil {
		rt.cleanupLogs()
		rt.cleanupLogs = nil
	}
}

func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), shutdownTimeout)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path != defaultConfigPath || !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	slog.Debug("no config file found, using defaults", "path", path)
	cfg = config.DefaultConfig()
	config.ApplyEnvOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configureLogging sends structured logs to w so stdout stays clean for
// command output.
func configureLogging(w io.Writer, verbose bool) func() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	previous := slog.Default()
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return func() { slog.SetDefault(previous) }
}
