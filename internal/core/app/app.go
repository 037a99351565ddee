// Package app wires configuration, the parser registry, parse history and
// tracing into the operations the CLI and watch mode drive.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"snippethost/internal/core/config"
	domainerrors "snippethost/internal/core/errors"
	"snippethost/internal/core/ports"
	"snippethost/internal/data/history"
	"snippethost/internal/engine/abi"
	"snippethost/internal/engine/native"
	"snippethost/internal/engine/registry"
	"snippethost/internal/shared/observability"
)

type App struct {
	Config  *config.Config
	Host    ports.ParserHost
	History ports.HistoryStore

	logger          *slog.Logger
	shutdownTracing func(context.Context) error
}

// ParseResult is the outcome of one ParseFile call. RunID is set only when
// the run was recorded in history.
type ParseResult struct {
	RunID    string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Library  string        `json:"library" yaml:"library"`
	Parser   string        `json:"parser" yaml:"parser"`
	Input    string        `json:"input" yaml:"input"`
	Scopes   []abi.Scope   `json:"scopes" yaml:"-"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// New builds an App from cfg. Extra registry options are applied after the
// ones derived from cfg, so callers can replace the loader or resolver.
func New(ctx context.Context, cfg *config.Config, extra ...registry.Option) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := slog.Default()

	opts := []registry.Option{
		registry.WithLogger(logger),
		registry.WithResolver(&native.Resolver{SearchPaths: cfg.Registry.SearchPaths, Logger: logger}),
		registry.WithInvokeTimeout(cfg.Invoke.Timeout),
		registry.WithRateLimit(cfg.Invoke.RatePerSecond, cfg.Invoke.Burst),
	}
	if cfg.Registry.VerifyManifest {
		manifest, err := native.LoadPluginManifest(cfg.Registry.ManifestPath)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeValidationError, "load plugin manifest").
				WithContext(domainerrors.CtxPath, cfg.Registry.ManifestPath)
		}
		baseDir := filepath.Dir(cfg.Registry.ManifestPath)
		opts = append(opts, registry.WithLoader(native.NewVerifyingLoader(native.NewDynamicLoader(), baseDir, manifest, logger)))
	}
	opts = append(opts, extra...)

	a := &App{
		Config: cfg,
		Host:   registry.New(opts...),
		logger: logger,
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open parse history: %w", err)
		}
		a.History = store
	}

	if cfg.Observability.Enabled && cfg.Observability.OTLPEndpoint != "" {
		shutdown, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
		if err != nil {
			a.closeHistory()
			return nil, fmt.Errorf("setup tracing: %w", err)
		}
		a.shutdownTracing = shutdown
	}

	return a, nil
}

// Preload loads every configured library and resolves its configured parsers.
// It stops at the first failure.
func (a *App) Preload(ctx context.Context) error {
	for _, lib := range a.Config.Libraries {
		entry, err := a.Host.GetOrLoadLibrary(ctx, lib.Path, lib.Description)
		if err != nil {
			return fmt.Errorf("preload library %q: %w", lib.Path, err)
		}
		for _, p := range lib.Parsers {
			if _, err := a.Host.GetOrAddParser(ctx, entry.Path(), p.Name, p.Description); err != nil {
				return fmt.Errorf("preload parser %q from %q: %w", p.Name, lib.Path, err)
			}
		}
		a.logger.Info("preloaded library", "path", entry.Path(), "parsers", len(lib.Parsers))
	}
	return nil
}

// ParseFile resolves libraryPath and parserName, loading them if needed, and
// invokes the parser on input. When history is enabled the run is recorded
// whether or not it succeeded.
func (a *App) ParseFile(ctx context.Context, libraryPath, parserName, input string) (ParseResult, error) {
	result := ParseResult{Library: libraryPath, Parser: parserName, Input: input}
	start := time.Now()

	binding, err := a.Host.GetOrAddParser(ctx, libraryPath, parserName, "")
	if err == nil {
		result.Library = binding.Library().Path()
		result.Scopes, err = a.Host.Invoke(ctx, binding, input)
	}
	result.Duration = time.Since(start)

	if a.History != nil {
		run := history.Run{
			Library:    result.Library,
			Parser:     parserName,
			Input:      input,
			Success:    err == nil,
			ScopeCount: len(result.Scopes),
			Duration:   result.Duration,
		}
		if err != nil {
			run.Error = err.Error()
		}
		saved, saveErr := a.History.SaveRun(run)
		if saveErr != nil {
			a.logger.Warn("failed to record parse run", "input", input, "error", saveErr)
		} else {
			result.RunID = saved.ID
		}
	}

	return result, err
}

// Close shuts the registry down, waiting for in-flight invocations within
// ctx, then closes history and flushes traces.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Host.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.closeHistory(); err != nil {
		errs = append(errs, err)
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			errs = append(errs, err)
		}
		a.shutdownTracing = nil
	}
	return errors.Join(errs...)
}

func (a *App) closeHistory() error {
	if a.History == nil {
		return nil
	}
	err := a.History.Close()
	a.History = nil
	return err
}
