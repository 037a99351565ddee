package registry

import (
	"log/slog"
	"time"

	"snippethost/internal/engine/native"
)

// PathResolver turns a library identifier into its canonical path.
type PathResolver interface {
	Resolve(nameOrPath string) (string, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLoader replaces the OS loader, mainly for tests and manifest checks.
func WithLoader(loader native.Loader) Option {
	return func(r *Registry) {
		r.loader = loader
	}
}

// WithResolver replaces the default path resolver.
func WithResolver(resolver PathResolver) Option {
	return func(r *Registry) {
		r.resolver = resolver
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithInvokeTimeout bounds every invocation whose context carries no earlier
// deadline. Zero disables the bound.
func WithInvokeTimeout(timeout time.Duration) Option {
	return func(r *Registry) {
		r.invokeTimeout = timeout
	}
}

// WithRateLimit limits invocations per binding to perSecond calls with the
// given burst. A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(r *Registry) {
		r.ratePerSecond = perSecond
		r.burst = burst
	}
}
