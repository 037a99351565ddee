// Package registry caches loaded parser libraries and their resolved parser
// bindings, and invokes those bindings.
//
// Every add operation is find-or-create: a library is loaded at most once per
// canonical path and a parser symbol is resolved at most once per library for
// the lifetime of the Registry. Mutations take the write lock; lookups take the
// read lock; foreign parser code never runs under either.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	domainerrors "snippethost/internal/core/errors"
	"snippethost/internal/engine/native"
	"snippethost/internal/shared/observability"
	"snippethost/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Registry struct {
	mu        sync.RWMutex
	libraries []*LibraryEntry
	byPath    map[string]int
	closed    bool

	resolver PathResolver
	loader   native.Loader
	logger   *slog.Logger
	tracer   trace.Tracer

	invokeTimeout time.Duration
	ratePerSecond float64
	burst         int
	limiters      *util.LimiterRegistry
}

// New creates an empty registry. Without options it resolves paths with
// native.Resolver and loads libraries with the platform dynamic loader.
func New(opts ...Option) *Registry {
	r := &Registry{
		byPath: make(map[string]int),
		tracer: observability.Tracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.resolver == nil {
		r.resolver = &native.Resolver{Logger: r.logger}
	}
	if r.loader == nil {
		r.loader = native.NewDynamicLoader()
	}
	if r.ratePerSecond > 0 {
		r.limiters = util.NewLimiterRegistry(r.ratePerSecond, r.burst, 0)
	}
	return r
}

// Resolve exposes the registry's path resolution.
func (r *Registry) Resolve(nameOrPath string) (string, error) {
	return r.resolver.Resolve(nameOrPath)
}

// FindLibrary returns the entry for an already loaded library. It never
// loads: an identifier that does not resolve to a file fails with NotFound,
// and a resolvable but unloaded library fails with NotLoaded.
func (r *Registry) FindLibrary(path string) (*LibraryEntry, error) {
	canonical, err := r.resolver.Resolve(path)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errClosed()
	}
	return r.findLocked(canonical)
}

// GetOrLoadLibrary returns the entry for path, loading the library if this is
// the first request for its canonical path. The description of an existing
// entry is never changed.
func (r *Registry) GetOrLoadLibrary(ctx context.Context, path, description string) (*LibraryEntry, error) {
	_, span := r.tracer.Start(ctx, "registry.GetOrLoadLibrary",
		trace.WithAttributes(attribute.String("library.input", native.DisplayPath(path, nil))))
	defer span.End()

	canonical, err := r.resolver.Resolve(path)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("library.path", canonical))

	r.mu.RLock()
	entry, err := r.findLocked(canonical)
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, errClosed()
	}
	if err == nil {
		observability.RegistryCacheHitsTotal.WithLabelValues("library").Inc()
		return entry, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errClosed()
	}
	// Another caller may have loaded it between the two locks.
	if entry, err := r.findLocked(canonical); err == nil {
		observability.RegistryCacheHitsTotal.WithLabelValues("library").Inc()
		return entry, nil
	}

	start := time.Now()
	module, err := r.loader.Open(canonical)
	if err != nil {
		observability.LibraryLoadsTotal.WithLabelValues("failure").Inc()
		err = asLoadFailure(err, canonical)
		recordSpanError(span, err)
		r.logger.Warn("library load failed", "path", canonical, "error", err)
		return nil, err
	}

	entry = &LibraryEntry{
		path:        canonical,
		description: description,
		loadedAt:    time.Now(),
		module:      module,
		byName:      make(map[string]int),
	}
	r.byPath[canonical] = len(r.libraries)
	r.libraries = append(r.libraries, entry)

	observability.LibraryLoadsTotal.WithLabelValues("success").Inc()
	observability.LibrariesLoaded.Inc()
	r.logger.Info("library loaded", "path", canonical, "description", description, "duration", time.Since(start))
	return entry, nil
}

// Libraries returns a snapshot of every loaded library in load order.
func (r *Registry) Libraries() []LibraryInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]LibraryInfo, 0, len(r.libraries))
	for _, entry := range r.libraries {
		info := LibraryInfo{
			Path:        entry.path,
			Description: entry.description,
			LoadedAt:    entry.loadedAt,
			Parsers:     make([]ParserInfo, 0, len(entry.bindings)),
		}
		for _, b := range entry.bindings {
			info.Parsers = append(info.Parsers, ParserInfo{
				Name:        b.name,
				Description: b.description,
				ResolvedAt:  b.resolvedAt,
			})
		}
		out = append(out, info)
	}
	return out
}

// Stats reports library and binding counts.
func (r *Registry) Stats() (libraries, parsers int, closed bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.libraries {
		parsers += len(entry.bindings)
	}
	return len(r.libraries), parsers, r.closed
}

// Close invalidates every binding, waits for in-flight invocations until ctx
// is done, and unloads the modules whose invocations have drained. It is meant
// for process shutdown; every later operation fails with Closed.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := append([]*LibraryEntry(nil), r.libraries...)
	for _, entry := range entries {
		for _, b := range entry.bindings {
			b.callable = nil
		}
	}
	r.mu.Unlock()

	if r.limiters != nil {
		r.limiters.Stop()
	}

	var errs []error
	for _, entry := range entries {
		if err := waitInflight(ctx, entry); err != nil {
			r.logger.Warn("leaving library loaded with invocations still running", "path", entry.path)
			errs = append(errs, domainerrors.Wrap(err, domainerrors.CodeTimeout, "invocations still running at shutdown").
				WithContext(domainerrors.CtxPath, entry.path))
			continue
		}
		if err := entry.module.Close(); err != nil {
			errs = append(errs, err)
		}
		observability.LibrariesLoaded.Dec()
		observability.ParsersBound.Sub(float64(len(entry.bindings)))
	}
	return errors.Join(errs...)
}

func (r *Registry) findLocked(canonical string) (*LibraryEntry, error) {
	if idx, ok := r.byPath[canonical]; ok {
		return r.libraries[idx], nil
	}
	return nil, domainerrors.New(domainerrors.CodeNotLoaded, "library not loaded").
		WithContext(domainerrors.CtxPath, canonical)
}

// waitInflight must only run after the registry is closed. An entry that has
// already drained is reported as such even when ctx has expired.
func waitInflight(ctx context.Context, entry *LibraryEntry) error {
	if entry.active.Load() == 0 {
		return nil
	}
	done := make(chan struct{})
	go func() {
		entry.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if entry.active.Load() == 0 {
			return nil
		}
		return ctx.Err()
	}
}

func asLoadFailure(err error, path string) error {
	var de *domainerrors.DomainError
	if errors.As(err, &de) && de.Code == domainerrors.CodeLoadFailure {
		return err
	}
	return domainerrors.Wrap(err, domainerrors.CodeLoadFailure, "library load failed").
		WithContext(domainerrors.CtxPath, path)
}

func errClosed() error {
	return domainerrors.New(domainerrors.CodeClosed, "registry is closed")
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(domainerrors.CodeOf(err)))
}
