package registry

import (
	"context"
	"strings"
	"time"

	domainerrors "snippethost/internal/core/errors"
	"snippethost/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FindParser returns an already resolved binding. It fails with NotLoaded when
// the library is not loaded and ParserNotLoaded when the library is loaded but
// name has not been resolved on it.
func (r *Registry) FindParser(path, name string) (*ParserBinding, error) {
	canonical, err := r.resolver.Resolve(path)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errClosed()
	}
	entry, err := r.findLocked(canonical)
	if err != nil {
		return nil, err
	}
	return findBindingLocked(entry, name)
}

// GetOrAddParser returns the binding for name on the library at path, loading
// the library and resolving the symbol only if they are not cached yet. The
// description is kept from the first successful resolution.
func (r *Registry) GetOrAddParser(ctx context.Context, path, name, description string) (*ParserBinding, error) {
	ctx, span := r.tracer.Start(ctx, "registry.GetOrAddParser",
		trace.WithAttributes(attribute.String("parser.name", name)))
	defer span.End()

	if strings.TrimSpace(name) == "" {
		err := domainerrors.New(domainerrors.CodeSymbolNotFound, "parser name must not be empty").
			WithContext(domainerrors.CtxLibrary, path)
		recordSpanError(span, err)
		return nil, err
	}

	entry, err := r.GetOrLoadLibrary(ctx, path, "")
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	r.mu.RLock()
	binding, findErr := findBindingLocked(entry, name)
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, errClosed()
	}
	if findErr == nil {
		observability.RegistryCacheHitsTotal.WithLabelValues("parser").Inc()
		return binding, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errClosed()
	}
	if binding, err := findBindingLocked(entry, name); err == nil {
		observability.RegistryCacheHitsTotal.WithLabelValues("parser").Inc()
		return binding, nil
	}

	callable, err := entry.module.Lookup(name)
	if err != nil {
		observability.ParserResolutionsTotal.WithLabelValues("failure").Inc()
		if !domainerrors.IsCode(err, domainerrors.CodeSymbolNotFound) {
			err = domainerrors.Wrap(err, domainerrors.CodeSymbolNotFound, "parser export not found").
				WithContext(domainerrors.CtxSymbol, name).
				WithContext(domainerrors.CtxLibrary, entry.path)
		}
		recordSpanError(span, err)
		r.logger.Warn("parser resolution failed", "library", entry.path, "parser", name, "error", err)
		return nil, err
	}

	binding = &ParserBinding{
		name:        name,
		description: description,
		resolvedAt:  time.Now(),
		entry:       entry,
		index:       len(entry.bindings),
		callable:    callable,
	}
	entry.byName[name] = binding.index
	entry.bindings = append(entry.bindings, binding)

	observability.ParserResolutionsTotal.WithLabelValues("success").Inc()
	observability.ParsersBound.Inc()
	r.logger.Info("parser resolved", "library", entry.path, "parser", name, "description", description)
	return binding, nil
}

func findBindingLocked(entry *LibraryEntry, name string) (*ParserBinding, error) {
	if idx, ok := entry.byName[name]; ok {
		return entry.bindings[idx], nil
	}
	return nil, domainerrors.New(domainerrors.CodeParserNotLoaded, "parser not loaded on library").
		WithContext(domainerrors.CtxSymbol, name).
		WithContext(domainerrors.CtxLibrary, entry.path)
}
