package registry

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	domainerrors "snippethost/internal/core/errors"
	"snippethost/internal/engine/abi"
	"snippethost/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type callResult struct {
	raw   []byte
	panic any
}

// Invoke calls binding with input (the path of the file to parse) and returns
// the scopes the parser produced. A failure reported by the parser comes back
// as a ParseFailure error whose message is the parser's own text.
//
// The call is bounded by ctx and by the registry's invoke timeout. When the
// bound is hit Invoke returns Timeout; the foreign call keeps running on its
// own goroutine and its library stays loaded until it returns.
func (r *Registry) Invoke(ctx context.Context, binding *ParserBinding, input string) ([]abi.Scope, error) {
	if binding == nil {
		return nil, domainerrors.New(domainerrors.CodeInternal, "nil parser binding")
	}
	ctx, span := r.tracer.Start(ctx, "registry.Invoke", trace.WithAttributes(
		attribute.String("library.path", binding.entry.path),
		attribute.String("parser.name", binding.name),
	))
	defer span.End()

	scopes, err := r.invoke(ctx, binding, input)
	outcome := "success"
	if err != nil {
		outcome = strings.ToLower(string(domainerrors.CodeOf(err)))
		recordSpanError(span, err)
	} else {
		span.SetAttributes(attribute.Int("scopes.count", len(scopes)))
	}
	observability.InvocationsTotal.WithLabelValues(binding.name, outcome).Inc()
	return scopes, err
}

// Parse runs the whole control flow: resolve and load the library, resolve
// the parser, and invoke it on input.
func (r *Registry) Parse(ctx context.Context, libraryPath, parserName, input string) ([]abi.Scope, error) {
	binding, err := r.GetOrAddParser(ctx, libraryPath, parserName, "")
	if err != nil {
		return nil, err
	}
	return r.Invoke(ctx, binding, input)
}

func (r *Registry) invoke(ctx context.Context, binding *ParserBinding, input string) ([]abi.Scope, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	if r.limiters != nil {
		if err := r.limiters.Get(binding.key()).Wait(ctx, 1); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeRateLimited, "parser invocation rate limit exceeded").
				WithContext(domainerrors.CtxSymbol, binding.name)
		}
	}

	if r.invokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.invokeTimeout)
		defer cancel()
	}

	entry, callable, err := r.acquire(binding)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	done := make(chan callResult, 1)
	observability.InvocationsInFlight.Inc()
	go func() {
		defer entry.end()
		defer observability.InvocationsInFlight.Dec()
		defer func() {
			if p := recover(); p != nil {
				done <- callResult{panic: p}
			}
		}()
		done <- callResult{raw: callable(input)}
	}()

	var res callResult
	select {
	case res = <-done:
	case <-ctx.Done():
		r.logger.Warn("parser invocation abandoned", "library", entry.path, "parser", binding.name, "input", input, "error", ctx.Err())
		return nil, bindingError(domainerrors.Wrap(ctx.Err(), domainerrors.CodeTimeout, "parser invocation did not complete"), binding, input)
	}
	elapsed := time.Since(start)
	observability.InvocationDuration.WithLabelValues(binding.name).Observe(elapsed.Seconds())

	if res.panic != nil {
		return nil, bindingError(domainerrors.Newf(domainerrors.CodeParseFailure, "parser panicked: %v", res.panic), binding, input)
	}

	result, err := abi.DecodeResult(res.raw)
	if err != nil {
		return nil, bindingError(domainerrors.Wrap(err, domainerrors.CodeParseFailure, "parser broke the result protocol"), binding, input)
	}
	if result.Failed {
		r.logger.Debug("parser reported failure", "library", entry.path, "parser", binding.name, "input", input, "error", result.Err)
		return nil, bindingError(domainerrors.New(domainerrors.CodeParseFailure, result.Err), binding, input)
	}

	r.logger.Debug("parser invoked", "library", entry.path, "parser", binding.name, "input", input,
		"scopes", len(result.Scopes), "duration", elapsed)
	return result.Scopes, nil
}

// acquire checks that binding is live in this registry and registers an
// in-flight call on its entry. The caller must call entry.end.
func (r *Registry) acquire(binding *ParserBinding) (*LibraryEntry, abi.Callable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, nil, errClosed()
	}
	entry := binding.entry
	idx, ok := r.byPath[entry.path]
	if !ok || r.libraries[idx] != entry || binding.index >= len(entry.bindings) || entry.bindings[binding.index] != binding {
		return nil, nil, domainerrors.New(domainerrors.CodeNotLoaded, "parser binding does not belong to this registry").
			WithContext(domainerrors.CtxLibrary, entry.path).
			WithContext(domainerrors.CtxSymbol, binding.name)
	}
	callable := entry.bindings[binding.index].callable
	if callable == nil {
		return nil, nil, errClosed()
	}
	entry.begin()
	return entry, callable, nil
}

func validateInput(input string) error {
	switch {
	case input == "":
		return domainerrors.New(domainerrors.CodeInvalidPath, "parser input must not be empty")
	case !utf8.ValidString(input):
		return domainerrors.New(domainerrors.CodeInvalidPath, "parser input is not valid UTF-8").
			WithContext(domainerrors.CtxInput, strings.ToValidUTF8(input, "�"))
	case strings.ContainsRune(input, 0):
		return domainerrors.New(domainerrors.CodeInvalidPath, "parser input contains a NUL byte").
			WithContext(domainerrors.CtxInput, fmt.Sprintf("%q", input))
	}
	return nil
}

func bindingError(err *domainerrors.DomainError, binding *ParserBinding, input string) error {
	return err.
		WithContext(domainerrors.CtxLibrary, binding.entry.path).
		WithContext(domainerrors.CtxSymbol, binding.name).
		WithContext(domainerrors.CtxInput, input)
}
