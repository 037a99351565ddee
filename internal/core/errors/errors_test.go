package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "library not found")
		if err.Error() != "[NOT_FOUND] library not found" {
			t.Errorf("expected [NOT_FOUND] library not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("dlopen failed")
		err := Wrap(original, CodeLoadFailure, "cannot load library")
		expected := "[LOAD_FAILURE] cannot load library: dlopen failed"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to original")
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeSymbolNotFound, "missing export")
		if !IsCode(err, CodeSymbolNotFound) {
			t.Error("expected IsCode to return true for CodeSymbolNotFound")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeThroughFmtWrap", func(t *testing.T) {
		err := fmt.Errorf("preload: %w", New(CodeNotLoaded, "not loaded"))
		if !IsCode(err, CodeNotLoaded) {
			t.Error("expected IsCode to see through fmt.Errorf wrapping")
		}
	})

	t.Run("AddContext", func(t *testing.T) {
		err := AddContext(New(CodeNotLoaded, "not loaded"), CtxPath, "/tmp/libx.so")
		if got := err.Error(); got != "[NOT_LOADED] not loaded map[path:/tmp/libx.so]" {
			t.Errorf("unexpected message %q", got)
		}

		plain := AddContext(errors.New("boom"), CtxSymbol, "sym")
		if !IsCode(plain, CodeInternal) {
			t.Error("expected plain errors to be wrapped as internal")
		}
	})

	t.Run("CodeOf", func(t *testing.T) {
		if CodeOf(New(CodeTimeout, "slow")) != CodeTimeout {
			t.Error("expected CodeTimeout")
		}
		if CodeOf(errors.New("plain")) != CodeInternal {
			t.Error("expected CodeInternal for plain errors")
		}
	})
}
