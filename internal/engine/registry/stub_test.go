package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	domainerrors "snippethost/internal/core/errors"
	"snippethost/internal/engine/abi"
	"snippethost/internal/engine/native"

	"github.com/stretchr/testify/require"
)

// stubLoader stands in for the OS loader. Every opened path gets a stubModule
// exposing the symbols registered for it.
type stubLoader struct {
	mu      sync.Mutex
	symbols map[string]map[string]abi.Callable
	opens   map[string]int
	modules map[string]*stubModule
	fail    map[string]error
}

func newStubLoader() *stubLoader {
	return &stubLoader{
		symbols: make(map[string]map[string]abi.Callable),
		opens:   make(map[string]int),
		modules: make(map[string]*stubModule),
		fail:    make(map[string]error),
	}
}

func (l *stubLoader) register(path, symbol string, fn abi.Callable) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.symbols[path] == nil {
		l.symbols[path] = make(map[string]abi.Callable)
	}
	l.symbols[path][symbol] = fn
}

func (l *stubLoader) Open(path string) (native.Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opens[path]++
	if err, ok := l.fail[path]; ok {
		return nil, err
	}
	mod := &stubModule{path: path, symbols: l.symbols[path]}
	l.modules[path] = mod
	return mod, nil
}

func (l *stubLoader) openCount(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opens[path]
}

func (l *stubLoader) module(path string) *stubModule {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.modules[path]
}

type stubModule struct {
	mu      sync.Mutex
	path    string
	symbols map[string]abi.Callable
	lookups map[string]int
	closed  bool
}

func (m *stubModule) Lookup(symbol string) (abi.Callable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookups == nil {
		m.lookups = make(map[string]int)
	}
	m.lookups[symbol]++
	fn, ok := m.symbols[symbol]
	if !ok {
		return nil, domainerrors.New(domainerrors.CodeSymbolNotFound, "no such export").
			WithContext(domainerrors.CtxSymbol, symbol)
	}
	return fn, nil
}

func (m *stubModule) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *stubModule) lookupCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups[symbol]
}

func (m *stubModule) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// fakeLibrary creates a file for the resolver to find and returns its
// canonical path.
func fakeLibrary(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("\x7fELF stub"), 0o644))
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	canonical, err := filepath.EvalSymlinks(abs)
	require.NoError(t, err)
	return canonical
}

// lineParser emits one scope per non-empty line of the input file.
func lineParser(input string) []byte {
	data, err := os.ReadFile(input)
	if err != nil {
		return abi.EncodeErr(err.Error())
	}
	var scopes []abi.Scope
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			if line := data[start:i]; len(line) > 0 {
				scopes = append(scopes, abi.Scope(fmt.Sprintf(`{"line":%q}`, line)))
			}
			start = i + 1
		}
	}
	return abi.EncodeOK(scopes)
}
