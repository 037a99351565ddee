//go:build darwin || freebsd || linux

package native

import (
	"bytes"
	"fmt"
	"sync"
	"unsafe"

	domainerrors "snippethost/internal/core/errors"
	"snippethost/internal/engine/abi"

	"github.com/ebitengine/purego"
)

// DynamicLoader opens libraries with dlopen(RTLD_NOW), so unresolved
// dependencies fail at Open. Parser exports are looked up with dlsym when
// Lookup is called; RTLD_LOCAL keeps each plugin's exports out of the global
// namespace.
type DynamicLoader struct{}

func NewDynamicLoader() *DynamicLoader { return &DynamicLoader{} }

func (DynamicLoader) Open(path string) (Module, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeLoadFailure, "dlopen failed").
			WithContext(domainerrors.CtxPath, path)
	}

	mod := &dynamicModule{path: path, handle: handle}
	if sym, err := purego.Dlsym(handle, abi.FreeSymbol); err == nil && sym != 0 {
		purego.RegisterFunc(&mod.free, sym)
	}
	return mod, nil
}

type dynamicModule struct {
	path   string
	handle uintptr
	free   func(unsafe.Pointer)

	closeOnce sync.Once
	closeErr  error
}

func (m *dynamicModule) Lookup(symbol string) (abi.Callable, error) {
	sym, err := purego.Dlsym(m.handle, symbol)
	if err != nil || sym == 0 {
		if err == nil {
			err = fmt.Errorf("symbol resolved to NULL")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeSymbolNotFound, "parser export not found").
			WithContext(domainerrors.CtxSymbol, symbol).
			WithContext(domainerrors.CtxLibrary, m.path)
	}

	var parse func(string) unsafe.Pointer
	if err := registerFunc(&parse, sym); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeSymbolNotFound, "parser export has an unusable signature").
			WithContext(domainerrors.CtxSymbol, symbol).
			WithContext(domainerrors.CtxLibrary, m.path)
	}

	free := m.free
	return func(input string) []byte {
		ptr := parse(input)
		if ptr == nil {
			return nil
		}
		out := copyCString(ptr)
		if free != nil {
			free(ptr)
		}
		return out
	}, nil
}

func (m *dynamicModule) Close() error {
	m.closeOnce.Do(func() {
		if err := purego.Dlclose(m.handle); err != nil {
			m.closeErr = domainerrors.Wrap(err, domainerrors.CodeInternal, "dlclose failed").
				WithContext(domainerrors.CtxPath, m.path)
		}
	})
	return m.closeErr
}

// registerFunc turns the panic purego raises for an unsupported signature into
// an error.
func registerFunc(fptr any, sym uintptr) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	purego.RegisterFunc(fptr, sym)
	return nil
}

func copyCString(p unsafe.Pointer) []byte {
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return bytes.Clone(unsafe.Slice((*byte)(p), n))
}
