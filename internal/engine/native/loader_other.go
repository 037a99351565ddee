//go:build !(darwin || freebsd || linux)

package native

import (
	"runtime"

	domainerrors "snippethost/internal/core/errors"
)

// DynamicLoader reports an error on platforms without dlopen support.
type DynamicLoader struct{}

func NewDynamicLoader() *DynamicLoader { return &DynamicLoader{} }

func (DynamicLoader) Open(path string) (Module, error) {
	return nil, domainerrors.Newf(domainerrors.CodeLoadFailure, "dynamic library loading is not supported on %s", runtime.GOOS).
		WithContext(domainerrors.CtxPath, path)
}
