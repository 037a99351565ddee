// Package native opens shared libraries and resolves parser exports in them.
package native

import "snippethost/internal/engine/abi"

// Module is a loaded shared library. Closing it unloads the native code and
// invalidates every Callable resolved from it.
type Module interface {
	Lookup(symbol string) (abi.Callable, error)
	Close() error
}

// Loader opens shared libraries.
type Loader interface {
	Open(path string) (Module, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(path string) (Module, error)

func (f LoaderFunc) Open(path string) (Module, error) { return f(path) }
