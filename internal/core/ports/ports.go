package ports

import (
	"context"

	"snippethost/internal/data/history"
	"snippethost/internal/engine/abi"
	"snippethost/internal/engine/registry"
)

// HistoryStore abstracts parse-run persistence for the history command and
// watch mode.
type HistoryStore interface {
	SaveRun(run history.Run) (history.Run, error)
	Recent(limit int) ([]history.Run, error)
	Close() error
}

// ParserHost is the registry surface driving adapters depend on.
type ParserHost interface {
	GetOrLoadLibrary(ctx context.Context, path, description string) (*registry.LibraryEntry, error)
	GetOrAddParser(ctx context.Context, path, name, description string) (*registry.ParserBinding, error)
	FindLibrary(path string) (*registry.LibraryEntry, error)
	FindParser(path, name string) (*registry.ParserBinding, error)
	Invoke(ctx context.Context, binding *registry.ParserBinding, input string) ([]abi.Scope, error)
	Libraries() []registry.LibraryInfo
	Resolve(nameOrPath string) (string, error)
	Stats() (libraries, parsers int, closed bool)
	Close(ctx context.Context) error
}

var (
	_ ParserHost   = (*registry.Registry)(nil)
	_ HistoryStore = (*history.Store)(nil)
)
