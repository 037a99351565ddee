package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"snippethost/internal/engine/abi"
	"snippethost/internal/engine/native"
)

// LibraryEntry is a loaded library and the parser bindings resolved from it.
// The entry exclusively owns its module; bindings never outlive it because
// the registry never unloads a module while the registry is open.
type LibraryEntry struct {
	path        string
	description string
	loadedAt    time.Time
	module      native.Module

	// Guarded by Registry.mu.
	bindings []*ParserBinding
	byName   map[string]int

	inflight sync.WaitGroup
	active   atomic.Int64
}

// begin registers an invocation. Only called under Registry.mu, so once the
// registry is closed active can only fall.
func (e *LibraryEntry) begin() {
	e.inflight.Add(1)
	e.active.Add(1)
}

func (e *LibraryEntry) end() {
	e.active.Add(-1)
	e.inflight.Done()
}

func (e *LibraryEntry) Path() string        { return e.path }
func (e *LibraryEntry) Description() string { return e.description }
func (e *LibraryEntry) LoadedAt() time.Time { return e.loadedAt }

// ParserBinding is a resolved parser export. It refers to its callable by
// index into the owning entry, so invocation always goes through the entry.
type ParserBinding struct {
	name        string
	description string
	resolvedAt  time.Time
	entry       *LibraryEntry
	index       int

	// Cleared when the registry closes.
	callable abi.Callable
}

func (b *ParserBinding) Name() string           { return b.name }
func (b *ParserBinding) Description() string    { return b.description }
func (b *ParserBinding) ResolvedAt() time.Time  { return b.resolvedAt }
func (b *ParserBinding) Library() *LibraryEntry { return b.entry }

// key identifies the binding for limiters and metrics.
func (b *ParserBinding) key() string { return b.entry.path + "#" + b.name }

// LibraryInfo and ParserInfo are point-in-time copies of registry state.
type LibraryInfo struct {
	Path        string       `json:"path" yaml:"path"`
	Description string       `json:"description" yaml:"description"`
	LoadedAt    time.Time    `json:"loaded_at" yaml:"loaded_at"`
	Parsers     []ParserInfo `json:"parsers" yaml:"parsers"`
}

type ParserInfo struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	ResolvedAt  time.Time `json:"resolved_at" yaml:"resolved_at"`
}
