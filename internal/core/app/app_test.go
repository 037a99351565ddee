package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"snippethost/internal/core/config"
	domainerrors "snippethost/internal/core/errors"
	"snippethost/internal/engine/abi"
	"snippethost/internal/engine/native"
	"snippethost/internal/engine/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	symbols map[string]abi.Callable
}

func (m fakeModule) Lookup(symbol string) (abi.Callable, error) {
	fn, ok := m.symbols[symbol]
	if !ok {
		return nil, domainerrors.New(domainerrors.CodeSymbolNotFound, "no such export").
			WithContext(domainerrors.CtxSymbol, symbol)
	}
	return fn, nil
}

func (fakeModule) Close() error { return nil }

// wordParser emits one scope per whitespace-separated word and fails on
// empty files.
func wordParser(input string) []byte {
	data, err := os.ReadFile(input)
	if err != nil {
		return abi.EncodeErr(err.Error())
	}
	words := strings.Fields(string(data))
	if len(words) == 0 {
		return abi.EncodeErr("empty input")
	}
	scopes := make([]abi.Scope, 0, len(words))
	for _, w := range words {
		scopes = append(scopes, abi.Scope(fmt.Sprintf(`{"word":%q}`, w)))
	}
	return abi.EncodeOK(scopes)
}

func fakeLoader() native.Loader {
	return native.LoaderFunc(func(string) (native.Module, error) {
		return fakeModule{symbols: map[string]abi.Callable{"words": wordParser}}, nil
	})
}

type fixture struct {
	dir     string
	library string
	app     *App
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	library := filepath.Join(dir, "libwords.so")
	require.NoError(t, os.WriteFile(library, []byte("stub"), 0o644))

	cfg := config.DefaultConfig()
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(dir, "history.db")
	cfg.Watch.Debounce = 20 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	a, err := New(context.Background(), cfg, registry.WithLoader(fakeLoader()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return &fixture{dir: dir, library: library, app: a}
}

func (f *fixture) input(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFileRecordsHistory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ok := f.input(t, "ok.txt", "alpha beta")
	result, err := f.app.ParseFile(ctx, f.library, "words", ok)
	require.NoError(t, err)
	assert.Equal(t, f.library, result.Library)
	assert.Len(t, result.Scopes, 2)
	assert.NotEmpty(t, result.RunID)

	empty := f.input(t, "empty.txt", "")
	_, err = f.app.ParseFile(ctx, f.library, "words", empty)
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeParseFailure))

	runs, err := f.app.History.Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byInput := map[string]bool{}
	for _, run := range runs {
		byInput[run.Input] = run.Success
		if run.Input == empty {
			assert.Contains(t, run.Error, "empty input")
		}
		if run.Input == ok {
			assert.Equal(t, 2, run.ScopeCount)
			assert.Equal(t, result.RunID, run.ID)
		}
	}
	assert.Equal(t, map[string]bool{ok: true, empty: false}, byInput)
}

func TestParseFileResolutionFailure(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.app.ParseFile(context.Background(), f.library, "missing", f.input(t, "a.txt", "x"))
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeSymbolNotFound))

	runs, err := f.app.History.Recent(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Success)
}

func TestPreload(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.History.Enabled = false
	})
	library := f.library
	f.app.Config.Libraries = []config.Library{{
		Path:        library,
		Description: "word splitter",
		Parsers:     []config.Parser{{Name: "words", Description: "split on spaces"}},
	}}

	require.NoError(t, f.app.Preload(context.Background()))

	libs := f.app.Host.Libraries()
	require.Len(t, libs, 1)
	assert.Equal(t, "word splitter", libs[0].Description)
	require.Len(t, libs[0].Parsers, 1)
	assert.Equal(t, "split on spaces", libs[0].Parsers[0].Description)

	f.app.Config.Libraries = append(f.app.Config.Libraries, config.Library{
		Path:    library,
		Parsers: []config.Parser{{Name: "absent"}},
	})
	err := f.app.Preload(context.Background())
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeSymbolNotFound))
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	health := NewHealthService(f.app)

	status := health.Check(context.Background())
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "ok", status.Components["history"])

	require.NoError(t, f.app.Close(context.Background()))
	status = health.Check(context.Background())
	assert.Equal(t, "down", status.Status)
	assert.Equal(t, "closed", status.Components["registry"])
}

func TestNewRejectsMissingManifest(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Registry.VerifyManifest = true
	cfg.Registry.ManifestPath = filepath.Join(t.TempDir(), "manifest.toml")

	_, err := New(context.Background(), cfg)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeValidationError))
}

func TestVerifyPlugins(t *testing.T) {
	dir := t.TempDir()
	data := []byte("library bytes")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "libok.so"), data, 0o644))
	manifest := fmt.Sprintf(`
version = 1
allowed_abi_versions = [1]

[[artifacts]]
path = "libok.so"
sha256 = "%x"
abi_version = 1

[[artifacts]]
path = "libmissing.so"
sha256 = "%x"
abi_version = 1
`, sha256.Sum256(data), sha256.Sum256(data))
	path := filepath.Join(dir, "manifest.toml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	issues, err := VerifyPlugins(path)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "libmissing.so", issues[0].ArtifactPath)
}

func TestWatchReparsesChangedFiles(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watched := filepath.Join(f.dir, "inputs")
	require.NoError(t, os.MkdirAll(watched, 0o755))

	results := make(chan ParseResult, 8)
	done := make(chan error, 1)
	go func() {
		done <- f.app.Watch(ctx, f.library, "words", []string{watched}, func(result ParseResult, err error) {
			if err != nil {
				return
			}
			select {
			case results <- result:
			default:
			}
		})
	}()

	target := filepath.Join(watched, "note.txt")
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case result := <-results:
			assert.Equal(t, target, result.Input)
			assert.Len(t, result.Scopes, 3)
			cancel()
			require.NoError(t, <-done)
			return
		case <-tick.C:
			// Rewrite until the watcher has registered and reports the file.
			require.NoError(t, os.WriteFile(target, []byte("one two three"), 0o644))
		case <-deadline:
			t.Fatal("timed out waiting for re-parse")
		}
	}
}
