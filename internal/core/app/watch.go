package app

import (
	"context"
	"sort"

	"snippethost/internal/core/watcher"
)

// WatchHandler receives the outcome of each re-parse.
type WatchHandler func(result ParseResult, err error)

// Watch re-parses changed files under paths with one parser until ctx is
// done. Each debounced batch is parsed in sorted order.
func (a *App) Watch(ctx context.Context, libraryPath, parserName string, paths []string, handle WatchHandler) error {
	// Resolve up front so a bad library or parser fails before any file event.
	if _, err := a.Host.GetOrAddParser(ctx, libraryPath, parserName, ""); err != nil {
		return err
	}

	parseAll := func(files []string) {
		sort.Strings(files)
		for _, file := range files {
			if ctx.Err() != nil {
				return
			}
			result, err := a.ParseFile(ctx, libraryPath, parserName, file)
			handle(result, err)
		}
	}

	w, err := watcher.NewWatcher(a.Config.Watch.Debounce, a.Config.Watch.Exclude, parseAll)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch(paths); err != nil {
		return err
	}
	a.logger.Info("watching inputs", "paths", paths, "parser", parserName)

	<-ctx.Done()
	return nil
}
