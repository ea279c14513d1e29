// Package watcher keeps the index current while papers are being cleaned.
//
// It watches a papers directory for *-RAG.md files using fsnotify, falling
// back to polling where fsnotify is unavailable (network mounts, some
// container volumes). Bursts of writes are debounced into batches, and
// Serve hands each batch to a Handler; IndexHandler runs the indexer on
// created files and force re-indexes modified ones.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, papersDir) }()
//	return watcher.Serve(ctx, w, papersDir, watcher.IndexHandler(runner, opts))
package watcher
