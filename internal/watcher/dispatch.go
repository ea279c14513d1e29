package watcher

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/Aman-CERP/paperrag/internal/index"
)

// Changes is a debounced batch reduced to absolute file paths.
type Changes struct {
	Created  []string
	Modified []string
	Removed  []string
}

// Empty reports whether the batch carries nothing to act on.
func (c Changes) Empty() bool {
	return len(c.Created) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// Collect resolves a batch against root. Renames count as removals; the
// new name arrives as its own create event.
func Collect(root string, events []FileEvent) Changes {
	var c Changes
	for _, e := range events {
		if e.IsDir {
			continue
		}
		path := filepath.Join(root, e.Path)
		switch e.Operation {
		case OpCreate:
			c.Created = append(c.Created, path)
		case OpModify:
			c.Modified = append(c.Modified, path)
		case OpDelete, OpRename:
			c.Removed = append(c.Removed, path)
		}
	}
	return c
}

// Handler reacts to one batch of changes.
type Handler func(ctx context.Context, c Changes) error

// Indexer is the part of index.Runner the watcher drives.
type Indexer interface {
	Run(ctx context.Context, opts index.Options) (*index.Summary, error)
}

// IndexHandler indexes created files normally and re-indexes modified
// ones with Force, so an edited paper gets fresh chunks under its
// existing paper row. base supplies the remaining run options.
func IndexHandler(idx Indexer, base index.Options) Handler {
	return func(ctx context.Context, c Changes) error {
		if len(c.Removed) > 0 {
			slog.Info("watch_removed_ignored",
				slog.Int("count", len(c.Removed)),
				slog.String("hint", "stored chunks are kept until the paper is re-indexed"))
		}

		var errs []error
		if len(c.Created) > 0 {
			opts := base
			opts.Files = c.Created
			if _, err := idx.Run(ctx, opts); err != nil {
				errs = append(errs, err)
			}
		}
		if len(c.Modified) > 0 {
			opts := base
			opts.Files = c.Modified
			opts.Force = true
			if _, err := idx.Run(ctx, opts); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// Serve feeds batches from w to handle until ctx is cancelled or the
// watcher closes. A handler error is logged and watching continues,
// except for cancellation.
func Serve(ctx context.Context, w Watcher, root string, handle Handler) error {
	errs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			changes := Collect(root, batch)
			if changes.Empty() {
				continue
			}
			slog.Info("watch_batch",
				slog.Int("created", len(changes.Created)),
				slog.Int("modified", len(changes.Modified)),
				slog.Int("removed", len(changes.Removed)))
			if err := handle(ctx, changes); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				slog.Error("watch_batch_failed", slog.String("error", err.Error()))
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}
