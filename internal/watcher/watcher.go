package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/paperrag/internal/cleanup"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing file was rewritten.
	OpModify
	// OpDelete indicates a file was removed.
	OpDelete
	// OpRename indicates a file was moved away from its path.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a change to a cleaned Markdown file.
type FileEvent struct {
	// Path is relative to the watched root.
	Path string

	Operation Operation

	IsDir bool

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// Watcher is the common surface of the fsnotify and polling watchers.
type Watcher interface {
	// Start blocks until Stop is called or ctx is cancelled.
	Start(ctx context.Context, path string) error

	// Stop releases resources. Safe to call multiple times.
	Stop() error

	// Events returns debounced batches. Closed when the watcher stops.
	Events() <-chan []FileEvent

	// Errors carries non-fatal errors. Closed when the watcher stops.
	Errors() <-chan error
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the quiet period before a batch is emitted.
	// Default: 500ms
	DebounceWindow time.Duration

	// PollInterval is used when fsnotify is unavailable.
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the number of batches buffered for the consumer.
	// Default: 100
	EventBufferSize int

	// Suffix selects the files reported. Default: "-RAG.md".
	Suffix string

	// SkipDirs are directory names never descended into.
	SkipDirs []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 100,
		Suffix:          cleanup.RAGSuffix,
		SkipDirs:        []string{".git", ".paperrag"},
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if o.Suffix == "" {
		o.Suffix = defaults.Suffix
	}
	if o.SkipDirs == nil {
		o.SkipDirs = defaults.SkipDirs
	}
	return o
}

// Matches reports whether a file path is one the watcher reports.
func (o Options) Matches(relPath string) bool {
	if relPath == "" || relPath == "." || o.inSkippedDir(relPath) {
		return false
	}
	return strings.HasSuffix(filepath.Base(relPath), o.Suffix)
}

// SkipDir reports whether a directory should not be watched.
func (o Options) SkipDir(relPath string) bool {
	if relPath == "." || relPath == "" {
		return false
	}
	return o.inSkippedDir(relPath)
}

func (o Options) inSkippedDir(relPath string) bool {
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		for _, skip := range o.SkipDirs {
			if part == skip {
				return true
			}
		}
	}
	return false
}
