package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

// DefaultLockWait bounds how long Update waits for another process.
const DefaultLockWait = 30 * time.Second

// Store guards a registry file with a cross-process lock at <path>.lock.
// Works on all platforms (Unix, Linux, macOS, Windows).
type Store struct {
	path       string
	lock       *flock.Flock
	lockWait   time.Duration
	retryDelay time.Duration
}

// NewStore returns a store for the registry at path.
func NewStore(path string) *Store {
	return &Store{
		path:       path,
		lock:       flock.New(path + ".lock"),
		lockWait:   DefaultLockWait,
		retryDelay: 50 * time.Millisecond,
	}
}

// WithLockWait overrides how long Update waits for the lock.
func (s *Store) WithLockWait(d time.Duration) *Store {
	s.lockWait = d
	return s
}

// Path returns the registry file path.
func (s *Store) Path() string {
	return s.path
}

// LockPath returns the path of the lock file.
func (s *Store) LockPath() string {
	return s.lock.Path()
}

// Load reads a snapshot without taking the lock.
func (s *Store) Load() ([]Record, error) {
	return Load(s.path)
}

// UpdateFunc mutates records and reports whether they should be saved.
type UpdateFunc func(records []Record) ([]Record, bool, error)

// Update runs fn as a read-modify-write cycle under an exclusive lock. The
// file is written only when fn reports a change and returns no error.
func (s *Store) Update(ctx context.Context, fn UpdateFunc) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return perrors.New(perrors.ErrCodeFilePermission, "failed to create registry dir", err).
			WithDetail("path", filepath.Dir(s.path))
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	start := time.Now()
	locked, err := s.lock.TryLockContext(lockCtx, s.retryDelay)
	if err != nil || !locked {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return perrors.New(perrors.ErrCodeRegistryLocked, "registry is locked by another process", err).
			WithDetail("path", s.LockPath()).
			WithSuggestion("wait for the other paperrag run to finish")
	}
	defer func() {
		if uerr := s.lock.Unlock(); uerr != nil {
			slog.Warn("registry_unlock_failed", slog.String("path", s.LockPath()), slog.String("error", uerr.Error()))
		}
	}()
	if waited := time.Since(start); waited > time.Second {
		slog.Info("registry_lock_acquired", slog.Duration("waited", waited))
	}

	records, err := Load(s.path)
	if err != nil {
		return err
	}
	before := len(records)

	records, changed, err := fn(records)
	if err != nil {
		return err
	}
	if !changed {
		slog.Debug("registry_unchanged", slog.String("path", s.path), slog.Int("records", before))
		return nil
	}
	if err := Save(s.path, records); err != nil {
		return err
	}
	slog.Info("registry_saved",
		slog.String("path", s.path),
		slog.Int("records", len(records)),
		slog.Int("added", len(records)-before))
	return nil
}

// UniquePath returns dir/stem+ext, or the first free "stem (n)ext".
func UniquePath(dir, stem, ext string) string {
	cand := filepath.Join(dir, stem+ext)
	if !exists(cand) {
		return cand
	}
	for i := 1; ; i++ {
		cand = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if !exists(cand) {
			return cand
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
