package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRAG(t *testing.T, root, key, body string) string {
	t.Helper()
	dir := filepath.Join(root, key, "md_with_images")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, key+"-RAG.md")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func nextEvent(t *testing.T, w *PollingWatcher) FileEvent {
	t.Helper()
	select {
	case event := <-w.Events():
		return event
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for polling event")
	}
	return FileEvent{}
}

func startPolling(t *testing.T, root string) *PollingWatcher {
	t.Helper()
	w := NewPollingWatcher(Options{PollInterval: 30 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Start(ctx, root) }()
	// Let the baseline scan finish
	time.Sleep(60 * time.Millisecond)
	return w
}

func TestPollingWatcher_DetectsCreation(t *testing.T) {
	// Given: a watched, empty papers directory
	root := t.TempDir()
	w := startPolling(t, root)

	// When: a cleaned paper appears
	writeRAG(t, root, "smith2020", "# Intro\n")

	// Then: a CREATE event with a relative path is emitted
	event := nextEvent(t, w)
	assert.Equal(t, OpCreate, event.Operation)
	assert.Equal(t, filepath.Join("smith2020", "md_with_images", "smith2020-RAG.md"), event.Path)
	require.NoError(t, w.Stop())
}

func TestPollingWatcher_DetectsModificationAndDeletion(t *testing.T) {
	// Given: an existing cleaned paper in the baseline
	root := t.TempDir()
	path := writeRAG(t, root, "lee2019", "# Intro\n")
	w := startPolling(t, root)

	// When: it is rewritten with new content
	require.NoError(t, os.WriteFile(path, []byte("# Intro\nmore text\n"), 0o644))

	// Then: MODIFY, and after removal DELETE
	assert.Equal(t, OpModify, nextEvent(t, w).Operation)
	require.NoError(t, os.Remove(path))
	assert.Equal(t, OpDelete, nextEvent(t, w).Operation)
	require.NoError(t, w.Stop())
}

func TestPollingWatcher_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	w := startPolling(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".paperrag"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".paperrag", "x-RAG.md"), []byte("x"), 0o644))

	select {
	case event := <-w.Events():
		t.Fatalf("unexpected event %v", event)
	case <-time.After(150 * time.Millisecond):
	}
	require.NoError(t, w.Stop())
}

func TestPollingWatcher_StopIsIdempotent(t *testing.T) {
	w := NewPollingWatcher(DefaultOptions())

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
}

func TestPollingWatcher_ContextCancel(t *testing.T) {
	w := NewPollingWatcher(Options{PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, t.TempDir()) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
