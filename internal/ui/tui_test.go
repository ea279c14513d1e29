package ui

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTUIRenderer_RejectsNonTTY(t *testing.T) {
	r, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestIndexingModel_View(t *testing.T) {
	// Given: a model tracking paper 1 of 4
	tracker := NewProgressTracker()
	m := newIndexingModel(tracker, "")
	m.styles = NoColorStyles()
	tracker.Apply(ProgressEvent{Stage: StageEmbedding, Current: 1, Total: 4, CurrentFile: "papers/a/md_with_images/a-RAG.md"})
	tracker.AddError(ErrorEvent{File: "b", Err: assert.AnError})

	// When: rendering
	view := m.View()

	// Then: title, stages, counts, file and failures are shown
	assert.Contains(t, view, "paperrag index")
	assert.Contains(t, view, "Chunking")
	assert.Contains(t, view, "Storing")
	assert.Contains(t, view, "1 / 4 papers")
	assert.Contains(t, view, "a-RAG.md")
	assert.Contains(t, view, "1 failed")
}

func TestIndexingModel_UnknownTotal(t *testing.T) {
	tracker := NewProgressTracker()
	m := newIndexingModel(tracker, "papers")
	m.styles = NoColorStyles()

	view := m.View()

	assert.Contains(t, view, "papers")
	assert.Contains(t, view, "Discovering...")
}

func TestIndexingModel_Complete(t *testing.T) {
	m := newIndexingModel(NewProgressTracker(), "")
	m.styles = NoColorStyles()

	next, cmd := m.Update(completeMsg(CompletionStats{Processed: 3, Skipped: 1, Chunks: 40, Failed: 2, Duration: 65 * time.Second}))

	require.NotNil(t, cmd)
	view := next.View()
	assert.Contains(t, view, "Indexing complete")
	assert.Contains(t, view, "40")
	assert.Contains(t, view, "1m 5s")
	assert.Contains(t, view, "2 failed")
}

func TestIndexingModel_QuitKey(t *testing.T) {
	m := newIndexingModel(NewProgressTracker(), "")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	require.NotNil(t, cmd)
	assert.Equal(t, "Cancelled.\n", next.View())
}

func TestIndexingModel_WindowResize(t *testing.T) {
	m := newIndexingModel(NewProgressTracker(), "")

	_, _ = m.Update(tea.WindowSizeMsg{Width: 30, Height: 10})

	assert.Equal(t, 30, m.width)
	assert.Equal(t, 20, m.progressBar.Width)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "3m", formatDuration(3*time.Minute))
	assert.Equal(t, "3m 5s", formatDuration(185*time.Second))
	assert.Equal(t, "1h 2m", formatDuration(62*time.Minute))
}

func TestTruncateFilePath(t *testing.T) {
	assert.Equal(t, "short.md", truncateFilePath("short.md", 20))

	long := "/very/long/directory/structure/papers/smith2020/md_with_images/smith2020-RAG.md"
	got := truncateFilePath(long, 40)
	assert.Len(t, got, 40)
	assert.Contains(t, got, "smith2020-RAG.md")
	assert.True(t, len(got) > 3 && got[:3] == "...")

	assert.Equal(t, "...", truncateFilePath("abcdefgh", 2))
}
