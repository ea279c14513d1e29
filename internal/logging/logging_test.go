package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath_UnderPaperragDir(t *testing.T) {
	path := DefaultLogPath()
	assert.Equal(t, "paperrag.log", filepath.Base(path))
	assert.Contains(t, path, ".paperrag")
}

func TestConfigs(t *testing.T) {
	assert.Equal(t, "info", DefaultConfig().Level)
	assert.False(t, DefaultConfig().WriteToStderr)
	assert.Equal(t, "debug", DebugConfig().Level)
	assert.True(t, DebugConfig().WriteToStderr)
	assert.False(t, ServeConfig("debug").WriteToStderr)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

// TS01: Setup writes JSON lines to the configured file
func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: a config pointing into a temp dir
	path := filepath.Join(t.TempDir(), "nested", "paperrag.log")
	cfg := Config{Level: "info", FilePath: path, MaxSizeMB: 1, MaxFiles: 2}

	// When: logging an event
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Info("index_document_complete", slog.String("citation_key", "smith2020x"))
	logger.Debug("hidden")
	cleanup()

	// Then: one JSON line with the attrs
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "index_document_complete", entry["msg"])
	assert.Equal(t, "smith2020x", entry["citation_key"])
}

func TestSetup_NoFileNoStderrDiscards(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "info"})
	require.NoError(t, err)
	defer cleanup()
	logger.Info("dropped")
}

// TS02: RotatingWriter shifts files once the size limit is reached
func TestRotatingWriter_Rotates(t *testing.T) {
	// Given: a writer with a 1MB limit and 2 backups
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	chunk := []byte(strings.Repeat("x", 600*1024))

	// When: writing three 600KB chunks
	for i := 0; i < 3; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	// Then: the current file and two backups exist
	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")
}

func TestRotatingWriter_CloseIsIdempotent(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "a.log"), 1, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.NoError(t, w.Sync())
}
