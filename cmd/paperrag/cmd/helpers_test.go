package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/paperrag/internal/registry"
)

// setupProject creates a project root with an input/ directory, isolates
// HOME and the user config, and changes into the root for the test.
func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("PAPERRAG_EMBEDDINGS_PROVIDER", "static")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "input"), 0o755))

	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(root))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })
	return root
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writePaper creates output/papers/<key>/md_with_images/<name> under root.
func writePaper(t *testing.T, root, key, name, content string) string {
	t.Helper()
	dir := filepath.Join(root, "output", "papers", key, "md_with_images")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeRegistry(t *testing.T, root string, records ...registry.Record) {
	t.Helper()
	require.NoError(t, registry.Save(filepath.Join(root, "input", "input_pdf.json"), records))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

const soilPaper = `---
doi: "10.1234/soil.2020"
citation_key: "smith2020soil"
title: "Soil carbon under cover crops"
journal: "Soil Biology"
---

## Methods
We sampled forty plots and measured soil carbon at two depths.

## Results
Soil carbon increased under cover crops. ![map](images/fig1.png)
`
