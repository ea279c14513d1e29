package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	setupProject(t)

	// When: executing with --help
	out, err := execute(t, "--help")

	// Then: it lists the pipeline commands
	require.NoError(t, err)
	for _, name := range []string{"ingest", "prepare", "clean", "strip-refs", "add-metadata", "index", "search", "serve", "cite", "watch", "status", "config", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestRootCmd_HasDebugFlag(t *testing.T) {
	cmd := NewRootCmd()

	flag := cmd.PersistentFlags().Lookup("debug")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestRootCmd_UnknownCommandFails(t *testing.T) {
	setupProject(t)

	_, err := execute(t, "frobnicate")

	assert.Error(t, err)
}

func TestServeCmd_NoIndex_NoStdoutOutput(t *testing.T) {
	// stdout is reserved for JSON-RPC, so even a failing serve must not
	// write to it.

	// Given: a project without an index
	setupProject(t)

	// When: starting the server
	out, err := execute(t, "serve")

	// Then: it fails without writing anything to stdout
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
	assert.Empty(t, out)
}

func TestServeCmd_DefaultTransportIsStdio(t *testing.T) {
	cmd := newServeCmd()

	flag := cmd.Flags().Lookup("transport")
	require.NotNil(t, flag)
	assert.Equal(t, "stdio", flag.DefValue)
}

func TestRootCmd_ProfileFlagsWriteFiles(t *testing.T) {
	// Given: a project and profile output paths
	root := setupProject(t)
	cpu := filepath.Join(root, "cpu.prof")
	mem := filepath.Join(root, "mem.prof")

	// When: running a command with profiling enabled
	_, err := execute(t, "version", "--profile-cpu", cpu, "--profile-mem", mem)

	// Then: both profiles are written
	require.NoError(t, err)
	assert.FileExists(t, cpu)
	assert.FileExists(t, mem)
}
