//go:build !windows

package rnb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandReceivesSourceAndDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.Rnb")
	dest := filepath.Join(dir, ".doc-c.cache")
	require.NoError(t, os.WriteFile(src, []byte("legacy"), 0o644))

	cmd := &Command{Path: "/bin/sh", Args: []string{"-c", `mkdir -p "$2" && cp "$1" "$2/chunks.json"`, "parser"}}
	require.NoError(t, cmd.Parse(context.Background(), src, dest))

	raw, err := os.ReadFile(filepath.Join(dest, "chunks.json"))
	require.NoError(t, err)
	assert.Equal(t, "legacy", string(raw))
}

func TestCommandFailureIncludesStderr(t *testing.T) {
	cmd := NewCommand("/bin/sh -c")
	cmd.Args = append(cmd.Args, "echo 'bad notebook' >&2; exit 2", "parser")

	err := cmd.Parse(context.Background(), "a.Rnb", "out")
	assert.ErrorContains(t, err, "bad notebook")
	assert.Nil(t, NewCommand(""))
}
