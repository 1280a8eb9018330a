// Package rnb is the boundary to the parser that unpacks a legacy
// single-file cached notebook (.Rnb) into a chunk cache folder.
package rnb

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Parser populates destFolder from the legacy notebook at legacyFile.
type Parser interface {
	Parse(ctx context.Context, legacyFile, destFolder string) error
}

// Func adapts a function to Parser.
type Func func(ctx context.Context, legacyFile, destFolder string) error

func (f Func) Parse(ctx context.Context, legacyFile, destFolder string) error {
	return f(ctx, legacyFile, destFolder)
}

// Command invokes an external parser as `<path> <args...> <legacyFile> <destFolder>`.
type Command struct {
	Path string
	Args []string
}

// NewCommand splits a command line on whitespace. An empty line yields nil
// so callers can treat "not configured" as "no legacy import".
func NewCommand(cmdline string) *Command {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil
	}
	return &Command{Path: fields[0], Args: fields[1:]}
}

func (c *Command) Parse(ctx context.Context, legacyFile, destFolder string) error {
	if c == nil || c.Path == "" {
		return fmt.Errorf("legacy notebook parser is not configured")
	}
	args := append(append([]string(nil), c.Args...), legacyFile, destFolder)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("parse %s: %w: %s", legacyFile, err, msg)
		}
		return fmt.Errorf("parse %s: %w", legacyFile, err)
	}
	return nil
}
