// Package engine is the boundary to the evaluation engine that executes a
// chunk and renders its HTML output.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Request describes one chunk execution.
type Request struct {
	Options     string
	Content     string
	LibDir      string
	HeaderAsset string
	OutputAsset string
}

// Engine executes a chunk and writes its rendered output to
// Request.OutputAsset. A *RenderError means the chunk ran and failed; any
// other error means the engine could not be invoked.
type Engine interface {
	ExecuteChunk(ctx context.Context, req Request) error
}

// RenderError carries the message produced by failing chunk code.
type RenderError struct {
	Message string
}

func (e *RenderError) Error() string {
	return e.Message
}

// AsRenderError unwraps err to a *RenderError when it is one.
func AsRenderError(err error) (*RenderError, bool) {
	var re *RenderError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Func adapts a function to Engine.
type Func func(ctx context.Context, req Request) error

func (f Func) ExecuteChunk(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// Command runs an external program per chunk. The chunk content is written
// to stdin; the other request fields are passed as environment variables.
// A non-zero exit with text on stderr is reported as a RenderError.
type Command struct {
	Path string
	Args []string
}

// NewCommand splits a command line on whitespace. An empty line yields nil.
func NewCommand(cmdline string) *Command {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil
	}
	return &Command{Path: fields[0], Args: fields[1:]}
}

func (c *Command) ExecuteChunk(ctx context.Context, req Request) error {
	if c == nil || c.Path == "" {
		return fmt.Errorf("evaluation engine is not configured")
	}
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdin = strings.NewReader(req.Content)
	cmd.Env = append(os.Environ(),
		"NBCACHE_CHUNK_OPTIONS="+req.Options,
		"NBCACHE_LIB_DIR="+req.LibDir,
		"NBCACHE_HEADER_HTML="+req.HeaderAsset,
		"NBCACHE_OUTPUT_HTML="+req.OutputAsset,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return &RenderError{Message: msg}
		}
	}
	return fmt.Errorf("run evaluation engine: %w", err)
}
