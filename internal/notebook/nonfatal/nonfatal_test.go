package nonfatal

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDoReportsOutcomeAndLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	assert.True(t, Do(logger, "ok", func() error { return nil }))
	assert.Empty(t, buf.String())

	assert.False(t, Do(logger, "remove stale chunk", func() error { return errors.New("boom") }, "chunk_id", "c1"))
	out := buf.String()
	assert.Contains(t, out, "remove stale chunk")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "chunk_id=c1")
}

func TestDoNilFunc(t *testing.T) {
	assert.True(t, Do(nil, "noop", nil))
}
