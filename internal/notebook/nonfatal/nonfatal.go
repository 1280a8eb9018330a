// Package nonfatal runs best-effort operations: attempt, record, continue.
//
// Cache cleanup, folder hiding and per-entry copies must never block a
// document close, rename or add. Callers wrap those steps with Do and branch
// on the returned bool only when a later step depends on the outcome.
package nonfatal

import (
	"log/slog"
)

// Do runs fn and logs its error at WARN under op. It reports whether fn
// succeeded.
func Do(logger *slog.Logger, op string, fn func() error, attrs ...any) bool {
	if fn == nil {
		return true
	}
	err := fn()
	if err == nil {
		return true
	}
	Log(logger, op, err, attrs...)
	return false
}

// Log records an error that the caller has chosen to swallow.
func Log(logger *slog.Logger, op string, err error, attrs ...any) {
	if err == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	args := make([]any, 0, len(attrs)+4)
	args = append(args, "op", op, "error", err)
	args = append(args, attrs...)
	logger.Warn("non-fatal operation failed", args...)
}
