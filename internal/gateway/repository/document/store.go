package document

import (
	"log/slog"
	"strings"
)

// Options selects a registry backend. Postgres wins over SQLite, which wins
// over the JSON file.
type Options struct {
	PostgresDSN string
	SQLitePath  string
	FilePath    string
}

// NewFromEnv opens the first configured database backend and falls back to
// the JSON file when none is configured or reachable.
func NewFromEnv(opts Options, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	if dsn := strings.TrimSpace(opts.PostgresDSN); dsn != "" {
		s, err := NewPostgresStore(dsn)
		if err == nil {
			return s
		}
		logger.Warn("document store: postgres unavailable", "error", err)
	}
	if path := strings.TrimSpace(opts.SQLitePath); path != "" {
		s, err := NewSQLiteStore(path)
		if err == nil {
			return s
		}
		logger.Warn("document store: sqlite unavailable", "path", path, "error", err)
	}
	return NewFileStore(opts.FilePath)
}
