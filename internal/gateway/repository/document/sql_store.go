package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const pathCacheSize = 1024

type dialect struct {
	driver string
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
}

var (
	postgresDialect = dialect{driver: "pgx", placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}
	sqliteDialect   = dialect{driver: "sqlite", placeholder: func(int) string { return "?" }}
)

// SQLStore keeps the registry in a documents table and caches lookups in an
// LRU. It runs on Postgres (pgx) or on an embedded SQLite file.
type SQLStore struct {
	db      *sql.DB
	dialect dialect

	schemaOnce sync.Once
	schemaErr  error

	cache *lru.Cache[string, Document]
}

func NewPostgresStore(dsn string) (*SQLStore, error) {
	return openSQLStore(postgresDialect, strings.TrimSpace(dsn))
}

// NewSQLiteStore opens (creating if needed) a SQLite database at path.
func NewSQLiteStore(path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s, err := openSQLStore(sqliteDialect, path)
	if err != nil {
		return nil, err
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY.
	s.db.SetMaxOpenConns(1)
	return s, nil
}

func openSQLStore(d dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, Document](pathCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLStore{db: db, dialect: d, cache: cache}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) q(query string) string {
	n := 0
	var b strings.Builder
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS documents (
  id TEXT PRIMARY KEY,
  path TEXT NOT NULL DEFAULT '',
  updated_at BIGINT NOT NULL DEFAULT 0
)`)
	})
	return s.schemaErr
}

func (s *SQLStore) Get(ctx context.Context, id string) (Document, error) {
	id = strings.TrimSpace(id)
	if doc, ok := s.cache.Get(id); ok {
		return doc, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return Document{}, err
	}
	var (
		doc     Document
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, path, updated_at FROM documents WHERE id = ?`), id,
	).Scan(&doc.ID, &doc.Path, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	doc.UpdatedAt = time.Unix(0, updated).UTC()
	s.cache.Add(id, doc)
	return doc, nil
}

func (s *SQLStore) Put(ctx context.Context, doc Document) error {
	doc = normalize(doc)
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.q(`
INSERT INTO documents (id, path, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (id)
DO UPDATE SET path=excluded.path, updated_at=excluded.updated_at`),
		doc.ID, doc.Path, doc.UpdatedAt.UnixNano())
	if err != nil {
		s.cache.Remove(doc.ID)
		return fmt.Errorf("put document: %w", err)
	}
	s.cache.Add(doc.ID, doc)
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	s.cache.Remove(id)
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM documents WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
