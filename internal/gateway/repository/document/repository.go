// Package document is the registry of open documents: which id maps to which
// saved path.
package document

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("document not found")

type Document struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Store interface {
	Get(ctx context.Context, id string) (Document, error)
	Put(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id string) error
}

func normalize(doc Document) Document {
	doc.ID = strings.TrimSpace(doc.ID)
	doc.Path = strings.TrimSpace(doc.Path)
	return doc
}

// Registry adapts a Store to the path lookups done by the notebook cache.
type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

func (r *Registry) Store() Store { return r.store }

// Path returns the saved path of id, "" for an unsaved document.
func (r *Registry) Path(ctx context.Context, id string) (string, error) {
	doc, err := r.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.Path, nil
}

func (r *Registry) Register(ctx context.Context, id, path string) error {
	return r.store.Put(ctx, Document{ID: id, Path: path, UpdatedAt: time.Now().UTC()})
}

func (r *Registry) Forget(ctx context.Context, id string) error {
	err := r.store.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
