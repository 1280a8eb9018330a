package document

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileStore keeps the registry in a JSON file, rewritten on every change.
type FileStore struct {
	path string

	loadOnce sync.Once
	loadErr  error
	mu       sync.RWMutex
	byID     map[string]Document
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		byID: make(map[string]Document),
	}
}

func (s *FileStore) Get(_ context.Context, id string) (Document, error) {
	if err := s.ensureLoaded(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.byID[normalize(Document{ID: id}).ID]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, nil
}

func (s *FileStore) Put(_ context.Context, doc Document) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	doc = normalize(doc)
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[doc.ID] = doc
	return s.saveLocked()
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	id = normalize(Document{ID: id}).ID
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.byID, id)
	return s.saveLocked()
}

func (s *FileStore) ensureLoaded() error {
	s.loadOnce.Do(func() {
		data, err := os.ReadFile(s.path)
		if err != nil {
			if !os.IsNotExist(err) {
				s.loadErr = fmt.Errorf("read document store: %w", err)
			}
			return
		}
		var docs []Document
		if err := json.Unmarshal(data, &docs); err != nil {
			s.loadErr = fmt.Errorf("decode document store: %w", err)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, doc := range docs {
			doc = normalize(doc)
			if doc.ID != "" {
				s.byID[doc.ID] = doc
			}
		}
	})
	return s.loadErr
}

func (s *FileStore) saveLocked() error {
	docs := make([]Document, 0, len(s.byID))
	for _, doc := range s.byID {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("write document store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write document store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write document store: %w", err)
	}
	return nil
}
