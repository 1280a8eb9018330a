package service

import (
	"context"

	"nbcache/internal/notebook/lifecycle"
	"nbcache/internal/notebook/nonfatal"
)

// DocumentAdded registers a newly opened document and imports a legacy
// notebook next to it when it has no cache yet.
func (s *Service) DocumentAdded(ctx context.Context, docID, path string) error {
	if err := checkID("doc_id", docID); err != nil {
		return err
	}
	return s.queue.Do(ctx, "document added", func(ctx context.Context) error {
		if err := s.docs.Register(ctx, docID, path); err != nil {
			return err
		}
		s.sync.OnDocumentAdded(ctx, docID)
		return nil
	})
}

// DocumentRemoved drops a closed document from the registry and deletes its
// cache unless it is still fresh. An empty path falls back to the
// registered one.
func (s *Service) DocumentRemoved(ctx context.Context, docID, path string) error {
	if err := checkID("doc_id", docID); err != nil {
		return err
	}
	return s.queue.Do(ctx, "document removed", func(ctx context.Context) error {
		if path == "" {
			path = s.lookup(ctx, docID)
		}
		s.sync.OnDocumentRemoved(ctx, docID, path)
		nonfatal.Do(s.logger, "forget document", func() error {
			return s.docs.Forget(ctx, docID)
		}, "doc_id", docID)
		return nil
	})
}

// DocumentRenamed follows a document to newPath, carrying its cache from the
// location derived from the previously registered path.
func (s *Service) DocumentRenamed(ctx context.Context, docID, newPath string) error {
	if err := checkID("doc_id", docID); err != nil {
		return err
	}
	if err := required("path", newPath); err != nil {
		return err
	}
	return s.queue.Do(ctx, "document renamed", func(ctx context.Context) error {
		oldPath := s.lookup(ctx, docID)
		if err := s.docs.Register(ctx, docID, newPath); err != nil {
			return err
		}
		s.sync.OnDocumentRenamed(ctx, oldPath, lifecycle.Document{ID: docID, Path: newPath})
		return nil
	})
}

// PopulateNotebookCache unpacks a legacy notebook into the cache folder of
// the saved document sharing its name and returns that folder.
func (s *Service) PopulateNotebookCache(ctx context.Context, legacyPath string) (string, error) {
	if err := required("path", legacyPath); err != nil {
		return "", err
	}
	var folder string
	err := s.queue.Do(ctx, "populate notebook cache", func(ctx context.Context) error {
		folder = s.sync.PopulateFromLegacy(ctx, legacyPath)
		return nil
	})
	return folder, err
}
