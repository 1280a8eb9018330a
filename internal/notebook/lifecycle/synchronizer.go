// Package lifecycle keeps chunk cache folders in step with documents being
// opened, closed and renamed.
package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"nbcache/internal/notebook/chunkdefs"
	"nbcache/internal/notebook/location"
	"nbcache/internal/notebook/nonfatal"
	"nbcache/internal/notebook/rnb"
)

// DefaultSourceExt is the document kind whose caches are managed.
const DefaultSourceExt = ".rmd"

// PathLookup resolves a document id to its path; "" means never saved.
type PathLookup interface {
	Path(ctx context.Context, docID string) (string, error)
}

// Document is the identity of a document after a rename.
type Document struct {
	ID   string
	Path string
}

type Config struct {
	Resolver    *location.Resolver
	Definitions *chunkdefs.Store
	Documents   PathLookup
	// Parser is optional; nil disables import of legacy notebooks.
	Parser    rnb.Parser
	ContextID string
	// SourceExt defaults to DefaultSourceExt and is compared case-insensitively.
	SourceExt string
	Logger    *slog.Logger
}

type Synchronizer struct {
	resolver  *location.Resolver
	defs      *chunkdefs.Store
	docs      PathLookup
	parser    rnb.Parser
	contextID string
	sourceExt string
	logger    *slog.Logger

	// rename is swapped in tests to exercise the copy fallback.
	rename func(oldpath, newpath string) error
}

func New(cfg Config) *Synchronizer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ext := strings.ToLower(strings.TrimSpace(cfg.SourceExt))
	if ext == "" {
		ext = DefaultSourceExt
	}
	return &Synchronizer{
		resolver:  cfg.Resolver,
		defs:      cfg.Definitions,
		docs:      cfg.Documents,
		parser:    cfg.Parser,
		contextID: cfg.ContextID,
		sourceExt: ext,
		logger:    logger,
		rename:    os.Rename,
	}
}

func (s *Synchronizer) identity(docPath, docID string) location.Identity {
	return location.Identity{DocPath: docPath, DocID: docID, ContextID: s.contextID}
}

// OnDocumentAdded populates the cache of a freshly opened source document
// from a legacy notebook next to it, when no cache exists yet.
func (s *Synchronizer) OnDocumentAdded(ctx context.Context, docID string) {
	path, err := s.docs.Path(ctx, docID)
	if err != nil {
		nonfatal.Log(s.logger, "resolve added document", err, "doc_id", docID)
		return
	}
	if path == "" {
		return
	}
	docPath := location.ResolveAliased(path)
	if !strings.EqualFold(filepath.Ext(docPath), s.sourceExt) {
		return
	}

	folder := s.resolver.Folder(s.identity(path, docID))
	legacy := location.LegacyNotebook(docPath)
	if exists(folder) || !exists(legacy) {
		return
	}
	if s.parser == nil {
		s.logger.Info("legacy notebook found but no parser configured", "doc_id", docID, "path", legacy)
		return
	}
	if err := s.parser.Parse(ctx, legacy, folder); err != nil {
		nonfatal.Log(s.logger, "import legacy notebook", err, "doc_id", docID, "path", legacy)
		nonfatal.Do(s.logger, "remove partial cache", func() error {
			return os.RemoveAll(folder)
		}, "path", folder)
		return
	}
	s.logger.Info("populated chunk cache from legacy notebook", "doc_id", docID, "path", folder)
}

// OnDocumentRemoved drops the cache of a closed document unless it is a
// saved document whose sidecar is at least as new as the file on disk.
func (s *Synchronizer) OnDocumentRemoved(ctx context.Context, docID, docPath string) {
	id := s.identity(docPath, docID)
	if s.Fresh(id) {
		return
	}
	folder := s.resolver.Folder(id)
	nonfatal.Do(s.logger, "remove chunk cache", func() error {
		return os.RemoveAll(folder)
	}, "doc_id", docID, "path", folder)
}

// Fresh reports whether the cache of a saved document still matches the
// document on disk: the sidecar's write time is not older than the
// document's modification time.
func (s *Synchronizer) Fresh(id location.Identity) bool {
	if !id.Saved() || !s.defs.Exists(id) {
		return false
	}
	snap, err := s.defs.Read(id)
	if err != nil {
		nonfatal.Log(s.logger, "read chunk definitions", err, "doc_id", id.DocID)
		return false
	}
	info, err := os.Stat(location.ResolveAliased(id.DocPath))
	if err != nil {
		return false
	}
	return snap.WriteTime >= info.ModTime().Unix()
}

// OnDocumentRenamed moves or copies the cache to the location derived from
// the new path. Nothing happens when there is no old cache or the new one
// already exists.
func (s *Synchronizer) OnDocumentRenamed(ctx context.Context, oldPath string, doc Document) {
	oldFolder := s.resolver.Folder(s.identity(oldPath, doc.ID))
	newFolder := s.resolver.Folder(s.identity(doc.Path, doc.ID))
	if oldFolder == newFolder || !exists(oldFolder) || exists(newFolder) {
		return
	}

	// A previously unsaved document has no other owner of its cache, so the
	// folder can move. A saved one keeps its old cache until the rename sticks.
	removeOld := false
	if oldPath == "" {
		err := s.moveFolder(oldFolder, newFolder)
		if err == nil {
			return
		}
		nonfatal.Log(s.logger, "move chunk cache", err, "from", oldFolder, "to", newFolder)
		removeOld = true
	}

	if err := CopyTree(oldFolder, newFolder, s.logger); err != nil {
		nonfatal.Log(s.logger, "copy chunk cache", err, "from", oldFolder, "to", newFolder)
		return
	}
	if removeOld {
		nonfatal.Do(s.logger, "remove old chunk cache", func() error {
			return os.RemoveAll(oldFolder)
		}, "path", oldFolder)
	}
}

func (s *Synchronizer) moveFolder(from, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	if err := s.rename(from, to); err != nil {
		return err
	}
	nonfatal.Do(s.logger, "hide chunk cache", func() error {
		return location.EnsureFolder(to, s.logger)
	}, "path", to)
	return nil
}

// PopulateFromLegacy unpacks the legacy notebook at legacyPath into the
// cache folder of the saved document sharing its stem, and returns that
// folder. Parser failures are logged; the folder path is returned either way.
func (s *Synchronizer) PopulateFromLegacy(ctx context.Context, legacyPath string) string {
	folder := s.resolver.Folder(s.identity(legacyPath, ""))
	if s.parser == nil {
		s.logger.Info("legacy notebook parser not configured", "path", legacyPath)
		return folder
	}
	legacy := location.ResolveAliased(legacyPath)
	if err := s.parser.Parse(ctx, legacy, folder); err != nil {
		nonfatal.Log(s.logger, "populate notebook cache", err, "path", legacy)
	}
	return folder
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
