// Package assets serves files out of chunk cache folders over HTTP.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"

	"nbcache/internal/notebook/location"
	"nbcache/internal/safeio"
)

// ErrNotFound covers every way an asset request can fail to resolve.
var ErrNotFound = errors.New("chunk asset not found")

const libCacheControl = "public, max-age=31536000"

// PathLookup resolves a document id to its saved path ("" when unsaved).
type PathLookup interface {
	Path(ctx context.Context, docID string) (string, error)
}

type Server struct {
	prefix    string
	resolver  *location.Resolver
	docs      PathLookup
	contextID string
	logger    *slog.Logger
}

func NewServer(prefix string, resolver *location.Resolver, docs PathLookup, contextID string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		prefix:    strings.Trim(prefix, "/"),
		resolver:  resolver,
		docs:      docs,
		contextID: contextID,
		logger:    logger,
	}
}

// Pattern is the ServeMux pattern this server answers on.
func (s *Server) Pattern() string {
	return "/" + s.prefix + "/"
}

// asset is an open cache file ready to be served.
type asset struct {
	file *os.File
	info fs.FileInfo
	lib  bool
	etag string
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	a, err := s.open(r.Context(), r.URL.Path)
	if err != nil {
		s.logger.Debug("chunk asset not served", "path", r.URL.Path, "error", err)
		http.NotFound(w, r)
		return
	}
	defer a.file.Close()
	if a.lib {
		w.Header().Set("Cache-Control", libCacheControl)
	} else {
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("ETag", a.etag)
	}
	http.ServeContent(w, r, a.info.Name(), a.info.ModTime(), a.file)
}

// open maps /<prefix>/<docId>/<rel> to a file inside the document's cache
// folder and prepares its caching headers.
func (s *Server) open(ctx context.Context, urlPath string) (*asset, error) {
	rest, ok := strings.CutPrefix(strings.TrimPrefix(urlPath, "/"), s.prefix+"/")
	if !ok {
		return nil, ErrNotFound
	}
	docID, rel, ok := strings.Cut(rest, "/")
	if !ok || rel == "" {
		return nil, ErrNotFound
	}
	if err := location.CheckID("doc_id", docID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	// Unsaved documents have no path; a failed lookup is treated the same.
	docPath, err := s.docs.Path(ctx, docID)
	if err != nil {
		s.logger.Debug("document path lookup failed", "doc_id", docID, "error", err)
		docPath = ""
	}
	folder := s.resolver.Folder(location.Identity{DocPath: docPath, DocID: docID, ContextID: s.contextID})

	root, err := safeio.NewRoot(folder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	f, info, err := root.OpenFile(rel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	first, _, _ := strings.Cut(rel, "/")
	if first == location.LibDirName {
		return &asset{file: f, info: info, lib: true}, nil
	}

	tag, err := etag(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return &asset{file: f, info: info, etag: tag}, nil
}

// etag hashes the content and rewinds the reader.
func etag(r io.ReadSeeker) (string, error) {
	d := xxhash.New()
	if _, err := io.Copy(d, r); err != nil {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return fmt.Sprintf(`"%016x"`, d.Sum64()), nil
}
