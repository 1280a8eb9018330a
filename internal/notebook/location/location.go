// Package location maps a document identity to its chunk cache folder and the
// files inside it. Path derivation does no I/O; EnsureFolder is the only
// function here that touches the filesystem.
//
// A saved document keeps its cache next to itself:
//
//	analysis.Rmd
//	.analysis-<context>.cache/
//	    chunks.json          sidecar with the chunk definitions
//	    c1a2b3.html          rendered chunk output
//	    c1a2b3_files/        companion assets of the rendered output
//	    c9z8y7.csv           console transcript
//	    lib/                 libraries shared between chunks
//
// An unsaved document keeps it under <scratch>/unsaved-notebooks/<docId>.cache.
package location

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"nbcache/internal/notebook/nonfatal"
)

// ErrInvalidID marks a document, chunk or context id that cannot be used as a
// single path element.
var ErrInvalidID = errors.New("invalid id")

// CheckID reports whether id can name a file inside a cache folder: it must
// be non-empty and must not be "." or "..", contain a path separator or carry
// a volume name.
func CheckID(name, id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: %s is empty", ErrInvalidID, name)
	case id == "." || id == "..",
		strings.ContainsAny(id, `/\`+"\x00"),
		filepath.VolumeName(id) != "":
		return fmt.Errorf("%w: %s %q", ErrInvalidID, name, id)
	}
	return nil
}

// element keeps a derived path inside its parent. Callers validate ids at the
// boundary; anything that still slips through is replaced by a hash.
func element(id string) string {
	if id == "" || CheckID("id", id) == nil {
		return id
	}
	return fmt.Sprintf("invalid-%016x", xxhash.Sum64String(id))
}

const (
	UnsavedDirName  = "unsaved-notebooks"
	FolderSuffix    = ".cache"
	SidecarName     = "chunks.json"
	LibDirName      = "lib"
	OutputExt       = ".html"
	TranscriptExt   = ".csv"
	CompanionSuffix = "_files"
	LegacyExt       = ".Rnb"
)

// Identity names the document whose cache is being addressed.
type Identity struct {
	DocPath   string
	DocID     string
	ContextID string
}

// Saved reports whether the document has ever been written to disk.
func (id Identity) Saved() bool {
	return strings.TrimSpace(id.DocPath) != ""
}

// Resolver derives cache paths relative to a session scratch root.
type Resolver struct {
	scratchRoot string
}

func NewResolver(scratchRoot string) *Resolver {
	return &Resolver{scratchRoot: filepath.Clean(scratchRoot)}
}

// ScratchRoot returns the session scratch directory.
func (r *Resolver) ScratchRoot() string {
	return r.scratchRoot
}

// UnsavedRoot is where caches for never-saved documents live.
func (r *Resolver) UnsavedRoot() string {
	return filepath.Join(r.scratchRoot, UnsavedDirName)
}

// Folder returns the cache folder for id.
func (r *Resolver) Folder(id Identity) string {
	if !id.Saved() {
		return filepath.Join(r.UnsavedRoot(), element(id.DocID)+FolderSuffix)
	}
	doc := ResolveAliased(id.DocPath)
	name := hiddenPrefix + Stem(doc) + "-" + element(id.ContextID) + FolderSuffix
	return filepath.Join(filepath.Dir(doc), name)
}

func (r *Resolver) Sidecar(id Identity) string {
	return filepath.Join(r.Folder(id), SidecarName)
}

func (r *Resolver) OutputAsset(id Identity, chunkID string) string {
	return filepath.Join(r.Folder(id), element(chunkID)+OutputExt)
}

// CompanionDir holds files referenced by the rendered output of chunkID.
func (r *Resolver) CompanionDir(id Identity, chunkID string) string {
	return filepath.Join(r.Folder(id), element(chunkID)+CompanionSuffix)
}

func (r *Resolver) Transcript(id Identity, chunkID string) string {
	return filepath.Join(r.Folder(id), element(chunkID)+TranscriptExt)
}

func (r *Resolver) LibDir(id Identity) string {
	return filepath.Join(r.Folder(id), LibDirName)
}

// LegacyNotebook is the single-file cached notebook that may sit next to a
// saved document (foo.Rmd -> foo.Rnb).
func LegacyNotebook(docPath string) string {
	doc := ResolveAliased(docPath)
	return filepath.Join(filepath.Dir(doc), Stem(doc)+LegacyExt)
}

// Stem is the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ResolveAliased expands a leading "~" to the user's home directory.
func ResolveAliased(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// EnsureFolder creates folder if needed and marks it hidden on platforms that
// have no dot-file convention. Failing to hide it is logged, not returned.
func EnsureFolder(folder string, logger *slog.Logger) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("ensure cache folder: %w", err)
	}
	nonfatal.Do(logger, "hide cache folder", func() error {
		return hideFolder(folder)
	}, "path", folder)
	return nil
}
