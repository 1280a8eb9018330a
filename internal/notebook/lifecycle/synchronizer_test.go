package lifecycle

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbcache/internal/notebook/chunkdefs"
	"nbcache/internal/notebook/location"
	"nbcache/internal/notebook/rnb"
)

type docPaths map[string]string

func (d docPaths) Path(_ context.Context, docID string) (string, error) {
	p, ok := d[docID]
	if !ok {
		return "", errors.New("document not found")
	}
	return p, nil
}

type fixture struct {
	dir      string
	resolver *location.Resolver
	defs     *chunkdefs.Store
	docs     docPaths
	sync     *Synchronizer
}

func newFixture(t *testing.T, parser rnb.Parser) *fixture {
	t.Helper()
	dir := t.TempDir()
	resolver := location.NewResolver(filepath.Join(dir, "scratch"))
	defs := chunkdefs.NewStore(resolver, nil)
	docs := docPaths{}
	return &fixture{
		dir:      dir,
		resolver: resolver,
		defs:     defs,
		docs:     docs,
		sync: New(Config{
			Resolver:    resolver,
			Definitions: defs,
			Documents:   docs,
			Parser:      parser,
			ContextID:   "ctx",
		}),
	}
}

func (f *fixture) id(path, docID string) location.Identity {
	return location.Identity{DocPath: path, DocID: docID, ContextID: "ctx"}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// snapshot maps relative paths under root to file contents ("" for dirs).
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		rel, _ := filepath.Rel(root, path)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			out[rel] = ""
			return nil
		}
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		out[rel] = string(raw)
		return nil
	}))
	return out
}

func populate(t *testing.T, folder string) {
	t.Helper()
	writeFile(t, filepath.Join(folder, "chunks.json"), `{"chunk_definitions":[{"chunk_id":"a"}],"doc_write_time":1}`)
	writeFile(t, filepath.Join(folder, "a.html"), "<p>a</p>")
	writeFile(t, filepath.Join(folder, "a_files", "figure", "plot.png"), "PNG")
	writeFile(t, filepath.Join(folder, "b.csv"), "0,x\n")
	writeFile(t, filepath.Join(folder, "lib", "htmlwidgets", "htmlwidgets.js"), "js")
}

func TestRemovedStaleSavedDocumentDeletesCache(t *testing.T) {
	f := newFixture(t, nil)
	doc := filepath.Join(f.dir, "doc.Rmd")
	writeFile(t, doc, "# doc")
	id := f.id(doc, "D1")

	docTime := time.Now().Truncate(time.Second)
	require.NoError(t, os.Chtimes(doc, docTime, docTime))
	_, err := f.defs.Write(id, docTime.Add(-time.Minute).Unix(), []chunkdefs.Definition{{"chunk_id": "a"}})
	require.NoError(t, err)
	assert.False(t, f.sync.Fresh(id))

	f.sync.OnDocumentRemoved(context.Background(), "D1", doc)
	assert.NoDirExists(t, f.resolver.Folder(id))
}

func TestRemovedFreshSavedDocumentKeepsCache(t *testing.T) {
	f := newFixture(t, nil)
	doc := filepath.Join(f.dir, "doc.Rmd")
	writeFile(t, doc, "# doc")
	id := f.id(doc, "D1")

	docTime := time.Now().Truncate(time.Second)
	require.NoError(t, os.Chtimes(doc, docTime, docTime))
	_, err := f.defs.Write(id, docTime.Unix(), []chunkdefs.Definition{{"chunk_id": "a"}})
	require.NoError(t, err)
	assert.True(t, f.sync.Fresh(id))

	f.sync.OnDocumentRemoved(context.Background(), "D1", doc)
	assert.DirExists(t, f.resolver.Folder(id))
}

func TestRemovedUnsavedDocumentDeletesCache(t *testing.T) {
	f := newFixture(t, nil)
	id := f.id("", "D2")
	populate(t, f.resolver.Folder(id))

	f.sync.OnDocumentRemoved(context.Background(), "D2", "")
	assert.NoDirExists(t, f.resolver.Folder(id))

	// Removing again with nothing on disk is harmless.
	f.sync.OnDocumentRemoved(context.Background(), "D2", "")
}

func TestRenameUnsavedMovesCache(t *testing.T) {
	f := newFixture(t, nil)
	oldFolder := f.resolver.Folder(f.id("", "D1"))
	populate(t, oldFolder)
	want := snapshot(t, oldFolder)

	newPath := filepath.Join(f.dir, "proj", "saved.Rmd")
	f.sync.OnDocumentRenamed(context.Background(), "", Document{ID: "D1", Path: newPath})

	newFolder := f.resolver.Folder(f.id(newPath, "D1"))
	assert.Equal(t, want, snapshot(t, newFolder))
	assert.NoDirExists(t, oldFolder)
}

func TestRenameUnsavedFallsBackToCopy(t *testing.T) {
	f := newFixture(t, nil)
	f.sync.rename = func(string, string) error { return errors.New("cross-device link") }
	oldFolder := f.resolver.Folder(f.id("", "D1"))
	populate(t, oldFolder)
	want := snapshot(t, oldFolder)

	newPath := filepath.Join(f.dir, "saved.Rmd")
	f.sync.OnDocumentRenamed(context.Background(), "", Document{ID: "D1", Path: newPath})

	assert.Equal(t, want, snapshot(t, f.resolver.Folder(f.id(newPath, "D1"))))
	assert.NoDirExists(t, oldFolder)
}

func TestRenameSavedCopiesAndKeepsSource(t *testing.T) {
	f := newFixture(t, nil)
	oldPath := filepath.Join(f.dir, "old.Rmd")
	oldFolder := f.resolver.Folder(f.id(oldPath, "D1"))
	populate(t, oldFolder)
	want := snapshot(t, oldFolder)

	newPath := filepath.Join(f.dir, "new.Rmd")
	f.sync.OnDocumentRenamed(context.Background(), oldPath, Document{ID: "D1", Path: newPath})

	assert.Equal(t, want, snapshot(t, f.resolver.Folder(f.id(newPath, "D1"))))
	assert.Equal(t, want, snapshot(t, oldFolder))
}

func TestRenameDoesNotClobber(t *testing.T) {
	f := newFixture(t, nil)
	oldFolder := f.resolver.Folder(f.id("", "D1"))
	populate(t, oldFolder)

	newPath := filepath.Join(f.dir, "saved.Rmd")
	newFolder := f.resolver.Folder(f.id(newPath, "D1"))
	writeFile(t, filepath.Join(newFolder, "keep.html"), "mine")

	f.sync.OnDocumentRenamed(context.Background(), "", Document{ID: "D1", Path: newPath})
	assert.Equal(t, map[string]string{"keep.html": "mine"}, snapshot(t, newFolder))
	assert.DirExists(t, oldFolder)

	// No old cache: nothing to do.
	f.sync.OnDocumentRenamed(context.Background(), "", Document{ID: "D9", Path: filepath.Join(f.dir, "x.Rmd")})
	assert.NoDirExists(t, f.resolver.Folder(f.id(filepath.Join(f.dir, "x.Rmd"), "D9")))
}

func TestAddedImportsLegacyNotebook(t *testing.T) {
	var calls [][2]string
	parser := rnb.Func(func(_ context.Context, legacy, dest string) error {
		calls = append(calls, [2]string{legacy, dest})
		writeFile(t, filepath.Join(dest, "chunks.json"), `{"chunk_definitions":[],"doc_write_time":0}`)
		return nil
	})
	f := newFixture(t, parser)
	doc := filepath.Join(f.dir, "nb.Rmd")
	writeFile(t, doc, "# nb")
	writeFile(t, filepath.Join(f.dir, "nb.Rnb"), "<html/>")
	f.docs["D1"] = doc

	f.sync.OnDocumentAdded(context.Background(), "D1")
	require.Len(t, calls, 1)
	assert.Equal(t, filepath.Join(f.dir, "nb.Rnb"), calls[0][0])
	assert.Equal(t, f.resolver.Folder(f.id(doc, "D1")), calls[0][1])

	// The cache now exists, so a second add does not re-import.
	f.sync.OnDocumentAdded(context.Background(), "D1")
	assert.Len(t, calls, 1)
}

func TestAddedIgnoresOtherDocuments(t *testing.T) {
	called := false
	parser := rnb.Func(func(context.Context, string, string) error {
		called = true
		return nil
	})
	f := newFixture(t, parser)
	script := filepath.Join(f.dir, "script.R")
	writeFile(t, filepath.Join(f.dir, "script.Rnb"), "x")
	f.docs["R"] = script
	f.docs["U"] = ""

	f.sync.OnDocumentAdded(context.Background(), "R")
	f.sync.OnDocumentAdded(context.Background(), "U")
	f.sync.OnDocumentAdded(context.Background(), "unknown")
	assert.False(t, called)

	// Upper-case extensions are still source documents, but without a
	// legacy file there is nothing to import.
	f.docs["M"] = filepath.Join(f.dir, "other.RMD")
	f.sync.OnDocumentAdded(context.Background(), "M")
	assert.False(t, called)
}

func TestAddedParserFailureLeavesNoCache(t *testing.T) {
	parser := rnb.Func(func(_ context.Context, _, dest string) error {
		writeFile(t, filepath.Join(dest, "half.html"), "partial")
		return errors.New("corrupt notebook")
	})
	f := newFixture(t, parser)
	doc := filepath.Join(f.dir, "nb.Rmd")
	writeFile(t, filepath.Join(f.dir, "nb.Rnb"), "x")
	f.docs["D1"] = doc

	f.sync.OnDocumentAdded(context.Background(), "D1")
	assert.NoDirExists(t, f.resolver.Folder(f.id(doc, "D1")))
}

func TestPopulateFromLegacy(t *testing.T) {
	var dest string
	f := newFixture(t, rnb.Func(func(_ context.Context, _, d string) error {
		dest = d
		return errors.New("ignored")
	}))
	legacy := filepath.Join(f.dir, "report.Rnb")

	folder := f.sync.PopulateFromLegacy(context.Background(), legacy)
	assert.Equal(t, f.resolver.Folder(f.id(filepath.Join(f.dir, "report.Rmd"), "")), folder)
	assert.Equal(t, folder, dest)
}

func TestCopyTreePreservesContentAndTimes(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	populate(t, src)
	old := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(src, "a.html"), old, old))

	dst := filepath.Join(t.TempDir(), "dst")
	require.NoError(t, CopyTree(src, dst, nil))
	assert.Equal(t, snapshot(t, src), snapshot(t, dst))

	info, err := os.Stat(filepath.Join(dst, "a.html"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old))

	assert.Error(t, CopyTree(filepath.Join(t.TempDir(), "missing"), dst, nil))
}
