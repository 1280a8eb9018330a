package chunkoutput

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbcache/internal/notebook/events"
	"nbcache/internal/notebook/location"
)

func newTestCache(t *testing.T) (*Cache, *location.Resolver, location.Identity) {
	t.Helper()
	resolver := location.NewResolver(t.TempDir())
	id := location.Identity{DocID: "D1", ContextID: "ctx"}
	require.NoError(t, location.EnsureFolder(resolver.Folder(id), nil))
	return NewCache(resolver, "", nil), resolver, id
}

func writeAt(t *testing.T, path string, at time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, at, at))
}

func TestClassify(t *testing.T) {
	cache, resolver, id := newTestCache(t)
	now := time.Now().Truncate(time.Second)

	assert.Equal(t, KindNone, cache.Classify(id, "none"))

	writeAt(t, resolver.OutputAsset(id, "html"), now)
	assert.Equal(t, KindRendered, cache.Classify(id, "html"))

	writeAt(t, resolver.Transcript(id, "csv"), now)
	assert.Equal(t, KindConsole, cache.Classify(id, "csv"))
}

func TestClassifyPicksNewerWhenBothExist(t *testing.T) {
	cache, resolver, id := newTestCache(t)
	older := time.Now().Add(-time.Hour).Truncate(time.Second)
	newer := older.Add(10 * time.Minute)

	writeAt(t, resolver.OutputAsset(id, "a"), newer)
	writeAt(t, resolver.Transcript(id, "a"), older)
	assert.Equal(t, KindRendered, cache.Classify(id, "a"))

	writeAt(t, resolver.OutputAsset(id, "b"), older)
	writeAt(t, resolver.Transcript(id, "b"), newer)
	assert.Equal(t, KindConsole, cache.Classify(id, "b"))
}

func TestOutputEvent(t *testing.T) {
	cache, resolver, id := newTestCache(t)
	writeAt(t, resolver.OutputAsset(id, "plot"), time.Now())
	require.NoError(t, cache.AppendTranscript(id, "repl", Record{StreamInput, "1+1"}, true))
	require.NoError(t, cache.AppendTranscript(id, "repl", Record{StreamOutput, "[1] 2\n"}, false))

	out, err := cache.OutputEvent(id, "plot")
	require.NoError(t, err)
	assert.Equal(t, events.ChunkOutput{ChunkID: "plot", DocID: "D1", URL: "chunk_output/D1/plot.html"}, out)

	out, err = cache.OutputEvent(id, "repl")
	require.NoError(t, err)
	assert.Equal(t, []events.ConsoleLine{{Kind: 0, Text: "1+1"}, {Kind: 1, Text: "[1] 2\n"}}, out.Console)
	assert.Empty(t, out.URL)

	out, err = cache.OutputEvent(id, "missing")
	require.NoError(t, err)
	assert.Equal(t, events.ChunkOutput{ChunkID: "missing", DocID: "D1"}, out)
}

func TestAppendTranscriptCreatesFolderAndIgnoresEmptyText(t *testing.T) {
	resolver := location.NewResolver(t.TempDir())
	cache := NewCache(resolver, "assets", nil)
	id := location.Identity{DocID: "fresh", ContextID: "ctx"}

	require.NoError(t, cache.AppendTranscript(id, "c", Record{StreamOutput, ""}, true))
	assert.NoDirExists(t, resolver.Folder(id))

	require.NoError(t, cache.AppendTranscript(id, "c", Record{StreamOutput, "hi"}, true))
	assert.FileExists(t, resolver.Transcript(id, "c"))
	assert.Equal(t, "assets/fresh/c.html", cache.URL("fresh", "c"))
}

func TestRemoveRendered(t *testing.T) {
	cache, resolver, id := newTestCache(t)
	writeAt(t, resolver.OutputAsset(id, "a"), time.Now())

	require.NoError(t, cache.RemoveRendered(id, "a"))
	assert.NoFileExists(t, resolver.OutputAsset(id, "a"))
	require.NoError(t, cache.RemoveRendered(id, "a"))
}
