// Package chunkoutput reads and writes the per-chunk entries of a cache
// folder: rendered HTML output and console transcripts.
package chunkoutput

import (
	"fmt"
	"log/slog"
	"os"
	"path"

	"nbcache/internal/notebook/events"
	"nbcache/internal/notebook/location"
)

// Kind classifies what a chunk entry currently displays.
type Kind int

const (
	KindNone Kind = iota
	KindRendered
	KindConsole
)

func (k Kind) String() string {
	switch k {
	case KindRendered:
		return "rendered"
	case KindConsole:
		return "console"
	default:
		return "none"
	}
}

const DefaultURLPrefix = "chunk_output"

type Cache struct {
	resolver  *location.Resolver
	urlPrefix string
	logger    *slog.Logger
}

func NewCache(resolver *location.Resolver, urlPrefix string, logger *slog.Logger) *Cache {
	if urlPrefix == "" {
		urlPrefix = DefaultURLPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{resolver: resolver, urlPrefix: urlPrefix, logger: logger}
}

// Classify inspects the rendered asset and the transcript of chunkID. When
// both exist the more recently modified one wins; a tie goes to the transcript.
func (c *Cache) Classify(id location.Identity, chunkID string) Kind {
	output, outErr := os.Stat(c.resolver.OutputAsset(id, chunkID))
	console, conErr := os.Stat(c.resolver.Transcript(id, chunkID))
	hasOutput := outErr == nil && !output.IsDir()
	hasConsole := conErr == nil && !console.IsDir()

	switch {
	case hasOutput && hasConsole:
		if output.ModTime().After(console.ModTime()) {
			return KindRendered
		}
		return KindConsole
	case hasOutput:
		return KindRendered
	case hasConsole:
		return KindConsole
	default:
		return KindNone
	}
}

// URL is the client-visible address of the rendered output of chunkID.
func (c *Cache) URL(docID, chunkID string) string {
	return path.Join(c.urlPrefix, docID, chunkID+location.OutputExt)
}

// OutputEvent builds the chunk-output notification for chunkID. The returned
// payload is usable even when err is non-nil: a transcript that cannot be
// read yields an entry with no console lines.
func (c *Cache) OutputEvent(id location.Identity, chunkID string) (events.ChunkOutput, error) {
	out := events.ChunkOutput{ChunkID: chunkID, DocID: id.DocID}
	switch c.Classify(id, chunkID) {
	case KindRendered:
		out.URL = c.URL(id.DocID, chunkID)
	case KindConsole:
		records, err := c.ReadTranscript(id, chunkID)
		out.Console = ConsoleLines(records)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (c *Cache) ReadTranscript(id location.Identity, chunkID string) ([]Record, error) {
	return ReadTranscriptFile(c.resolver.Transcript(id, chunkID))
}

// AppendTranscript records one line of console activity for chunkID,
// creating the cache folder when needed. Empty text is ignored.
func (c *Cache) AppendTranscript(id location.Identity, chunkID string, rec Record, truncate bool) error {
	if rec.Text == "" {
		return nil
	}
	if err := location.EnsureFolder(c.resolver.Folder(id), c.logger); err != nil {
		return err
	}
	return AppendTranscriptFile(c.resolver.Transcript(id, chunkID), rec, truncate)
}

// RemoveRendered deletes the rendered asset of chunkID if present.
func (c *Cache) RemoveRendered(id location.Identity, chunkID string) error {
	if err := os.Remove(c.resolver.OutputAsset(id, chunkID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove chunk output: %w", err)
	}
	return nil
}

// ConsoleLines converts transcript records to their wire form.
func ConsoleLines(records []Record) []events.ConsoleLine {
	if records == nil {
		return nil
	}
	out := make([]events.ConsoleLine, 0, len(records))
	for _, r := range records {
		out = append(out, events.ConsoleLine{Kind: int(r.Kind), Text: r.Text})
	}
	return out
}
