// Package chunkdefs persists the ordered chunk definitions of a document in
// the sidecar file of its cache folder and removes cached files of chunks
// that disappear from the document.
package chunkdefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"nbcache/internal/notebook/location"
	"nbcache/internal/notebook/nonfatal"
)

const (
	fieldDefinitions = "chunk_definitions"
	fieldWriteTime   = "doc_write_time"
)

var (
	// ErrParse marks a sidecar that is not a JSON object.
	ErrParse = errors.New("chunk definitions: malformed sidecar")
	// ErrSchema marks a well-formed sidecar missing a required field.
	ErrSchema = errors.New("chunk definitions: missing required field")
)

// Snapshot is the decoded content of a sidecar file.
type Snapshot struct {
	// WriteTime is the document modification time (unix seconds) the
	// definitions were computed against.
	WriteTime   int64
	Definitions []Definition
	// Exists is false when no sidecar was found.
	Exists bool
}

type sidecarFile struct {
	ChunkDefinitions []Definition `json:"chunk_definitions"`
	DocWriteTime     int64        `json:"doc_write_time"`
}

type Store struct {
	resolver *location.Resolver
	logger   *slog.Logger
}

func NewStore(resolver *location.Resolver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{resolver: resolver, logger: logger}
}

// Exists reports whether id has a sidecar file.
func (s *Store) Exists(id location.Identity) bool {
	_, err := os.Stat(s.resolver.Sidecar(id))
	return err == nil
}

// Read loads the sidecar of id. A missing sidecar yields an empty snapshot
// and no error.
func (s *Store) Read(id location.Identity) (Snapshot, error) {
	path := s.resolver.Sidecar(id)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{Definitions: []Definition{}}, nil
		}
		return Snapshot{}, fmt.Errorf("read chunk definitions: %w", err)
	}
	return decodeSidecar(raw)
}

func decodeSidecar(raw []byte) (Snapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Snapshot{}, ErrParse
	}

	defsRaw, ok := fields[fieldDefinitions]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSchema, fieldDefinitions)
	}
	var defs []Definition
	if err := json.Unmarshal(defsRaw, &defs); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %s is not an array of objects", ErrSchema, fieldDefinitions)
	}
	if defs == nil {
		defs = []Definition{}
	}

	timeRaw, ok := fields[fieldWriteTime]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSchema, fieldWriteTime)
	}
	var writeTime int64
	if err := json.Unmarshal(timeRaw, &writeTime); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %s is not an integer", ErrSchema, fieldWriteTime)
	}

	return Snapshot{WriteTime: writeTime, Definitions: defs, Exists: true}, nil
}

// Write replaces the definitions of id with newDefs, recorded against
// docWriteTime. It reports whether the sidecar was written: identical
// definitions, or nothing old and nothing new, leave the disk untouched.
// Files of chunks that disappeared are removed on a best-effort basis.
func (s *Store) Write(id location.Identity, docWriteTime int64, newDefs []Definition) (bool, error) {
	if newDefs == nil {
		newDefs = []Definition{}
	}
	if err := Check(newDefs); err != nil {
		return false, err
	}
	sidecar := s.resolver.Sidecar(id)
	if !s.Exists(id) && len(newDefs) == 0 {
		return false, nil
	}

	old, err := s.Read(id)
	switch {
	case err != nil:
		// An unreadable sidecar is overwritten without cleanup.
		nonfatal.Log(s.logger, "read previous chunk definitions", err, "path", sidecar)
	case old.Exists && Equal(old.Definitions, newDefs):
		return false, nil
	default:
		s.removeChunks(id, StaleIDs(old.Definitions, newDefs))
	}

	if err := location.EnsureFolder(filepath.Dir(sidecar), s.logger); err != nil {
		return false, err
	}
	raw, err := json.Marshal(sidecarFile{ChunkDefinitions: newDefs, DocWriteTime: docWriteTime})
	if err != nil {
		return false, fmt.Errorf("encode chunk definitions: %w", err)
	}
	if err := writeAtomic(sidecar, raw); err != nil {
		return false, fmt.Errorf("write chunk definitions: %w", err)
	}
	return true, nil
}

// RemoveChunk deletes every cached file of chunkID. Each deletion is
// independent and a missing file is not an error.
func (s *Store) RemoveChunk(id location.Identity, chunkID string) {
	s.removeChunks(id, []string{chunkID})
}

func (s *Store) removeChunks(id location.Identity, chunkIDs []string) {
	for _, chunkID := range chunkIDs {
		if err := location.CheckID("chunk_id", chunkID); err != nil {
			s.logger.Warn("skipping chunk cleanup", "error", err)
			continue
		}
		for _, path := range []string{
			s.resolver.OutputAsset(id, chunkID),
			s.resolver.CompanionDir(id, chunkID),
			s.resolver.Transcript(id, chunkID),
		} {
			nonfatal.Do(s.logger, "remove stale chunk file", func() error {
				return os.RemoveAll(path)
			}, "chunk_id", chunkID, "path", path)
		}
	}
}

func writeAtomic(path string, raw []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
