package service

import (
	"context"
	"errors"
	"fmt"

	"nbcache/internal/notebook/chunkdefs"
	"nbcache/internal/notebook/chunkoutput"
	"nbcache/internal/notebook/engine"
	"nbcache/internal/notebook/events"
	"nbcache/internal/notebook/location"
	"nbcache/internal/notebook/nonfatal"
)

var errNoEngine = errors.New("no evaluation engine configured")

type ExecuteRequest struct {
	DocPath string
	DocID   string
	ChunkID string
	Options string
	Content string
}

// ExecuteInlineChunk schedules execution of one chunk and returns at once.
// When the engine finishes, a chunk-output notification is published.
func (s *Service) ExecuteInlineChunk(ctx context.Context, req ExecuteRequest) error {
	if err := checkID("doc_id", req.DocID); err != nil {
		return err
	}
	if err := checkID("chunk_id", req.ChunkID); err != nil {
		return err
	}
	s.queue.Defer("execute chunk "+req.ChunkID, func(ctx context.Context) error {
		return s.executeChunk(ctx, req)
	})
	return nil
}

func (s *Service) executeChunk(ctx context.Context, req ExecuteRequest) error {
	id := s.identity(req.DocPath, req.DocID)
	if err := location.EnsureFolder(s.resolver.Folder(id), s.logger); err != nil {
		return err
	}
	libDir := s.resolver.LibDir(id)
	if err := ensureDir(libDir); err != nil {
		return err
	}

	err := errNoEngine
	if s.engine != nil {
		err = s.engine.ExecuteChunk(ctx, engine.Request{
			Options:     req.Options,
			Content:     req.Content,
			LibDir:      libDir,
			HeaderAsset: s.headerAsset,
			OutputAsset: s.resolver.OutputAsset(id, req.ChunkID),
		})
	}
	if err == nil {
		s.publishOutput(id, req.ChunkID)
		return nil
	}

	// The chunk's output becomes the error message as a fresh transcript.
	renderErr, rendered := engine.AsRenderError(err)
	msg := err.Error()
	if rendered {
		msg = renderErr.Message
		nonfatal.Do(s.logger, "remove rendered chunk output", func() error {
			return s.cache.RemoveRendered(id, req.ChunkID)
		}, "doc_id", req.DocID, "chunk_id", req.ChunkID)
	}
	rec := chunkoutput.Record{Kind: chunkoutput.StreamError, Text: msg + "\n"}
	nonfatal.Do(s.logger, "write chunk error transcript", func() error {
		return s.cache.AppendTranscript(id, req.ChunkID, rec, true)
	}, "doc_id", req.DocID, "chunk_id", req.ChunkID)

	if !rendered {
		return fmt.Errorf("execute chunk %s: %w", req.ChunkID, err)
	}
	s.publishOutput(id, req.ChunkID)
	return nil
}

// ChunkExecCompleted publishes the output of a chunk that an external engine
// finished rendering on its own.
func (s *Service) ChunkExecCompleted(ctx context.Context, docID, chunkID string) error {
	if err := checkID("doc_id", docID); err != nil {
		return err
	}
	if err := checkID("chunk_id", chunkID); err != nil {
		return err
	}
	return s.queue.Do(ctx, "chunk exec completed", func(ctx context.Context) error {
		s.publishOutput(s.identity(s.lookup(ctx, docID), docID), chunkID)
		return nil
	})
}

func (s *Service) publishOutput(id location.Identity, chunkID string) {
	out, err := s.cache.OutputEvent(id, chunkID)
	if err != nil {
		nonfatal.Log(s.logger, "read chunk output", err, "doc_id", id.DocID, "chunk_id", chunkID)
	}
	s.publish(events.NewChunkOutput(out))
}

type RefreshRequest struct {
	DocPath string
	DocID   string
	// ContextID overrides the session context id when set.
	ContextID string
	RequestID string
}

// RefreshChunkOutput reads the chunk definitions and schedules a replay that
// publishes one chunk-output notification per chunk followed by a single
// replay-finished notification. A sidecar that cannot be read is logged and
// nothing is replayed.
func (s *Service) RefreshChunkOutput(ctx context.Context, req RefreshRequest) error {
	if err := checkID("doc_id", req.DocID); err != nil {
		return err
	}
	if err := checkOptionalID("context_id", req.ContextID); err != nil {
		return err
	}
	id := location.Identity{
		DocPath:   req.DocPath,
		DocID:     req.DocID,
		ContextID: firstNonEmpty(req.ContextID, s.contextID),
	}
	return s.queue.Do(ctx, "refresh chunk output", func(context.Context) error {
		snap, err := s.defs.Read(id)
		if err != nil {
			nonfatal.Log(s.logger, "read chunk definitions", err, "doc_id", req.DocID, "path", req.DocPath)
			return nil
		}
		s.queue.Defer("replay chunk output", func(context.Context) error {
			s.replay(id, snap.Definitions, req.RequestID)
			return nil
		})
		return nil
	})
}

func (s *Service) replay(id location.Identity, defs []chunkdefs.Definition, requestID string) {
	for _, def := range defs {
		chunkID := def.ChunkID()
		if chunkID == "" || location.CheckID("chunk_id", chunkID) != nil {
			continue
		}
		s.publishOutput(id, chunkID)
	}
	s.publish(events.NewChunkOutputFinished(events.ChunkOutputFinished{
		Path:      id.DocPath,
		RequestID: requestID,
	}))
}

// SetChunkDefs persists the chunk definitions of a document, removing the
// outputs of chunks that disappeared. It reports whether the sidecar changed.
func (s *Service) SetChunkDefs(ctx context.Context, docPath, docID string, docWriteTime int64, defs []chunkdefs.Definition) (bool, error) {
	if err := checkID("doc_id", docID); err != nil {
		return false, err
	}
	if err := chunkdefs.Check(defs); err != nil {
		return false, err
	}
	var written bool
	err := s.queue.Do(ctx, "set chunk defs", func(context.Context) error {
		var err error
		written, err = s.defs.Write(s.identity(docPath, docID), docWriteTime, defs)
		return err
	})
	return written, err
}

func (s *Service) GetChunkDefs(ctx context.Context, docPath, docID string) (chunkdefs.Snapshot, error) {
	if err := checkID("doc_id", docID); err != nil {
		return chunkdefs.Snapshot{}, err
	}
	var snap chunkdefs.Snapshot
	err := s.queue.Do(ctx, "get chunk defs", func(context.Context) error {
		var err error
		snap, err = s.defs.Read(s.identity(docPath, docID))
		return err
	})
	return snap, err
}
