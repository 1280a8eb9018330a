package rpc

import (
	"errors"

	"nbcache/internal/notebook/chunkdefs"
)

type Empty struct{}

var errDocWriteTimeRequired = errors.New("doc_write_time is required")

type ExecuteInlineChunkRequest struct {
	DocPath      string `json:"doc_path"`
	DocID        string `json:"doc_id"`
	ChunkID      string `json:"chunk_id"`
	ChunkOptions string `json:"chunk_options"`
	Content      string `json:"content"`
}

type RefreshChunkOutputRequest struct {
	DocPath   string `json:"doc_path"`
	DocID     string `json:"doc_id"`
	ContextID string `json:"context_id,omitempty"`
	RequestID string `json:"request_id"`
}

type ChunkRef struct {
	DocID   string `json:"doc_id"`
	ChunkID string `json:"chunk_id"`
}

type SetChunkDefsRequest struct {
	DocPath      string                 `json:"doc_path"`
	DocID        string                 `json:"doc_id"`
	DocWriteTime *int64                 `json:"doc_write_time"`
	Definitions  []chunkdefs.Definition `json:"chunk_definitions"`
}

type SetChunkDefsResponse struct {
	Written bool `json:"written"`
}

type GetChunkDefsRequest struct {
	DocPath string `json:"doc_path"`
	DocID   string `json:"doc_id"`
}

type GetChunkDefsResponse struct {
	Definitions  []chunkdefs.Definition `json:"chunk_definitions"`
	DocWriteTime int64                  `json:"doc_write_time"`
	Exists       bool                   `json:"exists"`
}

type PopulateNotebookCacheRequest struct {
	Path string `json:"path"`
}

type PopulateNotebookCacheResponse struct {
	CacheFolder string `json:"cache_folder"`
}

type DocumentRequest struct {
	DocID string `json:"doc_id"`
	Path  string `json:"path"`
}

type GetDocumentRequest struct {
	DocID string `json:"doc_id"`
}

type ConsoleEventRequest struct {
	Topic     string `json:"topic"`
	ConsoleID string `json:"console_id,omitempty"`
	Text      string `json:"text,omitempty"`
}

type ConsoleStateResponse struct {
	ActiveConsoleID string `json:"active_console_id"`
	TargetDocID     string `json:"target_doc_id"`
	TargetChunkID   string `json:"target_chunk_id"`
	Connected       bool   `json:"connected"`
}
