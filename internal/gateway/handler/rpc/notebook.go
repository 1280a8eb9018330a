package rpc

import (
	"context"

	"connectrpc.com/connect"

	"nbcache/internal/notebook/service"
)

const notebookService = "/nbcache.v1.NotebookService/"

type NotebookHandler struct {
	svc *service.Service
}

func NewNotebookHandler(svc *service.Service) *NotebookHandler {
	return &NotebookHandler{svc: svc}
}

func (h *NotebookHandler) Routes() []Route {
	return []Route{
		unary(notebookService+"ExecuteInlineChunk", h.ExecuteInlineChunk),
		unary(notebookService+"RefreshChunkOutput", h.RefreshChunkOutput),
		unary(notebookService+"SetChunkConsole", h.SetChunkConsole),
		unary(notebookService+"ChunkExecCompleted", h.ChunkExecCompleted),
		unary(notebookService+"SetChunkDefs", h.SetChunkDefs),
		unary(notebookService+"GetChunkDefs", h.GetChunkDefs),
		unary(notebookService+"PopulateNotebookCache", h.PopulateNotebookCache),
	}
}

func (h *NotebookHandler) ExecuteInlineChunk(ctx context.Context, req *connect.Request[ExecuteInlineChunkRequest]) (*connect.Response[Empty], error) {
	m := req.Msg
	err := h.svc.ExecuteInlineChunk(ctx, service.ExecuteRequest{
		DocPath: m.DocPath,
		DocID:   m.DocID,
		ChunkID: m.ChunkID,
		Options: m.ChunkOptions,
		Content: m.Content,
	})
	if err != nil {
		return nil, toRPCError("notebook service", err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (h *NotebookHandler) RefreshChunkOutput(ctx context.Context, req *connect.Request[RefreshChunkOutputRequest]) (*connect.Response[Empty], error) {
	m := req.Msg
	err := h.svc.RefreshChunkOutput(ctx, service.RefreshRequest{
		DocPath:   m.DocPath,
		DocID:     m.DocID,
		ContextID: m.ContextID,
		RequestID: m.RequestID,
	})
	if err != nil {
		return nil, toRPCError("notebook service", err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (h *NotebookHandler) SetChunkConsole(ctx context.Context, req *connect.Request[ChunkRef]) (*connect.Response[Empty], error) {
	if err := h.svc.SetChunkConsole(ctx, req.Msg.DocID, req.Msg.ChunkID); err != nil {
		return nil, toRPCError("notebook service", err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (h *NotebookHandler) ChunkExecCompleted(ctx context.Context, req *connect.Request[ChunkRef]) (*connect.Response[Empty], error) {
	if err := h.svc.ChunkExecCompleted(ctx, req.Msg.DocID, req.Msg.ChunkID); err != nil {
		return nil, toRPCError("notebook service", err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (h *NotebookHandler) SetChunkDefs(ctx context.Context, req *connect.Request[SetChunkDefsRequest]) (*connect.Response[SetChunkDefsResponse], error) {
	m := req.Msg
	if m.DocWriteTime == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errDocWriteTimeRequired)
	}
	written, err := h.svc.SetChunkDefs(ctx, m.DocPath, m.DocID, *m.DocWriteTime, m.Definitions)
	if err != nil {
		return nil, toRPCError("notebook service", err)
	}
	return connect.NewResponse(&SetChunkDefsResponse{Written: written}), nil
}

func (h *NotebookHandler) GetChunkDefs(ctx context.Context, req *connect.Request[GetChunkDefsRequest]) (*connect.Response[GetChunkDefsResponse], error) {
	snap, err := h.svc.GetChunkDefs(ctx, req.Msg.DocPath, req.Msg.DocID)
	if err != nil {
		return nil, toRPCError("notebook service", err)
	}
	return connect.NewResponse(&GetChunkDefsResponse{
		Definitions:  snap.Definitions,
		DocWriteTime: snap.WriteTime,
		Exists:       snap.Exists,
	}), nil
}

func (h *NotebookHandler) PopulateNotebookCache(ctx context.Context, req *connect.Request[PopulateNotebookCacheRequest]) (*connect.Response[PopulateNotebookCacheResponse], error) {
	folder, err := h.svc.PopulateNotebookCache(ctx, req.Msg.Path)
	if err != nil {
		return nil, toRPCError("notebook service", err)
	}
	return connect.NewResponse(&PopulateNotebookCacheResponse{CacheFolder: folder}), nil
}
