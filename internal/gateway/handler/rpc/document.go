package rpc

import (
	"context"

	"connectrpc.com/connect"

	"nbcache/internal/gateway/repository/document"
	"nbcache/internal/notebook/service"
)

const documentService = "/nbcache.v1.DocumentService/"

type DocumentHandler struct {
	svc   *service.Service
	store document.Store
}

func NewDocumentHandler(svc *service.Service, store document.Store) *DocumentHandler {
	return &DocumentHandler{svc: svc, store: store}
}

func (h *DocumentHandler) Routes() []Route {
	return []Route{
		unary(documentService+"DocumentAdded", h.DocumentAdded),
		unary(documentService+"DocumentRemoved", h.DocumentRemoved),
		unary(documentService+"DocumentRenamed", h.DocumentRenamed),
		unary(documentService+"GetDocument", h.GetDocument),
	}
}

func (h *DocumentHandler) DocumentAdded(ctx context.Context, req *connect.Request[DocumentRequest]) (*connect.Response[Empty], error) {
	if err := h.svc.DocumentAdded(ctx, req.Msg.DocID, req.Msg.Path); err != nil {
		return nil, toRPCError("document service", err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (h *DocumentHandler) DocumentRemoved(ctx context.Context, req *connect.Request[DocumentRequest]) (*connect.Response[Empty], error) {
	if err := h.svc.DocumentRemoved(ctx, req.Msg.DocID, req.Msg.Path); err != nil {
		return nil, toRPCError("document service", err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (h *DocumentHandler) DocumentRenamed(ctx context.Context, req *connect.Request[DocumentRequest]) (*connect.Response[Empty], error) {
	if err := h.svc.DocumentRenamed(ctx, req.Msg.DocID, req.Msg.Path); err != nil {
		return nil, toRPCError("document service", err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (h *DocumentHandler) GetDocument(ctx context.Context, req *connect.Request[GetDocumentRequest]) (*connect.Response[DocumentRequest], error) {
	doc, err := h.store.Get(ctx, req.Msg.DocID)
	if err != nil {
		return nil, toRPCError("document service", err)
	}
	return connect.NewResponse(&DocumentRequest{DocID: doc.ID, Path: doc.Path}), nil
}
