package rpc

import (
	"context"
	"fmt"
	"strings"

	"connectrpc.com/connect"

	"nbcache/internal/notebook/console"
	"nbcache/internal/notebook/service"
)

const consoleService = "/nbcache.v1.ConsoleService/"

// ConsoleHandler receives console activity from the runtime that owns the
// consoles.
type ConsoleHandler struct {
	svc *service.Service
}

func NewConsoleHandler(svc *service.Service) *ConsoleHandler {
	return &ConsoleHandler{svc: svc}
}

func (h *ConsoleHandler) Routes() []Route {
	return []Route{
		unary(consoleService+"ConsoleEvent", h.ConsoleEvent),
		unary(consoleService+"GetConsoleState", h.GetConsoleState),
	}
}

func (h *ConsoleHandler) ConsoleEvent(ctx context.Context, req *connect.Request[ConsoleEventRequest]) (*connect.Response[Empty], error) {
	m := req.Msg
	topic, ok := console.ParseTopic(strings.TrimSpace(m.Topic))
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown console topic %q", m.Topic))
	}
	if err := h.svc.ConsoleEvent(ctx, console.Event{Topic: topic, ConsoleID: m.ConsoleID, Text: m.Text}); err != nil {
		return nil, toRPCError("console service", err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (h *ConsoleHandler) GetConsoleState(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[ConsoleStateResponse], error) {
	st, err := h.svc.ConsoleState(ctx)
	if err != nil {
		return nil, toRPCError("console service", err)
	}
	return connect.NewResponse(&ConsoleStateResponse{
		ActiveConsoleID: st.ActiveConsoleID,
		TargetDocID:     st.TargetDocID,
		TargetChunkID:   st.TargetChunkID,
		Connected:       st.Connected,
	}), nil
}
