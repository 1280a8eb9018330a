package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"nbcache/internal/gateway/middleware"
	"nbcache/internal/notebook/events"
)

const (
	eventsWSWriteWait  = 10 * time.Second
	eventsWSPongWait   = 60 * time.Second
	eventsWSPingEvery  = (eventsWSPongWait * 9) / 10
	eventsWSBufferSize = 256
)

type eventsWSInbound struct {
	Type string `json:"type"`
}

// EventsHandler streams outbound notifications to websocket clients.
// Browser origins are checked against the same allow list as CORS.
type EventsHandler struct {
	hub      *events.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewEventsHandler(hub *events.Hub, allowedOrigins []string, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	origins := middleware.NewOrigins(allowedOrigins)
	return &EventsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return origins.Allows(r.Header.Get("Origin"))
			},
		},
		logger: logger,
	}
}

func (h *EventsHandler) HandleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("events ws upgrade rejected", "origin", r.Header.Get("Origin"), "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(eventsWSPongWait)); err != nil {
		h.logger.Warn("events ws set read deadline failed", "error", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsWSPongWait))
	})

	sub, unsubscribe := h.hub.Subscribe(eventsWSBufferSize)
	defer unsubscribe()

	pongs := make(chan struct{}, 1)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		// Closing the connection unblocks the read loop below.
		defer conn.Close()
		defer cancel()
		ticker := time.NewTicker(eventsWSPingEvery)
		defer ticker.Stop()

		write := func(v any) bool {
			if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
				return false
			}
			return conn.WriteJSON(v) == nil
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok || !write(ev) {
					return
				}
			case <-pongs:
				if !write(events.Envelope{Type: "pong"}) {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	h.logger.Debug("events ws connected", "remote", r.RemoteAddr)
	for {
		var in eventsWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			break
		}
		if strings.EqualFold(strings.TrimSpace(in.Type), "ping") {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}
	cancel()
	<-writerDone
	h.logger.Debug("events ws disconnected", "remote", r.RemoteAddr)
}
