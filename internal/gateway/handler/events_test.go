package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbcache/internal/notebook/events"
)

func dialEvents(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	return websocket.DefaultDialer.Dial(url, header)
}

func TestEventsWSHonoursAllowedOrigins(t *testing.T) {
	hub := events.NewHub(nil)
	h := NewEventsHandler(hub, []string{"http://app.test"}, nil)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleEventsWS))
	defer srv.Close()

	_, resp, err := dialEvents(t, srv, "http://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.Subscribers())

	conn, _, err := dialEvents(t, srv, "http://app.test")
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(events.NewChunkOutputFinished(events.ChunkOutputFinished{RequestID: "r1"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var got struct {
		Type events.Type       `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, events.TypeChunkOutputFinished, got.Type)
	assert.Equal(t, "r1", got.Data["request_id"])
}

func TestEventsWSWithoutAllowListAcceptsAnyOrigin(t *testing.T) {
	hub := events.NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(NewEventsHandler(hub, nil, nil).HandleEventsWS))
	defer srv.Close()

	conn, _, err := dialEvents(t, srv, "http://anything.test")
	require.NoError(t, err)
	conn.Close()
}
