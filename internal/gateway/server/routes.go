package server

import (
	"net/http"

	"nbcache/internal/gateway/handler"
	"nbcache/internal/gateway/handler/rpc"
	"nbcache/internal/gateway/middleware"
	"nbcache/internal/notebook/assets"
)

type Handlers struct {
	Notebook *rpc.NotebookHandler
	Document *rpc.DocumentHandler
	Console  *rpc.ConsoleHandler
	Events   *handler.EventsHandler
	Assets   *assets.Server
}

func NewMux(h Handlers, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	// RPC Handlers
	for _, group := range [][]rpc.Route{h.Notebook.Routes(), h.Document.Routes(), h.Console.Routes()} {
		for _, route := range group {
			mux.Handle(route.Path, route.Handler)
		}
	}

	// Notifications and cached chunk assets
	mux.HandleFunc("GET /events", h.Events.HandleEventsWS)
	mux.Handle(h.Assets.Pattern(), h.Assets)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return middleware.CORS(allowedOrigins)(mux)
}
