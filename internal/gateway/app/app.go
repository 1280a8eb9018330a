package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	"nbcache/internal/gateway/config"
	"nbcache/internal/gateway/handler"
	"nbcache/internal/gateway/handler/rpc"
	"nbcache/internal/gateway/server"
	"nbcache/internal/notebook/assets"
	"nbcache/internal/notebook/engine"
	"nbcache/internal/notebook/events"
	"nbcache/internal/notebook/location"
	"nbcache/internal/notebook/rnb"
	"nbcache/internal/notebook/service"
	"nbcache/internal/notebook/taskqueue"
)

type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *server.Server
	handler http.Handler
	queue   *taskqueue.Queue
	svc     *service.Service
	hub     *events.Hub
	stores  *gatewayStores

	stopQueue context.CancelFunc
	queueDone chan struct{}
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(cfg, newLogger(cfg.Env))
}

// NewWithConfig wires every component and starts the sequential task queue.
// The HTTP server is started separately by Start or Serve.
func NewWithConfig(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Dependencies
	stores := initStores(cfg, logger)
	resolver := location.NewResolver(cfg.ScratchRoot)
	queue := taskqueue.New(logger)
	hub := events.NewHub(logger)

	var eng engine.Engine
	if c := engine.NewCommand(cfg.EngineCmd); c != nil {
		eng = c
	} else {
		logger.Warn("ENGINE_CMD not set; chunk execution will record an error")
	}
	var parser rnb.Parser
	if c := rnb.NewCommand(cfg.ParserCmd); c != nil {
		parser = c
	}

	svc := service.New(service.Config{
		Resolver:    resolver,
		Queue:       queue,
		Documents:   stores.registry,
		Engine:      eng,
		Parser:      parser,
		Publisher:   hub,
		ContextID:   cfg.ContextID,
		HeaderAsset: cfg.HeaderHTML,
		URLPrefix:   cfg.ChunkOutputPrefix,
		Logger:      logger,
	})

	// Routing & Server
	mux := server.NewMux(server.Handlers{
		Notebook: rpc.NewNotebookHandler(svc),
		Document: rpc.NewDocumentHandler(svc, stores.documents),
		Console:  rpc.NewConsoleHandler(svc),
		Events:   handler.NewEventsHandler(hub, cfg.AllowedOrigins, logger),
		Assets:   assets.NewServer(cfg.ChunkOutputPrefix, resolver, stores.registry, cfg.ContextID, logger),
	}, cfg.AllowedOrigins)

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:       cfg,
		logger:    logger,
		server:    server.New(cfg.Port, mux, logger),
		handler:   mux,
		queue:     queue,
		svc:       svc,
		hub:       hub,
		stores:    stores,
		stopQueue: cancel,
		queueDone: make(chan struct{}),
	}
	go func() {
		defer close(a.queueDone)
		_ = queue.Run(ctx)
	}()

	logger.Info("notebook cache ready",
		"scratch_root", cfg.ScratchRoot,
		"context_id", cfg.ContextID,
		"chunk_output_prefix", cfg.ChunkOutputPrefix,
	)
	return a, nil
}

// Handler is the fully routed HTTP handler, without the h2c wrapper.
func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Serve(ln net.Listener) error {
	return a.server.Serve(ln)
}

// Shutdown stops the server, lets queued work finish, then releases stores.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.svc.Close(ctx); cerr != nil {
		a.logger.Warn("close notebook service", "error", cerr)
	}
	if derr := a.queue.Drain(ctx); derr != nil {
		a.logger.Warn("drain task queue", "error", derr)
	}
	a.stopQueue()
	select {
	case <-a.queueDone:
	case <-ctx.Done():
	}
	if serr := a.stores.Close(); serr != nil && err == nil {
		err = serr
	}
	return err
}

func newLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_LEVEL")), "debug") {
		opts.Level = slog.LevelDebug
	}
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
