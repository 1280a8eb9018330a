// Package service exposes the notebook chunk cache operations. Every
// operation runs on one taskqueue.Queue, so cache folders are only ever
// touched from a single sequential path.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"nbcache/internal/notebook/chunkdefs"
	"nbcache/internal/notebook/chunkoutput"
	"nbcache/internal/notebook/console"
	"nbcache/internal/notebook/engine"
	"nbcache/internal/notebook/events"
	"nbcache/internal/notebook/lifecycle"
	"nbcache/internal/notebook/location"
	"nbcache/internal/notebook/rnb"
	"nbcache/internal/notebook/taskqueue"
)

// Documents is the document registry as seen by the cache: it maps ids to
// saved paths ("" for unsaved documents) and is kept current by the
// document lifecycle operations.
type Documents interface {
	Path(ctx context.Context, docID string) (string, error)
	Register(ctx context.Context, docID, path string) error
	Forget(ctx context.Context, docID string) error
}

type Config struct {
	Resolver  *location.Resolver
	Queue     *taskqueue.Queue
	Documents Documents
	// Engine may be nil, in which case every execution records an error.
	Engine engine.Engine
	Parser rnb.Parser
	Bus    *console.Bus
	// Publisher receives every outbound notification.
	Publisher   events.Publisher
	ContextID   string
	HeaderAsset string
	URLPrefix   string
	SourceExt   string
	Logger      *slog.Logger
}

type Service struct {
	queue       *taskqueue.Queue
	resolver    *location.Resolver
	docs        Documents
	engine      engine.Engine
	bus         *console.Bus
	publisher   events.Publisher
	contextID   string
	headerAsset string
	logger      *slog.Logger

	defs   *chunkdefs.Store
	cache  *chunkoutput.Cache
	router *console.Router
	sync   *lifecycle.Synchronizer
}

func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bus := cfg.Bus
	if bus == nil {
		bus = console.NewBus()
	}
	s := &Service{
		queue:       cfg.Queue,
		resolver:    cfg.Resolver,
		docs:        cfg.Documents,
		engine:      cfg.Engine,
		bus:         bus,
		publisher:   cfg.Publisher,
		contextID:   cfg.ContextID,
		headerAsset: cfg.HeaderAsset,
		logger:      logger,
	}
	s.defs = chunkdefs.NewStore(cfg.Resolver, logger)
	s.cache = chunkoutput.NewCache(cfg.Resolver, cfg.URLPrefix, logger)
	s.router = console.NewRouter(bus, s, cfg.Publisher, logger)
	s.sync = lifecycle.New(lifecycle.Config{
		Resolver:    cfg.Resolver,
		Definitions: s.defs,
		Documents:   cfg.Documents,
		Parser:      cfg.Parser,
		ContextID:   cfg.ContextID,
		SourceExt:   cfg.SourceExt,
		Logger:      logger,
	})
	return s
}

// ContextID is the session context id used for saved-document cache folders.
func (s *Service) ContextID() string { return s.contextID }

// Close detaches the console router from the bus.
func (s *Service) Close(ctx context.Context) error {
	return s.queue.Do(ctx, "close router", func(context.Context) error {
		s.router.Close()
		return nil
	})
}

func (s *Service) identity(docPath, docID string) location.Identity {
	return location.Identity{DocPath: docPath, DocID: docID, ContextID: s.contextID}
}

// lookup resolves the saved path of docID. Unknown documents are treated as
// unsaved.
func (s *Service) lookup(ctx context.Context, docID string) string {
	path, err := s.docs.Path(ctx, docID)
	if err != nil {
		s.logger.Debug("document path lookup failed", "doc_id", docID, "error", err)
		return ""
	}
	return path
}

func (s *Service) publish(ev events.Envelope) {
	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
}

// WriteConsole appends a console record to a chunk transcript. The router
// calls it from inside console bus delivery, which already runs on the queue.
func (s *Service) WriteConsole(docID, chunkID string, rec chunkoutput.Record, truncate bool) error {
	id := s.identity(s.lookup(context.Background(), docID), docID)
	return s.cache.AppendTranscript(id, chunkID, rec, truncate)
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

// checkID is required plus the constraint that value names a single file
// inside a cache folder.
func checkID(name, value string) error {
	if err := required(name, value); err != nil {
		return err
	}
	return location.CheckID(name, value)
}

// checkOptionalID validates value only when it is set.
func checkOptionalID(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return location.CheckID(name, value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("ensure directory: %w", err)
	}
	return nil
}

var _ console.TranscriptWriter = (*Service)(nil)
