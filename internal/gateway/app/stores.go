package app

import (
	"io"
	"log/slog"

	"nbcache/internal/gateway/config"
	"nbcache/internal/gateway/repository/document"
)

type gatewayStores struct {
	documents document.Store
	registry  *document.Registry
}

func initStores(cfg *config.Config, logger *slog.Logger) *gatewayStores {
	store := document.NewFromEnv(document.Options{
		PostgresDSN: cfg.DocumentStoreDSN,
		SQLitePath:  cfg.DocumentStoreSQLite,
		FilePath:    cfg.DocumentStorePath,
	}, logger)
	switch store.(type) {
	case *document.SQLStore:
		logger.Info("document store: sql")
	default:
		logger.Info("document store: file", "path", cfg.DocumentStorePath)
	}
	return &gatewayStores{
		documents: store,
		registry:  document.NewRegistry(store),
	}
}

func (s *gatewayStores) Close() error {
	if c, ok := s.documents.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
