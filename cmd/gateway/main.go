// Command gateway serves the notebook chunk cache: RPCs, the event stream
// and cached chunk assets.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nbcache/internal/gateway/app"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway: %v", err)
	}
	log.Println("Server exiting")
}

func run() error {
	a, err := app.New()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.Start() }()

	select {
	case err := <-serveErr:
		if err != nil {
			shutdown(a)
			return err
		}
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	return shutdown(a)
}

func shutdown(a *app.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
