package service

import (
	"context"

	"nbcache/internal/notebook/console"
)

// SetChunkConsole targets console capture at chunkID of docID.
func (s *Service) SetChunkConsole(ctx context.Context, docID, chunkID string) error {
	if err := checkID("doc_id", docID); err != nil {
		return err
	}
	if err := checkOptionalID("chunk_id", chunkID); err != nil {
		return err
	}
	return s.queue.Do(ctx, "set chunk console", func(context.Context) error {
		s.router.SetTarget(docID, chunkID)
		return nil
	})
}

// ConsoleEvent delivers one event from the console runtime to the bus.
func (s *Service) ConsoleEvent(ctx context.Context, ev console.Event) error {
	return s.queue.Do(ctx, "console event", func(context.Context) error {
		s.bus.Publish(ev)
		return nil
	})
}

// ConsoleState returns a snapshot of the console routing state.
func (s *Service) ConsoleState(ctx context.Context) (console.State, error) {
	var st console.State
	err := s.queue.Do(ctx, "console state", func(context.Context) error {
		st = s.router.State()
		return nil
	})
	return st, err
}
