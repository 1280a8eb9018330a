// Package console routes live console activity into the transcript of the
// chunk that is currently executing in the console.
//
// Two pieces of state drive routing: the id of the console that is active
// and the chunk that the client last targeted. When they match, the router
// is Connected: it holds subscriptions on the input, output, error and
// prompt streams and writes every event to the target chunk's transcript.
// Any other console becoming active, or a prompt signalling the end of a
// command, disconnects it.
package console

import (
	"log/slog"

	"nbcache/internal/notebook/chunkoutput"
	"nbcache/internal/notebook/events"
	"nbcache/internal/notebook/nonfatal"
)

// State is the routing context of one session. It is owned by a Router and
// only mutated on the sequential cache path.
type State struct {
	ActiveConsoleID string
	TargetDocID     string
	TargetChunkID   string
	Connected       bool
}

// TranscriptWriter stores one console record for a chunk. truncate starts a
// fresh transcript.
type TranscriptWriter interface {
	WriteConsole(docID, chunkID string, rec chunkoutput.Record, truncate bool) error
}

type Router struct {
	state     State
	bus       *Bus
	writer    TranscriptWriter
	publisher events.Publisher
	logger    *slog.Logger

	activeSub *Subscription
	ioSubs    []*Subscription
}

// NewRouter subscribes to active-console changes on bus for the lifetime of
// the router.
func NewRouter(bus *Bus, writer TranscriptWriter, publisher events.Publisher, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{bus: bus, writer: writer, publisher: publisher, logger: logger}
	r.activeSub = bus.Subscribe(TopicActiveConsole, func(ev Event) {
		r.ActiveConsoleChanged(ev.ConsoleID, ev.Text)
	})
	return r
}

// State returns a copy of the routing state.
func (r *Router) State() State {
	return r.state
}

// SetTarget records the chunk whose console activity should be captured.
func (r *Router) SetTarget(docID, chunkID string) {
	r.state.TargetDocID = docID
	r.state.TargetChunkID = chunkID
	if r.targetIsActive() {
		if !r.state.Connected {
			r.connect()
		}
		return
	}
	if r.state.Connected {
		r.disconnect()
	}
}

// ActiveConsoleChanged handles a console becoming active. seed is the text
// that activated it; it is recorded as input so it is not lost.
func (r *Router) ActiveConsoleChanged(consoleID, seed string) {
	r.state.ActiveConsoleID = consoleID
	if r.targetIsActive() {
		if r.state.Connected {
			return
		}
		r.connect()
		r.record(chunkoutput.StreamInput, seed, true)
		return
	}
	if r.state.Connected {
		r.disconnect()
	}
}

// PromptShown ends capture: a prompt means the command finished.
func (r *Router) PromptShown() {
	if r.state.Connected {
		r.disconnect()
	}
}

// Close releases every subscription held by the router.
func (r *Router) Close() {
	r.disconnect()
	r.activeSub.Unsubscribe()
}

func (r *Router) targetIsActive() bool {
	return r.state.TargetChunkID != "" && r.state.ActiveConsoleID == r.state.TargetChunkID
}

func (r *Router) connect() {
	r.ioSubs = []*Subscription{
		r.bus.Subscribe(TopicPrompt, func(Event) { r.PromptShown() }),
		r.bus.Subscribe(TopicInput, func(ev Event) { r.record(chunkoutput.StreamInput, ev.Text, false) }),
		r.bus.Subscribe(TopicOutput, func(ev Event) { r.record(chunkoutput.StreamOutput, ev.Text, false) }),
		r.bus.Subscribe(TopicError, func(ev Event) { r.record(chunkoutput.StreamError, ev.Text, false) }),
	}
	r.state.Connected = true
	r.logger.Debug("chunk console connected", "doc_id", r.state.TargetDocID, "chunk_id", r.state.TargetChunkID)
}

func (r *Router) disconnect() {
	for _, sub := range r.ioSubs {
		sub.Unsubscribe()
	}
	r.ioSubs = nil
	if r.state.Connected {
		r.logger.Debug("chunk console disconnected", "doc_id", r.state.TargetDocID, "chunk_id", r.state.TargetChunkID)
	}
	r.state.Connected = false
}

func (r *Router) record(kind chunkoutput.StreamKind, text string, truncate bool) {
	if text == "" {
		return
	}
	docID, chunkID := r.state.TargetDocID, r.state.TargetChunkID
	rec := chunkoutput.Record{Kind: kind, Text: text}
	nonfatal.Do(r.logger, "write chunk console transcript", func() error {
		return r.writer.WriteConsole(docID, chunkID, rec, truncate)
	}, "doc_id", docID, "chunk_id", chunkID)

	if r.publisher != nil {
		r.publisher.Publish(events.NewChunkConsoleOutput(events.ChunkConsoleOutput{
			DocID:   docID,
			ChunkID: chunkID,
			Kind:    int(kind),
			Text:    text,
		}))
	}
}
