package events

import (
	"log/slog"
	"sync"
)

const (
	defaultSubscriberBuffer = 64
	defaultMaxPending       = 1 << 16
)

// Hub broadcasts envelopes to every subscriber without blocking the
// publisher. Each subscriber has its own queue drained into its channel, so
// a slow reader delays only itself and sees every envelope in order. A
// subscriber whose queue reaches the pending limit is closed; its reader
// observes the closed channel and must reconnect and refresh.
type Hub struct {
	mu         sync.Mutex
	nextID     int
	subs       map[int]*subscriber
	maxPending int
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[int]*subscriber), maxPending: defaultMaxPending, logger: logger}
}

func (h *Hub) Publish(ev Envelope) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		if sub.push(ev, h.maxPending) {
			continue
		}
		h.logger.Warn("event subscriber lagging, closing stream", "subscriber", id, "type", ev.Type, "pending", h.maxPending)
		delete(h.subs, id)
		sub.close()
	}
}

// Subscribe registers a subscriber. The returned channel is closed after the
// cancel func is called or when the hub gives up on a lagging reader. Cancel
// is safe to call more than once.
func (h *Hub) Subscribe(buffer int) (<-chan Envelope, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	sub := &subscriber{
		out:  make(chan Envelope, buffer),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go sub.run()

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if h.subs[id] == sub {
			delete(h.subs, id)
		}
		h.mu.Unlock()
		sub.close()
	}
	return sub.out, cancel
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

type subscriber struct {
	out  chan Envelope
	wake chan struct{}
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	pending []Envelope
}

// push queues ev and reports false when the queue is already at limit.
func (s *subscriber) push(ev Envelope, limit int) bool {
	s.mu.Lock()
	if limit > 0 && len(s.pending) >= limit {
		s.mu.Unlock()
		return false
	}
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// run moves queued envelopes into out until the subscriber is closed.
func (s *subscriber) run() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()
		for _, ev := range batch {
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}
	}
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Recorder keeps every published envelope in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Publish(ev Envelope) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.events...)
}

// OfType filters the recorded envelopes by type.
func (r *Recorder) OfType(t Type) []Envelope {
	var out []Envelope
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Multi publishes to several publishers in order.
type Multi []Publisher

func (m Multi) Publish(ev Envelope) {
	for _, p := range m {
		if p != nil {
			p.Publish(ev)
		}
	}
}
