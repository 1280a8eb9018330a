package console

import (
	"sync"
)

// Topic identifies a stream of console events.
type Topic int

const (
	TopicActiveConsole Topic = iota
	TopicPrompt
	TopicInput
	TopicOutput
	TopicError
)

func (t Topic) String() string {
	switch t {
	case TopicActiveConsole:
		return "active_console"
	case TopicPrompt:
		return "prompt"
	case TopicInput:
		return "input"
	case TopicOutput:
		return "output"
	case TopicError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseTopic maps the wire name of a topic back to its value.
func ParseTopic(s string) (Topic, bool) {
	for _, t := range []Topic{TopicActiveConsole, TopicPrompt, TopicInput, TopicOutput, TopicError} {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// Event is one piece of console activity. ConsoleID is set for
// TopicActiveConsole; Text carries the input, output or error text, or the
// text that activated the console.
type Event struct {
	Topic     Topic
	ConsoleID string
	Text      string
}

type Handler func(Event)

// Bus delivers console events to subscribers synchronously, in subscription
// order.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[Topic]map[int]Handler
	order    map[Topic][]int
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Topic]map[int]Handler),
		order:    make(map[Topic][]int),
	}
}

// Subscribe registers fn for topic until the returned handle is released.
func (b *Bus) Subscribe(topic Topic, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[int]Handler)
	}
	b.handlers[topic][id] = fn
	b.order[topic] = append(b.order[topic], id)
	return &Subscription{bus: b, topic: topic, id: id}
}

// Publish hands ev to every live subscriber of its topic. A subscription
// released by an earlier handler during the same Publish does not fire.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	ids := append([]int(nil), b.order[ev.Topic]...)
	b.mu.Unlock()

	for _, id := range ids {
		b.mu.Lock()
		fn, ok := b.handlers[ev.Topic][id]
		b.mu.Unlock()
		if ok {
			fn(ev)
		}
	}
}

// Subscribers counts live subscriptions on topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[topic])
}

func (b *Bus) remove(topic Topic, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers[topic], id)
	ids := b.order[topic]
	for i, v := range ids {
		if v == id {
			b.order[topic] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

// Subscription is a handle on one registered handler.
type Subscription struct {
	bus   *Bus
	topic Topic
	id    int
	once  sync.Once
}

// Unsubscribe releases the handler. Calling it again is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.bus.remove(s.topic, s.id)
	})
}
