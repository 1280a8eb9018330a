package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe(TopicOutput, func(ev Event) { got = append(got, "a:"+ev.Text) })
	bus.Subscribe(TopicOutput, func(ev Event) { got = append(got, "b:"+ev.Text) })
	bus.Subscribe(TopicError, func(ev Event) { got = append(got, "err:"+ev.Text) })

	bus.Publish(Event{Topic: TopicOutput, Text: "x"})
	assert.Equal(t, []string{"a:x", "b:x"}, got)
}

func TestBusSkipsHandlersReleasedMidPublish(t *testing.T) {
	bus := NewBus()
	var second *Subscription
	calls := 0
	bus.Subscribe(TopicPrompt, func(Event) { second.Unsubscribe() })
	second = bus.Subscribe(TopicPrompt, func(Event) { calls++ })

	bus.Publish(Event{Topic: TopicPrompt})
	assert.Zero(t, calls)
	assert.Equal(t, 1, bus.Subscribers(TopicPrompt))
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(TopicInput, func(Event) {})
	b := bus.Subscribe(TopicInput, func(Event) {})
	a.Unsubscribe()
	a.Unsubscribe()
	assert.Equal(t, 1, bus.Subscribers(TopicInput))
	b.Unsubscribe()
	assert.Zero(t, bus.Subscribers(TopicInput))

	var nilSub *Subscription
	nilSub.Unsubscribe()
}
