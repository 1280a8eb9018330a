package events

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkOutputWireShape(t *testing.T) {
	raw, err := json.Marshal(NewChunkOutput(ChunkOutput{
		ChunkID: "c1",
		DocID:   "D1",
		Console: []ConsoleLine{{Kind: 0, Text: "1+1"}, {Kind: 1, Text: "[1] 2\n"}},
	}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chunk_output","data":{"chunk_id":"c1","doc_id":"D1","console":[[0,"1+1"],[1,"[1] 2\n"]]}}`, string(raw))

	raw, err = json.Marshal(ChunkOutput{ChunkID: "c2", DocID: "D1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"chunk_id":"c2","doc_id":"D1"}`, string(raw))
}

func TestConsoleLineUnmarshal(t *testing.T) {
	var line ConsoleLine
	require.NoError(t, json.Unmarshal([]byte(`[3,"Error: boom"]`), &line))
	assert.Equal(t, ConsoleLine{Kind: 3, Text: "Error: boom"}, line)
	assert.Error(t, json.Unmarshal([]byte(`[3]`), &line))
}

func receive(t *testing.T, ch <-chan Envelope, n int) []Envelope {
	t.Helper()
	out := make([]Envelope, 0, n)
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "stream closed after %d envelopes", len(out))
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("received %d of %d envelopes", len(out), n)
		}
	}
	return out
}

func TestHubDeliversEverythingBeyondBuffer(t *testing.T) {
	hub := NewHub(nil)
	fast, cancelFast := hub.Subscribe(4)
	defer cancelFast()
	slow, cancelSlow := hub.Subscribe(1)
	defer cancelSlow()

	const n = 1000
	for i := 0; i < n; i++ {
		hub.Publish(NewChunkOutput(ChunkOutput{ChunkID: strconv.Itoa(i)}))
	}
	hub.Publish(NewChunkOutputFinished(ChunkOutputFinished{RequestID: "done"}))

	for _, ch := range []<-chan Envelope{slow, fast} {
		got := receive(t, ch, n+1)
		for i := 0; i < n; i++ {
			require.Equal(t, strconv.Itoa(i), got[i].Data.(ChunkOutput).ChunkID)
		}
		assert.Equal(t, TypeChunkOutputFinished, got[n].Type)
	}
}

func TestHubClosesLaggingSubscriber(t *testing.T) {
	hub := NewHub(nil)
	hub.maxPending = 8
	stuck, cancel := hub.Subscribe(1)

	for i := 0; hub.Subscribers() == 1 && i < 100000; i++ {
		hub.Publish(NewChunkOutput(ChunkOutput{ChunkID: "x"}))
	}
	require.Equal(t, 0, hub.Subscribers(), "lagging subscriber is dropped")

	closed := make(chan struct{})
	go func() {
		for range stuck {
		}
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("lagging subscriber channel was not closed")
	}

	cancel()
	cancel()
	hub.Publish(NewChunkOutputFinished(ChunkOutputFinished{}))
	assert.Equal(t, 0, hub.Subscribers())
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe(0)
	hub.Publish(NewChunkOutputFinished(ChunkOutputFinished{RequestID: "1"}))
	got := receive(t, ch, 1)
	assert.Equal(t, "1", got[0].Data.(ChunkOutputFinished).RequestID)

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Subscribers())
	require.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, 5*time.Second, 5*time.Millisecond)
}

func TestRecorderOfType(t *testing.T) {
	var rec Recorder
	Multi{&rec, nil}.Publish(NewChunkOutput(ChunkOutput{ChunkID: "a"}))
	rec.Publish(NewChunkOutputFinished(ChunkOutputFinished{}))

	assert.Len(t, rec.Events(), 2)
	assert.Len(t, rec.OfType(TypeChunkOutput), 1)
}
