// Package events defines the notifications sent to the client and the hub
// that fans them out to connected event streams.
package events

import (
	"encoding/json"
	"fmt"
)

type Type string

const (
	TypeChunkOutput         Type = "chunk_output"
	TypeChunkConsoleOutput  Type = "chunk_console_output"
	TypeChunkOutputFinished Type = "chunk_output_finished"
)

// Envelope is one frame on the event stream.
type Envelope struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// Publisher accepts outbound notifications. Implementations must not block
// the caller for long: publishing happens on the sequential cache path.
type Publisher interface {
	Publish(ev Envelope)
}

// ConsoleLine is one transcript record, encoded as [kind, text].
type ConsoleLine struct {
	Kind int
	Text string
}

func (l ConsoleLine) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{l.Kind, l.Text})
}

func (l *ConsoleLine) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("console line: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &l.Kind); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &l.Text)
}

// ChunkOutput tells the client what a chunk displays. It always carries the
// ids, even when the chunk has nothing to show, so the client can drop it.
type ChunkOutput struct {
	ChunkID string        `json:"chunk_id"`
	DocID   string        `json:"doc_id"`
	URL     string        `json:"url,omitempty"`
	Console []ConsoleLine `json:"console,omitempty"`
}

// ChunkConsoleOutput is a single line of live console activity for a chunk.
type ChunkConsoleOutput struct {
	DocID   string `json:"doc_id"`
	ChunkID string `json:"chunk_id"`
	Kind    int    `json:"kind"`
	Text    string `json:"text"`
}

// ChunkOutputFinished terminates a replay started by a refresh request.
type ChunkOutputFinished struct {
	Path      string `json:"path"`
	RequestID string `json:"request_id"`
}

func NewChunkOutput(out ChunkOutput) Envelope {
	return Envelope{Type: TypeChunkOutput, Data: out}
}

func NewChunkConsoleOutput(out ChunkConsoleOutput) Envelope {
	return Envelope{Type: TypeChunkConsoleOutput, Data: out}
}

func NewChunkOutputFinished(out ChunkOutputFinished) Envelope {
	return Envelope{Type: TypeChunkOutputFinished, Data: out}
}
