package chunkoutput

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// StreamKind tags a transcript record. The numeric values are part of the
// transcript file format and of the wire events.
type StreamKind int

const (
	StreamInput  StreamKind = 0
	StreamOutput StreamKind = 1
	StreamError  StreamKind = 3
)

func (k StreamKind) String() string {
	switch k {
	case StreamInput:
		return "input"
	case StreamOutput:
		return "output"
	case StreamError:
		return "error"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Record is one line of console activity attributed to a chunk.
type Record struct {
	Kind StreamKind
	Text string
}

// EncodeRecord renders rec as one comma-delimited line including the
// trailing newline. Embedded commas, quotes and newlines are quoted.
func EncodeRecord(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{strconv.Itoa(int(rec.Kind)), rec.Text}); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeTranscript parses transcript content. Records with fewer than two
// fields and records that cannot be parsed are skipped. An unknown kind
// decodes as StreamOutput.
func DecodeTranscript(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var out []Record
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			continue
		}
		if err != nil {
			return out, err
		}
		if len(fields) < 2 {
			continue
		}
		kind, convErr := strconv.Atoi(strings.TrimSpace(fields[0]))
		if convErr != nil {
			kind = int(StreamOutput)
		}
		out = append(out, Record{Kind: StreamKind(kind), Text: fields[1]})
	}
}

// ReadTranscriptFile decodes the transcript at path. A missing file is an
// error; callers replaying a batch log it and move on.
func ReadTranscriptFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	defer f.Close()
	return DecodeTranscript(f)
}

// AppendTranscriptFile writes rec to path. truncate starts a fresh
// transcript; otherwise the record is appended.
func AppendTranscriptFile(path string, rec Record, truncate bool) error {
	line, err := EncodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encode transcript record: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY
	if truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append transcript: %w", err)
	}
	return f.Close()
}
