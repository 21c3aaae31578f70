// Package protocol implements the length-framed JSON wire format between
// the dispatcher (parent) and each worker subprocess, per spec.md §4.4.
// Every message is a JSON object with a `method` and `params`, preceded by
// a 4-byte big-endian length header — the same shape LSP-style stdio
// protocols use, kept here on stdlib bufio/encoding/json since no example
// in the retrieval pack ships a matching small RPC/codec library (see
// DESIGN.md "Built on stdlib").
package protocol

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Method names every message that can cross the wire.
type Method string

const (
	MethodInit       Method = "init"
	MethodRun        Method = "run"
	MethodStop       Method = "stop"
	MethodReady      Method = "ready"
	MethodTestBegin  Method = "testBegin"
	MethodStdout     Method = "stdout"
	MethodStderr     Method = "stderr"
	MethodTestEnd    Method = "testEnd"
	MethodDone       Method = "done"
	MethodFatalError Method = "fatalError"
)

// Envelope is the wire shape of every message: a method name plus its
// params, deferred-decoded via json.RawMessage so a reader only pays to
// parse params it recognizes.
type Envelope struct {
	Method Method          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Writer frames and writes Envelopes to an underlying stream. Safe for
// concurrent use by multiple goroutines (a worker's stdout/stderr capture
// pumps and its message loop all write to the same IPC stream).
type Writer struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewWriter wraps w for framed writes.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write encodes method/params as one framed Envelope.
func (fw *Writer) Write(method Method, params interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("protocol: marshal params for %s: %w", method, err)
	}
	env := Envelope{Method: method, Params: body}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("protocol: marshal envelope for %s: %w", method, err)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := fw.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := fw.w.Write(payload); err != nil {
		return err
	}
	return fw.w.Flush()
}

// Reader reads framed Envelopes from an underlying stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for framed reads.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read blocks for the next Envelope, returning io.EOF when the peer closes
// the stream cleanly.
func (fr *Reader) Read() (Envelope, error) {
	var header [4]byte
	if _, err := io.ReadFull(fr.r, header[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(header[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: unmarshal envelope: %w", err)
	}
	return env, nil
}
