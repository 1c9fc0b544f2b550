// Package relay streams assistant output from an upstream chat-completions
// endpoint to a client as server-sent events, surfacing tool-call proposals
// as preview frames along the way.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Frame types.
const (
	FrameText     = "text"
	FrameToolCall = "toolcall"
	FrameError    = "error"
)

// Diagnostic codes carried by error frames.
const (
	CodeUpstreamUnavailable   = "upstream_unavailable"
	CodeUpstreamProtocolError = "upstream_protocol_error"
)

// Frame is one event sent to the client.
type Frame struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Name    string         `json:"name,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Preview bool           `json:"preview,omitempty"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
}

// MarshalJSON always emits args on tool-call frames, even when empty.
func (f Frame) MarshalJSON() ([]byte, error) {
	type plain Frame
	if f.Type != FrameToolCall {
		return json.Marshal(plain(f))
	}
	args := f.Args
	if args == nil {
		args = map[string]any{}
	}
	return json.Marshal(struct {
		plain
		Args map[string]any `json:"args"`
	}{plain(f), args})
}

// TextFrame carries a forwarded fragment of assistant text.
func TextFrame(text string) Frame {
	return Frame{Type: FrameText, Text: text}
}

// PreviewFrame carries a proposed tool call awaiting confirmation.
func PreviewFrame(name string, args map[string]any) Frame {
	if args == nil {
		args = map[string]any{}
	}
	return Frame{Type: FrameToolCall, Name: name, Args: args, Preview: true}
}

// ErrorFrame carries a diagnostic.
func ErrorFrame(code, message string) Frame {
	return Frame{Type: FrameError, Code: code, Message: message}
}

// Sink receives the encoded output of a stream session. Implementations need
// not be safe for concurrent use; the session serializes calls.
type Sink interface {
	// Send writes one data frame.
	Send(f Frame) error
	// Done writes the terminal marker.
	Done() error
	// Ping writes a heartbeat comment.
	Ping() error
}

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// SSEWriter is a Sink writing text/event-stream to an HTTP response.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter sets the event-stream headers and returns a writer. It fails
// before writing anything if w cannot flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Send writes a JSON data frame.
func (s *SSEWriter) Send(f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return s.write("data: " + string(payload) + "\n\n")
}

// Done writes the terminal marker.
func (s *SSEWriter) Done() error {
	return s.write("data: [DONE]\n\n")
}

// Ping writes a heartbeat comment line.
func (s *SSEWriter) Ping() error {
	return s.write(": ping\n\n")
}

func (s *SSEWriter) write(chunk string) error {
	if _, err := fmt.Fprint(s.w, chunk); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
