package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL points at a local LM Studio server.
	DefaultBaseURL = "http://127.0.0.1:1234/v1"
	// DefaultHeartbeat is the interval between heartbeat comments.
	DefaultHeartbeat = 15 * time.Second

	readBufferSize = 4096
	maxErrorBody   = 2048
)

// Config configures the upstream connection.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Heartbeat   time.Duration
}

// ChatRequest is one user turn.
type ChatRequest struct {
	Message string `json:"message"`
	Role    string `json:"role,omitempty"`
	Context string `json:"context,omitempty"`
}

// Observer receives stream lifecycle events.
type Observer interface {
	StreamStarted()
	StreamEnded()
	FrameSent(frameType string)
}

// Relay opens one upstream streaming request per chat turn and relays it to
// a Sink. It is safe for concurrent use; each call to Stream has its own
// session state.
type Relay struct {
	cfg      Config
	client   *http.Client
	prompt   PromptBuilder
	observer Observer
	logger   *slog.Logger
}

// New creates a relay. A nil client uses a client without a timeout, since
// streams are long-lived.
func New(cfg Config, prompt PromptBuilder, client *http.Client, logger *slog.Logger) *Relay {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{cfg: cfg, client: client, prompt: prompt, logger: logger}
}

// SetObserver sets the metrics observer.
func (r *Relay) SetObserver(o Observer) {
	r.observer = o
}

// Stream relays one chat turn to sink.
//
// Text fragments are sent as soon as they are decoded. Lines that hold a
// tool call additionally produce a preview frame. If the upstream cannot be
// reached or answers with a non-success status, exactly one error frame is
// sent, followed by the terminal marker. When ctx is cancelled the upstream
// body is closed and nothing further is written to sink; the upstream
// request itself is not cancelled.
//
// The returned error describes an upstream failure that was already
// reported to the client, and is meant for logging.
func (r *Relay) Stream(ctx context.Context, req ChatRequest, sink Sink) error {
	sess := newSession(sink, r.observer)
	logger := r.logger.With("session_id", sess.id)

	if r.observer != nil {
		r.observer.StreamStarted()
		defer r.observer.StreamEnded()
	}

	stopHeartbeat := sess.startHeartbeat(r.cfg.Heartbeat)
	defer stopHeartbeat()

	stopWatch := context.AfterFunc(ctx, sess.cancel)
	defer stopWatch()

	resp, err := r.open(context.WithoutCancel(ctx), req)
	if err != nil {
		if sess.cancelled() {
			return nil
		}
		logger.Warn("upstream unavailable", "err", err)
		sess.fail(CodeUpstreamUnavailable, "assistant is unavailable: "+err.Error())
		sess.finish()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		logger.Warn("upstream rejected request", "status", resp.StatusCode)
		sess.fail(CodeUpstreamUnavailable, err.Error())
		sess.finish()
		return err
	}

	// Closing the body unblocks a pending read once the client goes away.
	stopClose := context.AfterFunc(ctx, func() {
		sess.cancel()
		resp.Body.Close()
	})
	defer stopClose()

	p := &pipeline{sess: sess, detector: NewDetector(), logger: logger}
	dec := NewLineDecoder()
	buf := make([]byte, readBufferSize)
	var readErr error

read:
	for !sess.cancelled() {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, line := range dec.Feed(buf[:n]) {
				if p.line(line) {
					break read
				}
			}
		}
		if errors.Is(err, io.EOF) {
			for _, line := range dec.Flush() {
				if p.line(line) {
					break
				}
			}
			break
		}
		if err != nil {
			if !sess.cancelled() {
				readErr = fmt.Errorf("read upstream: %w", err)
			}
			break
		}
	}

	if sess.cancelled() {
		logger.Debug("client disconnected")
		return nil
	}

	for _, call := range p.detector.Flush() {
		sess.send(PreviewFrame(call.Name, call.Args))
	}
	if readErr != nil {
		logger.Warn("upstream stream interrupted", "err", readErr)
		sess.fail(CodeUpstreamUnavailable, readErr.Error())
	}
	if p.malformed > 0 {
		logger.Debug("skipped malformed upstream frames", "count", p.malformed)
	}
	sess.finish()
	return readErr
}

// open sends the upstream request.
func (r *Relay) open(ctx context.Context, req ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(openai.ChatCompletionRequest{
		Model:       r.cfg.Model,
		Messages:    r.prompt.Messages(req.Message, req.Role, req.Context),
		Stream:      true,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(r.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if r.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	return resp, nil
}

// pipeline turns upstream lines into frames.
type pipeline struct {
	sess      *session
	detector  *Detector
	logger    *slog.Logger
	malformed int
}

// line handles one upstream line and reports whether the stream has ended.
func (p *pipeline) line(line string) bool {
	switch {
	case strings.TrimSpace(line) == "":
		return false
	case strings.HasPrefix(line, ":"):
		// SSE comment, e.g. an upstream keep-alive.
		return false
	case strings.HasPrefix(line, "data:"):
		payload := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		if strings.TrimSpace(payload) == "[DONE]" {
			return true
		}
		p.payload(payload, false)
	case strings.HasPrefix(line, "event:"), strings.HasPrefix(line, "id:"), strings.HasPrefix(line, "retry:"):
		return false
	default:
		if strings.TrimSpace(line) == "[DONE]" {
			return true
		}
		p.payload(line, true)
	}
	return false
}

// payload forwards the text of one upstream payload. Raw lines that are not
// JSON keep their line break so the client sees the original layout. Only
// malformed data: frames are skipped; a raw line that fails to parse, or
// that is itself a tool call, is forwarded as text.
func (p *pipeline) payload(payload string, raw bool) {
	trimmed := strings.TrimSpace(payload)
	if raw {
		if _, ok := ParseToolCall(trimmed); ok {
			p.forward(payload + "\n")
			return
		}
	}
	if strings.HasPrefix(trimmed, "{") {
		var doc map[string]any
		err := json.Unmarshal([]byte(trimmed), &doc)
		switch {
		case err == nil:
			p.forward(ExtractText(doc))
			return
		case !raw:
			p.malformed++
			p.logger.Debug("skipping malformed upstream frame", "code", CodeUpstreamProtocolError, "err", err)
			return
		}
	}
	if raw {
		payload += "\n"
	}
	p.forward(payload)
}

func (p *pipeline) forward(text string) {
	if text == "" {
		return
	}
	p.sess.send(TextFrame(text))
	for _, call := range p.detector.Feed(text) {
		p.sess.send(PreviewFrame(call.Name, call.Args))
	}
}

// session is the per-stream state shared by the reader and the heartbeat.
type session struct {
	id       string
	sink     Sink
	observer Observer

	stopped atomic.Bool

	mu       sync.Mutex
	failed   bool
	finished bool
}

func newSession(sink Sink, observer Observer) *session {
	return &session{id: uuid.New().String(), sink: sink, observer: observer}
}

func (s *session) cancel() {
	s.stopped.Store(true)
}

func (s *session) cancelled() bool {
	return s.stopped.Load()
}

// write serializes access to the sink and drops output once the client is
// gone or the terminal marker is out. A terminal write marks the session
// finished under the same lock.
func (s *session) write(frameType string, terminal bool, fn func() error) {
	if s.cancelled() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.cancelled() {
		return
	}
	if terminal {
		s.finished = true
	}
	if err := fn(); err != nil {
		s.cancel()
		return
	}
	if s.observer != nil {
		s.observer.FrameSent(frameType)
	}
}

func (s *session) send(f Frame) {
	s.write(f.Type, false, func() error { return s.sink.Send(f) })
}

// fail sends the single diagnostic frame of a session.
func (s *session) fail(code, message string) {
	s.mu.Lock()
	already := s.failed
	s.failed = true
	s.mu.Unlock()
	if already {
		return
	}
	s.send(ErrorFrame(code, message))
}

// finish sends the terminal marker once.
func (s *session) finish() {
	s.write("done", true, s.sink.Done)
}

func (s *session) ping() {
	s.write("ping", false, s.sink.Ping)
}

// startHeartbeat pings the sink every interval until the returned stop
// function is called. stop waits for the heartbeat goroutine to exit.
func (s *session) startHeartbeat(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.ping()
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
