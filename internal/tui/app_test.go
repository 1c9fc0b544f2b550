package tui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git6keen/Levelset-sub001/internal/relay"
	"github.com/git6keen/Levelset-sub001/internal/tools"
)

// fakeDaemon answers /tools/execute and records the calls it receives.
type fakeDaemon struct {
	mu    sync.Mutex
	calls []string
}

func (d *fakeDaemon) serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tools/execute":
			var req struct {
				Name string         `json:"name"`
				Args map[string]any `json:"args"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			d.mu.Lock()
			d.calls = append(d.calls, req.Name)
			d.mu.Unlock()
			res := tools.Success(map[string]any{"id": "t-1", "title": req.Args["title"]})
			if req.Name == "tasks.complete" {
				res = tools.Failure(tools.CodeTaskNotFound, "task not found", "")
			}
			_ = json.NewEncoder(w).Encode(res)
		case "/chat/stream":
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write([]byte(": ping\n\ndata: {\"type\":\"text\",\"text\":\"Done.\"}\n\ndata: [DONE]\n\n"))
		default:
			_, _ = w.Write([]byte("[]"))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (d *fakeDaemon) executed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestApp(t *testing.T, d *fakeDaemon) *App {
	t.Helper()
	a := New(d.serve(t).URL)
	a.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return a
}

// streamFrame delivers a frame as if it came from the active stream.
func streamFrame(a *App, f relay.Frame) {
	a.streaming = true
	a.Update(frameMsg{seq: a.streamSeq, frame: f})
}

func TestApp_PreviewConfirmExecutesOnce(t *testing.T) {
	d := &fakeDaemon{}
	a := newTestApp(t, d)

	streamFrame(a, relay.TextFrame("Adding it:\n"))
	streamFrame(a, relay.PreviewFrame("tasks.create", map[string]any{"title": "Mop kitchen"}))
	assert.Equal(t, 1, a.previews.Pending())
	assert.Empty(t, d.executed(), "a preview never executes by itself")

	_, cmd := a.Update(key("y"))
	require.NotNil(t, cmd)
	assert.Equal(t, "", a.input.Value(), "y is a decision, not input")

	msg := cmd()
	result, ok := msg.(toolResultMsg)
	require.True(t, ok, "expected toolResultMsg, got %T", msg)
	assert.True(t, result.result.OK)
	a.Update(result)

	assert.Equal(t, []string{"tasks.create"}, d.executed())
	assert.Equal(t, 0, a.previews.Pending())
	assert.Contains(t, a.renderTranscript(), "✓ tasks.create")
}

func TestApp_PreviewDismissAndFailure(t *testing.T) {
	d := &fakeDaemon{}
	a := newTestApp(t, d)

	streamFrame(a, relay.PreviewFrame("stats.get", nil))
	streamFrame(a, relay.PreviewFrame("tasks.complete", map[string]any{"id": "nope"}))
	require.Equal(t, 2, a.previews.Pending())

	_, cmd := a.Update(key("n"))
	assert.Nil(t, cmd)
	current, ok := a.previews.Current()
	require.True(t, ok)
	assert.Equal(t, "tasks.complete", current.Name)

	_, cmd = a.Update(key("y"))
	a.Update(cmd())
	assert.Equal(t, []string{"tasks.complete"}, d.executed())
	assert.Contains(t, a.renderTranscript(), "task_not_found")
	assert.Equal(t, 0, a.previews.Pending())
}

func TestApp_TypingYGoesToInputWithoutPreviews(t *testing.T) {
	a := newTestApp(t, &fakeDaemon{})

	a.Update(key("y"))
	a.Update(key("o"))
	assert.Equal(t, "yo", a.input.Value())
}

func TestApp_StaleFramesAreIgnored(t *testing.T) {
	a := newTestApp(t, &fakeDaemon{})

	streamFrame(a, relay.TextFrame("first"))
	a.Update(key("esc"))
	assert.False(t, a.streaming)

	a.Update(frameMsg{seq: a.streamSeq - 1, frame: relay.TextFrame(" late")})
	out := a.renderTranscript()
	assert.Contains(t, out, "first")
	assert.NotContains(t, out, "late")
}

func TestApp_SendStreamsReply(t *testing.T) {
	a := newTestApp(t, &fakeDaemon{})

	for _, r := range "hello" {
		a.Update(key(string(r)))
	}
	_, cmd := a.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.True(t, a.streaming)

	// Drain the stream the way the program loop would.
	for i := 0; i < 10 && cmd != nil; i++ {
		msg := cmd()
		if msg == nil {
			break
		}
		_, cmd = a.Update(msg)
		if _, done := msg.(streamDoneMsg); done {
			break
		}
	}

	assert.False(t, a.streaming)
	out := a.renderTranscript()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "Done.")
	assert.False(t, strings.Contains(out, "ping"), "heartbeats are not shown")
}

func TestPreviewSummary(t *testing.T) {
	p := Preview{Name: "tasks.create", Args: map[string]any{"xp": 25, "title": "Mop"}}
	assert.Equal(t, `tasks.create(title="Mop", xp=25)`, p.Summary())
}
