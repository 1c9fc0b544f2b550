package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown", "tool", "tasks.create")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, "tasks.create", record["tool"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	m.ObserveTool("tasks.create", "ok", 3*time.Millisecond)
	m.ObserveTool("tasks.create", "error", time.Millisecond)
	m.StreamStarted()
	m.FrameSent("text")
	m.FrameSent("text")
	m.HTTPRequest("POST", "/tools/execute", 200)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolExecutions.WithLabelValues("tasks.create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamSessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StreamFrames.WithLabelValues("text")))
	m.StreamEnded()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StreamSessions))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `levelset_tool_executions_total{status="ok",tool="tasks.create"} 1`)
	assert.Contains(t, rec.Body.String(), "levelset_http_requests_total")

	// Separate instances do not collide.
	assert.NotPanics(t, func() { NewMetrics() })
}
