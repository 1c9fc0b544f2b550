// Package controlplane provides the HTTP API and service layer for levelset.
package controlplane

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/git6keen/Levelset-sub001/internal/audit"
	"github.com/git6keen/Levelset-sub001/internal/models"
	"github.com/git6keen/Levelset-sub001/internal/relay"
	"github.com/git6keen/Levelset-sub001/internal/store"
	"github.com/git6keen/Levelset-sub001/internal/tools"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0-dev"

// DefaultTaskLimit caps GET /tasks when no limit is given.
const DefaultTaskLimit = 50

// Service provides the control plane business logic.
type Service struct {
	store    *store.Store
	executor *tools.Executor
	relay    *relay.Relay
	pdr      *audit.PDRWriter
}

// NewService creates a new control plane service. The executor is expected
// to record its own invocations in pdr; the service records chat sessions.
func NewService(st *store.Store, executor *tools.Executor, rl *relay.Relay, pdr *audit.PDRWriter) *Service {
	return &Service{
		store:    st,
		executor: executor,
		relay:    rl,
		pdr:      pdr,
	}
}

// --- Tool Operations ---

// Tools returns the registered tool definitions in registration order.
func (s *Service) Tools() []tools.Definition {
	return s.executor.Registry().List()
}

// Catalog returns the one-line-per-tool text shown to the model.
func (s *Service) Catalog() string {
	return s.executor.Registry().Catalog()
}

// ExecuteTool validates and runs one tool call.
func (s *Service) ExecuteTool(ctx context.Context, name string, args map[string]any) (tools.Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return tools.Result{}, ErrEmptyToolName
	}
	return s.executor.Execute(ctx, name, args), nil
}

// --- Chat Operations ---

// Stream relays one chat turn to sink.
func (s *Service) Stream(ctx context.Context, req relay.ChatRequest, sink relay.Sink) error {
	if strings.TrimSpace(req.Message) == "" {
		return ErrEmptyMessage
	}

	err := s.relay.Stream(ctx, req, sink)
	outcome, code := "ok", ""
	if err != nil {
		outcome, code = "error", relay.CodeUpstreamUnavailable
	}
	s.pdr.Record("chat.stream", map[string]string{"role": req.Role, "message_len": fmt.Sprintf("%d", len(req.Message))}, outcome, code)
	return err
}

// --- Read-only Views ---

// ListTasks returns up to limit active tasks.
func (s *Service) ListTasks(ctx context.Context, limit int) ([]models.Task, error) {
	if limit <= 0 {
		limit = DefaultTaskLimit
	}
	return s.store.ListTasks(ctx, true, limit)
}

// Audit returns up to limit decision records, newest first.
func (s *Service) Audit(limit int) []audit.PDREntry {
	return s.pdr.Recent(limit)
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK            bool           `json:"ok"`
	DB            string         `json:"db"`
	SchemaVersion int            `json:"schema_version,omitempty"`
	Version       string         `json:"version"`
	Time          string         `json:"time"`
	Tools         int            `json:"tools"`
	Counts        map[string]int `json:"counts,omitempty"`
}

// Health checks the database and reports row counts.
func (s *Service) Health(ctx context.Context) HealthResponse {
	health := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Tools:   s.executor.Registry().Count(),
	}

	if err := s.store.Ping(ctx); err != nil {
		health.OK = false
		health.DB = "error: " + err.Error()
		return health
	}
	if v, err := s.store.SchemaVersion(ctx); err == nil {
		health.SchemaVersion = v
	}
	if counts, err := s.store.Counts(ctx); err == nil {
		health.Counts = counts
	}
	return health
}
