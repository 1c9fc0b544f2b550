package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/git6keen/Levelset-sub001/internal/models"
	"github.com/git6keen/Levelset-sub001/internal/observability"
	"github.com/git6keen/Levelset-sub001/internal/relay"
	"github.com/git6keen/Levelset-sub001/internal/tools"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Server provides the HTTP API for levelset.
type Server struct {
	service *Service
	metrics *observability.Metrics
	logger  *slog.Logger
	addr    string
	server  *http.Server
}

// NewServer creates a new HTTP server. metrics may be nil.
func NewServer(service *Service, metrics *observability.Metrics, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		service: service,
		metrics: metrics,
		logger:  logger,
		addr:    addr,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)

	r.Route("/tools", func(r chi.Router) {
		r.Get("/", s.listTools)
		r.Get("/catalog", s.getCatalog)
		r.Post("/execute", s.executeTool)
	})

	r.Post("/chat/stream", s.streamChat)
	r.Get("/tasks", s.listTasks)
	r.Get("/audit", s.listAudit)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: chat streams stay open for as long as the model talks.
	}

	s.logger.Info("starting levelset daemon", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// observe logs each request and counts it by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.metrics != nil {
			s.metrics.HTTPRequest(r.Method, route, status)
		}
		s.logger.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.service.Health(r.Context())
	status := http.StatusOK
	if !health.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// --- Tool Handlers ---

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Tools())
}

func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.service.Catalog()))
}

type executeRequest struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// executeTool always answers 200; failures travel in the Result.
func (s *Server) executeTool(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusOK, tools.Failure(tools.CodeInvalidRequest, err.Error(), ""))
		return
	}

	res, err := s.service.ExecuteTool(r.Context(), req.Name, req.Args)
	if err != nil {
		writeJSON(w, http.StatusOK, tools.Failure(tools.CodeInvalidRequest, err.Error(), ""))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Chat Handlers ---

func (s *Server) streamChat(w http.ResponseWriter, r *http.Request) {
	var req relay.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, ErrEmptyMessage)
		return
	}

	sink, err := relay.NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := s.service.Stream(r.Context(), req, sink); err != nil {
		s.logger.Warn("chat stream ended with upstream error", "error", err)
	}
}

// --- Read-only Views ---

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.service.ListTasks(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Audit(queryInt(r, "limit")))
}

// --- Helpers ---

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return ErrInvalidJSON
	}
	return nil
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	var code string
	switch {
	case errors.Is(err, ErrInvalidJSON), errors.Is(err, ErrEmptyMessage):
		code = tools.CodeInvalidRequest
	default:
		code = tools.CodeInternalError
	}
	writeJSON(w, status, map[string]string{"code": code, "message": msg})
}
