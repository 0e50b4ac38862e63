// Package api serves the pipelib HTTP surface: pending release approvals, run
// history and metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server represents the API server.
type Server struct {
	Addr      string
	router    *chi.Mux
	server    *http.Server
	approvals *ApprovalBoard
	history   HistorySource
	metrics   http.Handler
	tokens    atomic.Pointer[map[string]string]
}

// Option configures a Server.
type Option func(*Server)

// WithApprovals serves the given approval board.
func WithApprovals(b *ApprovalBoard) Option { return func(s *Server) { s.approvals = b } }

// WithHistory serves run history.
func WithHistory(h HistorySource) Option { return func(s *Server) { s.history = h } }

// WithMetrics mounts a metrics handler at /metrics.
func WithMetrics(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// WithApproverTokens requires an X-Approver-Token header on approval decisions.
// The map is keyed by token and yields the approver identity.
func WithApproverTokens(tokens map[string]string) Option {
	return func(s *Server) { s.SetApproverTokens(tokens) }
}

// NewServer creates a new API server.
func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		Addr:   addr,
		router: chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.approvals == nil {
		s.approvals = NewApprovalBoard()
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Approvals returns the board backing the approval routes.
func (s *Server) Approvals() *ApprovalBoard { return s.approvals }

// SetApproverTokens replaces the approver token table. Requests already past
// the middleware keep the identity they resolved.
func (s *Server) SetApproverTokens(tokens map[string]string) {
	s.tokens.Store(&tokens)
}

func (s *Server) approverTokens() map[string]string {
	if t := s.tokens.Load(); t != nil {
		return *t
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/approvals", func(r chi.Router) {
		r.Get("/", s.handleListApprovals)
		r.Get("/{id}", s.handleGetApproval)
		r.Group(func(r chi.Router) {
			r.Use(ApproverMiddleware(s.approverTokens))
			r.Post("/{id}", s.handleDecide)
			r.Delete("/{id}", s.handleAbort)
		})
	})

	if s.history != nil {
		s.router.Get("/runs", s.handleListRuns)
	}
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Response represents a standard API response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Error writes an error response.
func (s *Server) Error(w http.ResponseWriter, _ *http.Request, code int, message string) {
	writeJSON(w, code, Response{Success: false, Error: message})
}

// Success writes a success response.
func (s *Server) Success(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, Response{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
