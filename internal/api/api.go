package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/joescharf/codelens/internal/apperr"
	"github.com/joescharf/codelens/internal/auth"
	"github.com/joescharf/codelens/internal/eventlog"
	"github.com/joescharf/codelens/internal/health"
	"github.com/joescharf/codelens/internal/rag"
	"github.com/joescharf/codelens/internal/review"
)

// Options configures the HTTP surface.
type Options struct {
	Version        string
	Provider       string
	Model          string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// MaxUploadBytes bounds multipart document uploads.
	MaxUploadBytes int64
	CORSOrigins    []string
}

// Server provides the REST API handlers.
type Server struct {
	reviewer *review.Orchestrator
	rag      *rag.Service
	auth     *auth.Service
	events   *eventlog.Log
	health   *health.Checker
	logger   *slog.Logger
	opts     Options
	started  time.Time
}

// NewServer creates a new API server. rag may be nil, in which case the
// conversation and document routes answer 503. A nil checker reports healthy.
func NewServer(reviewer *review.Orchestrator, ragSvc *rag.Service, authSvc *auth.Service, events *eventlog.Log, checker *health.Checker, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if checker == nil {
		checker = health.NewChecker(0)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 2 << 20
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{
		reviewer: reviewer,
		rag:      ragSvc,
		auth:     authSvc,
		events:   events,
		health:   checker,
		logger:   logger,
		opts:     opts,
		started:  time.Now(),
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthCheck)

	mux.Handle("POST /review", s.optionalAuth(http.HandlerFunc(s.analyze)))
	mux.Handle("POST /api/v1/review/analyze", s.optionalAuth(http.HandlerFunc(s.analyze)))
	mux.HandleFunc("GET /supported-languages", s.supportedLanguages)
	mux.HandleFunc("GET /api/v1/review/supported-languages", s.supportedLanguages)
	mux.HandleFunc("GET /api/v1/review/status", s.reviewStatus)

	mux.Handle("POST /api/v1/conversation/query", s.optionalAuth(http.HandlerFunc(s.query)))

	mux.Handle("POST /api/v1/documents", s.requireAuth(http.HandlerFunc(s.uploadDocument)))
	mux.Handle("GET /api/v1/documents", s.requireAuth(http.HandlerFunc(s.listDocuments)))
	mux.Handle("DELETE /api/v1/documents/{filename}", s.requireAuth(http.HandlerFunc(s.deleteDocument)))

	mux.HandleFunc("POST /api/v1/auth/signup", s.signup)
	mux.HandleFunc("POST /api/v1/auth/login", s.login)
	mux.HandleFunc("POST /api/v1/auth/refresh", s.refresh)
	mux.Handle("POST /api/v1/auth/logout", s.requireAuth(http.HandlerFunc(s.logout)))
	mux.Handle("GET /api/v1/auth/profile", s.requireAuth(http.HandlerFunc(s.profile)))
	mux.Handle("GET /api/v1/auth/verify", s.requireAuth(http.HandlerFunc(s.verify)))
	mux.Handle("GET /api/v1/auth/admin/stats", s.requireAdmin(http.HandlerFunc(s.adminStats)))

	mux.Handle("GET /debug/status", s.requireAdmin(http.HandlerFunc(s.debugStatus)))
	mux.Handle("GET /debug/logs", s.requireAdmin(http.HandlerFunc(s.debugLogs)))

	var h http.Handler = mux
	h = s.timeoutMiddleware(h)
	h = s.bodyLimitMiddleware(h)
	h = s.loggingMiddleware(h)
	h = requestIDMiddleware(h)
	h = s.corsMiddleware(h)
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps err to its HTTP status and records it in the errors log.
// Internal errors are logged in full but reported generically.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) && apperr.KindOf(err) == apperr.KindInternal {
		err = apperr.Wrap(apperr.KindUpstreamTimeout, err, "request timed out")
	}
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
		s.events.Error(err.Error(), map[string]any{
			"request_id": requestIDFrom(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"kind":       string(apperr.KindOf(err)),
		})
	}
	writeError(w, status, apperr.PublicMessage(err))
}

// decodeJSON reads a JSON body into v, reporting malformed input as a
// validation error.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperr.Validation("request body exceeds %d bytes", tooBig.Limit)
		}
		return apperr.Validation("invalid JSON: %v", err)
	}
	return nil
}
