// Package api serves the dashboard analytics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/UnknownOlympus/taskpulse/internal/metrics"
	"github.com/UnknownOlympus/taskpulse/internal/models"
	"github.com/UnknownOlympus/taskpulse/internal/query"
	"github.com/UnknownOlympus/taskpulse/internal/report"
	"github.com/gorilla/mux"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Dashboard computes the payloads served by the API.
type Dashboard interface {
	ComputeAnalytics(ctx context.Context, scope query.Scope) (models.AnalyticsReport, error)
	ComputeCounts(ctx context.Context, scope query.Scope) (models.CountReport, error)
}

// Options tunes the API server.
type Options struct {
	AllowedOrigin  string        // Value of Access-Control-Allow-Origin, "*" when empty
	RequestTimeout time.Duration // Upper bound of one computation, 0 disables it
}

// Server routes dashboard requests to the aggregator.
type Server struct {
	log       *slog.Logger
	dashboard Dashboard
	metrics   *metrics.Metrics
	opts      Options
	now       func() time.Time
}

// NewServer creates the API server. appMetrics may be nil.
func NewServer(log *slog.Logger, dashboard Dashboard, appMetrics *metrics.Metrics, opts Options) *Server {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	return &Server{
		log:       log.With("component", "api"),
		dashboard: dashboard,
		metrics:   appMetrics,
		opts:      opts,
		now:       time.Now,
	}
}

// Handler returns the routed and wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware, s.observeMiddleware)

	dashboard := router.PathPrefix("/api/dashboard").Subrouter()
	dashboard.HandleFunc("/analytics", s.handleAnalytics).Methods(http.MethodGet).Name("analytics")
	dashboard.HandleFunc("/counts", s.handleCounts).Methods(http.MethodGet).Name("counts")
	dashboard.HandleFunc("/report", s.handleReport).Methods(http.MethodGet).Name("report")

	return corsMiddleware(s.opts.AllowedOrigin)(router)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	result, err := s.dashboard.ComputeAnalytics(ctx, scope)
	if err != nil {
		s.serverError(w, r, "analytics", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	result, err := s.dashboard.ComputeCounts(ctx, scope)
	if err != nil {
		s.serverError(w, r, "counts", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	scope, ok := s.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	start := time.Now()
	counts, err := s.dashboard.ComputeCounts(ctx, scope)
	if err != nil {
		s.serverError(w, r, "report", err)
		return
	}
	analytics, err := s.dashboard.ComputeAnalytics(ctx, scope)
	if err != nil {
		s.serverError(w, r, "report", err)
		return
	}

	generatedAt := s.now().UTC()
	buffer, err := report.GenerateExcelReport(report.Dashboard{
		Title:       "Task dashboard",
		GeneratedAt: generatedAt,
		Counts:      counts,
		Analytics:   analytics,
	})
	if errors.Is(err, report.ErrEmptyReport) {
		s.writeJSON(w, r, http.StatusNotFound, map[string]string{"message": "No tasks to export"})
		return
	}
	if err != nil {
		s.serverError(w, r, "report", err)
		return
	}
	if s.metrics != nil {
		s.metrics.ReportGeneration.WithLabelValues("api").Observe(time.Since(start).Seconds())
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="dashboard-%s.xlsx"`, generatedAt.Format(dateOnly)))
	w.WriteHeader(http.StatusOK)
	if _, err = buffer.WriteTo(w); err != nil {
		s.log.ErrorContext(r.Context(), "failed to write report", "error", err)
	}
}

// scope parses the request scope, answering 400 when it is invalid.
func (s *Server) scope(w http.ResponseWriter, r *http.Request) (query.Scope, bool) {
	scope, err := ParseScope(r.URL.Query())
	if err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return query.Scope{}, false
	}
	return scope, true
}

func (s *Server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.RequestTimeout)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	s.log.ErrorContext(r.Context(), "Failed to compute dashboard",
		"operation", operation,
		"request_id", RequestID(r.Context()),
		"error", err)
	s.writeJSON(w, r, http.StatusInternalServerError, map[string]string{
		"message": "Server error",
		"error":   err.Error(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
