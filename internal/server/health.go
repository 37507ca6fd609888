package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// Pinger is a dependency whose availability is reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthChecker reports the availability of the task store and, when
// configured, the cache.
type HealthChecker struct {
	db    Pinger
	cache Pinger
	log   *slog.Logger
}

// NewHealthChecker creates a health checker. cache may be nil when the
// service runs without redis.
func NewHealthChecker(log *slog.Logger, db Pinger, cache Pinger) *HealthChecker {
	return &HealthChecker{
		db:    db,
		cache: cache,
		log:   log,
	}
}

func (h *HealthChecker) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	h.log.DebugContext(req.Context(), "Performing health checks...")

	var err error
	status := make(map[string]string)
	overallStatus := http.StatusOK

	if err = h.db.Ping(req.Context()); err != nil {
		status["database"] = "unavailable"
		overallStatus = http.StatusServiceUnavailable
		h.log.WarnContext(req.Context(), "Health check failed: DB ping", "error", err)
	} else {
		status["database"] = "ok"
	}

	if h.cache != nil {
		if err = h.cache.Ping(req.Context()); err != nil {
			status["cache"] = "unavailable"
			overallStatus = http.StatusServiceUnavailable
			h.log.WarnContext(req.Context(), "Health check failed: cache ping", "error", err)
		} else {
			status["cache"] = "ok"
		}
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(overallStatus)
	if err = json.NewEncoder(writer).Encode(status); err != nil {
		h.log.ErrorContext(req.Context(), "Failed to write health check response", "error", err)
	}

	h.log.DebugContext(req.Context(), "Health checks completed", "status", overallStatus)
}
