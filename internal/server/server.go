package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// MonitoringHandler routes /healthz to the health checker and /metrics to
// the prometheus registry.
func MonitoringHandler(reg *prometheus.Registry, health http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", health)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

// StartMonitoringServer serves the health check and metrics endpoints on port
// until ctx is canceled.
func StartMonitoringServer(
	ctx context.Context,
	log *slog.Logger,
	reg *prometheus.Registry,
	health http.Handler,
	port int,
) error {
	readTimeout := 5
	writeTimeout := 10
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      MonitoringHandler(reg, health),
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	return Serve(ctx, log.With("server", "monitoring"), server)
}

// Serve runs server until ctx is canceled, then shuts it down gracefully.
// It returns the listener error when the server stops on its own.
func Serve(ctx context.Context, log *slog.Logger, server *http.Server) error {
	var err error
	serverErr := make(chan error, 1)

	log.InfoContext(ctx, "Starting server", "addr", server.Addr)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.InfoContext(ctx, "Server shutting down.")
		if err = server.Shutdown(shutdownCtx); err != nil {
			log.ErrorContext(ctx, "Server failed to shutdown", "error", err)
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	case err = <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		log.ErrorContext(ctx, "Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}
}
