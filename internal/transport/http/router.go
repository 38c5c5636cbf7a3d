// Package httptransport assembles the HTTP surface: domain handlers, the
// websocket hub, health, and metrics.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"caseflow/internal/platform/metrics"
	"caseflow/internal/transport/http/shared"
)

// Registrar is implemented by every domain handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// NewRouter wires all public endpoints. Domain handlers attach their own
// middleware stacks; only the operational endpoints live here.
func NewRouter(
	logger *slog.Logger,
	hub http.Handler,
	httpMetrics *metrics.HTTP,
	checks map[string]HealthCheck,
	handlers ...Registrar,
) http.Handler {
	r := chi.NewRouter()
	if httpMetrics != nil {
		r.Use(httpMetrics.Middleware)
	}

	r.Get("/healthz", handleHealth(logger, checks))
	r.Handle("/metrics", promhttp.Handler())
	if hub != nil {
		r.Get("/ws", hub.ServeHTTP)
	}

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

func handleHealth(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"component", name,
					"error", err.Error(),
				)
				components[name] = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		shared.WriteJSON(w, status, map[string]any{
			"status":     http.StatusText(status),
			"components": components,
		})
	}
}
