// Package httptransport exposes read-side StarkShield operations over HTTP:
// credential validation, nullifier lookups and the submission history.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"starkshield/internal/platform/health"
	"starkshield/internal/platform/middleware"
)

// RequestTimeout bounds every API request. Registry reads dominate latency.
const RequestTimeout = 30 * time.Second

// NewRouter wires the API, health probes and the metrics endpoint.
func NewRouter(h *Handler, probes *health.Handler, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))

	if probes != nil {
		probes.Register(r)
	}
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(RequestTimeout))
		r.Use(middleware.ContentTypeJSON)
		h.Register(r)
	})
	return r
}
