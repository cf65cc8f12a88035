// Package exposition serves /metrics and /health over HTTP. It never blocks
// on probe workers: /health reads through short-lived, lock-guarded
// snapshots taken from the supervisor and resource watcher, and /metrics is
// served from the Prometheus registry.
package exposition

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/therealbill/prober/internal/breaker"
	"github.com/therealbill/prober/internal/kernel"
	"github.com/therealbill/prober/internal/resources"
)

// SupervisorView is the read-only accessor the exposition server needs from
// the probe supervisor.
type SupervisorView interface {
	Snapshot() []kernel.State
}

// ResourceView is the read-only accessor the exposition server needs from
// the resource watcher.
type ResourceView interface {
	Snapshot() resources.Sample
}

// Server serves the exposition HTTP surface.
type Server struct {
	logger     *zap.Logger
	registry   *prometheus.Registry
	supervisor SupervisorView
	resources  ResourceView
}

// New creates an exposition Server.
func New(logger *zap.Logger, registry *prometheus.Registry, supervisor SupervisorView, resources ResourceView) *Server {
	return &Server{logger: logger, registry: registry, supervisor: supervisor, resources: resources}
}

// Router builds the chi router serving /metrics and /health.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/health", s.handleHealth)

	return r
}

type probeCounts struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
}

type resourceBody struct {
	MemoryMB int      `json:"memory_mb"`
	Threads  int      `json:"threads"`
	Warnings []string `json:"warnings"`
}

type healthBody struct {
	Status    string       `json:"status"`
	Probes    probeCounts  `json:"probes"`
	Resources resourceBody `json:"resources"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	states := s.supervisor.Snapshot()
	sample := s.resources.Snapshot()

	counts := probeCounts{Total: len(states)}
	for _, st := range states {
		if st.BreakerState != breaker.Open {
			counts.Healthy++
		} else {
			counts.Unhealthy++
		}
	}

	healthy := counts.Total > 0 && counts.Healthy*2 > counts.Total && len(sample.Warnings) == 0

	body := healthBody{
		Status: "unhealthy",
		Probes: counts,
		Resources: resourceBody{
			MemoryMB: sample.MemoryMB,
			Threads:  sample.Threads,
			Warnings: sample.Warnings,
		},
	}

	code := http.StatusServiceUnavailable
	if healthy {
		body.Status = "healthy"
		code = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if body.Resources.Warnings == nil {
		body.Resources.Warnings = []string{}
	}
	_ = json.NewEncoder(w).Encode(body)
}
