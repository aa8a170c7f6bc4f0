package handlers

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goclaw/taskflow/pkg/api/response"
	"github.com/goclaw/taskflow/pkg/version"
)

const probeTimeout = 2 * time.Second

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	ready   atomic.Bool
	started time.Time
	probes  map[string]Probe
	info    func() map[string]any
}

// NewHealthHandler creates a new health handler. The service reports not
// ready until SetReady(true) is called.
func NewHealthHandler(probes map[string]Probe, info func() map[string]any) *HealthHandler {
	if probes == nil {
		probes = map[string]Probe{}
	}
	return &HealthHandler{
		started: time.Now(),
		probes:  probes,
		info:    info,
	}
}

// SetReady flips the readiness flag.
func (h *HealthHandler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Health handles the /health endpoint (liveness probe).
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint (readiness probe). It fails while
// startup seeding runs and whenever a dependency probe fails.
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := h.runProbes(r.Context())
	ready := h.ready.Load()
	for _, result := range checks {
		if result != "ok" {
			ready = false
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, map[string]any{
		"ready":  ready,
		"checks": checks,
	})
}

// Status handles the /status endpoint (detailed status).
// @Summary Service status
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Router /status [get]
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"ready":   h.ready.Load(),
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"version": version.Get(),
		"checks":  h.runProbes(r.Context()),
	}
	if h.info != nil {
		for k, v := range h.info() {
			status[k] = v
		}
	}
	response.JSON(w, http.StatusOK, status)
}

func (h *HealthHandler) runProbes(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	results := make(map[string]string, len(h.probes))
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	return results
}
