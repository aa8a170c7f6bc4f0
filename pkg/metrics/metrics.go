// Package metrics exposes taskflow's Prometheus collectors.
//
// Every collector lives under the "taskflow" namespace, grouped by subsystem
// (workflow, validation, action, eventbus, http). A disabled Manager holds no
// collectors and every Record method is a no-op.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskflow"

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Port    int
	Path    string

	TransitionDurationBuckets []float64
	ValidationDurationBuckets []float64
	QualityScoreBuckets       []float64
	HTTPDurationBuckets       []float64
}

// DefaultConfig returns the metrics defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:                   true,
		Port:                      9091,
		Path:                      "/metrics",
		TransitionDurationBuckets: prometheus.ExponentialBuckets(0.0001, 4, 7),
		ValidationDurationBuckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		QualityScoreBuckets:       prometheus.LinearBuckets(10, 10, 10),
		HTTPDurationBuckets:       []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// Manager owns the registry and the collectors of each subsystem.
type Manager struct {
	registry *prometheus.Registry

	workflow   *workflowCollectors
	validation *validationCollectors
	bus        *busCollectors
	http       *httpCollectors
}

// NewManager builds a Manager. With cfg.Enabled false it returns the same
// no-op value as NoOpManager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return NoOpManager()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Manager{
		registry:   reg,
		workflow:   newWorkflowCollectors(f, cfg),
		validation: newValidationCollectors(f, cfg),
		bus:        newBusCollectors(f),
		http:       newHTTPCollectors(f, cfg),
	}
}

// NoOpManager returns a Manager that records nothing.
func NoOpManager() *Manager {
	return &Manager{}
}

// Enabled reports whether collectors are registered.
func (m *Manager) Enabled() bool {
	return m.registry != nil
}

// Registry exposes the underlying registry, nil when disabled.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the OpenMetrics format, or 404 when
// disabled.
func (m *Manager) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          m.registry,
	})
}

// StartServer serves Handler at path on its own listener until ctx is
// done. It returns nil after a clean shutdown.
func (m *Manager) StartServer(ctx context.Context, port int, path string) error {
	if !m.Enabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}

func seconds(d time.Duration) float64 { return d.Seconds() }
