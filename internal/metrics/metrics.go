// Package metrics exposes probe and finding counters for Prometheus
// scraping.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0x6d61/vulnprobe/internal/engine"
	"github.com/0x6d61/vulnprobe/internal/findings"
)

// Compile-time interface check.
var _ engine.Observer = (*Metrics)(nil)

// Metrics holds the collectors of one process. It uses its own registry so
// tests and embedders never touch the global default.
type Metrics struct {
	registry *prometheus.Registry

	probesTotal   *prometheus.CounterVec
	probeSeconds  *prometheus.HistogramVec
	findingsTotal *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vulnprobe_probes_total",
				Help: "Total number of probes dispatched, by sweep and outcome",
			},
			[]string{"sweep", "outcome"},
		),
		probeSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vulnprobe_probe_duration_seconds",
				Help:    "Probe round-trip time distribution in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"sweep"},
		),
		findingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vulnprobe_findings_total",
				Help: "Total number of confirmed findings, by type and severity",
			},
			[]string{"type", "severity"},
		),
	}
	m.registry.MustRegister(m.probesTotal, m.probeSeconds, m.findingsTotal)
	return m
}

// ObserveProbe implements engine.Observer.
func (m *Metrics) ObserveProbe(sweep string, outcome engine.Outcome, elapsed time.Duration) {
	m.probesTotal.WithLabelValues(sweep, string(outcome)).Inc()
	m.probeSeconds.WithLabelValues(sweep).Observe(elapsed.Seconds())
}

// ObserveFinding counts f. Register it with findings.WithListener.
func (m *Metrics) ObserveFinding(f findings.Finding) {
	m.findingsTotal.WithLabelValues(string(f.Type), string(f.Severity)).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Server is a running metrics endpoint.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Serve starts an HTTP server on addr that exposes /metrics. An addr with
// port 0 picks a free port; see Addr.
func (m *Metrics) Serve(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		ln: ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close shuts the server down, waiting for in-flight scrapes until ctx ends.
func (s *Server) Close(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
