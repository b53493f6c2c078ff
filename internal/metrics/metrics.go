// Package metrics exposes engine outcomes as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1broseidon/winrestore/internal/engine"
)

// Metrics holds all Prometheus metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Restores           *prometheus.CounterVec
	ProcessRestores    *prometheus.CounterVec
	BoundsWrites       *prometheus.CounterVec
	Reconciliations    prometheus.Counter
	Placeholders       prometheus.Counter
	CachedArrangements prometheus.Gauge
	KnownSpaces        prometheus.Gauge
}

var _ engine.Recorder = (*Metrics)(nil)

// New creates the metric set.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Restores: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "winrestore_restores_total",
				Help: "Restore passes by outcome",
			},
			[]string{"status"},
		),
		ProcessRestores: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "winrestore_process_restores_total",
				Help: "Per-process restore outcomes",
			},
			[]string{"status"},
		),
		BoundsWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "winrestore_bounds_writes_total",
				Help: "Window bounds writes by result",
			},
			[]string{"result"},
		),
		Reconciliations: f.NewCounter(
			prometheus.CounterOpts{
				Name: "winrestore_reconciliations_total",
				Help: "Cache reconciliation passes",
			},
		),
		Placeholders: f.NewCounter(
			prometheus.CounterOpts{
				Name: "winrestore_placeholders_inserted_total",
				Help: "Placeholder slots inserted by reconciliation",
			},
		),
		CachedArrangements: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "winrestore_cached_arrangements",
				Help: "Number of arrangement signatures in the layout cache",
			},
		),
		KnownSpaces: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "winrestore_known_spaces",
				Help: "Number of virtual desktops in the space registry",
			},
		),
	}
}

// ObserveReconcile implements engine.Recorder.
func (m *Metrics) ObserveReconcile(r engine.ReconcileReport) {
	m.Reconciliations.Inc()
	m.Placeholders.Add(float64(r.Placeholders))
}

// ObserveRestore implements engine.Recorder.
func (m *Metrics) ObserveRestore(r engine.RestoreReport) {
	m.Restores.WithLabelValues(string(r.Status)).Inc()
	for _, p := range r.Processes {
		m.ProcessRestores.WithLabelValues(string(p.Status)).Inc()
		result := "ok"
		if r.DryRun {
			result = "dry_run"
		}
		m.BoundsWrites.WithLabelValues(result).Add(float64(p.Written))
		m.BoundsWrites.WithLabelValues("failed").Add(float64(p.Failed))
		m.BoundsWrites.WithLabelValues("placeholder").Add(float64(p.Placeholders))
	}
}

// ObserveState implements engine.Recorder.
func (m *Metrics) ObserveState(arrangements, spaces int) {
	m.CachedArrangements.Set(float64(arrangements))
	m.KnownSpaces.Set(float64(spaces))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
