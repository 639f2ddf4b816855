package syncer

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics instruments sessions. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry  *prometheus.Registry
	handler   http.Handler
	writes    *prometheus.CounterVec
	snapshots *prometheus.CounterVec
	phase     *prometheus.GaugeVec
}

// NewMetrics registers the sync collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chapterwise_writes_total",
		Help: "Debounced writes sent to the backend",
	}, []string{"doc", "result"})

	snapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chapterwise_remote_snapshots_total",
		Help: "Remote snapshots received, by outcome",
	}, []string{"outcome"})

	phase := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chapterwise_session_phase",
		Help: "Current session phase (1 for the active phase)",
	}, []string{"phase"})

	registry.MustRegister(writes, snapshots, phase)

	return &Metrics{
		registry:  registry,
		handler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		writes:    writes,
		snapshots: snapshots,
		phase:     phase,
	}
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) observeWrite(doc DocKind, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.writes.WithLabelValues(string(doc), result).Inc()
}

func (m *Metrics) observeSnapshot(applied bool) {
	if m == nil {
		return
	}
	outcome := "applied"
	if !applied {
		outcome = "suppressed"
	}
	m.snapshots.WithLabelValues(outcome).Inc()
}

func (m *Metrics) setPhase(p Phase) {
	if m == nil {
		return
	}
	for _, each := range AllPhases {
		v := 0.0
		if each == p {
			v = 1
		}
		m.phase.WithLabelValues(string(each)).Set(v)
	}
}
