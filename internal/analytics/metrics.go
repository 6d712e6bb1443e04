package analytics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

// Metrics are the advisor's Prometheus collectors.
type Metrics struct {
	turns       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	llmFailures *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "advisor",
				Subsystem: "conversation",
				Name:      "turns_total",
				Help:      "Chat turns handled, by phase after the turn",
			},
			[]string{"phase"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "advisor",
				Subsystem: "conversation",
				Name:      "phase_transitions_total",
				Help:      "Phase transitions",
			},
			[]string{"from", "to"},
		),
		llmFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "advisor",
				Subsystem: "llm",
				Name:      "failures_total",
				Help:      "LLM completions replaced by the fallback reply",
			},
			[]string{"provider"},
		),
		llmLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "advisor",
				Subsystem: "llm",
				Name:      "latency_seconds",
				Help:      "Latency of LLM completions",
				Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 10, 15, 20, 30},
			},
			[]string{"provider", "status"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.turns, m.transitions, m.llmFailures, m.llmLatency)
	}
	return m
}

// ObserveTurn counts a handled turn.
func (m *Metrics) ObserveTurn(phase domain.Phase) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(string(phase)).Inc()
}

// ObserveTransition counts a phase change.
func (m *Metrics) ObserveTransition(tr domain.PhaseTransition) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(tr.From), string(tr.To)).Inc()
}

// ObserveCompletion records LLM latency and, on failure, the fallback.
func (m *Metrics) ObserveCompletion(provider string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		m.llmFailures.WithLabelValues(provider).Inc()
	}
	m.llmLatency.WithLabelValues(provider, status).Observe(elapsed.Seconds())
}
