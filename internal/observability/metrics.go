package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts loop activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	iterations     prometheus.Counter
	faults         prometheus.Counter
	actions        *prometheus.CounterVec
	backendRetries *prometheus.CounterVec
	runs           *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		iterations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "region_agent",
			Name:      "iterations_total",
			Help:      "Loop iterations started.",
		}),
		faults: f.NewCounter(prometheus.CounterOpts{
			Namespace: "region_agent",
			Name:      "iteration_faults_total",
			Help:      "Iterations that ended in a recovered fault.",
		}),
		actions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_agent",
			Name:      "actions_total",
			Help:      "Actions executed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		backendRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_agent",
			Name:      "backend_failures_total",
			Help:      "Failed backend calls, by provider.",
		}, []string{"provider"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_agent",
			Name:      "runs_total",
			Help:      "Finished loop runs, by terminal state.",
		}, []string{"state"}),
	}
}

func (m *Metrics) Iteration() {
	if m != nil {
		m.iterations.Inc()
	}
}

func (m *Metrics) Fault() {
	if m != nil {
		m.faults.Inc()
	}
}

func (m *Metrics) Action(kind string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.actions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) BackendFailure(provider string) {
	if m != nil {
		m.backendRetries.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) Run(state string) {
	if m != nil {
		m.runs.WithLabelValues(state).Inc()
	}
}
