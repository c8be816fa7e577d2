package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the engine. A nil *Metrics
// records nothing.
type Metrics struct {
	StageDuration *prometheus.HistogramVec
	StageErrors   *prometheus.CounterVec
	Decisions     *prometheus.CounterVec
	Runs          *prometheus.CounterVec
}

// NewMetrics creates the engine collectors and registers them with reg.
//
// Metrics:
//   - ldaa_stage_duration_seconds{stage}
//   - ldaa_stage_errors_total{stage}
//   - ldaa_decisions_total{stage,decision,escalated}
//   - ldaa_runs_total{status}
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ldaa_stage_duration_seconds",
				Help:    "Duration of stage execution in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		StageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ldaa_stage_errors_total",
				Help: "Total number of stage executions that returned a fatal error",
			},
			[]string{"stage"},
		),
		Decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ldaa_decisions_total",
				Help: "Total number of transitions taken by stage and router decision",
			},
			[]string{"stage", "decision", "escalated"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ldaa_runs_total",
				Help: "Total number of runs reaching each status",
			},
			[]string{"status"},
		),
	}
}

func (m *Metrics) observeStage(stage StageName, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
	if err != nil {
		m.StageErrors.WithLabelValues(string(stage)).Inc()
	}
}

func (m *Metrics) observeStep(step Step) {
	if m == nil {
		return
	}
	escalated := "false"
	if step.Escalated {
		escalated = "true"
	}
	m.Decisions.WithLabelValues(string(step.From), string(step.Decision), escalated).Inc()
}

func (m *Metrics) observeRun(status Status) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(string(status)).Inc()
}
