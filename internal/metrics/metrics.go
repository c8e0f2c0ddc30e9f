package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adaptest"

// Metrics holds the engine's prometheus instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	QuizzesGenerated  *prometheus.CounterVec
	Degradations      *prometheus.CounterVec
	Completions       *prometheus.CounterVec
	CommitConflicts   prometheus.Counter
	BreakerOutcomes   *prometheus.CounterVec
	CompletionSeconds prometheus.Histogram
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QuizzesGenerated: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quiz",
				Name:      "generated_total",
				Help:      "Quizzes generated by learning phase and recovery flag",
			},
			[]string{"phase", "recovery"},
		),
		Degradations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "selector",
				Name:      "degradations_total",
				Help:      "Degraded selection steps by level",
			},
			[]string{"level"},
		),
		Completions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quiz",
				Name:      "completions_total",
				Help:      "Quiz completion attempts by outcome",
			},
			[]string{"outcome"},
		),
		CommitConflicts: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quiz",
				Name:      "commit_conflicts_total",
				Help:      "Version conflicts hit by quiz commits",
			},
		),
		BreakerOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "breaker",
				Name:      "outcomes_total",
				Help:      "Circuit breaker evaluations by outcome",
			},
			[]string{"outcome"},
		),
		CompletionSeconds: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "quiz",
				Name:      "completion_seconds",
				Help:      "Wall time of successful quiz completions",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
		),
	}
}

// Generated records a created quiz and its selection degradations.
func (m *Metrics) Generated(phase string, recovery bool, levels []string) {
	if m == nil {
		return
	}
	m.QuizzesGenerated.WithLabelValues(phase, strconv.FormatBool(recovery)).Inc()
	for _, l := range levels {
		m.Degradations.WithLabelValues(l).Inc()
	}
}

// Completed records the outcome of a completion call.
func (m *Metrics) Completed(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Completions.WithLabelValues(outcome).Inc()
	if outcome == "completed" {
		m.CompletionSeconds.Observe(elapsed.Seconds())
	}
}

// Conflict records one version conflict.
func (m *Metrics) Conflict() {
	if m == nil {
		return
	}
	m.CommitConflicts.Inc()
}

// Breaker records a breaker evaluation.
func (m *Metrics) Breaker(outcome string) {
	if m == nil {
		return
	}
	m.BreakerOutcomes.WithLabelValues(outcome).Inc()
}
