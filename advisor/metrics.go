package advisor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Decision sources, used as the "source" label and in StepResult.
const (
	SourceDirect   = "direct"
	SourceOracle   = "oracle"
	SourceFallback = "fallback"
)

// Metrics holds the bridge's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Decisions       *prometheus.CounterVec
	OracleAttempts  *prometheus.CounterVec
	Published       prometheus.Counter
	Duplicates      prometheus.Counter
	PipeSkips       *prometheus.CounterVec
	Truncations     prometheus.Counter
	PollErrors      prometheus.Counter
	DecisionSeconds prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schedbridge",
			Name:      "decisions_total",
			Help:      "Scheduling decisions made, by source.",
		}, []string{"source"}),
		OracleAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schedbridge",
			Name:      "oracle_attempts_total",
			Help:      "Oracle calls, by result (accepted, no_answer, rejected).",
		}, []string{"result"}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schedbridge",
			Name:      "advice_published_total",
			Help:      "Advice lines durably appended to the advice log.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schedbridge",
			Name:      "advice_duplicates_total",
			Help:      "Publications suppressed because the (pid, timestamp) pair was already published.",
		}),
		PipeSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schedbridge",
			Name:      "pipe_skips_total",
			Help:      "Advice lines not mirrored to the low-latency pipe, by reason.",
		}, []string{"reason"}),
		Truncations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schedbridge",
			Name:      "log_truncations_total",
			Help:      "Times the snapshot log shrank and the cursor was rewound.",
		}),
		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schedbridge",
			Name:      "poll_errors_total",
			Help:      "Snapshot log reads that failed with an I/O error.",
		}),
		DecisionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "schedbridge",
			Name:      "decision_seconds",
			Help:      "Time from block found to advice published.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Decisions, m.OracleAttempts, m.Published, m.Duplicates,
			m.PipeSkips, m.Truncations, m.PollErrors, m.DecisionSeconds)
	}
	return m
}

func (m *Metrics) decision(source string) {
	if m != nil {
		m.Decisions.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) oracleAttempt(result string) {
	if m != nil {
		m.OracleAttempts.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) published() {
	if m != nil {
		m.Published.Inc()
	}
}

func (m *Metrics) duplicate() {
	if m != nil {
		m.Duplicates.Inc()
	}
}

func (m *Metrics) pipeSkip(reason string) {
	if m != nil {
		m.PipeSkips.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) pollError() {
	if m != nil {
		m.PollErrors.Inc()
	}
}

func (m *Metrics) observeDecision(seconds float64) {
	if m != nil {
		m.DecisionSeconds.Observe(seconds)
	}
}
