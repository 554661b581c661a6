// Package metrics provides Prometheus-based metrics recording for
// orchestration sessions, agent invocations and decision model calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the minimal metrics interface consumed by the engine, the
// group-chat coordinator and the agent client.
type Recorder interface {
	// ObserveSession records a finished orchestration session.
	ObserveSession(mode, outcome string, rounds int, duration time.Duration)

	// ObserveAgentCall records one external agent invocation.
	ObserveAgentCall(agentID string, success bool, duration time.Duration)

	// ObserveModelCall records one decision model call.
	ObserveModelCall(provider string, success bool, duration time.Duration)

	// ObserveEvent counts one published orchestration event by kind.
	ObserveEvent(kind string)
}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	sessionsTotal     *prometheus.CounterVec
	sessionDuration   *prometheus.HistogramVec
	decisionRounds    prometheus.Histogram
	agentCallsTotal   *prometheus.CounterVec
	agentCallDuration *prometheus.HistogramVec
	modelCallsTotal   *prometheus.CounterVec
	modelCallDuration *prometheus.HistogramVec
	eventsTotal       *prometheus.CounterVec
}

// NewPrometheusRecorder creates a Prometheus-based recorder registered on
// the default registry. Construct at most once per process.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		sessionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestration_sessions_total",
				Help: "Total number of orchestration sessions by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		sessionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestration_session_duration_seconds",
				Help:    "Duration of orchestration sessions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		decisionRounds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "orchestration_decision_rounds",
				Help:    "Number of decision rounds per session",
				Buckets: []float64{1, 2, 3, 4, 5, 10},
			},
		),
		agentCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_calls_total",
				Help: "Total number of external agent invocations by agent and status",
			},
			[]string{"agent_id", "status"},
		),
		agentCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_call_duration_seconds",
				Help:    "Duration of external agent invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent_id"},
		),
		modelCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_calls_total",
				Help: "Total number of decision model calls by provider and status",
			},
			[]string{"provider", "status"},
		),
		modelCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "model_call_duration_seconds",
				Help:    "Duration of decision model calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		eventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestration_events_total",
				Help: "Total number of published orchestration events by kind",
			},
			[]string{"kind"},
		),
	}
}

// ObserveSession records a finished orchestration session.
func (p *PrometheusRecorder) ObserveSession(mode, outcome string, rounds int, duration time.Duration) {
	p.sessionsTotal.WithLabelValues(mode, outcome).Inc()
	p.sessionDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if rounds > 0 {
		p.decisionRounds.Observe(float64(rounds))
	}
}

// ObserveAgentCall records one external agent invocation.
func (p *PrometheusRecorder) ObserveAgentCall(agentID string, success bool, duration time.Duration) {
	p.agentCallsTotal.WithLabelValues(agentID, statusLabel(success)).Inc()
	p.agentCallDuration.WithLabelValues(agentID).Observe(duration.Seconds())
}

// ObserveModelCall records one decision model call.
func (p *PrometheusRecorder) ObserveModelCall(provider string, success bool, duration time.Duration) {
	p.modelCallsTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	p.modelCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveEvent counts one published orchestration event by kind.
func (p *PrometheusRecorder) ObserveEvent(kind string) {
	p.eventsTotal.WithLabelValues(kind).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// NoOpRecorder discards all observations. Useful for tests or when metrics
// are disabled.
type NoOpRecorder struct{}

// ObserveSession implements Recorder.
func (NoOpRecorder) ObserveSession(string, string, int, time.Duration) {}

// ObserveAgentCall implements Recorder.
func (NoOpRecorder) ObserveAgentCall(string, bool, time.Duration) {}

// ObserveModelCall implements Recorder.
func (NoOpRecorder) ObserveModelCall(string, bool, time.Duration) {}

// ObserveEvent implements Recorder.
func (NoOpRecorder) ObserveEvent(string) {}
