package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records settlement attempts and per-participant outcomes.
type SettlementMetrics struct {
	attempts     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	participants *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_attempts_total",
		Help: "Settlement attempts by operation and disposition.",
	}, []string{"operation", "disposition"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_attempt_duration_seconds",
		Help:    "Duration of settlement attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	participants := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_participants_total",
		Help: "Participant fan-out results by outcome and failure kind.",
	}, []string{"outcome", "failure_kind"})
	reg.MustRegister(attempts, duration, participants)
	return &SettlementMetrics{
		attempts:     attempts,
		duration:     duration,
		participants: participants,
	}
}

// ObserveAttempt records one finished Settle or ResumeSettlement call.
func (m *SettlementMetrics) ObserveAttempt(operation, disposition string, d time.Duration) {
	if m == nil || m.attempts == nil {
		return
	}
	op := normalizeLabel(operation)
	m.attempts.WithLabelValues(op, normalizeLabel(disposition)).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveParticipant records one participant result. failureKind is empty
// for issued participants.
func (m *SettlementMetrics) ObserveParticipant(outcome, failureKind string) {
	if m == nil || m.participants == nil {
		return
	}
	if failureKind == "" {
		failureKind = "none"
	}
	m.participants.WithLabelValues(normalizeLabel(outcome), failureKind).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
