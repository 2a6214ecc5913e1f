package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the attendance-guard metrics
type Collector struct {
	attemptsTotal      *prometheus.CounterVec
	attemptDuration    *prometheus.HistogramVec
	tamperRecords      *prometheus.CounterVec
	lockdownDecisions  *prometheus.CounterVec
	livenessChecks     *prometheus.CounterVec
	externalFailures   *prometheus.CounterVec
	reputationCacheHit *prometheus.CounterVec
	auditRecords       *prometheus.CounterVec
}

// NewCollector registers the metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_guard_attempts_total",
				Help: "Attendance attempts by kind, verification method and outcome",
			},
			[]string{"kind", "method", "outcome"},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "attendance_guard_attempt_duration_seconds",
				Help:    "Time spent verifying one attempt",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"kind"},
		),
		tamperRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_guard_tamper_records_total",
				Help: "Tamper records raised by kind and action",
			},
			[]string{"tamper_type", "action"},
		),
		lockdownDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_guard_lockdown_decisions_total",
				Help: "Decisions made while a lockdown was in effect",
			},
			[]string{"action_type"},
		),
		livenessChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_guard_liveness_checks_total",
				Help: "Liveness checks by result",
			},
			[]string{"result"},
		),
		externalFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_guard_external_failures_total",
				Help: "Failed calls to external services",
			},
			[]string{"service"},
		),
		reputationCacheHit: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_guard_reputation_cache_total",
				Help: "IP reputation lookups by cache layer",
			},
			[]string{"layer"},
		),
		auditRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_guard_audit_records_total",
				Help: "Audit records by severity and review flag",
			},
			[]string{"severity", "requires_review"},
		),
	}
}

// RecordAttempt counts a finished attempt. outcome is "recorded" or a
// rejection reason code.
func (c *Collector) RecordAttempt(kind, method, outcome string, took time.Duration) {
	c.attemptsTotal.WithLabelValues(kind, method, outcome).Inc()
	c.attemptDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func (c *Collector) RecordTamper(kind, action string) {
	c.tamperRecords.WithLabelValues(kind, action).Inc()
}

func (c *Collector) RecordLockdownDecision(actionType string) {
	c.lockdownDecisions.WithLabelValues(actionType).Inc()
}

func (c *Collector) RecordLiveness(result string) {
	c.livenessChecks.WithLabelValues(result).Inc()
}

func (c *Collector) RecordExternalFailure(service string) {
	c.externalFailures.WithLabelValues(service).Inc()
}

// RecordReputationLookup counts where a reputation answer came from:
// memory, redis or remote
func (c *Collector) RecordReputationLookup(layer string) {
	c.reputationCacheHit.WithLabelValues(layer).Inc()
}

func (c *Collector) RecordAudit(severity string, requiresReview bool) {
	review := "false"
	if requiresReview {
		review = "true"
	}
	c.auditRecords.WithLabelValues(severity, review).Inc()
}
