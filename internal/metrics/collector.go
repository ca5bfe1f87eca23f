// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// Metrics collector
// =============================================================================

// Collector records the host's operational metrics.
type Collector struct {
	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Turn metrics
	turnsTotal *prometheus.CounterVec

	// Skill forwarding metrics
	skillForwardsTotal   *prometheus.CounterVec
	skillForwardDuration *prometheus.HistogramVec

	// State metrics
	activeSkillSessions prometheus.Gauge
	stateSavesTotal     *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector. Metrics register against reg;
// pass prometheus.DefaultRegisterer in production and a fresh registry in
// tests.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP metrics
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Turn metrics
	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of processed conversation turns",
		},
		[]string{"activity_type", "route"}, // route: local, skill
	)

	// Skill forwarding metrics
	c.skillForwardsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skill_forwards_total",
			Help:      "Total number of activities forwarded to skills",
		},
		[]string{"skill_id", "status"}, // status: success, error
	)

	c.skillForwardDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "skill_forward_duration_seconds",
			Help:      "Skill forward round-trip duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"skill_id"},
	)

	// State metrics
	c.activeSkillSessions = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_skill_sessions",
			Help:      "Number of conversations currently routed to a skill",
		},
	)

	c.stateSavesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_saves_total",
			Help:      "Total number of session state saves",
		},
		[]string{"forced"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// HTTP metrics
// =============================================================================

// RecordHTTPRequest records one HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// Turn and forwarding metrics
// =============================================================================

// RecordTurn records one processed turn. Route is "skill" when the turn
// was forwarded to the active skill and "local" otherwise.
func (c *Collector) RecordTurn(activityType, route string) {
	c.turnsTotal.WithLabelValues(activityType, route).Inc()
}

// RecordSkillForward records one forward attempt to a skill.
func (c *Collector) RecordSkillForward(skillID, status string, duration time.Duration) {
	c.skillForwardsTotal.WithLabelValues(skillID, status).Inc()
	c.skillForwardDuration.WithLabelValues(skillID).Observe(duration.Seconds())
}

// =============================================================================
// State metrics
// =============================================================================

// SkillSessionStarted increments the active skill session gauge.
func (c *Collector) SkillSessionStarted() {
	c.activeSkillSessions.Inc()
}

// SkillSessionEnded decrements the active skill session gauge.
func (c *Collector) SkillSessionEnded() {
	c.activeSkillSessions.Dec()
}

// RecordStateSave records one session flush to the state store.
func (c *Collector) RecordStateSave(forced bool) {
	label := "false"
	if forced {
		label = "true"
	}
	c.stateSavesTotal.WithLabelValues(label).Inc()
}

// =============================================================================
// Helpers
// =============================================================================

// statusCode buckets an HTTP status code into a label value.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
