// Package metrics provides Prometheus metrics for the connectChat service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal tracks handled HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connectchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of handled HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks HTTP request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "connectchat",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// MessagesSentTotal tracks persisted direct messages
	MessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "connectchat",
			Subsystem: "messaging",
			Name:      "messages_sent_total",
			Help:      "Total number of messages appended to the log",
		},
	)

	// PushesTotal tracks real-time push attempts by result
	PushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connectchat",
			Subsystem: "messaging",
			Name:      "pushes_total",
			Help:      "Total number of real-time push attempts by result",
		},
		[]string{"result"},
	)

	// SummaryUpdateFailuresTotal tracks failed best-effort summary writes
	SummaryUpdateFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "connectchat",
			Subsystem: "messaging",
			Name:      "summary_update_failures_total",
			Help:      "Total number of conversation summary updates that failed",
		},
	)

	// ConnectionEventsTotal tracks connection request lifecycle events
	ConnectionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connectchat",
			Subsystem: "connections",
			Name:      "events_total",
			Help:      "Total number of connection lifecycle events",
		},
		[]string{"event"},
	)

	// OnlineUsers tracks users with a registered socket
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "connectchat",
			Subsystem: "presence",
			Name:      "online_users",
			Help:      "Number of users with a live socket",
		},
	)

	// RateLimitedTotal tracks requests refused by a limiter
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connectchat",
			Subsystem: "ratelimit",
			Name:      "rejected_total",
			Help:      "Total number of requests rejected by rate limiting",
		},
		[]string{"scope"},
	)
)

// Push results.
const (
	PushDelivered = "delivered"
	PushOffline   = "offline"
)

// Connection events.
const (
	EventRequested = "requested"
	EventAccepted  = "accepted"
	EventRejected  = "rejected"
)

// RecordHTTPRequest records metrics for a handled HTTP request
func RecordHTTPRequest(method, route, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordPush records the outcome of a best-effort push
func RecordPush(delivered bool) {
	if delivered {
		PushesTotal.WithLabelValues(PushDelivered).Inc()
		return
	}
	PushesTotal.WithLabelValues(PushOffline).Inc()
}

// RecordConnectionEvent records a connection lifecycle event
func RecordConnectionEvent(event string) {
	ConnectionEventsTotal.WithLabelValues(event).Inc()
}

// RecordRateLimited records a rejected request for scope
func RecordRateLimited(scope string) {
	RateLimitedTotal.WithLabelValues(scope).Inc()
}
