// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	InventoryWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parking",
		Name:      "inventory_writes_total",
		Help:      "City document writes by operation and result.",
	}, []string{"operation", "result"})

	BookingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parking",
		Name:      "booking_transitions_total",
		Help:      "Booking lifecycle and payment transitions by kind and outcome (applied, noop, rejected).",
	}, []string{"transition", "outcome"})

	StaleWriteRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parking",
		Name:      "stale_write_retries_total",
		Help:      "Read-modify-write cycles retried after a version conflict.",
	}, []string{"collection"})

	IntakeMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parking",
		Name:      "intake_messages_total",
		Help:      "Queued reservation requests by result.",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "parking",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
