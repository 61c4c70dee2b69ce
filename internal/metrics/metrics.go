// Package metrics registers the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests labeled by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	paymentConfirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_confirmations_total",
			Help: "Payment confirmation attempts labeled by outcome",
		},
		[]string{"outcome"},
	)
	ledgerEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_events_total",
			Help: "Ledger transfer events labeled by result",
		},
		[]string{"result"},
	)
)

// RecordRequest counts one HTTP request and records its latency.
func RecordRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordConfirmation counts a payment confirmation outcome such as
// "completed", "already_completed", "not_found" or "verification_failed".
func RecordConfirmation(outcome string) {
	paymentConfirmationsTotal.WithLabelValues(outcome).Inc()
}

// RecordLedgerEvent counts a ledger event result such as "simulated",
// "published", "publish_failed" or "consumed".
func RecordLedgerEvent(result string) {
	ledgerEventsTotal.WithLabelValues(result).Inc()
}
