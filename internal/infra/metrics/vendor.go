package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		vendorCallsTotal,
		vendorCallLatencyMs,
		vendorRetriesTotal,
	)
}

var (
	vendorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_calls_total",
			Help: "Vendor API calls by provider, method and outcome (ok|api_error|transport_error|decode_error).",
		},
		[]string{"provider", "method", "outcome"},
	)

	vendorCallLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendor_call_latency_ms",
			Help:    "Vendor call latency distribution in milliseconds, retries included.",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3000, 6000, 15000},
		},
		[]string{"provider", "method"},
	)

	vendorRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_retries_total",
			Help: "Retried vendor attempts after a transient failure.",
		},
		[]string{"provider", "method"},
	)
)

func ObserveVendorCall(provider, method, outcome string, elapsed time.Duration) {
	vendorCallsTotal.WithLabelValues(norm(provider), norm(method), norm(outcome)).Inc()
	vendorCallLatencyMs.WithLabelValues(norm(provider), norm(method)).
		Observe(float64(elapsed.Milliseconds()))
}

func IncVendorRetry(provider, method string) {
	vendorRetriesTotal.WithLabelValues(norm(provider), norm(method)).Inc()
}
