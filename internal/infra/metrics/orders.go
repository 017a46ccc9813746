package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		purchasesTotal,
		purchaseRevenueTotal,
		pollOutcomesTotal,
		activePollers,
	)
}

var (
	purchasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_total",
			Help: "Number purchases by provider and outcome (ok|insufficient_funds|vendor_failed|refunded).",
		},
		[]string{"provider", "outcome"},
	)

	purchaseRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_revenue_total",
			Help: "Sum of sell prices of successful purchases.",
		},
		[]string{"provider"},
	)

	pollOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_outcomes_total",
			Help: "How pollers ended: code_received, terminal, expired, unreachable, canceled.",
		},
		[]string{"provider", "outcome"},
	)

	activePollers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_pollers",
			Help: "Pollers currently running.",
		},
	)
)

func IncPurchase(provider, outcome string) {
	purchasesTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func AddPurchaseRevenue(provider string, amount int64) {
	purchaseRevenueTotal.WithLabelValues(norm(provider)).Add(float64(amount))
}

func IncPollOutcome(provider, outcome string) {
	pollOutcomesTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func IncActivePollers() { activePollers.Inc() }
func DecActivePollers() { activePollers.Dec() }
