package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		walletMovementsTotal,
		walletAmountTotal,
		topupDecisionsTotal,
	)
}

var (
	walletMovementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_movements_total",
			Help: "Wallet ledger lines by type (credit|debit) and result.",
		},
		[]string{"type", "result"},
	)

	walletAmountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_amount_total",
			Help: "Sum of credited/debited amounts.",
		},
		[]string{"type"},
	)

	topupDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topup_requests_total",
			Help: "Top-up requests by status (pending|approved|rejected).",
		},
		[]string{"status"},
	)
)

func ObserveWallet(typ, result string, amount int64) {
	walletMovementsTotal.WithLabelValues(norm(typ), norm(result)).Inc()
	if result == "ok" {
		walletAmountTotal.WithLabelValues(norm(typ)).Add(float64(amount))
	}
}

func IncTopUp(status string) {
	topupDecisionsTotal.WithLabelValues(norm(status)).Inc()
}
