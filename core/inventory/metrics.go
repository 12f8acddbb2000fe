package inventory

import "github.com/prometheus/client_golang/prometheus"

var (
	stockOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_ledger_stock_operations",
			Help: "Number of stock record operations by operation and result",
		},
		[]string{"op", "result"},
	)

	lockContention = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_ledger_lock_contention",
			Help: "Number of times the per product lock could not be acquired in time",
		},
		[]string{"op"},
	)

	reservationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_ledger_reservations",
			Help: "Number of reservations created or resolved by outcome",
		},
		[]string{"outcome"},
	)
)

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	stockOps.WithLabelValues(op, result).Inc()
}

func init() {
	prometheus.MustRegister(stockOps)
	prometheus.MustRegister(lockContention)
	prometheus.MustRegister(reservationOutcomes)
}
