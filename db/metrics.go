package db

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sksmith/stock-ledger/core"
)

const (
	outcomeOK         = "ok"
	outcomeNotFound   = "not_found"
	outcomeContention = "contention"
	outcomeError      = "error"
)

var (
	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stock_ledger_db_query_seconds",
			Help:    "Time spent in a repository call, by call and outcome",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"func", "outcome"},
	)

	inFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stock_ledger_db_in_flight",
			Help: "Repository calls currently waiting on the database",
		},
		[]string{"func"},
	)
)

// Metric times one repository call. Complete must be called exactly once.
type Metric struct {
	funcName string
	start    time.Time
}

func StartMetric(funcName string) *Metric {
	inFlight.WithLabelValues(funcName).Inc()
	return &Metric{funcName: funcName, start: time.Now()}
}

func (m *Metric) Complete(err error) {
	inFlight.WithLabelValues(m.funcName).Dec()
	queryDuration.WithLabelValues(m.funcName, outcome(err)).Observe(time.Since(m.start).Seconds())
}

// outcome separates missing rows and lock timeouts from other failures.
func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, core.ErrNotFound):
		return outcomeNotFound
	case errors.Is(err, core.ErrContention):
		return outcomeContention
	default:
		return outcomeError
	}
}

func init() {
	prometheus.MustRegister(queryDuration, inFlight)
}
