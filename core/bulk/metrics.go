package bulk

import "github.com/prometheus/client_golang/prometheus"

var bulkRecords = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stock_ledger_bulk_records",
		Help: "Number of bulk update records processed by result",
	},
	[]string{"result"},
)

var inlineTasks = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "stock_ledger_bulk_inline_tasks",
		Help: "Number of bulk update records run by the submitter because the worker queue was full",
	},
)

func init() {
	prometheus.MustRegister(bulkRecords)
	prometheus.MustRegister(inlineTasks)
}
