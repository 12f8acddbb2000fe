package db

import (
	"testing"

	"github.com/pkg/errors"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sksmith/stock-ledger/core"
)

func TestMetricOutcomes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "success", want: outcomeOK},
		{name: "missing row", err: errors.WithStack(core.ErrNotFound), want: outcomeNotFound},
		{name: "lock timeout", err: errors.Wrap(core.ErrContention, "canceling statement"), want: outcomeContention},
		{name: "other failure", err: errors.New("connection reset"), want: outcomeError},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			funcName := "Metric" + test.want

			m := StartMetric(funcName)
			if got := promtest.ToFloat64(inFlight.WithLabelValues(funcName)); got != 1 {
				t.Errorf("in flight got=%v want=1", got)
			}
			m.Complete(test.err)

			if got := promtest.ToFloat64(inFlight.WithLabelValues(funcName)); got != 0 {
				t.Errorf("in flight after complete got=%v want=0", got)
			}
			if got := outcome(test.err); got != test.want {
				t.Errorf("outcome got=%s want=%s", got, test.want)
			}
		})
	}

	if got := promtest.CollectAndCount(queryDuration); got < len(tests) {
		t.Errorf("observed series got=%d want at least %d", got, len(tests))
	}
}
