package queue

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/bulk"
	"github.com/sksmith/stock-ledger/testutil"
)

type updaterFunc func(ctx context.Context, records []bulk.Record) (bulk.Result, error)

func (f updaterFunc) Update(ctx context.Context, records []bulk.Record) (bulk.Result, error) {
	return f(ctx, records)
}

func TestStockUpdateConsumer(t *testing.T) {
	testutil.ConfigLogging()

	tests := []struct {
		name      string
		body      string
		updateErr error
		wantName  string
		wantDlt   bool
	}{
		{
			name:     "applied",
			body:     `{"productName":"bolt","quantity":5}`,
			wantName: "bolt",
		},
		{
			name:    "malformed",
			body:    `{"productName":`,
			wantDlt: true,
		},
		{
			name:      "rejected",
			body:      `{"productName":"","quantity":5}`,
			updateErr: &bulk.BatchError{Total: 1, Failed: 1},
			wantDlt:   true,
		},
		{
			name:      "store failure",
			body:      `{"productName":"bolt","quantity":5}`,
			updateErr: errors.WithStack(core.ErrContention),
			wantName:  "bolt",
			wantDlt:   true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var (
				got  []bulk.Record
				dlts [][]byte
			)
			c := &StockUpdateConsumer{
				updater: updaterFunc(func(ctx context.Context, records []bulk.Record) (bulk.Result, error) {
					got = records
					return bulk.Result{Total: len(records)}, test.updateErr
				}),
				deadLetter: func(ctx context.Context, body []byte) {
					dlts = append(dlts, body)
				},
			}

			c.handle(context.Background(), []byte(test.body))

			if test.wantName != "" {
				if len(got) != 1 || got[0].ProductName != test.wantName {
					t.Fatalf("unexpected records got=%v want=%v", got, test.wantName)
				}
				if got[0].Quantity == nil || *got[0].Quantity != 5 {
					t.Errorf("unexpected quantity got=%v", got[0].Quantity)
				}
			}
			if test.wantDlt {
				if len(dlts) != 1 || string(dlts[0]) != test.body {
					t.Errorf("expected message on dlt got=%q", dlts)
				}
			} else if len(dlts) != 0 {
				t.Errorf("unexpected dlt messages got=%q", dlts)
			}
		})
	}
}

func TestProductKey(t *testing.T) {
	if got := string(productKey(42)); got != "42" {
		t.Errorf("unexpected key got=%s want=42", got)
	}
}
