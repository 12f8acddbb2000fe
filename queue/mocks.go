package queue

import (
	"context"

	"github.com/sksmith/stock-ledger/core/inventory"
	"github.com/sksmith/stock-ledger/testutil"
)

type MockQueue struct {
	PublishStockFunc       func(ctx context.Context, stock inventory.StockRecord) error
	PublishReservationFunc func(ctx context.Context, event inventory.ReservationEvent) error
	*testutil.CallWatcher
}

func NewMockQueue() *MockQueue {
	return &MockQueue{
		PublishStockFunc: func(ctx context.Context, stock inventory.StockRecord) error {
			return nil
		},
		PublishReservationFunc: func(ctx context.Context, event inventory.ReservationEvent) error {
			return nil
		},
		CallWatcher: testutil.NewCallWatcher(),
	}
}

func (m *MockQueue) PublishStock(ctx context.Context, stock inventory.StockRecord) error {
	m.AddCall(ctx, stock)
	return m.PublishStockFunc(ctx, stock)
}

func (m *MockQueue) PublishReservation(ctx context.Context, event inventory.ReservationEvent) error {
	m.AddCall(ctx, event)
	return m.PublishReservationFunc(ctx, event)
}
