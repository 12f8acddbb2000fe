package invrepo

import (
	"context"
	"time"

	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/inventory"
	"github.com/sksmith/stock-ledger/testutil"
)

type MockRepo struct {
	GetStockFunc       func(ctx context.Context, productID int64, options ...core.QueryOptions) (inventory.StockRecord, error)
	ListStockFunc      func(ctx context.Context, filter inventory.StockFilter, limit, offset int, options ...core.QueryOptions) ([]inventory.StockRecord, error)
	GetLowStockFunc    func(ctx context.Context, threshold int64, options ...core.QueryOptions) ([]inventory.StockRecord, error)
	SummarizeStockFunc func(ctx context.Context, threshold int64, options ...core.QueryOptions) (inventory.StockSummary, error)
	CreateStockFunc    func(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) error
	EnsureStockFunc    func(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) (bool, error)
	SaveStockFunc      func(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) error
	DeleteStockFunc    func(ctx context.Context, productID int64, options ...core.UpdateOptions) error

	SaveReservationFunc        func(ctx context.Context, reservation *inventory.Reservation, options ...core.UpdateOptions) error
	GetReservationsByOrderFunc func(ctx context.Context, orderID string, options ...core.QueryOptions) ([]inventory.Reservation, error)
	GetExpiredReservationsFunc func(ctx context.Context, before time.Time, afterID string, limit int, options ...core.QueryOptions) ([]inventory.Reservation, error)
	CountReservationsFunc      func(ctx context.Context, productID int64, options ...core.QueryOptions) (int64, error)
	DeleteReservationFunc      func(ctx context.Context, id string, options ...core.UpdateOptions) (bool, error)

	BeginTransactionFunc func(ctx context.Context) (core.Transaction, error)

	*testutil.CallWatcher
}

func NewMockRepo() *MockRepo {
	return &MockRepo{
		GetStockFunc: func(ctx context.Context, productID int64, options ...core.QueryOptions) (inventory.StockRecord, error) {
			return inventory.StockRecord{}, core.ErrNotFound
		},
		ListStockFunc: func(ctx context.Context, filter inventory.StockFilter, limit, offset int, options ...core.QueryOptions) ([]inventory.StockRecord, error) {
			return []inventory.StockRecord{}, nil
		},
		GetLowStockFunc: func(ctx context.Context, threshold int64, options ...core.QueryOptions) ([]inventory.StockRecord, error) {
			return []inventory.StockRecord{}, nil
		},
		SummarizeStockFunc: func(ctx context.Context, threshold int64, options ...core.QueryOptions) (inventory.StockSummary, error) {
			return inventory.StockSummary{}, nil
		},
		CreateStockFunc: func(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) error { return nil },
		EnsureStockFunc: func(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) (bool, error) {
			return true, nil
		},
		SaveStockFunc:   func(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) error { return nil },
		DeleteStockFunc: func(ctx context.Context, productID int64, options ...core.UpdateOptions) error { return nil },

		SaveReservationFunc: func(ctx context.Context, reservation *inventory.Reservation, options ...core.UpdateOptions) error {
			return nil
		},
		GetReservationsByOrderFunc: func(ctx context.Context, orderID string, options ...core.QueryOptions) ([]inventory.Reservation, error) {
			return []inventory.Reservation{}, nil
		},
		GetExpiredReservationsFunc: func(ctx context.Context, before time.Time, afterID string, limit int, options ...core.QueryOptions) ([]inventory.Reservation, error) {
			return []inventory.Reservation{}, nil
		},
		CountReservationsFunc: func(ctx context.Context, productID int64, options ...core.QueryOptions) (int64, error) {
			return 0, nil
		},
		DeleteReservationFunc: func(ctx context.Context, id string, options ...core.UpdateOptions) (bool, error) {
			return true, nil
		},

		BeginTransactionFunc: func(ctx context.Context) (core.Transaction, error) { return nil, nil },
		CallWatcher:          testutil.NewCallWatcher(),
	}
}

func (r *MockRepo) GetStock(ctx context.Context, productID int64, options ...core.QueryOptions) (inventory.StockRecord, error) {
	r.AddCall(ctx, productID, options)
	return r.GetStockFunc(ctx, productID, options...)
}

func (r *MockRepo) ListStock(ctx context.Context, filter inventory.StockFilter, limit, offset int, options ...core.QueryOptions) ([]inventory.StockRecord, error) {
	r.AddCall(ctx, filter, limit, offset, options)
	return r.ListStockFunc(ctx, filter, limit, offset, options...)
}

func (r *MockRepo) GetLowStock(ctx context.Context, threshold int64, options ...core.QueryOptions) ([]inventory.StockRecord, error) {
	r.AddCall(ctx, threshold, options)
	return r.GetLowStockFunc(ctx, threshold, options...)
}

func (r *MockRepo) SummarizeStock(ctx context.Context, threshold int64, options ...core.QueryOptions) (inventory.StockSummary, error) {
	r.AddCall(ctx, threshold, options)
	return r.SummarizeStockFunc(ctx, threshold, options...)
}

func (r *MockRepo) CreateStock(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) error {
	r.AddCall(ctx, stock, options)
	return r.CreateStockFunc(ctx, stock, options...)
}

func (r *MockRepo) EnsureStock(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) (bool, error) {
	r.AddCall(ctx, stock, options)
	return r.EnsureStockFunc(ctx, stock, options...)
}

func (r *MockRepo) SaveStock(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) error {
	r.AddCall(ctx, stock, options)
	return r.SaveStockFunc(ctx, stock, options...)
}

func (r *MockRepo) DeleteStock(ctx context.Context, productID int64, options ...core.UpdateOptions) error {
	r.AddCall(ctx, productID, options)
	return r.DeleteStockFunc(ctx, productID, options...)
}

func (r *MockRepo) SaveReservation(ctx context.Context, reservation *inventory.Reservation, options ...core.UpdateOptions) error {
	r.AddCall(ctx, reservation, options)
	return r.SaveReservationFunc(ctx, reservation, options...)
}

func (r *MockRepo) GetReservationsByOrder(ctx context.Context, orderID string, options ...core.QueryOptions) ([]inventory.Reservation, error) {
	r.AddCall(ctx, orderID, options)
	return r.GetReservationsByOrderFunc(ctx, orderID, options...)
}

func (r *MockRepo) GetExpiredReservations(ctx context.Context, before time.Time, afterID string, limit int, options ...core.QueryOptions) ([]inventory.Reservation, error) {
	r.AddCall(ctx, before, afterID, limit, options)
	return r.GetExpiredReservationsFunc(ctx, before, afterID, limit, options...)
}

func (r *MockRepo) CountReservations(ctx context.Context, productID int64, options ...core.QueryOptions) (int64, error) {
	r.AddCall(ctx, productID, options)
	return r.CountReservationsFunc(ctx, productID, options...)
}

func (r *MockRepo) DeleteReservation(ctx context.Context, id string, options ...core.UpdateOptions) (bool, error) {
	r.AddCall(ctx, id, options)
	return r.DeleteReservationFunc(ctx, id, options...)
}

func (r *MockRepo) BeginTransaction(ctx context.Context) (core.Transaction, error) {
	r.AddCall(ctx)
	return r.BeginTransactionFunc(ctx)
}
