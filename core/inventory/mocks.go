package inventory

import (
	"context"
	"time"

	"github.com/sksmith/stock-ledger/core"
)

type MockStockService struct {
	CreateStockFunc       func(ctx context.Context, productID, quantity int64) (StockRecord, error)
	GetStockFunc          func(ctx context.Context, productID int64) (StockRecord, error)
	ListStockFunc         func(ctx context.Context, filter StockFilter, limit, offset int) ([]StockRecord, error)
	LowStockFunc          func(ctx context.Context, threshold int64) ([]StockRecord, error)
	SummaryFunc           func(ctx context.Context, threshold int64) (StockSummary, error)
	AvailableQuantityFunc func(ctx context.Context, productID int64) (int64, error)
	IsAvailableFunc       func(ctx context.Context, productID, quantity int64) (bool, error)
	ReserveFunc           func(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error)
	ReleaseFunc           func(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error)
	FulfillFunc           func(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error)
	AddStockFunc          func(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error)
	SetQuantityFunc       func(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error)
	EnsureStockFunc       func(ctx context.Context, productID int64, options ...core.UpdateOptions) error
	DeleteFunc            func(ctx context.Context, productID int64) error
}

func NewMockStockService() MockStockService {
	mutation := func(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error) {
		return StockRecord{ProductID: productID}, nil
	}
	return MockStockService{
		CreateStockFunc: func(ctx context.Context, productID, quantity int64) (StockRecord, error) {
			return StockRecord{ProductID: productID, TotalQuantity: quantity}, nil
		},
		GetStockFunc: func(ctx context.Context, productID int64) (StockRecord, error) {
			return StockRecord{ProductID: productID}, nil
		},
		ListStockFunc: func(ctx context.Context, filter StockFilter, limit, offset int) ([]StockRecord, error) {
			return []StockRecord{}, nil
		},
		LowStockFunc: func(ctx context.Context, threshold int64) ([]StockRecord, error) {
			return []StockRecord{}, nil
		},
		SummaryFunc: func(ctx context.Context, threshold int64) (StockSummary, error) {
			return StockSummary{Threshold: threshold}, nil
		},
		AvailableQuantityFunc: func(ctx context.Context, productID int64) (int64, error) { return 0, nil },
		IsAvailableFunc:       func(ctx context.Context, productID, quantity int64) (bool, error) { return true, nil },
		ReserveFunc:           mutation,
		ReleaseFunc:           mutation,
		FulfillFunc:           mutation,
		AddStockFunc:          mutation,
		SetQuantityFunc:       mutation,
		EnsureStockFunc:       func(ctx context.Context, productID int64, options ...core.UpdateOptions) error { return nil },
		DeleteFunc:            func(ctx context.Context, productID int64) error { return nil },
	}
}

func (m *MockStockService) CreateStock(ctx context.Context, productID, quantity int64) (StockRecord, error) {
	return m.CreateStockFunc(ctx, productID, quantity)
}

func (m *MockStockService) GetStock(ctx context.Context, productID int64) (StockRecord, error) {
	return m.GetStockFunc(ctx, productID)
}

func (m *MockStockService) ListStock(ctx context.Context, filter StockFilter, limit, offset int) ([]StockRecord, error) {
	return m.ListStockFunc(ctx, filter, limit, offset)
}

func (m *MockStockService) LowStock(ctx context.Context, threshold int64) ([]StockRecord, error) {
	return m.LowStockFunc(ctx, threshold)
}

func (m *MockStockService) Summary(ctx context.Context, threshold int64) (StockSummary, error) {
	return m.SummaryFunc(ctx, threshold)
}

func (m *MockStockService) AvailableQuantity(ctx context.Context, productID int64) (int64, error) {
	return m.AvailableQuantityFunc(ctx, productID)
}

func (m *MockStockService) IsAvailable(ctx context.Context, productID, quantity int64) (bool, error) {
	return m.IsAvailableFunc(ctx, productID, quantity)
}

func (m *MockStockService) Reserve(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error) {
	return m.ReserveFunc(ctx, productID, quantity, options...)
}

func (m *MockStockService) Release(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error) {
	return m.ReleaseFunc(ctx, productID, quantity, options...)
}

func (m *MockStockService) Fulfill(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error) {
	return m.FulfillFunc(ctx, productID, quantity, options...)
}

func (m *MockStockService) AddStock(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error) {
	return m.AddStockFunc(ctx, productID, quantity, options...)
}

func (m *MockStockService) SetQuantity(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error) {
	return m.SetQuantityFunc(ctx, productID, quantity, options...)
}

func (m *MockStockService) EnsureStock(ctx context.Context, productID int64, options ...core.UpdateOptions) error {
	return m.EnsureStockFunc(ctx, productID, options...)
}

func (m *MockStockService) Delete(ctx context.Context, productID int64) error {
	return m.DeleteFunc(ctx, productID)
}

type MockReservationService struct {
	ReserveForOrderFunc    func(ctx context.Context, quantities map[int64]int64, orderID string) (string, error)
	ConfirmReservationFunc func(ctx context.Context, orderID string) error
	ReleaseAllForOrderFunc func(ctx context.Context, orderID string) error
	ReservationsFunc       func(ctx context.Context, orderID string) ([]Reservation, error)
	SweepExpiredFunc       func(ctx context.Context, now time.Time) (int, error)
}

func NewMockReservationService() MockReservationService {
	return MockReservationService{
		ReserveForOrderFunc: func(ctx context.Context, quantities map[int64]int64, orderID string) (string, error) {
			return orderID, nil
		},
		ConfirmReservationFunc: func(ctx context.Context, orderID string) error { return nil },
		ReleaseAllForOrderFunc: func(ctx context.Context, orderID string) error { return nil },
		ReservationsFunc: func(ctx context.Context, orderID string) ([]Reservation, error) {
			return []Reservation{}, nil
		},
		SweepExpiredFunc: func(ctx context.Context, now time.Time) (int, error) { return 0, nil },
	}
}

func (m *MockReservationService) ReserveForOrder(ctx context.Context, quantities map[int64]int64, orderID string) (string, error) {
	return m.ReserveForOrderFunc(ctx, quantities, orderID)
}

func (m *MockReservationService) ConfirmReservation(ctx context.Context, orderID string) error {
	return m.ConfirmReservationFunc(ctx, orderID)
}

func (m *MockReservationService) ReleaseAllForOrder(ctx context.Context, orderID string) error {
	return m.ReleaseAllForOrderFunc(ctx, orderID)
}

func (m *MockReservationService) Reservations(ctx context.Context, orderID string) ([]Reservation, error) {
	return m.ReservationsFunc(ctx, orderID)
}

func (m *MockReservationService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	return m.SweepExpiredFunc(ctx, now)
}
