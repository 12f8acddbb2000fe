package inventory

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sksmith/stock-ledger/core"
)

func rollback(ctx context.Context, tx core.Transaction, err error) {
	if tx == nil {
		return
	}
	e := tx.Rollback(ctx)
	if e != nil {
		log.Warn().Err(e).AnErr("cause", err).Msg("failed to rollback")
	}
}

type Repository interface {
	StockRepository
	ReservationRepository
}

type StockRepository interface {
	core.Transactional

	// GetStock with ForUpdate takes the product's exclusive lock for the life of the transaction. A lock that
	// cannot be acquired within the configured timeout fails with core.ErrContention.
	GetStock(ctx context.Context, productID int64, options ...core.QueryOptions) (StockRecord, error)
	ListStock(ctx context.Context, filter StockFilter, limit, offset int, options ...core.QueryOptions) ([]StockRecord, error)
	GetLowStock(ctx context.Context, threshold int64, options ...core.QueryOptions) ([]StockRecord, error)
	SummarizeStock(ctx context.Context, threshold int64, options ...core.QueryOptions) (StockSummary, error)

	// CreateStock fails with core.ErrAlreadyExists when the product already has a record.
	CreateStock(ctx context.Context, stock *StockRecord, options ...core.UpdateOptions) error
	// EnsureStock inserts the record unless the product already has one. It never fails on a duplicate and is
	// safe against concurrent creators.
	EnsureStock(ctx context.Context, stock *StockRecord, options ...core.UpdateOptions) (created bool, err error)
	SaveStock(ctx context.Context, stock *StockRecord, options ...core.UpdateOptions) error
	DeleteStock(ctx context.Context, productID int64, options ...core.UpdateOptions) error
}

type ReservationRepository interface {
	core.Transactional

	SaveReservation(ctx context.Context, reservation *Reservation, options ...core.UpdateOptions) error
	GetReservationsByOrder(ctx context.Context, orderID string, options ...core.QueryOptions) ([]Reservation, error)
	// GetExpiredReservations pages through reservations expiring before the given time, ordered by id and
	// starting after afterID.
	GetExpiredReservations(ctx context.Context, before time.Time, afterID string, limit int, options ...core.QueryOptions) ([]Reservation, error)
	CountReservations(ctx context.Context, productID int64, options ...core.QueryOptions) (int64, error)

	// DeleteReservation reports false when the row was already gone.
	DeleteReservation(ctx context.Context, id string, options ...core.UpdateOptions) (deleted bool, err error)
}

type Queue interface {
	PublishStock(ctx context.Context, stock StockRecord) error
	PublishReservation(ctx context.Context, event ReservationEvent) error
}
