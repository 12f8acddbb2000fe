package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/catalog"
)

const DefaultPageLimit = 50

type Service interface {
	CreateStock(ctx context.Context, productID, quantity int64) (StockRecord, error)
	GetStock(ctx context.Context, productID int64) (StockRecord, error)
	ListStock(ctx context.Context, filter StockFilter, limit, offset int) ([]StockRecord, error)
	LowStock(ctx context.Context, threshold int64) ([]StockRecord, error)
	Summary(ctx context.Context, threshold int64) (StockSummary, error)

	AvailableQuantity(ctx context.Context, productID int64) (int64, error)
	IsAvailable(ctx context.Context, productID, quantity int64) (bool, error)

	Reserve(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error)
	Release(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error)
	Fulfill(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error)
	AddStock(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error)
	SetQuantity(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error)
	EnsureStock(ctx context.Context, productID int64, options ...core.UpdateOptions) error
	Delete(ctx context.Context, productID int64) error
}

// ProductFinder is the slice of the catalog the engine needs to verify a product exists.
type ProductFinder interface {
	GetProduct(ctx context.Context, id int64, options ...core.QueryOptions) (catalog.Product, error)
}

// Engine enforces the stock invariant. Every mutation is a read-modify-write performed while holding the
// product's exclusive lock, so all changes to one StockRecord are totally ordered.
//
// Mutations accept an optional transaction. Without one the engine opens, commits and publishes on its own;
// with one it leaves commit and publishing to the caller.
type Engine struct {
	repo     Repository
	products ProductFinder
	queue    Queue
	now      func() time.Time
}

func NewEngine(repo Repository, products ProductFinder, q Queue) *Engine {
	return &Engine{
		repo:     repo,
		products: products,
		queue:    q,
		now:      time.Now,
	}
}

func (e *Engine) CreateStock(ctx context.Context, productID, quantity int64) (StockRecord, error) {
	const funcName = "CreateStock"

	log.Info().
		Str("func", funcName).
		Int64("productId", productID).
		Int64("quantity", quantity).
		Msg("creating stock record")

	if quantity < 0 {
		return StockRecord{}, errors.Wrap(core.ErrInvalidArgument, "initial quantity cannot be negative")
	}

	if _, err := e.products.GetProduct(ctx, productID); err != nil {
		return StockRecord{}, errors.WithMessagef(err, "product %d", productID)
	}

	existing, err := e.repo.GetStock(ctx, productID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return StockRecord{}, errors.WithStack(err)
	}
	if existing.ID != "" {
		return StockRecord{}, errors.Wrapf(core.ErrAlreadyExists, "stock already exists for product %d", productID)
	}

	now := e.now()
	stock := StockRecord{
		ID:            uuid.NewString(),
		ProductID:     productID,
		TotalQuantity: quantity,
		TotalReserved: 0,
		Created:       now,
		Updated:       now,
	}
	err = e.repo.CreateStock(ctx, &stock)
	observe(funcName, err)
	if err != nil {
		return StockRecord{}, errors.WithMessage(err, "failed to create stock record")
	}

	e.publishStock(ctx, stock)
	return stock, nil
}

func (e *Engine) GetStock(ctx context.Context, productID int64) (StockRecord, error) {
	const funcName = "GetStock"

	log.Debug().
		Str("func", funcName).
		Int64("productId", productID).
		Msg("getting stock")

	stock, err := e.repo.GetStock(ctx, productID)
	if err != nil {
		return stock, errors.WithStack(err)
	}
	return stock, nil
}

func (e *Engine) ListStock(ctx context.Context, filter StockFilter, limit, offset int) ([]StockRecord, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	stock, err := e.repo.ListStock(ctx, filter, limit, offset)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return stock, nil
}

// LowStock lists stock of active products whose available quantity is below threshold.
func (e *Engine) LowStock(ctx context.Context, threshold int64) ([]StockRecord, error) {
	stock, err := e.repo.GetLowStock(ctx, threshold)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return stock, nil
}

func (e *Engine) Summary(ctx context.Context, threshold int64) (StockSummary, error) {
	summary, err := e.repo.SummarizeStock(ctx, threshold)
	if err != nil {
		return StockSummary{}, errors.WithStack(err)
	}
	summary.Threshold = threshold
	return summary, nil
}

// AvailableQuantity treats a product without a stock record as having nothing available.
func (e *Engine) AvailableQuantity(ctx context.Context, productID int64) (int64, error) {
	stock, err := e.repo.GetStock(ctx, productID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return 0, nil
		}
		return 0, errors.WithStack(err)
	}
	return stock.Available(), nil
}

func (e *Engine) IsAvailable(ctx context.Context, productID, quantity int64) (bool, error) {
	available, err := e.AvailableQuantity(ctx, productID)
	if err != nil {
		return false, err
	}
	return available >= quantity, nil
}

func (e *Engine) Reserve(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error) {
	const funcName = "Reserve"

	log.Info().
		Str("func", funcName).
		Int64("productId", productID).
		Int64("quantity", quantity).
		Msg("reserving stock")

	if err := positive(quantity); err != nil {
		return StockRecord{}, err
	}
	return e.mutate(ctx, funcName, productID, func(s *StockRecord) error {
		return s.reserve(quantity)
	}, options...)
}

// Release tolerates releasing more than is reserved; reserved is clamped at zero.
func (e *Engine) Release(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error) {
	const funcName = "Release"

	log.Info().
		Str("func", funcName).
		Int64("productId", productID).
		Int64("quantity", quantity).
		Msg("releasing stock")

	if err := positive(quantity); err != nil {
		return StockRecord{}, err
	}
	return e.mutate(ctx, funcName, productID, func(s *StockRecord) error {
		if quantity > s.TotalReserved {
			log.Debug().
				Str("func", funcName).
				Int64("productId", productID).
				Int64("quantity", quantity).
				Int64("reserved", s.TotalReserved).
				Msg("release exceeds reserved, clamping to zero")
		}
		s.release(quantity)
		return nil
	}, options...)
}

func (e *Engine) Fulfill(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error) {
	const funcName = "Fulfill"

	log.Info().
		Str("func", funcName).
		Int64("productId", productID).
		Int64("quantity", quantity).
		Msg("fulfilling reserved stock")

	if err := positive(quantity); err != nil {
		return StockRecord{}, err
	}
	return e.mutate(ctx, funcName, productID, func(s *StockRecord) error {
		return s.fulfill(quantity)
	}, options...)
}

func (e *Engine) AddStock(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error) {
	const funcName = "AddStock"

	log.Info().
		Str("func", funcName).
		Int64("productId", productID).
		Int64("quantity", quantity).
		Msg("adding stock")

	if err := positive(quantity); err != nil {
		return StockRecord{}, err
	}
	return e.mutate(ctx, funcName, productID, func(s *StockRecord) error {
		return s.add(quantity)
	}, options...)
}

func (e *Engine) SetQuantity(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (StockRecord, error) {
	const funcName = "SetQuantity"

	log.Info().
		Str("func", funcName).
		Int64("productId", productID).
		Int64("quantity", quantity).
		Msg("setting stock quantity")

	if quantity < 0 {
		return StockRecord{}, errors.Wrap(core.ErrInvalidArgument, "quantity cannot be negative")
	}
	return e.mutate(ctx, funcName, productID, func(s *StockRecord) error {
		return s.setQuantity(quantity)
	}, options...)
}

// EnsureStock creates an empty stock record for the product unless one already exists.
func (e *Engine) EnsureStock(ctx context.Context, productID int64, options ...core.UpdateOptions) error {
	now := e.now()
	stock := StockRecord{
		ID:        uuid.NewString(),
		ProductID: productID,
		Created:   now,
		Updated:   now,
	}
	created, err := e.repo.EnsureStock(ctx, &stock, options...)
	if err != nil {
		return errors.WithMessagef(err, "failed to ensure stock for product %d", productID)
	}
	if created {
		log.Debug().Int64("productId", productID).Msg("created empty stock record")
	}
	return nil
}

func (e *Engine) Delete(ctx context.Context, productID int64) (err error) {
	const funcName = "Delete"

	log.Info().
		Str("func", funcName).
		Int64("productId", productID).
		Msg("deleting stock record")

	tx, err := e.repo.BeginTransaction(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	defer func() {
		observe(funcName, err)
		if err != nil {
			rollback(ctx, tx, err)
		}
	}()

	stock, err := e.repo.GetStock(ctx, productID, core.QueryOptions{Tx: tx, ForUpdate: true})
	if err != nil {
		e.noteContention(funcName, err)
		return errors.WithMessagef(err, "failed to lock stock for product %d", productID)
	}

	if stock.TotalReserved > 0 {
		return errors.Wrapf(core.ErrInvalidState, "cannot delete stock with %d units reserved", stock.TotalReserved)
	}

	pending, err := e.repo.CountReservations(ctx, productID, core.QueryOptions{Tx: tx})
	if err != nil {
		return errors.WithStack(err)
	}
	if pending > 0 {
		return errors.Wrapf(core.ErrInvalidState, "cannot delete stock with %d pending reservations", pending)
	}

	if err = e.repo.DeleteStock(ctx, productID, core.UpdateOptions{Tx: tx}); err != nil {
		return errors.WithStack(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// mutate locks the product's stock record, applies fn and persists the result. fn returning an error leaves
// the record untouched.
func (e *Engine) mutate(ctx context.Context, funcName string, productID int64, fn func(s *StockRecord) error, options ...core.UpdateOptions) (stock StockRecord, err error) {
	defer func() {
		observe(funcName, err)
	}()

	tx := core.TxFromUpdate(options...)
	owned := tx == nil
	if owned {
		tx, err = e.repo.BeginTransaction(ctx)
		if err != nil {
			return StockRecord{}, errors.WithStack(err)
		}

		defer func() {
			if err != nil {
				rollback(ctx, tx, err)
			}
		}()
	}

	stock, err = e.repo.GetStock(ctx, productID, core.QueryOptions{Tx: tx, ForUpdate: true})
	if err != nil {
		e.noteContention(funcName, err)
		return StockRecord{}, errors.WithMessagef(err, "failed to lock stock for product %d", productID)
	}

	if err = fn(&stock); err != nil {
		return StockRecord{}, err
	}
	stock.Updated = e.now()

	if err = e.repo.SaveStock(ctx, &stock, core.UpdateOptions{Tx: tx}); err != nil {
		return StockRecord{}, errors.WithMessagef(err, "failed to save stock for product %d", productID)
	}

	if owned {
		if err = tx.Commit(ctx); err != nil {
			return StockRecord{}, errors.WithMessage(err, "failed to commit stock change")
		}
		e.publishStock(ctx, stock)
	}

	return stock, nil
}

func (e *Engine) noteContention(funcName string, err error) {
	if errors.Is(err, core.ErrContention) {
		lockContention.WithLabelValues(funcName).Inc()
	}
}

// publishStock is called after commit; a failed publish cannot undo the change, so it is only logged.
func (e *Engine) publishStock(ctx context.Context, stock StockRecord) {
	if e.queue == nil {
		return
	}
	if err := e.queue.PublishStock(ctx, stock); err != nil {
		log.Warn().Err(err).Int64("productId", stock.ProductID).Msg("failed to publish stock update")
	}
}

func (e *Engine) publishReservation(ctx context.Context, res Reservation, outcome ReservationOutcome) {
	reservationOutcomes.WithLabelValues(string(outcome)).Inc()
	if e.queue == nil {
		return
	}
	event := ReservationEvent{Reservation: res, Outcome: outcome, At: e.now()}
	if err := e.queue.PublishReservation(ctx, event); err != nil {
		log.Warn().Err(err).Str("reservationId", res.ID).Msg("failed to publish reservation event")
	}
}

func positive(quantity int64) error {
	if quantity < 1 {
		return errors.Wrapf(core.ErrInvalidArgument, "quantity must be greater than zero, got %d", quantity)
	}
	return nil
}
