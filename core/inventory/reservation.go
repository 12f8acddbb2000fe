package inventory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/stock-ledger/core"
)

const (
	DefaultReservationTTL = 30 * time.Minute
	defaultSweepPageSize  = 100
)

type ReservationService interface {
	ReserveForOrder(ctx context.Context, quantities map[int64]int64, orderID string) (string, error)
	ConfirmReservation(ctx context.Context, orderID string) error
	ReleaseAllForOrder(ctx context.Context, orderID string) error
	Reservations(ctx context.Context, orderID string) ([]Reservation, error)
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// Coordinator turns an order's demand into reservations and resolves them later. Each reservation is created
// and destroyed in the same transaction as the stock change it stands for, so the ledger never drifts from
// the reserved totals.
type Coordinator struct {
	engine   *Engine
	repo     Repository
	ttl      time.Duration
	now      func() time.Time
	pageSize int
}

type CoordinatorOption func(c *Coordinator)

func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

func WithSweepPageSize(size int) CoordinatorOption {
	return func(c *Coordinator) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

func NewCoordinator(engine *Engine, ttl time.Duration, opts ...CoordinatorOption) *Coordinator {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	c := &Coordinator{
		engine:   engine,
		repo:     engine.repo,
		ttl:      ttl,
		now:      time.Now,
		pageSize: defaultSweepPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReserveForOrder reserves every product of the order, one transaction per product, in ascending product id
// order. There is no atomicity across products: when a product fails, the ones before it stay reserved and
// the caller is expected to compensate with ReleaseAllForOrder.
func (c *Coordinator) ReserveForOrder(ctx context.Context, quantities map[int64]int64, orderID string) (string, error) {
	const funcName = "ReserveForOrder"

	log.Info().
		Str("func", funcName).
		Str("orderId", orderID).
		Int("products", len(quantities)).
		Msg("reserving stock for order")

	if strings.TrimSpace(orderID) == "" {
		return "", errors.Wrap(core.ErrInvalidArgument, "order id is required")
	}
	if len(quantities) == 0 {
		return "", errors.Wrap(core.ErrInvalidArgument, "order has no products")
	}

	productIDs := make([]int64, 0, len(quantities))
	for productID, quantity := range quantities {
		if err := positive(quantity); err != nil {
			return "", errors.WithMessagef(err, "product %d", productID)
		}
		productIDs = append(productIDs, productID)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	for i, productID := range productIDs {
		if err := c.reserveOne(ctx, productID, quantities[productID], orderID); err != nil {
			log.Warn().
				Err(err).
				Str("func", funcName).
				Str("orderId", orderID).
				Int64("productId", productID).
				Int("reserved", i).
				Msg("order partially reserved")
			return "", errors.WithMessagef(err, "reserved %d of %d products for order %s", i, len(productIDs), orderID)
		}
	}

	return orderID, nil
}

func (c *Coordinator) reserveOne(ctx context.Context, productID, quantity int64, orderID string) (err error) {
	tx, err := c.repo.BeginTransaction(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	defer func() {
		if err != nil {
			rollback(ctx, tx, err)
		}
	}()

	stock, err := c.engine.Reserve(ctx, productID, quantity, core.UpdateOptions{Tx: tx})
	if err != nil {
		return err
	}

	now := c.now()
	res := Reservation{
		ID:        uuid.NewString(),
		ProductID: productID,
		Quantity:  quantity,
		OrderID:   orderID,
		ExpiresAt: now.Add(c.ttl),
		Created:   now,
	}
	if err = c.repo.SaveReservation(ctx, &res, core.UpdateOptions{Tx: tx}); err != nil {
		return errors.WithMessage(err, "failed to save reservation")
	}

	if err = tx.Commit(ctx); err != nil {
		return errors.WithMessage(err, "failed to commit reservation")
	}

	c.engine.publishStock(ctx, stock)
	c.engine.publishReservation(ctx, res, Reserved)
	return nil
}

// ConfirmReservation fulfills every reservation of the order. A failure part way through leaves the order
// partly fulfilled and needs manual reconciliation.
func (c *Coordinator) ConfirmReservation(ctx context.Context, orderID string) error {
	const funcName = "ConfirmReservation"

	log.Info().
		Str("func", funcName).
		Str("orderId", orderID).
		Msg("confirming reservations")

	reservations, err := c.repo.GetReservationsByOrder(ctx, orderID)
	if err != nil {
		return errors.WithStack(err)
	}
	if len(reservations) == 0 {
		return errors.Wrapf(core.ErrNotFound, "no reservations for order %s", orderID)
	}

	for i, res := range reservations {
		handled, err := c.resolve(ctx, res, Confirmed)
		if err == nil && !handled {
			err = errors.Wrapf(core.ErrNotFound, "reservation %s was already resolved", res.ID)
		}
		if err != nil {
			if i > 0 {
				log.Error().
					Err(err).
					Str("func", funcName).
					Str("orderId", orderID).
					Int("confirmed", i).
					Int("total", len(reservations)).
					Msg("order partially confirmed, manual reconciliation required")
			}
			return errors.WithMessagef(err, "confirmed %d of %d reservations for order %s", i, len(reservations), orderID)
		}
	}
	return nil
}

// ReleaseAllForOrder gives back every reservation of the order. Releasing an order with nothing left to
// release is not an error.
func (c *Coordinator) ReleaseAllForOrder(ctx context.Context, orderID string) error {
	const funcName = "ReleaseAllForOrder"

	log.Info().
		Str("func", funcName).
		Str("orderId", orderID).
		Msg("releasing reservations")

	reservations, err := c.repo.GetReservationsByOrder(ctx, orderID)
	if err != nil {
		return errors.WithStack(err)
	}

	for _, res := range reservations {
		if _, err := c.resolve(ctx, res, Released); err != nil {
			return errors.WithMessagef(err, "failed to release reservation %s", res.ID)
		}
	}
	return nil
}

func (c *Coordinator) Reservations(ctx context.Context, orderID string) ([]Reservation, error) {
	reservations, err := c.repo.GetReservationsByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return reservations, nil
}

// SweepExpired releases every reservation that expired before now and returns how many it released. It is
// safe to run from several instances at once: a reservation another sweeper already handled, or whose stock
// is locked by one, is skipped. Individual failures do not stop the sweep and are returned together.
func (c *Coordinator) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	const funcName = "SweepExpired"

	var (
		released int
		result   *multierror.Error
		afterID  = uuid.Nil.String()
	)

	for {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, err)
			break
		}

		page, err := c.repo.GetExpiredReservations(ctx, now, afterID, c.pageSize)
		if err != nil {
			result = multierror.Append(result, errors.WithStack(err))
			break
		}

		for _, res := range page {
			handled, err := c.resolve(ctx, res, Expired)
			switch {
			case errors.Is(err, core.ErrContention):
				log.Debug().Str("func", funcName).Str("reservationId", res.ID).Msg("stock locked by another worker, skipping")
			case err != nil:
				result = multierror.Append(result, errors.WithMessagef(err, "reservation %s", res.ID))
			case handled:
				released++
			}
		}

		if len(page) < c.pageSize {
			break
		}
		afterID = page[len(page)-1].ID
	}

	if released > 0 {
		log.Info().
			Str("func", funcName).
			Int("released", released).
			Msg("released expired reservations")
	}

	return released, result.ErrorOrNil()
}

// resolve deletes a reservation and applies the stock side of its outcome in one transaction. The stock lock
// is taken first, then the delete decides: when the row is already gone the unit rolls back untouched and
// handled is false.
func (c *Coordinator) resolve(ctx context.Context, res Reservation, outcome ReservationOutcome) (handled bool, err error) {
	const funcName = "resolve"

	tx, err := c.repo.BeginTransaction(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}

	defer func() {
		if err != nil || !handled {
			rollback(ctx, tx, err)
		}
	}()

	if _, err = c.repo.GetStock(ctx, res.ProductID, core.QueryOptions{Tx: tx, ForUpdate: true}); err != nil {
		c.engine.noteContention(funcName, err)
		return false, errors.WithMessagef(err, "failed to lock stock for product %d", res.ProductID)
	}

	opts := core.UpdateOptions{Tx: tx}

	deleted, err := c.repo.DeleteReservation(ctx, res.ID, opts)
	if err != nil {
		return false, errors.WithMessage(err, "failed to delete reservation")
	}
	if !deleted {
		log.Debug().Str("reservationId", res.ID).Msg("reservation already resolved")
		return false, nil
	}

	var stock StockRecord
	switch outcome {
	case Confirmed:
		stock, err = c.engine.Fulfill(ctx, res.ProductID, res.Quantity, opts)
	default:
		stock, err = c.engine.Release(ctx, res.ProductID, res.Quantity, opts)
	}
	if err != nil {
		return false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return false, errors.WithMessage(err, "failed to commit reservation outcome")
	}
	handled = true

	c.engine.publishStock(ctx, stock)
	c.engine.publishReservation(ctx, res, outcome)
	return true, nil
}
