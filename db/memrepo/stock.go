package memrepo

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/catalog"
	"github.com/sksmith/stock-ledger/core/inventory"
)

type inventoryRepo struct {
	*Store
}

func NewInventoryRepo(s *Store) inventory.Repository {
	return &inventoryRepo{Store: s}
}

func (r *inventoryRepo) GetStock(ctx context.Context, productID int64, options ...core.QueryOptions) (inventory.StockRecord, error) {
	tx, forUpdate, err := queryTx(options...)
	if err != nil {
		return inventory.StockRecord{}, err
	}
	if forUpdate && tx != nil {
		if err := tx.lock(ctx, productID); err != nil {
			return inventory.StockRecord{}, err
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stock[productID]
	if !ok {
		return inventory.StockRecord{}, errors.WithStack(core.ErrNotFound)
	}
	return s, nil
}

func (r *inventoryRepo) matches(s inventory.StockRecord, filter inventory.StockFilter) bool {
	available := s.Available()
	switch filter.Level {
	case inventory.LowLevel:
		if available <= 0 || available > inventory.LowStockCeiling {
			return false
		}
	case inventory.OutLevel:
		if available > 0 {
			return false
		}
	case inventory.NormalLevel:
		if available <= inventory.LowStockCeiling {
			return false
		}
	}

	if filter.Search == "" {
		return true
	}
	p, ok := r.products[s.ProductID]
	if !ok {
		return false
	}
	search := strings.ToLower(filter.Search)
	return strings.Contains(strings.ToLower(p.Name), search) || strings.Contains(strings.ToLower(p.Category), search)
}

func (r *inventoryRepo) sortedStock(keep func(s inventory.StockRecord) bool) []inventory.StockRecord {
	stock := make([]inventory.StockRecord, 0)
	for _, s := range r.stock {
		if keep(s) {
			stock = append(stock, s)
		}
	}
	sort.Slice(stock, func(i, j int) bool { return stock[i].ProductID < stock[j].ProductID })
	return stock
}

func (r *inventoryRepo) ListStock(ctx context.Context, filter inventory.StockFilter, limit, offset int, options ...core.QueryOptions) ([]inventory.StockRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stock := r.sortedStock(func(s inventory.StockRecord) bool { return r.matches(s, filter) })
	if offset >= len(stock) {
		return []inventory.StockRecord{}, nil
	}
	end := offset + limit
	if end > len(stock) {
		end = len(stock)
	}
	return stock[offset:end], nil
}

func (r *inventoryRepo) GetLowStock(ctx context.Context, threshold int64, options ...core.QueryOptions) ([]inventory.StockRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedStock(func(s inventory.StockRecord) bool {
		return s.Available() < threshold && r.products[s.ProductID].Status == catalog.Active
	}), nil
}

func (r *inventoryRepo) SummarizeStock(ctx context.Context, threshold int64, options ...core.QueryOptions) (inventory.StockSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := inventory.StockSummary{}
	for _, s := range r.stock {
		available := s.Available()
		summary.Total++
		if available < threshold {
			summary.Low++
		} else {
			summary.InStock++
		}
		if available == 0 {
			summary.OutOf++
		}
	}
	return summary, nil
}

func (r *inventoryRepo) CreateStock(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) error {
	tx, err := updateTx(options...)
	if err != nil {
		return err
	}

	if tx != nil {
		if err := tx.lock(ctx, stock.ProductID); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stock[stock.ProductID]; ok {
		return errors.Wrapf(core.ErrAlreadyExists, "stock for product %d", stock.ProductID)
	}
	r.insertStock(tx, *stock)
	return nil
}

func (r *inventoryRepo) EnsureStock(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) (bool, error) {
	tx, err := updateTx(options...)
	if err != nil {
		return false, err
	}

	if tx != nil {
		if err := tx.lock(ctx, stock.ProductID); err != nil {
			return false, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stock[stock.ProductID]; ok {
		return false, nil
	}
	r.insertStock(tx, *stock)
	return true, nil
}

func (r *inventoryRepo) insertStock(tx *Tx, stock inventory.StockRecord) {
	stock.Version = 0
	r.stock[stock.ProductID] = stock
	record(tx, func() { delete(r.stock, stock.ProductID) })
}

func (r *inventoryRepo) SaveStock(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) error {
	tx, err := updateTx(options...)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.stock[stock.ProductID]
	if !ok {
		return errors.WithStack(core.ErrNotFound)
	}
	stock.Version = prev.Version + 1
	r.stock[stock.ProductID] = *stock
	record(tx, func() { r.stock[prev.ProductID] = prev })
	return nil
}

func (r *inventoryRepo) DeleteStock(ctx context.Context, productID int64, options ...core.UpdateOptions) error {
	tx, err := updateTx(options...)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.stock[productID]
	if !ok {
		return errors.WithStack(core.ErrNotFound)
	}
	delete(r.stock, productID)
	record(tx, func() { r.stock[prev.ProductID] = prev })
	return nil
}

func (r *inventoryRepo) SaveReservation(ctx context.Context, reservation *inventory.Reservation, options ...core.UpdateOptions) error {
	tx, err := updateTx(options...)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reservations[reservation.ID]; ok {
		return errors.Wrapf(core.ErrAlreadyExists, "reservation %s", reservation.ID)
	}
	res := *reservation
	r.reservations[res.ID] = res
	record(tx, func() { delete(r.reservations, res.ID) })
	return nil
}

func (r *inventoryRepo) sortedReservations(keep func(res inventory.Reservation) bool) []inventory.Reservation {
	res := make([]inventory.Reservation, 0)
	for _, v := range r.reservations {
		if keep(v) {
			res = append(res, v)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (r *inventoryRepo) GetReservationsByOrder(ctx context.Context, orderID string, options ...core.QueryOptions) ([]inventory.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := r.sortedReservations(func(v inventory.Reservation) bool { return v.OrderID == orderID })
	sort.SliceStable(res, func(i, j int) bool { return res[i].ProductID < res[j].ProductID })
	return res, nil
}

func (r *inventoryRepo) GetExpiredReservations(ctx context.Context, before time.Time, afterID string, limit int, options ...core.QueryOptions) ([]inventory.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := r.sortedReservations(func(v inventory.Reservation) bool {
		return v.ExpiredAt(before) && v.ID > afterID
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *inventoryRepo) CountReservations(ctx context.Context, productID int64, options ...core.QueryOptions) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, v := range r.reservations {
		if v.ProductID == productID {
			count++
		}
	}
	return count, nil
}

func (r *inventoryRepo) DeleteReservation(ctx context.Context, id string, options ...core.UpdateOptions) (bool, error) {
	tx, err := updateTx(options...)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.reservations[id]
	if !ok {
		return false, nil
	}
	delete(r.reservations, id)
	record(tx, func() { r.reservations[prev.ID] = prev })
	return true, nil
}
