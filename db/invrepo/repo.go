package invrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/catalog"
	"github.com/sksmith/stock-ledger/core/inventory"
	"github.com/sksmith/stock-ledger/db"
)

const stockColumns = `s.id, s.product_id, s.total_quantity, s.total_reserved, s.version, s.created_at, s.updated_at`

type dbRepo struct {
	conn        db.Conn
	lockTimeout time.Duration
}

func NewPostgresRepo(conn db.Conn, lockTimeout time.Duration) inventory.Repository {
	if lockTimeout <= 0 {
		lockTimeout = db.DefaultLockTimeout
	}
	return &dbRepo{
		conn:        conn,
		lockTimeout: lockTimeout,
	}
}

func (d *dbRepo) BeginTransaction(ctx context.Context) (core.Transaction, error) {
	tx, err := d.conn.Begin(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return tx, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanStock(row scanner) (inventory.StockRecord, error) {
	s := inventory.StockRecord{}
	err := row.Scan(&s.ID, &s.ProductID, &s.TotalQuantity, &s.TotalReserved, &s.Version, &s.Created, &s.Updated)
	return s, err
}

func (d *dbRepo) GetStock(ctx context.Context, productID int64, options ...core.QueryOptions) (stock inventory.StockRecord, err error) {
	m := db.StartMetric("GetStock")
	defer func() { m.Complete(err) }()

	tx, forUpdate, err := db.GetQueryOptions(d.conn, options...)
	if err != nil {
		return stock, err
	}

	if forUpdate != "" && len(options) > 0 && options[0].Tx != nil {
		if err = db.SetLockTimeout(ctx, tx, d.lockTimeout); err != nil {
			return stock, db.MapError(err)
		}
	}

	stock, err = scanStock(tx.QueryRow(ctx,
		`SELECT `+stockColumns+` FROM stock_records s WHERE s.product_id = $1 `+forUpdate, productID))
	if err != nil {
		return inventory.StockRecord{}, db.MapError(err)
	}
	return stock, nil
}

func levelClause(level inventory.StockLevel) string {
	available := "(s.total_quantity - s.total_reserved)"
	switch level {
	case inventory.LowLevel:
		return fmt.Sprintf(" AND %s > 0 AND %s <= %d", available, available, inventory.LowStockCeiling)
	case inventory.OutLevel:
		return fmt.Sprintf(" AND %s <= 0", available)
	case inventory.NormalLevel:
		return fmt.Sprintf(" AND %s > %d", available, inventory.LowStockCeiling)
	default:
		return ""
	}
}

func (d *dbRepo) ListStock(ctx context.Context, filter inventory.StockFilter, limit, offset int, options ...core.QueryOptions) (stock []inventory.StockRecord, err error) {
	m := db.StartMetric("ListStock")
	defer func() { m.Complete(err) }()

	tx, _, err := db.GetQueryOptions(d.conn, options...)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + stockColumns + `
	            FROM stock_records s
	            JOIN products p ON p.id = s.product_id
	           WHERE ($1 = '' OR p.name ILIKE '%' || $1 || '%' OR p.category ILIKE '%' || $1 || '%')` +
		levelClause(filter.Level) + `
	        ORDER BY s.product_id
	           LIMIT $2 OFFSET $3`

	return d.queryStock(ctx, tx, query, filter.Search, limit, offset)
}

func (d *dbRepo) GetLowStock(ctx context.Context, threshold int64, options ...core.QueryOptions) (stock []inventory.StockRecord, err error) {
	m := db.StartMetric("GetLowStock")
	defer func() { m.Complete(err) }()

	tx, _, err := db.GetQueryOptions(d.conn, options...)
	if err != nil {
		return nil, err
	}

	return d.queryStock(ctx, tx, `
		SELECT `+stockColumns+`
		  FROM stock_records s
		  JOIN products p ON p.id = s.product_id
		 WHERE (s.total_quantity - s.total_reserved) < $1
		   AND p.status = $2
	  ORDER BY s.product_id`, threshold, string(catalog.Active))
}

func (d *dbRepo) queryStock(ctx context.Context, tx db.Conn, query string, args ...interface{}) ([]inventory.StockRecord, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	stock := make([]inventory.StockRecord, 0)
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, db.MapError(err)
		}
		stock = append(stock, s)
	}
	if err := rows.Err(); err != nil {
		return nil, db.MapError(err)
	}
	return stock, nil
}

func (d *dbRepo) SummarizeStock(ctx context.Context, threshold int64, options ...core.QueryOptions) (summary inventory.StockSummary, err error) {
	m := db.StartMetric("SummarizeStock")
	defer func() { m.Complete(err) }()

	tx, _, err := db.GetQueryOptions(d.conn, options...)
	if err != nil {
		return summary, err
	}

	err = tx.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE (total_quantity - total_reserved) < $1),
		       COUNT(*) FILTER (WHERE (total_quantity - total_reserved) = 0),
		       COUNT(*) FILTER (WHERE (total_quantity - total_reserved) >= $1)
		  FROM stock_records`, threshold).
		Scan(&summary.Total, &summary.Low, &summary.OutOf, &summary.InStock)
	if err != nil {
		return inventory.StockSummary{}, db.MapError(err)
	}
	return summary, nil
}

func (d *dbRepo) CreateStock(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) (err error) {
	m := db.StartMetric("CreateStock")
	defer func() { m.Complete(err) }()

	tx, err := db.GetUpdateOptions(d.conn, options...)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO stock_records (id, product_id, total_quantity, total_reserved, version, created_at, updated_at)
		                   VALUES ($1, $2, $3, $4, 0, $5, $6);`,
		stock.ID, stock.ProductID, stock.TotalQuantity, stock.TotalReserved, stock.Created, stock.Updated)
	if err != nil {
		return db.MapError(err)
	}
	stock.Version = 0
	return nil
}

func (d *dbRepo) EnsureStock(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) (created bool, err error) {
	m := db.StartMetric("EnsureStock")
	defer func() { m.Complete(err) }()

	tx, err := db.GetUpdateOptions(d.conn, options...)
	if err != nil {
		return false, err
	}

	ct, err := tx.Exec(ctx, `
		INSERT INTO stock_records (id, product_id, total_quantity, total_reserved, version, created_at, updated_at)
		                   VALUES ($1, $2, $3, $4, 0, $5, $6)
		ON CONFLICT (product_id) DO NOTHING;`,
		stock.ID, stock.ProductID, stock.TotalQuantity, stock.TotalReserved, stock.Created, stock.Updated)
	if err != nil {
		return false, db.MapError(err)
	}
	return ct.RowsAffected() > 0, nil
}

func (d *dbRepo) SaveStock(ctx context.Context, stock *inventory.StockRecord, options ...core.UpdateOptions) (err error) {
	m := db.StartMetric("SaveStock")
	defer func() { m.Complete(err) }()

	tx, err := db.GetUpdateOptions(d.conn, options...)
	if err != nil {
		return err
	}

	ct, err := tx.Exec(ctx, `
		UPDATE stock_records
		   SET total_quantity = $2, total_reserved = $3, version = version + 1, updated_at = $4
		 WHERE product_id = $1;`,
		stock.ProductID, stock.TotalQuantity, stock.TotalReserved, stock.Updated)
	if err != nil {
		return db.MapError(err)
	}
	if ct.RowsAffected() == 0 {
		return errors.WithStack(core.ErrNotFound)
	}
	stock.Version++
	return nil
}

func (d *dbRepo) DeleteStock(ctx context.Context, productID int64, options ...core.UpdateOptions) (err error) {
	m := db.StartMetric("DeleteStock")
	defer func() { m.Complete(err) }()

	tx, err := db.GetUpdateOptions(d.conn, options...)
	if err != nil {
		return err
	}

	ct, err := tx.Exec(ctx, `DELETE FROM stock_records WHERE product_id = $1`, productID)
	if err != nil {
		return db.MapError(err)
	}
	if ct.RowsAffected() == 0 {
		return errors.WithStack(core.ErrNotFound)
	}
	return nil
}

func (d *dbRepo) SaveReservation(ctx context.Context, r *inventory.Reservation, options ...core.UpdateOptions) (err error) {
	m := db.StartMetric("SaveReservation")
	defer func() { m.Complete(err) }()

	tx, err := db.GetUpdateOptions(d.conn, options...)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reservations (id, product_id, quantity, order_id, expires_at, created_at)
		                  VALUES ($1, $2, $3, $4, $5, $6);`,
		r.ID, r.ProductID, r.Quantity, r.OrderID, r.ExpiresAt, r.Created)
	return db.MapError(err)
}

const reservationColumns = `id, product_id, quantity, order_id, expires_at, created_at`

func (d *dbRepo) GetReservationsByOrder(ctx context.Context, orderID string, options ...core.QueryOptions) (res []inventory.Reservation, err error) {
	m := db.StartMetric("GetReservationsByOrder")
	defer func() { m.Complete(err) }()

	tx, forUpdate, err := db.GetQueryOptions(d.conn, options...)
	if err != nil {
		return nil, err
	}

	return d.queryReservations(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations WHERE order_id = $1 ORDER BY product_id, id `+forUpdate,
		orderID)
}

func (d *dbRepo) GetExpiredReservations(ctx context.Context, before time.Time, afterID string, limit int, options ...core.QueryOptions) (res []inventory.Reservation, err error) {
	m := db.StartMetric("GetExpiredReservations")
	defer func() { m.Complete(err) }()

	tx, _, err := db.GetQueryOptions(d.conn, options...)
	if err != nil {
		return nil, err
	}

	return d.queryReservations(ctx, tx, `
		SELECT `+reservationColumns+`
		  FROM reservations
		 WHERE expires_at < $1 AND id > $2
	  ORDER BY id
	     LIMIT $3`, before, afterID, limit)
}

func (d *dbRepo) queryReservations(ctx context.Context, tx db.Conn, query string, args ...interface{}) ([]inventory.Reservation, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()

	res := make([]inventory.Reservation, 0)
	for rows.Next() {
		r := inventory.Reservation{}
		if err := rows.Scan(&r.ID, &r.ProductID, &r.Quantity, &r.OrderID, &r.ExpiresAt, &r.Created); err != nil {
			return nil, db.MapError(err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, db.MapError(err)
	}
	return res, nil
}

func (d *dbRepo) CountReservations(ctx context.Context, productID int64, options ...core.QueryOptions) (count int64, err error) {
	m := db.StartMetric("CountReservations")
	defer func() { m.Complete(err) }()

	tx, _, err := db.GetQueryOptions(d.conn, options...)
	if err != nil {
		return 0, err
	}

	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM reservations WHERE product_id = $1`, productID).Scan(&count)
	if err != nil {
		return 0, db.MapError(err)
	}
	return count, nil
}

func (d *dbRepo) DeleteReservation(ctx context.Context, id string, options ...core.UpdateOptions) (deleted bool, err error) {
	m := db.StartMetric("DeleteReservation")
	defer func() { m.Complete(err) }()

	tx, err := db.GetUpdateOptions(d.conn, options...)
	if err != nil {
		return false, err
	}

	ct, err := tx.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return false, db.MapError(err)
	}
	return ct.RowsAffected() > 0, nil
}
