package catalogrepo

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/catalog"
	"github.com/sksmith/stock-ledger/db"

	lru "github.com/hashicorp/golang-lru"
)

const productColumns = `id, name, category, description, status, price::text`

type dbRepo struct {
	conn   db.Conn
	byID   *lru.Cache
	byName *lru.Cache
}

// NewPostgresRepo caches products by id and by name. Products are never updated by the ledger, so cached
// entries only go stale when the catalog is changed elsewhere.
func NewPostgresRepo(conn db.Conn, cacheSize int) catalog.Repository {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	byID, err := lru.New(cacheSize)
	if err != nil {
		log.Warn().Err(err).Msg("unable to configure product cache")
	}
	byName, err := lru.New(cacheSize)
	if err != nil {
		log.Warn().Err(err).Msg("unable to configure product name cache")
	}
	return &dbRepo{conn: conn, byID: byID, byName: byName}
}

func (r *dbRepo) BeginTransaction(ctx context.Context) (core.Transaction, error) {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return tx, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row scanner) (catalog.Product, error) {
	p := catalog.Product{}
	var status, price string
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &status, &price); err != nil {
		return p, err
	}
	p.Status = catalog.Status(status)

	amount, err := decimal.NewFromString(price)
	if err != nil {
		return p, errors.WithMessagef(err, "product %d has an unreadable price", p.ID)
	}
	p.Price = amount
	return p, nil
}

func (r *dbRepo) GetProduct(ctx context.Context, id int64, options ...core.QueryOptions) (p catalog.Product, err error) {
	if v, ok := r.cached(r.byID, id); ok {
		return v, nil
	}

	m := db.StartMetric("GetProduct")
	defer func() { m.Complete(err) }()

	tx, forUpdate, err := db.GetQueryOptions(r.conn, options...)
	if err != nil {
		return p, err
	}

	p, err = scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 `+forUpdate, id))
	if err != nil {
		return catalog.Product{}, db.MapError(err)
	}
	if !inTx(options...) {
		r.cache(p)
	}
	return p, nil
}

func (r *dbRepo) GetProductByName(ctx context.Context, name string, options ...core.QueryOptions) (p catalog.Product, err error) {
	name = strings.TrimSpace(name)
	if v, ok := r.cached(r.byName, name); ok {
		return v, nil
	}

	m := db.StartMetric("GetProductByName")
	defer func() { m.Complete(err) }()

	tx, forUpdate, err := db.GetQueryOptions(r.conn, options...)
	if err != nil {
		return p, err
	}

	p, err = scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE name = $1 `+forUpdate, name))
	if err != nil {
		return catalog.Product{}, db.MapError(err)
	}
	if !inTx(options...) {
		r.cache(p)
	}
	return p, nil
}

// FindOrCreateProduct inserts with ON CONFLICT DO NOTHING so a lost race does not abort the surrounding
// transaction; the loser reads the winner's row instead.
func (r *dbRepo) FindOrCreateProduct(ctx context.Context, product catalog.Product, options ...core.UpdateOptions) (p catalog.Product, err error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return catalog.Product{}, errors.Wrap(core.ErrInvalidArgument, "product name is required")
	}
	if v, ok := r.cached(r.byName, product.Name); ok {
		return v, nil
	}

	m := db.StartMetric("FindOrCreateProduct")
	defer func() { m.Complete(err) }()

	tx, err := db.GetUpdateOptions(r.conn, options...)
	if err != nil {
		return p, err
	}

	product = product.WithDefaults()
	rows, err := tx.Query(ctx, `
		INSERT INTO products (name, category, description, status, price)
		              VALUES ($1, $2, $3, $4, $5::numeric)
		ON CONFLICT (name) DO NOTHING
		RETURNING `+productColumns,
		product.Name, product.Category, product.Description, string(product.Status), product.Price.String())
	if err != nil {
		return catalog.Product{}, db.MapError(err)
	}

	created := false
	for rows.Next() {
		if p, err = scanProduct(rows); err != nil {
			rows.Close()
			return catalog.Product{}, db.MapError(err)
		}
		created = true
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return catalog.Product{}, db.MapError(err)
	}

	if !created {
		p, err = scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE name = $1`, product.Name))
		if err != nil {
			return catalog.Product{}, db.MapError(err)
		}
		return p, nil
	}

	log.Debug().Int64("productId", p.ID).Str("name", p.Name).Msg("created product")
	return p, nil
}

// inTx reports whether the read happens inside a transaction. Such reads may see rows that are later rolled
// back, so they are not cached.
func inTx(options ...core.QueryOptions) bool {
	return len(options) > 0 && options[0].Tx != nil
}

func (r *dbRepo) cache(p catalog.Product) {
	if r.byID != nil {
		r.byID.Add(p.ID, p)
	}
	if r.byName != nil {
		r.byName.Add(p.Name, p)
	}
}

func (r *dbRepo) cached(c *lru.Cache, key interface{}) (catalog.Product, bool) {
	if c == nil {
		return catalog.Product{}, false
	}
	v, ok := c.Get(key)
	if !ok {
		return catalog.Product{}, false
	}
	p, ok := v.(catalog.Product)
	return p, ok
}
