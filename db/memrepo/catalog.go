package memrepo

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/catalog"
)

type catalogRepo struct {
	*Store
}

func NewCatalogRepo(s *Store) catalog.Repository {
	return &catalogRepo{Store: s}
}

func nameKey(name string) string {
	return strings.TrimSpace(name)
}

func (r *catalogRepo) GetProduct(ctx context.Context, id int64, options ...core.QueryOptions) (catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return catalog.Product{}, errors.WithStack(core.ErrNotFound)
	}
	return p, nil
}

func (r *catalogRepo) GetProductByName(ctx context.Context, name string, options ...core.QueryOptions) (catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.productNames[nameKey(name)]
	if !ok {
		return catalog.Product{}, errors.WithStack(core.ErrNotFound)
	}
	return r.products[id], nil
}

func (r *catalogRepo) FindOrCreateProduct(ctx context.Context, product catalog.Product, options ...core.UpdateOptions) (catalog.Product, error) {
	tx, err := updateTx(options...)
	if err != nil {
		return catalog.Product{}, err
	}

	key := nameKey(product.Name)
	if key == "" {
		return catalog.Product{}, errors.Wrap(core.ErrInvalidArgument, "product name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.productNames[key]; ok {
		return r.products[id], nil
	}

	r.lastProductID++
	product = product.WithDefaults()
	product.ID = r.lastProductID
	product.Name = strings.TrimSpace(product.Name)
	r.products[product.ID] = product
	r.productNames[key] = product.ID
	record(tx, func() {
		delete(r.products, product.ID)
		delete(r.productNames, key)
	})
	return product, nil
}

// PutProduct seeds the catalog with a product whose id is chosen by the caller.
func (s *Store) PutProduct(product catalog.Product) catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	product = product.WithDefaults()
	if product.ID == 0 {
		s.lastProductID++
		product.ID = s.lastProductID
	} else if product.ID > s.lastProductID {
		s.lastProductID = product.ID
	}
	s.products[product.ID] = product
	s.productNames[nameKey(product.Name)] = product.ID
	return product
}
