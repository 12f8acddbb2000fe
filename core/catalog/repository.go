package catalog

import (
	"context"

	"github.com/sksmith/stock-ledger/core"
)

type Repository interface {
	core.Transactional
	GetProduct(ctx context.Context, id int64, options ...core.QueryOptions) (Product, error)
	GetProductByName(ctx context.Context, name string, options ...core.QueryOptions) (Product, error)

	// FindOrCreateProduct returns the product with the given name, creating it when it does not exist yet.
	// Concurrent callers racing on the same name all receive the same product.
	FindOrCreateProduct(ctx context.Context, product Product, options ...core.UpdateOptions) (Product, error)
}
