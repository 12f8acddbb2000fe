package catalogrepo

import (
	"context"

	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/catalog"
	"github.com/sksmith/stock-ledger/testutil"
)

type MockRepo struct {
	GetProductFunc          func(ctx context.Context, id int64, options ...core.QueryOptions) (catalog.Product, error)
	GetProductByNameFunc    func(ctx context.Context, name string, options ...core.QueryOptions) (catalog.Product, error)
	FindOrCreateProductFunc func(ctx context.Context, product catalog.Product, options ...core.UpdateOptions) (catalog.Product, error)
	BeginTransactionFunc    func(ctx context.Context) (core.Transaction, error)
	*testutil.CallWatcher
}

func NewMockRepo() *MockRepo {
	return &MockRepo{
		GetProductFunc: func(ctx context.Context, id int64, options ...core.QueryOptions) (catalog.Product, error) {
			return catalog.Product{ID: id, Status: catalog.Active}, nil
		},
		GetProductByNameFunc: func(ctx context.Context, name string, options ...core.QueryOptions) (catalog.Product, error) {
			return catalog.Product{}, core.ErrNotFound
		},
		FindOrCreateProductFunc: func(ctx context.Context, product catalog.Product, options ...core.UpdateOptions) (catalog.Product, error) {
			return product, nil
		},
		BeginTransactionFunc: func(ctx context.Context) (core.Transaction, error) { return nil, nil },
		CallWatcher:          testutil.NewCallWatcher(),
	}
}

func (r *MockRepo) GetProduct(ctx context.Context, id int64, options ...core.QueryOptions) (catalog.Product, error) {
	r.AddCall(ctx, id)
	return r.GetProductFunc(ctx, id, options...)
}

func (r *MockRepo) GetProductByName(ctx context.Context, name string, options ...core.QueryOptions) (catalog.Product, error) {
	r.AddCall(ctx, name)
	return r.GetProductByNameFunc(ctx, name, options...)
}

func (r *MockRepo) FindOrCreateProduct(ctx context.Context, product catalog.Product, options ...core.UpdateOptions) (catalog.Product, error) {
	r.AddCall(ctx, product)
	return r.FindOrCreateProductFunc(ctx, product, options...)
}

func (r *MockRepo) BeginTransaction(ctx context.Context) (core.Transaction, error) {
	r.AddCall(ctx)
	return r.BeginTransactionFunc(ctx)
}
