package bulk_test

import (
	"context"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/bulk"
	"github.com/sksmith/stock-ledger/core/catalog"
	"github.com/sksmith/stock-ledger/core/inventory"
	"github.com/sksmith/stock-ledger/db/catalogrepo"
	"github.com/sksmith/stock-ledger/db/memrepo"
	"github.com/sksmith/stock-ledger/queue"
	"github.com/sksmith/stock-ledger/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	testutil.ConfigLogging()
	os.Exit(m.Run())
}

func qty(v int64) *int64 {
	return &v
}

type fixture struct {
	store    *memrepo.Store
	engine   *inventory.Engine
	products catalog.Repository
	queue    *queue.MockQueue
	pipeline *bulk.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memrepo.NewStore(), queue: queue.NewMockQueue()}
	f.products = memrepo.NewCatalogRepo(f.store)
	f.engine = inventory.NewEngine(memrepo.NewInventoryRepo(f.store), f.products, nil)
	f.pipeline = bulk.NewPipeline(f.engine, f.products, bulk.WithQueue(f.queue), bulk.WithPool(bulk.NewPool(4, 500)))
	t.Cleanup(func() {
		assert.NoError(t, f.pipeline.Close(context.Background()))
	})
	return f
}

func (f *fixture) available(t *testing.T, name string) int64 {
	t.Helper()
	p, err := f.products.GetProductByName(context.Background(), name)
	require.NoError(t, err)
	available, err := f.engine.AvailableQuantity(context.Background(), p.ID)
	require.NoError(t, err)
	return available
}

func TestUpdateIsolatesInvalidRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	records := []bulk.Record{
		{Line: 2, ProductName: "bolt", Quantity: qty(10)},
		{Line: 3, ProductName: "nut", Quantity: qty(20)},
		{Line: 4, ProductName: "  ", Quantity: qty(30)},
		{Line: 5, ProductName: "washer", Quantity: qty(40)},
		{Line: 6, ProductName: "screw", Quantity: qty(50)},
	}

	result, err := f.pipeline.Update(ctx, records)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrPartialBatchFailure))
	assert.Equal(t, bulk.Result{Total: 5, Succeeded: 4, Failed: 1}, result)

	var batchErr *bulk.BatchError
	require.True(t, errors.As(err, &batchErr))
	failures := batchErr.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, 4, failures[0].Record.Line)
	assert.True(t, errors.Is(failures[0].Err, core.ErrValidation))

	assert.Equal(t, int64(10), f.available(t, "bolt"))
	assert.Equal(t, int64(20), f.available(t, "nut"))
	assert.Equal(t, int64(40), f.available(t, "washer"))
	assert.Equal(t, int64(50), f.available(t, "screw"))

	f.queue.VerifyCount("PublishStock", 4, t)
}

func TestUpdateCreatesProductsWithDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	price := decimal.RequireFromString("12.50")
	_, err := f.pipeline.Update(ctx, []bulk.Record{
		{ProductName: "lamp", Quantity: qty(3), Category: "lighting", Price: &price},
		{ProductName: "chair", Quantity: qty(0), Status: catalog.Inactive},
	})
	require.NoError(t, err)

	lamp, err := f.products.GetProductByName(ctx, "lamp")
	require.NoError(t, err)
	assert.Equal(t, catalog.Active, lamp.Status)
	assert.Equal(t, "lighting", lamp.Category)
	assert.True(t, price.Equal(lamp.Price))

	chair, err := f.products.GetProductByName(ctx, "chair")
	require.NoError(t, err)
	assert.Equal(t, catalog.Inactive, chair.Status)
	assert.True(t, chair.Price.IsZero())

	stock, err := f.engine.GetStock(ctx, chair.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stock.TotalQuantity)
	assert.Equal(t, int64(0), stock.Version)
	f.queue.VerifyCount("PublishStock", 1, t)
}

func TestUpdateAddsToExistingStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.store.PutProduct(catalog.Product{Name: "bolt"})
	_, err := f.engine.CreateStock(ctx, p.ID, 5)
	require.NoError(t, err)
	_, err = f.engine.Reserve(ctx, p.ID, 2)
	require.NoError(t, err)

	_, err = f.pipeline.Update(ctx, []bulk.Record{{ProductName: "bolt", Quantity: qty(10)}})
	require.NoError(t, err)

	stock, err := f.engine.GetStock(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), stock.TotalQuantity)
	assert.Equal(t, int64(2), stock.TotalReserved)
}

func TestUpdateSameProductConcurrently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	records := make([]bulk.Record, 50)
	for i := range records {
		records[i] = bulk.Record{Line: i + 2, ProductName: "bolt", Quantity: qty(2)}
	}

	result, err := f.pipeline.Update(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 50, result.Succeeded)
	assert.Equal(t, int64(100), f.available(t, "bolt"))

	stock, err := f.engine.ListStock(ctx, inventory.StockFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, stock, 1)
}

func TestRecordValidation(t *testing.T) {
	price := decimal.RequireFromString("-1")

	tests := []struct {
		name    string
		record  bulk.Record
		wantErr bool
	}{
		{name: "valid", record: bulk.Record{ProductName: "bolt", Quantity: qty(1)}},
		{name: "zero quantity", record: bulk.Record{ProductName: "bolt", Quantity: qty(0)}},
		{name: "blank name", record: bulk.Record{ProductName: "", Quantity: qty(1)}, wantErr: true},
		{name: "missing quantity", record: bulk.Record{ProductName: "bolt"}, wantErr: true},
		{name: "negative quantity", record: bulk.Record{ProductName: "bolt", Quantity: qty(-1)}, wantErr: true},
		{name: "unknown status", record: bulk.Record{ProductName: "bolt", Quantity: qty(1), Status: "SOLD"}, wantErr: true},
		{name: "negative price", record: bulk.Record{ProductName: "bolt", Quantity: qty(1), Price: &price}, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.record.Validate()
			if test.wantErr {
				assert.True(t, errors.Is(err, core.ErrValidation), "got=%v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpdateCountsTransactionFailures(t *testing.T) {
	products := catalogrepo.NewMockRepo()
	products.BeginTransactionFunc = func(ctx context.Context) (core.Transaction, error) {
		return nil, errors.New("connection refused")
	}
	engine := inventory.NewEngine(memrepo.NewInventoryRepo(memrepo.NewStore()), products, nil)
	pipeline := bulk.NewPipeline(engine, products, bulk.WithPool(bulk.NewPool(2, 10)))
	defer func() { assert.NoError(t, pipeline.Close(context.Background())) }()

	records := []bulk.Record{
		{Line: 2, ProductName: "bolt", Quantity: qty(1)},
		{Line: 3, ProductName: "nut", Quantity: qty(2)},
	}

	result, err := pipeline.Update(context.Background(), records)
	require.Error(t, err)
	assert.Equal(t, bulk.Result{Total: 2, Succeeded: 0, Failed: 2}, result)
	products.VerifyCount("BeginTransaction", 2, t)
	products.VerifyCount("FindOrCreateProduct", 0, t)
}
