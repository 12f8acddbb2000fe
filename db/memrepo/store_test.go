package memrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/catalog"
	"github.com/sksmith/stock-ledger/core/inventory"
	"github.com/sksmith/stock-ledger/core/user"
	"github.com/sksmith/stock-ledger/db/memrepo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStock(t *testing.T, repo inventory.Repository, productID, quantity int64) {
	t.Helper()
	require.NoError(t, repo.CreateStock(context.Background(), &inventory.StockRecord{ProductID: productID, TotalQuantity: quantity}))
}

func TestRollbackRestoresWrites(t *testing.T) {
	ctx := context.Background()
	store := memrepo.NewStore()
	repo := memrepo.NewInventoryRepo(store)
	seedStock(t, repo, 1, 10)

	tx, err := store.BeginTransaction(ctx)
	require.NoError(t, err)
	opts := core.UpdateOptions{Tx: tx}

	stock, err := repo.GetStock(ctx, 1, core.QueryOptions{Tx: tx, ForUpdate: true})
	require.NoError(t, err)
	stock.TotalReserved = 4
	require.NoError(t, repo.SaveStock(ctx, &stock, opts))
	require.NoError(t, repo.SaveReservation(ctx, &inventory.Reservation{ID: "r-1", ProductID: 1, Quantity: 4, OrderID: "o-1"}, opts))
	seedStockInTx := &inventory.StockRecord{ProductID: 2}
	created, err := repo.EnsureStock(ctx, seedStockInTx, opts)
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, tx.Rollback(ctx))

	got, err := repo.GetStock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.TotalReserved)
	assert.Equal(t, int64(0), got.Version)

	res, err := repo.GetReservationsByOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Empty(t, res)

	_, err = repo.GetStock(ctx, 2)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestCommitKeepsWritesAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	store := memrepo.NewStore()
	repo := memrepo.NewInventoryRepo(store)
	seedStock(t, repo, 1, 10)

	tx, err := store.BeginTransaction(ctx)
	require.NoError(t, err)
	stock, err := repo.GetStock(ctx, 1, core.QueryOptions{Tx: tx, ForUpdate: true})
	require.NoError(t, err)
	stock.TotalQuantity = 12
	require.NoError(t, repo.SaveStock(ctx, &stock, core.UpdateOptions{Tx: tx}))
	require.NoError(t, tx.Commit(ctx))

	assert.Error(t, tx.Commit(ctx))
	assert.NoError(t, tx.Rollback(ctx))

	got, err := repo.GetStock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.TotalQuantity)
	assert.Equal(t, int64(1), got.Version)
}

func TestLockWaitTimesOut(t *testing.T) {
	ctx := context.Background()
	store := memrepo.NewStore(memrepo.WithLockTimeout(20 * time.Millisecond))
	repo := memrepo.NewInventoryRepo(store)
	seedStock(t, repo, 1, 10)

	holder, err := store.BeginTransaction(ctx)
	require.NoError(t, err)
	_, err = repo.GetStock(ctx, 1, core.QueryOptions{Tx: holder, ForUpdate: true})
	require.NoError(t, err)

	waiter, err := store.BeginTransaction(ctx)
	require.NoError(t, err)
	_, err = repo.GetStock(ctx, 1, core.QueryOptions{Tx: waiter, ForUpdate: true})
	assert.True(t, errors.Is(err, core.ErrContention))

	_, err = repo.GetStock(ctx, 2, core.QueryOptions{Tx: waiter, ForUpdate: true})
	assert.True(t, errors.Is(err, core.ErrNotFound), "other products stay lockable")

	require.NoError(t, holder.Commit(ctx))
	_, err = repo.GetStock(ctx, 1, core.QueryOptions{Tx: waiter, ForUpdate: true})
	assert.NoError(t, err)
	require.NoError(t, waiter.Rollback(ctx))
}

func TestLockWaitHonoursCancellation(t *testing.T) {
	store := memrepo.NewStore(memrepo.WithLockTimeout(time.Minute))
	repo := memrepo.NewInventoryRepo(store)
	seedStock(t, repo, 1, 10)

	holder, err := store.BeginTransaction(context.Background())
	require.NoError(t, err)
	_, err = repo.GetStock(context.Background(), 1, core.QueryOptions{Tx: holder, ForUpdate: true})
	require.NoError(t, err)
	defer func() { _ = holder.Rollback(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	waiter, err := store.BeginTransaction(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = repo.GetStock(ctx, 1, core.QueryOptions{Tx: waiter, ForUpdate: true})
	assert.True(t, errors.Is(err, core.ErrContention))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExpiredReservationsArePagedById(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.NewInventoryRepo(memrepo.NewStore())
	now := time.Now()

	for _, id := range []string{"c", "a", "b", "d"} {
		expires := now.Add(-time.Minute)
		if id == "d" {
			expires = now.Add(time.Minute)
		}
		require.NoError(t, repo.SaveReservation(ctx, &inventory.Reservation{ID: id, ProductID: 1, Quantity: 1, OrderID: "o-1", ExpiresAt: expires}))
	}

	page, err := repo.GetExpiredReservations(ctx, now, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	page, err = repo.GetExpiredReservations(ctx, now, page[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].ID)

	deleted, err := repo.DeleteReservation(ctx, "c")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = repo.DeleteReservation(ctx, "c")
	require.NoError(t, err)
	assert.False(t, deleted)

	count, err := repo.CountReservations(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestStockFilters(t *testing.T) {
	ctx := context.Background()
	store := memrepo.NewStore()
	repo := memrepo.NewInventoryRepo(store)

	bolt := store.PutProduct(catalog.Product{Name: "Bolt", Category: "hardware"})
	glue := store.PutProduct(catalog.Product{Name: "Glue", Category: "adhesives"})
	tape := store.PutProduct(catalog.Product{Name: "Tape", Category: "adhesives"})
	seedStock(t, repo, bolt.ID, 100)
	seedStock(t, repo, glue.ID, 3)
	seedStock(t, repo, tape.ID, 0)

	tests := []struct {
		name   string
		filter inventory.StockFilter
		want   []int64
	}{
		{name: "all", filter: inventory.StockFilter{}, want: []int64{bolt.ID, glue.ID, tape.ID}},
		{name: "low", filter: inventory.StockFilter{Level: inventory.LowLevel}, want: []int64{glue.ID}},
		{name: "out", filter: inventory.StockFilter{Level: inventory.OutLevel}, want: []int64{tape.ID}},
		{name: "normal", filter: inventory.StockFilter{Level: inventory.NormalLevel}, want: []int64{bolt.ID}},
		{name: "search by category", filter: inventory.StockFilter{Search: "ADHES"}, want: []int64{glue.ID, tape.ID}},
		{name: "search and level", filter: inventory.StockFilter{Search: "adhes", Level: inventory.OutLevel}, want: []int64{tape.ID}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			stock, err := repo.ListStock(ctx, test.filter, 50, 0)
			require.NoError(t, err)
			got := make([]int64, 0, len(stock))
			for _, s := range stock {
				got = append(got, s.ProductID)
			}
			assert.Equal(t, test.want, got)
		})
	}

	page, err := repo.ListStock(ctx, inventory.StockFilter{}, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	summary, err := repo.SummarizeStock(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Total)
	assert.Equal(t, int64(2), summary.Low)
	assert.Equal(t, int64(1), summary.OutOf)
	assert.Equal(t, int64(1), summary.InStock)
}

func TestFindOrCreateProductTrimsName(t *testing.T) {
	ctx := context.Background()
	store := memrepo.NewStore()
	repo := memrepo.NewCatalogRepo(store)

	first, err := repo.FindOrCreateProduct(ctx, catalog.Product{Name: " Bolt "})
	require.NoError(t, err)
	assert.Equal(t, "Bolt", first.Name)
	assert.Equal(t, catalog.Active, first.Status)

	second, err := repo.FindOrCreateProduct(ctx, catalog.Product{Name: "Bolt", Category: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, second.Category)

	_, err = repo.FindOrCreateProduct(ctx, catalog.Product{Name: "  "})
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.NewUserRepo(memrepo.NewStore())

	require.NoError(t, repo.Create(ctx, &user.User{Username: "someuser", IsAdmin: true}))
	err := repo.Create(ctx, &user.User{Username: "someuser"})
	assert.True(t, errors.Is(err, core.ErrAlreadyExists))

	u, err := repo.Get(ctx, "someuser")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)

	require.NoError(t, repo.Delete(ctx, "someuser"))
	_, err = repo.Get(ctx, "someuser")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestEnsureStockWaitsForCreatingTransaction(t *testing.T) {
	ctx := context.Background()
	store := memrepo.NewStore(memrepo.WithLockTimeout(20 * time.Millisecond))
	repo := memrepo.NewInventoryRepo(store)

	creator, err := store.BeginTransaction(ctx)
	require.NoError(t, err)
	created, err := repo.EnsureStock(ctx, &inventory.StockRecord{ProductID: 7}, core.UpdateOptions{Tx: creator})
	require.NoError(t, err)
	require.True(t, created)

	other, err := store.BeginTransaction(ctx)
	require.NoError(t, err)
	_, err = repo.EnsureStock(ctx, &inventory.StockRecord{ProductID: 7}, core.UpdateOptions{Tx: other})
	assert.True(t, errors.Is(err, core.ErrContention))
	err = repo.CreateStock(ctx, &inventory.StockRecord{ProductID: 7}, core.UpdateOptions{Tx: other})
	assert.True(t, errors.Is(err, core.ErrContention))

	require.NoError(t, creator.Rollback(ctx))

	created, err = repo.EnsureStock(ctx, &inventory.StockRecord{ProductID: 7, TotalQuantity: 3}, core.UpdateOptions{Tx: other})
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, other.Commit(ctx))

	got, err := repo.GetStock(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.TotalQuantity)
}
