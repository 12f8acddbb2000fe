// Package memrepo keeps every repository in process memory. It is used when the service runs without a
// database and by tests that need real locking behaviour.
//
// Transactions hold per-product locks until they end and keep an undo log so a rollback restores what they
// changed. Writes are visible to other readers before commit; only the product lock orders writers.
package memrepo

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/catalog"
	"github.com/sksmith/stock-ledger/core/inventory"
	"github.com/sksmith/stock-ledger/core/user"
)

const DefaultLockTimeout = 2 * time.Second

type Store struct {
	mu sync.RWMutex

	products      map[int64]catalog.Product
	productNames  map[string]int64
	lastProductID int64

	stock        map[int64]inventory.StockRecord
	reservations map[string]inventory.Reservation

	users map[string]user.User

	locks       *keyedLocks
	lockTimeout time.Duration
}

type StoreOption func(s *Store)

func WithLockTimeout(timeout time.Duration) StoreOption {
	return func(s *Store) {
		if timeout > 0 {
			s.lockTimeout = timeout
		}
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		products:     make(map[int64]catalog.Product),
		productNames: make(map[string]int64),
		stock:        make(map[int64]inventory.StockRecord),
		reservations: make(map[string]inventory.Reservation),
		users:        make(map[string]user.User),
		locks:        newKeyedLocks(),
		lockTimeout:  DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) BeginTransaction(ctx context.Context) (core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Tx{store: s, held: make(map[int64]bool)}, nil
}

// Tx is the store's unit of work.
type Tx struct {
	store *Store

	mu   sync.Mutex
	undo []func()
	held map[int64]bool
	done bool
}

func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errors.New("transaction already closed")
	}
	t.done = true
	t.undo = nil
	t.unlockAll()
	return nil
}

// Rollback undoes the transaction's writes in reverse order. Rolling back a finished transaction does nothing.
func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return nil
	}
	t.done = true
	undo := t.undo
	t.undo = nil
	t.mu.Unlock()

	t.store.mu.Lock()
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
	t.store.mu.Unlock()

	t.mu.Lock()
	t.unlockAll()
	t.mu.Unlock()
	return nil
}

// lock takes the product's lock for the rest of the transaction. Taking a lock the transaction already holds
// succeeds immediately.
func (t *Tx) lock(ctx context.Context, productID int64) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return errors.New("transaction already closed")
	}
	if t.held[productID] {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.store.locks.acquire(ctx, productID, t.store.lockTimeout); err != nil {
		return err
	}

	t.mu.Lock()
	t.held[productID] = true
	t.mu.Unlock()
	return nil
}

// onRollback registers an undo step. Callers hold the store's write lock.
func (t *Tx) onRollback(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, fn)
}

func (t *Tx) unlockAll() {
	for productID := range t.held {
		t.store.locks.release(productID)
	}
	t.held = make(map[int64]bool)
}

func asTx(tx core.Transaction) (*Tx, error) {
	if tx == nil {
		return nil, nil
	}
	t, ok := tx.(*Tx)
	if !ok {
		return nil, errors.Errorf("transaction of type %T does not belong to the in-memory store", tx)
	}
	return t, nil
}

func queryTx(options ...core.QueryOptions) (tx *Tx, forUpdate bool, err error) {
	if len(options) == 0 {
		return nil, false, nil
	}
	tx, err = asTx(options[0].Tx)
	return tx, options[0].ForUpdate, err
}

func updateTx(options ...core.UpdateOptions) (*Tx, error) {
	return asTx(core.TxFromUpdate(options...))
}

// record registers undo when the write happens inside a transaction. Stock writes hold the product lock, so
// their undo cannot clobber another writer. Product inserts are keyed by name and take no lock: a product
// read by another transaction before the creating one rolls back disappears from under it.
func record(tx *Tx, undo func()) {
	if tx != nil {
		tx.onRollback(undo)
	}
}

// keyedLocks is a map of single slot channels, one per product. A channel send acquires, a receive releases,
// which lets a waiter give up on a timer or a cancelled context.
type keyedLocks struct {
	mu    sync.Mutex
	slots map[int64]chan struct{}
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{slots: make(map[int64]chan struct{})}
}

func (k *keyedLocks) slot(key int64) chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	ch, ok := k.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		k.slots[key] = ch
	}
	return ch
}

func (k *keyedLocks) acquire(ctx context.Context, key int64, timeout time.Duration) error {
	ch := k.slot(key)

	select {
	case ch <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		return errors.Wrapf(core.ErrContention, "timed out after %s waiting for product %d", timeout, key)
	case <-ctx.Done():
		return errors.Wrapf(core.ErrContention, "gave up waiting for product %d: %v", key, ctx.Err())
	}
}

func (k *keyedLocks) release(key int64) {
	ch := k.slot(key)
	select {
	case <-ch:
	default:
	}
}
