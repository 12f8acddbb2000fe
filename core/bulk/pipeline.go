package bulk

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/catalog"
	"github.com/sksmith/stock-ledger/core/inventory"
)

type StockUpdater interface {
	EnsureStock(ctx context.Context, productID int64, options ...core.UpdateOptions) error
	AddStock(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (inventory.StockRecord, error)
}

type Result struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type Updater interface {
	Update(ctx context.Context, records []Record) (Result, error)
}

// Pipeline applies stock update records across a worker pool. Each record runs in its own transaction:
// find or create the product, make sure it has a stock record, add the quantity.
type Pipeline struct {
	stock    StockUpdater
	products catalog.Repository
	queue    inventory.Queue
	pool     *Pool
}

type Option func(p *Pipeline)

func WithQueue(q inventory.Queue) Option {
	return func(p *Pipeline) {
		p.queue = q
	}
}

func WithPool(pool *Pool) Option {
	return func(p *Pipeline) {
		p.pool = pool
	}
}

// NewPipeline opens transactions through the product repository, so it and the stock repository must share
// the same store.
func NewPipeline(stock StockUpdater, products catalog.Repository, opts ...Option) *Pipeline {
	p := &Pipeline{stock: stock, products: products}
	for _, opt := range opts {
		opt(p)
	}
	if p.pool == nil {
		p.pool = NewPool(DefaultWorkers, DefaultQueueSize)
	}
	return p
}

// Update waits for every record to finish. When any failed, the error is a *BatchError.
func (p *Pipeline) Update(ctx context.Context, records []Record) (Result, error) {
	const funcName = "Update"

	log.Info().
		Str("func", funcName).
		Int("records", len(records)).
		Msg("applying bulk stock update")

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed *multierror.Error
	)

	result := Result{Total: len(records)}
	for i := range records {
		rec := records[i]
		wg.Add(1)
		p.pool.Submit(func() {
			defer wg.Done()

			err := p.apply(ctx, rec)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				bulkRecords.WithLabelValues("error").Inc()
				log.Warn().Err(err).Str("func", funcName).Str("record", rec.String()).Msg("stock update record failed")
				failed = multierror.Append(failed, &RecordError{Record: rec, Err: err})
				result.Failed++
				return
			}
			bulkRecords.WithLabelValues("ok").Inc()
			result.Succeeded++
		})
	}
	wg.Wait()

	if result.Failed > 0 {
		return result, &BatchError{Total: result.Total, Failed: result.Failed, Errors: failed}
	}
	return result, nil
}

func (p *Pipeline) apply(ctx context.Context, rec Record) (err error) {
	if err = rec.Validate(); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	tx, err := p.products.BeginTransaction(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Warn().Err(rbErr).AnErr("cause", err).Msg("failed to rollback")
			}
		}
	}()

	opts := core.UpdateOptions{Tx: tx}

	product, err := p.products.FindOrCreateProduct(ctx, rec.Product(), opts)
	if err != nil {
		return errors.WithMessage(err, "failed to find or create product")
	}

	if err = p.stock.EnsureStock(ctx, product.ID, opts); err != nil {
		return err
	}

	if *rec.Quantity == 0 {
		if err = tx.Commit(ctx); err != nil {
			return errors.WithMessage(err, "failed to commit stock update")
		}
		return nil
	}

	stock, err := p.stock.AddStock(ctx, product.ID, *rec.Quantity, opts)
	if err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return errors.WithMessage(err, "failed to commit stock update")
	}

	if p.queue != nil {
		if err := p.queue.PublishStock(ctx, stock); err != nil {
			log.Warn().Err(err).Int64("productId", stock.ProductID).Msg("failed to publish stock update")
		}
	}
	return nil
}

func (p *Pipeline) Close(ctx context.Context) error {
	return p.pool.Close(ctx)
}
