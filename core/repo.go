package core

import (
	"context"
)

// Transaction is a unit of work handed out by a repository. The Postgres repositories hand out a pgx.Tx,
// the in-memory store hands out its own undo-log transaction. Repositories only accept transactions they
// created themselves.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Transactional interface {
	BeginTransaction(ctx context.Context) (Transaction, error)
}

type UpdateOptions struct {
	Tx Transaction
}

type QueryOptions struct {
	ForUpdate bool
	Tx        Transaction
}

// TxFromUpdate returns the transaction carried by the options, if any.
func TxFromUpdate(options ...UpdateOptions) Transaction {
	if len(options) > 0 {
		return options[0].Tx
	}
	return nil
}
