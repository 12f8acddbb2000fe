package memrepo

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/user"
)

type userRepo struct {
	*Store
}

func NewUserRepo(s *Store) user.Repository {
	return &userRepo{Store: s}
}

func (r *userRepo) Create(ctx context.Context, u *user.User, options ...core.UpdateOptions) error {
	tx, err := updateTx(options...)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.Username]; ok {
		return errors.Wrapf(core.ErrAlreadyExists, "user %s", u.Username)
	}
	r.users[u.Username] = *u
	username := u.Username
	record(tx, func() { delete(r.users, username) })
	return nil
}

func (r *userRepo) Get(ctx context.Context, username string, options ...core.QueryOptions) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[username]
	if !ok {
		return user.User{}, errors.WithStack(core.ErrNotFound)
	}
	return u, nil
}

func (r *userRepo) Delete(ctx context.Context, username string, options ...core.UpdateOptions) error {
	tx, err := updateTx(options...)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.users[username]
	if !ok {
		return errors.WithStack(core.ErrNotFound)
	}
	delete(r.users, username)
	record(tx, func() { r.users[prev.Username] = prev })
	return nil
}
