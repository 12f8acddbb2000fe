package user

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/sksmith/stock-ledger/core"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("user: invalid credentials")

	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,64}$`)
)

const minPasswordLength = 8

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

type Service interface {
	Create(ctx context.Context, user CreateUserRequest) (User, error)
	Get(ctx context.Context, username string) (User, error)
	Delete(ctx context.Context, username string) error
	Login(ctx context.Context, username, password string) (User, error)
}

type service struct {
	repo Repository
}

func (s *service) Get(ctx context.Context, username string) (User, error) {
	return s.repo.Get(ctx, username)
}

func (s *service) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	if !usernameIsValid(req.Username) {
		return User{}, errors.Wrap(core.ErrInvalidArgument, "invalid username")
	}
	if !passwordIsValid(req.PlainTextPassword) {
		return User{}, errors.Wrapf(core.ErrInvalidArgument, "password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.PlainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return User{}, errors.WithStack(err)
	}
	user := &User{
		Username:       req.Username,
		HashedPassword: string(hash),
		IsAdmin:        req.IsAdmin,
		Created:        time.Now(),
	}
	err = s.repo.Create(ctx, user)
	if err != nil {
		return User{}, err
	}
	return *user, nil
}

func usernameIsValid(username string) bool {
	return usernamePattern.MatchString(username)
}

func passwordIsValid(password string) bool {
	return len(password) >= minPasswordLength
}

func (s *service) Delete(ctx context.Context, username string) error {
	return s.repo.Delete(ctx, username)
}

// Login fails with ErrInvalidCredentials for both an unknown user and a wrong password.
func (s *service) Login(ctx context.Context, username, password string) (User, error) {
	u, err := s.repo.Get(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password))
	if err != nil {
		return User{}, ErrInvalidCredentials
	}

	return u, nil
}

type Repository interface {
	Create(ctx context.Context, user *User, options ...core.UpdateOptions) error
	Get(ctx context.Context, username string, options ...core.QueryOptions) (User, error)
	Delete(ctx context.Context, username string, options ...core.UpdateOptions) error
}
