package user

import (
	"context"

	"github.com/sksmith/stock-ledger/testutil"
)

type MockUserService struct {
	CreateFunc func(ctx context.Context, req CreateUserRequest) (User, error)
	GetFunc    func(ctx context.Context, username string) (User, error)
	DeleteFunc func(ctx context.Context, username string) error
	LoginFunc  func(ctx context.Context, username, password string) (User, error)
	*testutil.CallWatcher
}

// NewMockUserService echoes requests back: Create returns the requested user and Login accepts any password.
func NewMockUserService() MockUserService {
	return MockUserService{
		CreateFunc: func(ctx context.Context, req CreateUserRequest) (User, error) {
			return User{Username: req.Username, IsAdmin: req.IsAdmin}, nil
		},
		GetFunc: func(ctx context.Context, username string) (User, error) {
			return User{Username: username}, nil
		},
		DeleteFunc: func(ctx context.Context, username string) error { return nil },
		LoginFunc: func(ctx context.Context, username, password string) (User, error) {
			return User{Username: username}, nil
		},
		CallWatcher: testutil.NewCallWatcher(),
	}
}

func (u *MockUserService) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	u.AddCall(ctx, req)
	return u.CreateFunc(ctx, req)
}

func (u *MockUserService) Get(ctx context.Context, username string) (User, error) {
	u.AddCall(ctx, username)
	return u.GetFunc(ctx, username)
}

func (u *MockUserService) Delete(ctx context.Context, username string) error {
	u.AddCall(ctx, username)
	return u.DeleteFunc(ctx, username)
}

func (u *MockUserService) Login(ctx context.Context, username, password string) (User, error) {
	u.AddCall(ctx, username, password)
	return u.LoginFunc(ctx, username, password)
}
