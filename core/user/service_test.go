package user_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/user"
	"github.com/sksmith/stock-ledger/db/memrepo"
	"github.com/sksmith/stock-ledger/db/usrrepo"
	"golang.org/x/crypto/bcrypt"
)

func TestCreateEnforcesCredentialRules(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string

		wantErr error
	}{
		{name: "shortest username", username: "bob", password: "12345678"},
		{name: "longest username", username: strings.Repeat("a", 64), password: "12345678"},
		{name: "dots dashes and underscores", username: "stock.admin_2-b", password: "12345678"},
		{name: "username too short", username: "bo", password: "12345678", wantErr: core.ErrInvalidArgument},
		{name: "username too long", username: strings.Repeat("a", 65), password: "12345678", wantErr: core.ErrInvalidArgument},
		{name: "username with space", username: "stock admin", password: "12345678", wantErr: core.ErrInvalidArgument},
		{name: "username with at sign", username: "admin@ledger", password: "12345678", wantErr: core.ErrInvalidArgument},
		{name: "password one short", username: "warehouse", password: "1234567", wantErr: core.ErrInvalidArgument},
		{name: "empty password", username: "warehouse", password: "", wantErr: core.ErrInvalidArgument},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mockRepo := usrrepo.NewMockRepo()
			service := user.NewService(mockRepo)

			got, err := service.Create(context.Background(), user.CreateUserRequest{Username: test.username, PlainTextPassword: test.password})

			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Errorf("unexpected error got=%v want=%v", err, test.wantErr)
				}
				mockRepo.VerifyCount("Create", 0, t)
				return
			}

			if err != nil {
				t.Fatalf("did not want error, got=%v", err)
			}
			mockRepo.VerifyCount("Create", 1, t)
			if got.Username != test.username {
				t.Errorf("unexpected username got=%s want=%s", got.Username, test.username)
			}
		})
	}
}

func TestCreateStoresOnlyTheHash(t *testing.T) {
	mockRepo := usrrepo.NewMockRepo()
	var stored user.User
	mockRepo.CreateFunc = func(ctx context.Context, u *user.User, options ...core.UpdateOptions) error {
		stored = *u
		return nil
	}
	service := user.NewService(mockRepo)

	got, err := service.Create(context.Background(), user.CreateUserRequest{Username: "receiving", IsAdmin: true, PlainTextPassword: "pallet-jack"})
	if err != nil {
		t.Fatalf("did not want error, got=%v", err)
	}

	if stored.HashedPassword == "pallet-jack" || stored.HashedPassword == "" {
		t.Fatalf("password stored in plain text or missing: %q", stored.HashedPassword)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.HashedPassword), []byte("pallet-jack")); err != nil {
		t.Errorf("stored hash does not match the password: %v", err)
	}
	if !stored.IsAdmin || !got.IsAdmin {
		t.Errorf("admin flag lost stored=%v returned=%v", stored.IsAdmin, got.IsAdmin)
	}
	if stored.Created.IsZero() {
		t.Errorf("created time not set")
	}
}

func TestCreateReportsDuplicates(t *testing.T) {
	service := user.NewService(memrepo.NewUserRepo(memrepo.NewStore()))
	req := user.CreateUserRequest{Username: "picker", PlainTextPassword: "forklift1"}

	if _, err := service.Create(context.Background(), req); err != nil {
		t.Fatalf("did not want error, got=%v", err)
	}
	_, err := service.Create(context.Background(), req)
	if !errors.Is(err, core.ErrAlreadyExists) {
		t.Errorf("unexpected error got=%v want=%v", err, core.ErrAlreadyExists)
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	service := user.NewService(memrepo.NewUserRepo(memrepo.NewStore()))
	if _, err := service.Create(ctx, user.CreateUserRequest{Username: "auditor", PlainTextPassword: "count-everything"}); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string

		wantErr error
	}{
		{name: "correct password", username: "auditor", password: "count-everything"},
		{name: "wrong password", username: "auditor", password: "count-nothing", wantErr: user.ErrInvalidCredentials},
		{name: "password case matters", username: "auditor", password: "COUNT-EVERYTHING", wantErr: user.ErrInvalidCredentials},
		{name: "unknown user looks like a wrong password", username: "intruder", password: "count-everything", wantErr: user.ErrInvalidCredentials},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := service.Login(ctx, test.username, test.password)
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Errorf("unexpected error got=%v want=%v", err, test.wantErr)
				}
				if got.Username != "" {
					t.Errorf("user returned with failed login: %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("did not want error, got=%v", err)
			}
			if got.Username != test.username {
				t.Errorf("unexpected username got=%s want=%s", got.Username, test.username)
			}
		})
	}
}

func TestLoginStoreFailureIsNotACredentialError(t *testing.T) {
	mockRepo := usrrepo.NewMockRepo()
	storeDown := errors.New("connection refused")
	mockRepo.GetFunc = func(ctx context.Context, username string, options ...core.QueryOptions) (user.User, error) {
		return user.User{}, storeDown
	}

	_, err := user.NewService(mockRepo).Login(context.Background(), "auditor", "count-everything")
	if errors.Is(err, user.ErrInvalidCredentials) {
		t.Errorf("store failure reported as bad credentials")
	}
	if !errors.Is(err, storeDown) {
		t.Errorf("unexpected error got=%v want=%v", err, storeDown)
	}
}

func TestGetAndDelete(t *testing.T) {
	ctx := context.Background()
	service := user.NewService(memrepo.NewUserRepo(memrepo.NewStore()))
	if _, err := service.Create(ctx, user.CreateUserRequest{Username: "shipper", PlainTextPassword: "boxes-and-tape"}); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	got, err := service.Get(ctx, "shipper")
	if err != nil {
		t.Fatalf("did not want error, got=%v", err)
	}
	if got.Username != "shipper" || got.IsAdmin {
		t.Errorf("unexpected user got=%+v", got)
	}

	if err := service.Delete(ctx, "shipper"); err != nil {
		t.Fatalf("did not want error, got=%v", err)
	}
	if _, err := service.Get(ctx, "shipper"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unexpected error got=%v want=%v", err, core.ErrNotFound)
	}
	if err := service.Delete(ctx, "shipper"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unexpected error deleting twice got=%v want=%v", err, core.ErrNotFound)
	}
}
