package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/sksmith/stock-ledger/api"
	"github.com/sksmith/stock-ledger/core/user"
	"github.com/sksmith/stock-ledger/db/memrepo"
	"github.com/sksmith/stock-ledger/testutil"
)

var (
	root  = testutil.RequestOptions{Username: "root", Password: "root-password"}
	clerk = testutil.RequestOptions{Username: "clerk", Password: "clerk-password"}
)

func newUserServer(t *testing.T, svc user.Service) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.With(api.Authenticate(svc)).Route("/", api.NewUserApi(svc).ConfigureRouter)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func seededUserService(t *testing.T) user.Service {
	t.Helper()
	svc := user.NewService(memrepo.NewUserRepo(memrepo.NewStore()))
	for _, req := range []user.CreateUserRequest{
		{Username: root.Username, PlainTextPassword: root.Password, IsAdmin: true},
		{Username: clerk.Username, PlainTextPassword: clerk.Password},
	} {
		if _, err := svc.Create(context.Background(), req); err != nil {
			t.Fatalf("failed to seed user %s: %v", req.Username, err)
		}
	}
	return svc
}

func newUserRequest(username, password string, isAdmin bool) api.CreateUserRequestDto {
	return api.CreateUserRequestDto{CreateUserRequest: &user.CreateUserRequest{Username: username, IsAdmin: isAdmin}, Password: password}
}

func TestUserCreate(t *testing.T) {
	ts := newUserServer(t, seededUserService(t))

	tests := []struct {
		name    string
		auth    testutil.RequestOptions
		request interface{}

		wantStatusCode int
		wantErrorText  string
	}{
		{
			name:           "admin creates a user",
			auth:           root,
			request:        newUserRequest("receiver", "dock-door-4", false),
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "admin creates another admin",
			auth:           root,
			request:        newUserRequest("night.manager", "graveyard-shift", true),
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "non-admin is refused",
			auth:           clerk,
			request:        newUserRequest("sneaky", "let-me-in-please", true),
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "wrong password is refused",
			auth:           testutil.RequestOptions{Username: root.Username, Password: "guess"},
			request:        newUserRequest("receiver2", "dock-door-5", false),
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "unknown caller is refused",
			auth:           testutil.RequestOptions{Username: "ghost", Password: "root-password"},
			request:        newUserRequest("receiver3", "dock-door-6", false),
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "username already taken",
			auth:           root,
			request:        newUserRequest(clerk.Username, "another-password", false),
			wantStatusCode: http.StatusConflict,
		},
		{
			name:           "password too short",
			auth:           root,
			request:        newUserRequest("temp", "short", false),
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "username with spaces",
			auth:           root,
			request:        newUserRequest("temp worker", "long-enough-pw", false),
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "missing password",
			auth:           root,
			request:        newUserRequest("temp", "", false),
			wantStatusCode: http.StatusBadRequest,
			wantErrorText:  "missing required field(s)",
		},
		{
			name:           "empty body",
			auth:           root,
			request:        map[string]string{},
			wantStatusCode: http.StatusBadRequest,
			wantErrorText:  "missing required field(s)",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res := testutil.Post(ts.URL, test.request, t, test.auth)
			if res.StatusCode != test.wantStatusCode {
				t.Fatalf("status code got=%d want=%d", res.StatusCode, test.wantStatusCode)
			}

			if test.wantErrorText != "" {
				got := &api.ErrResponse{}
				testutil.Unmarshal(res, got, t)
				if got.ErrorText != test.wantErrorText {
					t.Errorf("error text got=%s want=%s", got.ErrorText, test.wantErrorText)
				}
			}
		})
	}
}

func TestCreatedUserCanLogIn(t *testing.T) {
	svc := seededUserService(t)
	ts := newUserServer(t, svc)

	res := testutil.Post(ts.URL, newUserRequest("night.manager", "graveyard-shift", true), t, root)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status code got=%d want=%d", res.StatusCode, http.StatusCreated)
	}
	got := &api.UserResponse{}
	testutil.Unmarshal(res, got, t)
	if got.Username != "night.manager" || !got.IsAdmin || got.Created.IsZero() {
		t.Errorf("unexpected response got=%+v", got)
	}

	manager := testutil.RequestOptions{Username: "night.manager", Password: "graveyard-shift"}
	res = testutil.Post(ts.URL, newUserRequest("day.manager", "morning-shift", false), t, manager)
	if res.StatusCode != http.StatusCreated {
		t.Errorf("new admin could not create users, status code got=%d want=%d", res.StatusCode, http.StatusCreated)
	}
}

func TestUserCreateFailures(t *testing.T) {
	tests := []struct {
		name       string
		loginErr   error
		createErr  error
		wantStatus int
		wantCreate int
	}{
		{name: "login store failure", loginErr: errors.New("connection refused"), wantStatus: http.StatusInternalServerError},
		{name: "create store failure", createErr: errors.New("connection refused"), wantStatus: http.StatusInternalServerError, wantCreate: 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			svc := user.NewMockUserService()
			svc.LoginFunc = func(ctx context.Context, username, password string) (user.User, error) {
				return user.User{Username: username, IsAdmin: true}, test.loginErr
			}
			svc.CreateFunc = func(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
				return user.User{}, test.createErr
			}
			ts := newUserServer(t, &svc)

			res := testutil.Post(ts.URL, newUserRequest("receiver", "dock-door-4", false), t, root)
			if res.StatusCode != test.wantStatus {
				t.Errorf("status code got=%d want=%d", res.StatusCode, test.wantStatus)
			}
			got := &api.ErrResponse{}
			testutil.Unmarshal(res, got, t)
			if got.StatusText != api.ErrInternalServer.StatusText {
				t.Errorf("status text got=%s want=%s", got.StatusText, api.ErrInternalServer.StatusText)
			}
			svc.VerifyCount("Create", test.wantCreate, t)
		})
	}
}
