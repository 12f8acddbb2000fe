package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/sksmith/stock-ledger/core/user"
)

type CreateUserRequestDto struct {
	*user.CreateUserRequest
	Password string `json:"password,omitempty"`
}

func (p *CreateUserRequestDto) Bind(_ *http.Request) error {
	if p.CreateUserRequest == nil || p.Username == "" || p.Password == "" {
		return errors.New("missing required field(s)")
	}

	p.CreateUserRequest.PlainTextPassword = p.Password

	return nil
}

type UserResponse struct {
	Username string    `json:"username"`
	IsAdmin  bool      `json:"isAdmin"`
	Created  time.Time `json:"created"`
}

func NewUserResponse(u user.User) *UserResponse {
	return &UserResponse{Username: u.Username, IsAdmin: u.IsAdmin, Created: u.Created}
}

func (u *UserResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}
