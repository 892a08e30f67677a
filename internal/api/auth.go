package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nikolayk812/biashara-pos/internal/domain"
)

type userDTO struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type authResponse struct {
	Message string  `json:"message"`
	Token   string  `json:"token"`
	User    userDTO `json:"user"`
}

type verifyResponse struct {
	User *userDTO `json:"user"`
}

type loginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerDTO struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Login(ctx context.Context, email, password string) (domain.AuthResult, error) {
	return c.authenticate(ctx, "/login", loginDTO{Email: email, Password: password})
}

func (c *Client) Register(ctx context.Context, fullName, email, password string) (domain.AuthResult, error) {
	return c.authenticate(ctx, "/register", registerDTO{FullName: fullName, Email: email, Password: password})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (domain.AuthResult, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, path, nil, body, &resp, ""); err != nil {
		return domain.AuthResult{}, err
	}
	if resp.Token == "" {
		return domain.AuthResult{}, fmt.Errorf("%w: %s response has no token", domain.ErrNetwork, path)
	}

	return domain.AuthResult{
		Token:   resp.Token,
		User:    mapUserToDomain(resp.User),
		Message: resp.Message,
	}, nil
}

// Verify asks the backend who the token belongs to.
func (c *Client) Verify(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, domain.ErrUnauthorized
	}

	var resp verifyResponse
	if err := c.do(ctx, http.MethodGet, "/verify-token", nil, nil, &resp, token); err != nil {
		return domain.User{}, err
	}
	if resp.User == nil {
		return domain.User{}, fmt.Errorf("%w: verify response has no user", domain.ErrUnauthorized)
	}

	return mapUserToDomain(*resp.User), nil
}

func mapUserToDomain(u userDTO) domain.User {
	return domain.User{ID: u.ID, FullName: u.FullName, Email: u.Email}
}
