package port

import (
	"context"

	"github.com/nikolayk812/biashara-pos/internal/domain"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (domain.AuthResult, error)
	Register(ctx context.Context, fullName, email, password string) (domain.AuthResult, error)
	Verify(ctx context.Context, token string) (domain.User, error)
}

// TokenStore persists the bearer token under a single key.
// Load returns domain.ErrTokenNotFound when no token is stored.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}
