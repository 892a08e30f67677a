package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/biashara-pos/internal/db"
	"github.com/nikolayk812/biashara-pos/internal/domain"
	"github.com/nikolayk812/biashara-pos/internal/port"
)

// DefaultTokenKey is the single key the bearer token is stored under.
const DefaultTokenKey = "token"

type tokenRepository struct {
	q    *db.Queries
	pool *pgxpool.Pool
	key  string
}

// NewTokenStore keeps the token in the session_tokens table, one row per key.
func NewTokenStore(pool *pgxpool.Pool, key string) (port.TokenStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("key is empty")
	}

	return &tokenRepository{
		q:    db.New(pool),
		pool: pool,
		key:  key,
	}, nil
}

func NewTokenStoreWithTx(tx pgx.Tx, key string) port.TokenStore {
	return &tokenRepository{
		q:    db.New(tx),
		pool: nil, // use provided transaction instead
		key:  key,
	}
}

func (r *tokenRepository) Load(ctx context.Context) (string, error) {
	row, err := r.q.GetToken(ctx, r.key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("q.GetToken: %w", err)
	}

	return row.Token, nil
}

func (r *tokenRepository) Save(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("token is empty")
	}

	_, err := inTx(ctx, r.pool, r.q, func(q *db.Queries) (struct{}, error) {
		// serializes terminals that share the key
		if _, err := q.LockToken(ctx, r.key); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return struct{}{}, fmt.Errorf("q.LockToken: %w", err)
		}

		if err := q.UpsertToken(ctx, db.UpsertTokenParams{TokenKey: r.key, Token: token}); err != nil {
			return struct{}{}, fmt.Errorf("q.UpsertToken: %w", err)
		}

		return struct{}{}, nil
	})

	return err
}

func (r *tokenRepository) Delete(ctx context.Context) error {
	if _, err := r.q.DeleteToken(ctx, r.key); err != nil {
		return fmt.Errorf("q.DeleteToken: %w", err)
	}

	return nil
}
