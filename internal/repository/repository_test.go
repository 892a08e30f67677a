package repository_test

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const tokensSchema = "../migrations/01_session_tokens.up.sql"

// startPostgres runs a throwaway database with the token schema applied and
// returns a pool connected to it.
func startPostgres(ctx context.Context) (*postgres.PostgresContainer, *pgxpool.Pool, error) {
	container, err := postgres.Run(ctx, "postgres:17.6-alpine3.22",
		postgres.WithDatabase("biashara"),
		postgres.WithUsername("till"),
		postgres.WithPassword("till"),
		postgres.WithInitScripts(tokensSchema),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return container, nil, fmt.Errorf("container.ConnectionString: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return container, nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	return container, pool, nil
}
