package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/biashara-pos/internal/api"
	"github.com/nikolayk812/biashara-pos/internal/cart"
	"github.com/nikolayk812/biashara-pos/internal/config"
	"github.com/nikolayk812/biashara-pos/internal/domain"
	"github.com/nikolayk812/biashara-pos/internal/logging"
	"github.com/nikolayk812/biashara-pos/internal/port"
	"github.com/nikolayk812/biashara-pos/internal/repository"
	"github.com/nikolayk812/biashara-pos/internal/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var envFile = flag.String("env-file", ".env", "path to an optional .env file")

var errNotSignedIn = errors.New("not signed in, run login first")

// app wires the collaborators shared by every command.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	client  *api.Client
	guard   *session.Guard
	closers []func()
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(*envFile)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return nil, fmt.Errorf("logging.New: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	store, err := a.openTokenStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.client, err = api.New(cfg.APIURL,
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithCurrency(cfg.Currency),
		api.WithLogger(logger),
		api.WithBearer(a.token))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("api.New: %w", err)
	}

	a.guard, err = session.New(a.client, store, session.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("session.New: %w", err)
	}

	return a, nil
}

func (a *app) openTokenStore(ctx context.Context) (port.TokenStore, error) {
	switch a.cfg.TokenStore {
	case config.TokenStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
		})
		a.closers = append(a.closers, func() { _ = client.Close() })

		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		store, err := repository.NewRedisTokenStore(client, a.cfg.TokenKey)
		if err != nil {
			return nil, fmt.Errorf("repository.NewRedisTokenStore: %w", err)
		}
		return store, nil

	case config.TokenStorePostgres:
		pool, err := pgxpool.New(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("pgxpool.New: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("pool.Ping: %w", err)
		}
		store, err := repository.NewTokenStore(pool, a.cfg.TokenKey)
		if err != nil {
			return nil, fmt.Errorf("repository.NewTokenStore: %w", err)
		}
		return store, nil

	default:
		path := a.cfg.TokenFile
		if path == "" {
			path = repository.DefaultTokenFile()
		}
		store, err := repository.NewFileTokenStore(path)
		if err != nil {
			return nil, fmt.Errorf("repository.NewFileTokenStore: %w", err)
		}
		return store, nil
	}
}

func (a *app) token() string {
	if a.guard == nil {
		return ""
	}
	return a.guard.Token()
}

// requireSession verifies the persisted token before any backend work that needs it.
func (a *app) requireSession(ctx context.Context) (domain.Session, error) {
	s, err := a.guard.Verify(ctx)
	if err != nil {
		return s, err
	}
	if !s.Authenticated() {
		return s, errNotSignedIn
	}
	return s, nil
}

func (a *app) newEngine() (*cart.Engine, error) {
	return cart.New(a.client, a.client,
		cart.WithPaymentInitiator(a.client),
		cart.WithDebounce(a.cfg.SearchDebounce),
		cart.WithCurrency(a.cfg.Currency),
		cart.WithLogger(a.logger))
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}
