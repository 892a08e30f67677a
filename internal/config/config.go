// Package config reads settings from the environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/currency"
)

type TokenStoreKind string

const (
	TokenStoreFile     TokenStoreKind = "file"
	TokenStoreRedis    TokenStoreKind = "redis"
	TokenStorePostgres TokenStoreKind = "postgres"
)

type Config struct {
	APIURL         string
	HTTPTimeout    time.Duration
	SearchDebounce time.Duration
	Currency       currency.Unit

	TokenStore    TokenStoreKind
	TokenFile     string
	TokenKey      string
	RedisAddr     string
	RedisPassword string
	DatabaseURL   string

	ListenAddr string
	LogLevel   string
	Dev        bool
}

// Load reads the configuration. Variables from files never override the
// environment. A missing .env file is not an error.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("godotenv.Load: %w", err)
	}

	var errs []error

	cfg := Config{
		APIURL:        strings.TrimRight(getEnv("BIASHARA_API_URL", "http://localhost:8080"), "/"),
		TokenStore:    TokenStoreKind(strings.ToLower(getEnv("BIASHARA_TOKEN_STORE", string(TokenStoreFile)))),
		TokenFile:     getEnv("BIASHARA_TOKEN_FILE", ""),
		TokenKey:      getEnv("BIASHARA_TOKEN_KEY", "token"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		ListenAddr:    getEnv("BIASHARA_LISTEN_ADDR", ":3000"),
		LogLevel:      getEnv("BIASHARA_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.HTTPTimeout, err = getDuration("BIASHARA_HTTP_TIMEOUT", 15*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.SearchDebounce, err = getDuration("BIASHARA_SEARCH_DEBOUNCE", 300*time.Millisecond); err != nil {
		errs = append(errs, err)
	}
	if cfg.Dev, err = strconv.ParseBool(getEnv("BIASHARA_DEV", "false")); err != nil {
		errs = append(errs, fmt.Errorf("BIASHARA_DEV: %w", err))
	}
	if cfg.Currency, err = currency.ParseISO(getEnv("BIASHARA_CURRENCY", "KES")); err != nil {
		errs = append(errs, fmt.Errorf("BIASHARA_CURRENCY: %w", err))
	}

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("BIASHARA_API_URL %q must be an absolute http(s) url", c.APIURL))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("BIASHARA_HTTP_TIMEOUT must be positive"))
	}
	if c.SearchDebounce < 0 {
		errs = append(errs, errors.New("BIASHARA_SEARCH_DEBOUNCE must not be negative"))
	}
	if c.TokenKey == "" {
		errs = append(errs, errors.New("BIASHARA_TOKEN_KEY is empty"))
	}

	switch c.TokenStore {
	case TokenStoreFile, TokenStoreRedis:
	case TokenStorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres token store"))
		}
	default:
		errs = append(errs, fmt.Errorf("BIASHARA_TOKEN_STORE %q is not one of file, redis, postgres", c.TokenStore))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
