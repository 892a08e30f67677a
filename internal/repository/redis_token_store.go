package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikolayk812/biashara-pos/internal/domain"
	"github.com/nikolayk812/biashara-pos/internal/port"
	"github.com/redis/go-redis/v9"
)

type redisTokenStore struct {
	client *redis.Client
	key    string
}

// NewRedisTokenStore keeps the token under a single Redis key without expiry.
// Expiry is the server's decision, learned through verification.
func NewRedisTokenStore(client *redis.Client, key string) (port.TokenStore, error) {
	if client == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if key == "" {
		return nil, fmt.Errorf("key is empty")
	}

	return &redisTokenStore{client: client, key: redisKey(key)}, nil
}

func (s *redisTokenStore) Load(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}

	return token, nil
}

func (s *redisTokenStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("token is empty")
	}

	if err := s.client.Set(ctx, s.key, token, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (s *redisTokenStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

func redisKey(key string) string {
	return fmt.Sprintf("biashara:session:%s", key)
}
