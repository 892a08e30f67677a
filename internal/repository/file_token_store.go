package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nikolayk812/biashara-pos/internal/domain"
	"github.com/nikolayk812/biashara-pos/internal/port"
)

// DefaultTokenFile is where the CLI keeps its session when nothing else is configured.
func DefaultTokenFile() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "biashara", DefaultTokenKey)
	}
	return filepath.Join(os.TempDir(), "biashara-"+DefaultTokenKey)
}

type fileTokenStore struct {
	path string
}

func NewFileTokenStore(path string) (port.TokenStore, error) {
	if path == "" {
		return nil, fmt.Errorf("path is empty")
	}

	return &fileTokenStore{path: path}, nil
}

func (s *fileTokenStore) Load(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", domain.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("os.ReadFile: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", domain.ErrTokenNotFound
	}

	return token, nil
}

func (s *fileTokenStore) Save(_ context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("token is empty")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("os.MkdirAll: %w", err)
	}

	// atomic replace
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token), 0o600); err != nil {
		return fmt.Errorf("os.WriteFile: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("os.Rename: %w", err)
	}

	return nil
}

func (s *fileTokenStore) Delete(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("os.Remove: %w", err)
	}

	return nil
}
