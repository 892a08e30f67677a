package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nikolayk812/biashara-pos/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	ctx := t.Context()

	store, err := NewFileTokenStore(path)
	require.NoError(t, err)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	require.NoError(t, store.Save(ctx, "first"))
	require.NoError(t, store.Save(ctx, "second"))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx))

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestFileTokenStore_BlankFileIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	store, err := NewFileTokenStore(path)
	require.NoError(t, err)

	_, err = store.Load(t.Context())
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestNewFileTokenStore_EmptyPath(t *testing.T) {
	_, err := NewFileTokenStore("")
	require.EqualError(t, err, "path is empty")
}
