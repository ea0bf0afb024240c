package notes

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	a, err := s.Create(ctx, "first", "hello")
	require.NoError(t, err)
	b, err := s.Create(ctx, "second", "world")
	require.NoError(t, err)
	assert.Greater(t, b.ID, a.ID)

	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Note{a, b}, list)
}

func TestSQLiteFilePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.db")

	s, err := Open(ctx, "sqlite://"+path)
	require.NoError(t, err)
	n, err := s.Create(ctx, "kept", "across reopen")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Note{n}, list)
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open(context.Background(), "mysql://localhost/notes")
	assert.ErrorIs(t, err, ErrUnsupportedDSN)

	_, err = Open(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnsupportedDSN)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("GQLGATE_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("GQLGATE_TEST_POSTGRES not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Create(ctx, "pg", "note")
	require.NoError(t, err)
	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, list, n)
}
