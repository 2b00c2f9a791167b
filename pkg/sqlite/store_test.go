package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/sqlite"
	"github.com/dmitrymomot/notifykit/pkg/storage"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	return s
}

func TestStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "notifications")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "notifications", []byte(`{"unreadCount":1}`)))
	require.NoError(t, s.Set(ctx, "notifications", []byte(`{"unreadCount":2}`)))

	got, err := s.Get(ctx, "notifications")
	require.NoError(t, err)
	assert.JSONEq(t, `{"unreadCount":2}`, string(got))

	require.NoError(t, s.Set(ctx, "notification-preferences", []byte(`{}`)))
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"notification-preferences", "notifications"}, keys)

	require.NoError(t, s.Delete(ctx, "notifications"))
	_, err = s.Get(ctx, "notifications")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, s.Set(ctx, "", []byte("x")), storage.ErrInvalidKey)
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notify.db")

	s, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Close())

	s, err = sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}
