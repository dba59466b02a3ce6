package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T, quota int64) map[string]Storage {
	t.Helper()
	sqlite, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"), quota)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Storage{
		"sqlite": sqlite,
		"memory": NewMemoryStorage(quota),
	}
}

func TestStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t, 0) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "k", "v1"))
			require.NoError(t, s.Set(ctx, "k", "v2"))

			v, ok, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v2", v)

			require.NoError(t, s.Remove(ctx, "k"))
			_, ok, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.NoError(t, s.Remove(ctx, "k"), "removing a missing key is a no-op")
		})
	}
}

func TestStorageEmptyValueIsPresent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t, 0) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "k", ""))
			v, ok, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Empty(t, v)
		})
	}
}

func TestStorageQuota(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t, 20) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "a", "123456789")) // 10 bytes

			err := s.Set(ctx, "b", strings.Repeat("x", 11)) // 12 more, 22 total
			require.ErrorIs(t, err, ErrQuotaExceeded)

			_, ok, err := s.Get(ctx, "b")
			require.NoError(t, err)
			assert.False(t, ok, "rejected write must not be stored")

			// Replacing a value only counts the new size.
			require.NoError(t, s.Set(ctx, "a", strings.Repeat("y", 19)))

			err = s.Set(ctx, "a", strings.Repeat("z", 20))
			require.ErrorIs(t, err, ErrQuotaExceeded)

			v, _, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, strings.Repeat("y", 19), v, "previous value survives a rejected write")

			require.NoError(t, s.Remove(ctx, "a"))
			assert.NoError(t, s.Set(ctx, "b", strings.Repeat("x", 11)), "space is reclaimed after remove")
		})
	}
}

func TestSQLiteStorageSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := NewSQLiteStorage(path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "proposalFiles", `[{"id":1}]`))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(path, 0)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Get(ctx, "proposalFiles")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, v)

	used, err := s.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len("proposalFiles")+len(`[{"id":1}]`)), used)
}

func TestMemoryStorageUsage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage(0)
	require.NoError(t, m.Set(ctx, "ab", "cd"))
	require.NoError(t, m.Set(ctx, "ab", "c"))
	used, _ := m.Usage(ctx)
	assert.Equal(t, int64(3), used)
	require.NoError(t, m.Remove(ctx, "ab"))
	used, _ = m.Usage(ctx)
	assert.Zero(t, used)
}
