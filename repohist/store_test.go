package repohist

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/OPTIX/errors"
	optixtest "github.com/teranos/OPTIX/internal/testing"
)

func TestTouchInsertsAndBumps(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t), nil)
	ctx := context.Background()

	require.NoError(t, store.Touch(ctx, 1, "https://example.com/a.git"))
	require.NoError(t, store.Touch(ctx, 1, "https://example.com/b.git"))
	require.NoError(t, store.Touch(ctx, 1, "https://example.com/a.git"))

	entries, err := store.List(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Most recently touched first.
	assert.Equal(t, "https://example.com/a.git", entries[0].RepoURL)
	assert.Equal(t, 2, entries[0].AccessCount)
	assert.Equal(t, "https://example.com/b.git", entries[1].RepoURL)
	assert.Equal(t, 1, entries[1].AccessCount)
	assert.False(t, entries[0].LastAccessedAt.Before(entries[1].LastAccessedAt))
}

func TestTouchEvictsBeyondCap(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t), nil)
	ctx := context.Background()

	for i := 0; i < MaxEntries+2; i++ {
		require.NoError(t, store.Touch(ctx, 1, fmt.Sprintf("https://example.com/repo-%03d.git", i)))
	}

	entries, err := store.List(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, MaxEntries)

	urls := make(map[string]bool, len(entries))
	for _, e := range entries {
		urls[e.RepoURL] = true
	}
	assert.False(t, urls["https://example.com/repo-000.git"])
	assert.False(t, urls["https://example.com/repo-001.git"])
	assert.True(t, urls["https://example.com/repo-002.git"])
	assert.True(t, urls[fmt.Sprintf("https://example.com/repo-%03d.git", MaxEntries+1)])
}

func TestListLimit(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Touch(ctx, 1, fmt.Sprintf("https://example.com/repo-%d.git", i)))
	}

	entries, err := store.List(ctx, 1, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	entries, err = store.List(ctx, 1, MaxEntries*10)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestListScopedByUser(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t), nil)
	ctx := context.Background()

	require.NoError(t, store.Touch(ctx, 1, "https://example.com/mine.git"))
	require.NoError(t, store.Touch(ctx, 2, "https://example.com/theirs.git"))

	entries, err := store.List(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.com/mine.git", entries[0].RepoURL)
}

func TestRemove(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t), nil)
	ctx := context.Background()

	require.NoError(t, store.Touch(ctx, 1, "https://example.com/a.git"))
	entries, err := store.List(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, store.Remove(ctx, 1, entries[0].ID))

	entries, err = store.List(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveOtherUsersEntryNotFound(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t), nil)
	ctx := context.Background()

	require.NoError(t, store.Touch(ctx, 1, "https://example.com/a.git"))
	entries, err := store.List(ctx, 1, 0)
	require.NoError(t, err)

	err = store.Remove(ctx, 2, entries[0].ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRemoveMissingEntryNotFound(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t), nil)
	err := store.Remove(context.Background(), 1, 4242)
	assert.True(t, errors.IsNotFound(err))
}

func TestClear(t *testing.T) {
	store := NewStore(optixtest.CreateTestDB(t), nil)
	ctx := context.Background()

	require.NoError(t, store.Touch(ctx, 1, "https://example.com/a.git"))
	require.NoError(t, store.Touch(ctx, 1, "https://example.com/b.git"))
	require.NoError(t, store.Touch(ctx, 2, "https://example.com/theirs.git"))

	require.NoError(t, store.Clear(ctx, 1))

	entries, err := store.List(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Other users keep their history.
	entries, err = store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
