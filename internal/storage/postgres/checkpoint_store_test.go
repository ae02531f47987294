package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointStore_SaveAndLoad(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCheckpointStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, map[string]string{
		"w1": "sig1",
		"w2": "sig2",
	}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"w1": "sig1", "w2": "sig2"}, got)

	// Save replaces the whole map.
	require.NoError(t, store.Save(ctx, map[string]string{"w1": "sig9"}))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"w1": "sig9"}, got)
}

func TestCheckpointStore_LoadEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCheckpointStore(pool)
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
