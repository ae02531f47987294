package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/storage"
)

func TestActivityStore_InsertAndCount(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewActivityStore(conn)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.Insert(ctx, &domain.WalletActivity{
		Wallet:      "w1",
		Mint:        "MintAddress123",
		Symbol:      "TEST",
		Signature:   "sig1",
		SolSpent:    1.5,
		BuyValueUSD: 300,
		MarketCap:   120_000,
		CreatedAt:   now,
	}))

	count, err := store.CountSince(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestActivityStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewActivityStore(conn)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	batch := []*domain.WalletActivity{
		{Wallet: "w1", Mint: "mint", Signature: "sig1", SolSpent: 1, CreatedAt: now.Add(-48 * time.Hour)},
		{Wallet: "w2", Mint: "mint", Signature: "sig2", SolSpent: 2, CreatedAt: now},
		{Wallet: "w3", Mint: "mint", Signature: "sig3", SolSpent: 3, CreatedAt: now},
	}
	require.NoError(t, store.InsertBulk(ctx, batch))

	count, err := store.CountSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count, "old rows fall outside the window")
}

func TestActivityStore_InvalidInput(t *testing.T) {
	store := NewActivityStore(nil)
	err := store.Insert(context.Background(), &domain.WalletActivity{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
