package clickhouse

import (
	"context"
	"fmt"
	"time"

	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/storage"
)

// ActivityStore implements storage.ActivityStore using ClickHouse.
// Purchase events arrive one per verified swap; ClickHouse absorbs the
// volume that would bloat the Postgres decision tables.
type ActivityStore struct {
	conn *Conn
}

// NewActivityStore creates a new ActivityStore.
func NewActivityStore(conn *Conn) *ActivityStore {
	return &ActivityStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

// Insert records one purchase event.
func (s *ActivityStore) Insert(ctx context.Context, a *domain.WalletActivity) error {
	if a == nil || a.Wallet == "" {
		return storage.ErrInvalidInput
	}
	return s.InsertBulk(ctx, []*domain.WalletActivity{a})
}

// InsertBulk records multiple purchase events in one batch.
func (s *ActivityStore) InsertBulk(ctx context.Context, activities []*domain.WalletActivity) error {
	if len(activities) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO wallet_activity (
			wallet, mint, symbol, tx_signature, sol_spent, buy_value_usd, market_cap, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, a := range activities {
		if a == nil || a.Wallet == "" {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			a.Wallet, a.Mint, a.Symbol, a.Signature,
			a.SolSpent, a.BuyValueUSD, a.MarketCap, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// CountSince returns the number of purchases recorded at or after the
// given time.
func (s *ActivityStore) CountSince(ctx context.Context, since time.Time) (uint64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM wallet_activity WHERE created_at >= ?`, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count activity: %w", err)
	}
	return count, nil
}
