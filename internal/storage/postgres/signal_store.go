package postgres

import (
	"context"
	"fmt"
	"time"

	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// Insert persists a new signal and assigns its ID.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.TradeSignal) error {
	if sig == nil || sig.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_signals (mint, symbol, entry_cap, scenario, wallet_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		sig.Mint,
		sig.Symbol,
		sig.EntryCap,
		sig.Scenario,
		sig.WalletCount,
		sig.CreatedAt,
	).Scan(&sig.ID)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// HasRecentSignal reports whether a signal for the mint exists within
// the given lookback period.
func (s *SignalStore) HasRecentSignal(ctx context.Context, mint string, lookback time.Duration) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM trade_signals
			WHERE mint = $1 AND created_at > $2
		)
	`

	var exists bool
	err := s.pool.QueryRow(ctx, query, mint, time.Now().Add(-lookback)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check recent signal: %w", err)
	}
	return exists, nil
}
