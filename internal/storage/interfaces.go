// Package storage defines the persistence contracts for alert and
// valuation records. All stores are best-effort sinks from the engine's
// perspective: a failed write is logged by the caller and never blocks
// the in-memory decision path.
package storage

import (
	"context"
	"time"

	"smartmoney-monitor/internal/domain"
)

// AlertStore provides access to fired-alert records.
type AlertStore interface {
	// Insert persists a fired alert and assigns its ID.
	Insert(ctx context.Context, a *domain.AlertSnapshot) error

	// GetByMint retrieves all alerts for a mint, newest first.
	GetByMint(ctx context.Context, mint string) ([]*domain.AlertSnapshot, error)

	// GetSince retrieves alerts created at or after the given time,
	// newest first.
	GetSince(ctx context.Context, since time.Time) ([]*domain.AlertSnapshot, error)

	// PruneBefore deletes alerts created before the cutoff and returns
	// the number of rows removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EvaluationStore provides access to post-alert valuation checks.
type EvaluationStore interface {
	// Insert persists one executed check. The stored ATH for the mint
	// never decreases, regardless of insert order.
	Insert(ctx context.Context, e *domain.TokenEvaluation) error

	// GetByMint retrieves all evaluations for a mint, oldest first.
	GetByMint(ctx context.Context, mint string) ([]*domain.TokenEvaluation, error)

	// GetSince retrieves evaluations checked at or after the given time.
	GetSince(ctx context.Context, since time.Time) ([]*domain.TokenEvaluation, error)

	// PruneBefore deletes evaluations checked before the cutoff and
	// returns the number of rows removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SignalStore provides access to trade signals derived from alerts.
type SignalStore interface {
	// Insert persists a new signal and assigns its ID.
	Insert(ctx context.Context, s *domain.TradeSignal) error

	// HasRecentSignal reports whether a signal for the mint exists
	// within the given lookback period.
	HasRecentSignal(ctx context.Context, mint string, lookback time.Duration) (bool, error)
}

// ActivityStore records individual verified purchases for reporting.
// Backed by ClickHouse in production; writes are append-only.
type ActivityStore interface {
	// Insert records one purchase event.
	Insert(ctx context.Context, a *domain.WalletActivity) error

	// InsertBulk records multiple purchase events in one batch.
	InsertBulk(ctx context.Context, activities []*domain.WalletActivity) error

	// CountSince returns the number of purchases recorded at or after
	// the given time.
	CountSince(ctx context.Context, since time.Time) (uint64, error)
}

// CheckpointStore persists per-wallet last-seen signatures so polling
// cycles only query new transactions after a restart.
type CheckpointStore interface {
	// Load returns the full wallet -> signature checkpoint map.
	Load(ctx context.Context) (map[string]string, error)

	// Save replaces the stored checkpoints with the given map.
	Save(ctx context.Context, checkpoints map[string]string) error
}
