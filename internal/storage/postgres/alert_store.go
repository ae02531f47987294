package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// Insert persists a fired alert and assigns its ID.
func (s *AlertStore) Insert(ctx context.Context, a *domain.AlertSnapshot) error {
	if a == nil || a.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO alerts (mint, symbol, market_cap, wallet_count, wallets, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		a.Mint,
		a.Symbol,
		a.MarketCap,
		a.WalletCount,
		a.Wallets,
		a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetByMint retrieves all alerts for a mint, newest first.
func (s *AlertStore) GetByMint(ctx context.Context, mint string) ([]*domain.AlertSnapshot, error) {
	query := `
		SELECT id, mint, symbol, market_cap, wallet_count, wallets, created_at
		FROM alerts
		WHERE mint = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get alerts by mint: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// GetSince retrieves alerts created at or after the given time, newest first.
func (s *AlertStore) GetSince(ctx context.Context, since time.Time) ([]*domain.AlertSnapshot, error) {
	query := `
		SELECT id, mint, symbol, market_cap, wallet_count, wallets, created_at
		FROM alerts
		WHERE created_at >= $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("get alerts since: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// PruneBefore deletes alerts created before the cutoff and returns the
// number of rows removed.
func (s *AlertStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alerts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanAlerts scans multiple rows into a slice of AlertSnapshot.
func scanAlerts(rows pgx.Rows) ([]*domain.AlertSnapshot, error) {
	var alerts []*domain.AlertSnapshot

	for rows.Next() {
		var a domain.AlertSnapshot
		err := rows.Scan(
			&a.ID,
			&a.Mint,
			&a.Symbol,
			&a.MarketCap,
			&a.WalletCount,
			&a.Wallets,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}

	return alerts, nil
}
