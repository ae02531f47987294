package postgres

import (
	"context"
	"fmt"

	"smartmoney-monitor/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using PostgreSQL.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Load returns the full wallet -> signature checkpoint map.
func (s *CheckpointStore) Load(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT wallet, last_signature FROM wallet_checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	defer rows.Close()

	checkpoints := make(map[string]string)
	for rows.Next() {
		var wallet, sig string
		if err := rows.Scan(&wallet, &sig); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		checkpoints[wallet] = sig
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoint rows: %w", err)
	}
	return checkpoints, nil
}

// Save replaces the stored checkpoints with the given map.
func (s *CheckpointStore) Save(ctx context.Context, checkpoints map[string]string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin checkpoint save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM wallet_checkpoints`); err != nil {
		return fmt.Errorf("clear checkpoints: %w", err)
	}

	query := `
		INSERT INTO wallet_checkpoints (wallet, last_signature, updated_at)
		VALUES ($1, $2, now())
	`
	for wallet, sig := range checkpoints {
		if _, err := tx.Exec(ctx, query, wallet, sig); err != nil {
			return fmt.Errorf("insert checkpoint for %s: %w", wallet, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkpoint save: %w", err)
	}
	return nil
}
