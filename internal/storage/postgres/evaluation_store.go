package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/storage"
)

// EvaluationStore implements storage.EvaluationStore using PostgreSQL.
type EvaluationStore struct {
	pool *Pool
}

// NewEvaluationStore creates a new EvaluationStore.
func NewEvaluationStore(pool *Pool) *EvaluationStore {
	return &EvaluationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EvaluationStore = (*EvaluationStore)(nil)

// Insert persists one executed check. The stored ath_cap is clamped to
// the maximum already recorded for the mint, so out-of-order inserts
// cannot pull the peak down.
func (s *EvaluationStore) Insert(ctx context.Context, e *domain.TokenEvaluation) error {
	if e == nil || e.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_evaluations (
			mint, symbol, label, alert_cap, current_cap, change_pct,
			classification, ath_cap, wallets, alert_at, checked_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			GREATEST($8, COALESCE((SELECT MAX(ath_cap) FROM token_evaluations WHERE mint = $1), 0)),
			$9, $10, $11
		)
		RETURNING id, ath_cap
	`

	err := s.pool.QueryRow(ctx, query,
		e.Mint,
		e.Symbol,
		e.Label,
		e.AlertCap,
		e.CurrentCap,
		e.ChangePct,
		e.Classification,
		e.ATHCap,
		e.Wallets,
		e.AlertAt,
		e.CheckedAt,
	).Scan(&e.ID, &e.ATHCap)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

// GetByMint retrieves all evaluations for a mint, oldest first.
func (s *EvaluationStore) GetByMint(ctx context.Context, mint string) ([]*domain.TokenEvaluation, error) {
	query := evaluationSelect + `
		WHERE mint = $1
		ORDER BY checked_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get evaluations by mint: %w", err)
	}
	defer rows.Close()

	return scanEvaluations(rows)
}

// GetSince retrieves evaluations checked at or after the given time.
func (s *EvaluationStore) GetSince(ctx context.Context, since time.Time) ([]*domain.TokenEvaluation, error) {
	query := evaluationSelect + `
		WHERE checked_at >= $1
		ORDER BY checked_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("get evaluations since: %w", err)
	}
	defer rows.Close()

	return scanEvaluations(rows)
}

// PruneBefore deletes evaluations checked before the cutoff and returns
// the number of rows removed.
func (s *EvaluationStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM token_evaluations WHERE checked_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune evaluations: %w", err)
	}
	return tag.RowsAffected(), nil
}

const evaluationSelect = `
	SELECT id, mint, symbol, label, alert_cap, current_cap, change_pct,
	       classification, ath_cap, wallets, alert_at, checked_at
	FROM token_evaluations
`

// scanEvaluations scans multiple rows into a slice of TokenEvaluation.
func scanEvaluations(rows pgx.Rows) ([]*domain.TokenEvaluation, error) {
	var evals []*domain.TokenEvaluation

	for rows.Next() {
		var e domain.TokenEvaluation
		err := rows.Scan(
			&e.ID,
			&e.Mint,
			&e.Symbol,
			&e.Label,
			&e.AlertCap,
			&e.CurrentCap,
			&e.ChangePct,
			&e.Classification,
			&e.ATHCap,
			&e.Wallets,
			&e.AlertAt,
			&e.CheckedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation row: %w", err)
		}
		evals = append(evals, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluation rows: %w", err)
	}

	return evals, nil
}
