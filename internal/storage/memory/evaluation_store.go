package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/storage"
)

// EvaluationStore is an in-memory implementation of storage.EvaluationStore.
type EvaluationStore struct {
	mu     sync.RWMutex
	nextID int64
	data   []*domain.TokenEvaluation
	ath    map[string]float64
}

// NewEvaluationStore creates a new in-memory evaluation store.
func NewEvaluationStore() *EvaluationStore {
	return &EvaluationStore{nextID: 1, ath: make(map[string]float64)}
}

// Insert persists one executed check. The stored ATH for the mint never
// decreases: a stale insert cannot pull an already-observed peak down.
func (s *EvaluationStore) Insert(_ context.Context, e *domain.TokenEvaluation) error {
	if e == nil || e.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ATHCap > s.ath[e.Mint] {
		s.ath[e.Mint] = e.ATHCap
	}
	evalCopy := *e
	evalCopy.ID = s.nextID
	evalCopy.ATHCap = s.ath[e.Mint]
	s.nextID++
	s.data = append(s.data, &evalCopy)
	e.ID = evalCopy.ID
	return nil
}

// GetByMint retrieves all evaluations for a mint, oldest first.
func (s *EvaluationStore) GetByMint(_ context.Context, mint string) ([]*domain.TokenEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenEvaluation
	for _, e := range s.data {
		if e.Mint == mint {
			evalCopy := *e
			result = append(result, &evalCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CheckedAt.Before(result[j].CheckedAt)
	})
	return result, nil
}

// GetSince retrieves evaluations checked at or after the given time.
func (s *EvaluationStore) GetSince(_ context.Context, since time.Time) ([]*domain.TokenEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenEvaluation
	for _, e := range s.data {
		if !e.CheckedAt.Before(since) {
			evalCopy := *e
			result = append(result, &evalCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CheckedAt.Before(result[j].CheckedAt)
	})
	return result, nil
}

// PruneBefore deletes evaluations checked before the cutoff and returns
// the number of rows removed. The per-mint ATH state survives pruning,
// so a later insert still cannot pull a recorded peak down.
func (s *EvaluationStore) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.data[:0]
	for _, e := range s.data {
		if !e.CheckedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := int64(len(s.data) - len(kept))
	s.data = kept
	return removed, nil
}

// Verify interface compliance at compile time.
var _ storage.EvaluationStore = (*EvaluationStore)(nil)
