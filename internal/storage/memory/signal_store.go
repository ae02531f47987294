package memory

import (
	"context"
	"sync"
	"time"

	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu     sync.RWMutex
	nextID int64
	data   []*domain.TradeSignal
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{nextID: 1}
}

// Insert persists a new signal and assigns its ID.
func (s *SignalStore) Insert(_ context.Context, sig *domain.TradeSignal) error {
	if sig == nil || sig.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	signalCopy := *sig
	signalCopy.ID = s.nextID
	s.nextID++
	s.data = append(s.data, &signalCopy)
	sig.ID = signalCopy.ID
	return nil
}

// HasRecentSignal reports whether a signal for the mint exists within
// the given lookback period.
func (s *SignalStore) HasRecentSignal(_ context.Context, mint string, lookback time.Duration) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-lookback)
	for _, sig := range s.data {
		if sig.Mint == mint && sig.CreatedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

// Verify interface compliance at compile time.
var _ storage.SignalStore = (*SignalStore)(nil)
