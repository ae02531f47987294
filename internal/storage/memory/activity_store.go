package memory

import (
	"context"
	"sync"
	"time"

	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/storage"
)

// ActivityStore is an in-memory implementation of storage.ActivityStore.
type ActivityStore struct {
	mu   sync.RWMutex
	data []*domain.WalletActivity
}

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{}
}

// Insert records one purchase event.
func (s *ActivityStore) Insert(_ context.Context, a *domain.WalletActivity) error {
	if a == nil || a.Wallet == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	activityCopy := *a
	s.data = append(s.data, &activityCopy)
	return nil
}

// InsertBulk records multiple purchase events.
func (s *ActivityStore) InsertBulk(ctx context.Context, activities []*domain.WalletActivity) error {
	for _, a := range activities {
		if err := s.Insert(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// CountSince returns the number of purchases recorded at or after the
// given time.
func (s *ActivityStore) CountSince(_ context.Context, since time.Time) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count uint64
	for _, a := range s.data {
		if !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// Verify interface compliance at compile time.
var _ storage.ActivityStore = (*ActivityStore)(nil)
