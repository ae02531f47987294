// Package memory provides in-memory store implementations, used when
// the monitor runs without a database and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"smartmoney-monitor/internal/domain"
	"smartmoney-monitor/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
type AlertStore struct {
	mu     sync.RWMutex
	nextID int64
	data   []*domain.AlertSnapshot
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{nextID: 1}
}

// Insert persists a fired alert and assigns its ID.
func (s *AlertStore) Insert(_ context.Context, a *domain.AlertSnapshot) error {
	if a == nil || a.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	alertCopy := *a
	alertCopy.ID = s.nextID
	s.nextID++
	s.data = append(s.data, &alertCopy)
	a.ID = alertCopy.ID
	return nil
}

// GetByMint retrieves all alerts for a mint, newest first.
func (s *AlertStore) GetByMint(_ context.Context, mint string) ([]*domain.AlertSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AlertSnapshot
	for _, a := range s.data {
		if a.Mint == mint {
			alertCopy := *a
			result = append(result, &alertCopy)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

// GetSince retrieves alerts created at or after the given time, newest first.
func (s *AlertStore) GetSince(_ context.Context, since time.Time) ([]*domain.AlertSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AlertSnapshot
	for _, a := range s.data {
		if !a.CreatedAt.Before(since) {
			alertCopy := *a
			result = append(result, &alertCopy)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

// PruneBefore deletes alerts created before the cutoff and returns the
// number of rows removed.
func (s *AlertStore) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.data[:0]
	for _, a := range s.data {
		if !a.CreatedAt.Before(cutoff) {
			kept = append(kept, a)
		}
	}
	removed := int64(len(s.data) - len(kept))
	s.data = kept
	return removed, nil
}

func sortNewestFirst(alerts []*domain.AlertSnapshot) {
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
}

// Verify interface compliance at compile time.
var _ storage.AlertStore = (*AlertStore)(nil)
