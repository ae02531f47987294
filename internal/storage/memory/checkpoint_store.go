package memory

import (
	"context"
	"sync"

	"smartmoney-monitor/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
// Checkpoints do not survive a restart; the polling runner then
// re-reads a bounded number of already-seen transactions, which the
// signature dedup absorbs.
type CheckpointStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{data: make(map[string]string)}
}

// Load returns the full wallet -> signature checkpoint map.
func (s *CheckpointStore) Load(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

// Save replaces the stored checkpoints with the given map.
func (s *CheckpointStore) Save(_ context.Context, checkpoints map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]string, len(checkpoints))
	for k, v := range checkpoints {
		s.data[k] = v
	}
	return nil
}

// Verify interface compliance at compile time.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)
