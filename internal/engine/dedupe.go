package engine

// signatureSet is a bounded set of processed transaction signatures.
// When the set exceeds its capacity the oldest half is evicted in bulk.
// Approximate LRU: eviction order is insertion order, a re-seen
// signature is not refreshed. Not safe for concurrent use; the engine
// serializes access under its own lock.
type signatureSet struct {
	capacity int
	seen     map[string]struct{}
	order    []string
}

const defaultSignatureCapacity = 10000

func newSignatureSet(capacity int) *signatureSet {
	if capacity <= 0 {
		capacity = defaultSignatureCapacity
	}
	return &signatureSet{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// Add records the signature. It returns false if the signature was
// already present.
func (s *signatureSet) Add(sig string) bool {
	if _, ok := s.seen[sig]; ok {
		return false
	}
	s.seen[sig] = struct{}{}
	s.order = append(s.order, sig)

	if len(s.seen) > s.capacity {
		s.evict()
	}
	return true
}

// Contains reports whether the signature has been recorded.
func (s *signatureSet) Contains(sig string) bool {
	_, ok := s.seen[sig]
	return ok
}

// Len returns the number of recorded signatures.
func (s *signatureSet) Len() int {
	return len(s.seen)
}

// evict drops the oldest half of the set.
func (s *signatureSet) evict() {
	half := len(s.order) / 2
	for _, sig := range s.order[:half] {
		delete(s.seen, sig)
	}
	s.order = append(s.order[:0], s.order[half:]...)
}
