package processor

import (
	"sync"

	"github.com/google/uuid"
)

// idempotencySet is a bounded, FIFO-evicting set of task IDs already
// processed. It exists to drop a task envelope delivered twice by a broker
// that upgraded QoS 1's at-least-once guarantee into an actual duplicate,
// without retaining unbounded memory across a long-lived process.
type idempotencySet struct {
	mu       sync.Mutex
	capacity int
	seen     map[uuid.UUID]struct{}
	order    []uuid.UUID
}

func newIdempotencySet(capacity int) *idempotencySet {
	return &idempotencySet{
		capacity: capacity,
		seen:     make(map[uuid.UUID]struct{}, capacity),
	}
}

// seenBefore records id if new, returning true if it was already present.
func (s *idempotencySet) seenBefore(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return true
	}

	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
	return false
}
