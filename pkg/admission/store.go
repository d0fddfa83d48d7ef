package admission

import (
	"context"
	"sync"
)

// Store holds the shared in-flight counter. Implementations must make
// TryAcquire and Release atomic with respect to every other caller of the
// same counter, including other processes for shared stores.
type Store interface {
	// TryAcquire increments the counter unless it already reached limit.
	// It returns whether the increment happened and the value observed
	// before it. A missing counter counts as 0.
	TryAcquire(ctx context.Context, limit int64) (admitted bool, observed int64, err error)

	// Release decrements the counter if it is positive. released is false
	// when the counter was already 0 or missing; it is never made negative.
	Release(ctx context.Context) (released bool, current int64, err error)

	// Reset sets the counter to 0.
	Reset(ctx context.Context) error

	// Current returns the counter value, 0 when missing.
	Current(ctx context.Context) (int64, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	count int64
}

// NewMemoryStore creates an in-process counter starting at 0.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) TryAcquire(_ context.Context, limit int64) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	observed := s.count
	if observed >= limit {
		return false, observed, nil
	}
	s.count++
	return true, observed, nil
}

func (s *MemoryStore) Release(context.Context) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count <= 0 {
		s.count = 0
		return false, 0, nil
	}
	s.count--
	return true, s.count, nil
}

func (s *MemoryStore) Reset(context.Context) error {
	s.mu.Lock()
	s.count = 0
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Current(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, nil
}
