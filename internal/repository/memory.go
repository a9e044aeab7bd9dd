package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryConfirmationLocker is a process-local locker used when Redis is unavailable.
type MemoryConfirmationLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	now   func() time.Time
}

func NewMemoryConfirmationLocker() *MemoryConfirmationLocker {
	return &MemoryConfirmationLocker{
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (r *MemoryConfirmationLocker) Acquire(_ context.Context, bookingID string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if expiresAt, ok := r.locks[bookingID]; ok && now.Before(expiresAt) {
		return false, nil
	}
	r.locks[bookingID] = now.Add(ttl)
	return true, nil
}

func (r *MemoryConfirmationLocker) Release(_ context.Context, bookingID string) error {
	r.mu.Lock()
	delete(r.locks, bookingID)
	r.mu.Unlock()
	return nil
}
