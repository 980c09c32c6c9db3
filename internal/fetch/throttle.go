package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Throttle bounds concurrent outbound requests and spaces request starts
// by a minimum wall-clock interval across the whole process. Callers may
// suspend at the semaphore, at the interval wait, or both.
type Throttle struct {
	sem      *semaphore.Weighted
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewThrottle creates a throttle with the given concurrency cap and
// minimum interval between request starts.
func NewThrottle(maxConcurrency int64, minInterval time.Duration) *Throttle {
	if maxConcurrency <= 0 {
		maxConcurrency = 3
	}
	return &Throttle{
		sem:      semaphore.NewWeighted(maxConcurrency),
		interval: minInterval,
	}
}

// Acquire blocks until a slot is free and the min-interval has elapsed.
// Cancellation during either wait releases the slot; a successful Acquire
// must be paired with Release.
func (t *Throttle) Acquire(ctx context.Context) error {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if t.interval <= 0 {
		return nil
	}

	// Reserve this request's start slot under the lock, sleep outside it.
	t.mu.Lock()
	now := time.Now()
	start := t.next
	if start.Before(now) {
		start = now
	}
	t.next = start.Add(t.interval)
	t.mu.Unlock()

	if wait := time.Until(start); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			t.sem.Release(1)
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Release frees the slot taken by Acquire.
func (t *Throttle) Release() {
	t.sem.Release(1)
}
