package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/plant-bridge/internal/model"
)

// StateCache holds the latest StatusSnapshot. Every Update bumps a version and
// closes the current broadcast channel, so a waiter that captured the channel
// before the update is always woken.
type StateCache struct {
	mu      sync.Mutex
	snap    model.StatusSnapshot
	has     bool
	version uint64
	changed chan struct{}
	now     func() time.Time
}

func NewStateCache() *StateCache {
	return &StateCache{changed: make(chan struct{}), now: time.Now}
}

// Update replaces the stored snapshot as a whole and wakes all waiters.
// A zero ReceivedAt is stamped with the current time.
func (c *StateCache) Update(s model.StatusSnapshot) {
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = c.now()
	}
	c.mu.Lock()
	c.snap = s
	c.has = true
	c.version++
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}

// Read returns the current snapshot, or false if nothing was received yet.
func (c *StateCache) Read() (model.StatusSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap, c.has
}

func (c *StateCache) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Watch arms a Waiter at the current version. Arm it before triggering the
// device so an answer arriving before Wait is called is not lost.
func (c *StateCache) Watch() *Waiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Waiter{cache: c, version: c.version, changed: c.changed}
}

// WaitForUpdate blocks until a snapshot newer than the call arrives, timeout
// elapses or ctx is done.
func (c *StateCache) WaitForUpdate(ctx context.Context, timeout time.Duration) (model.StatusSnapshot, bool) {
	w := c.Watch()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return w.Wait(ctx)
}

// Waiter observes the cache from the version it was armed at.
type Waiter struct {
	cache   *StateCache
	version uint64
	changed <-chan struct{}
}

// Updated reports without blocking whether an update landed since Watch.
func (w *Waiter) Updated() bool {
	return w.cache.Version() != w.version
}

// Wait returns the latest snapshot once an update landed since Watch, or false when ctx is done first.
func (w *Waiter) Wait(ctx context.Context) (model.StatusSnapshot, bool) {
	select {
	case <-w.changed:
		return w.cache.Read()
	case <-ctx.Done():
		return model.StatusSnapshot{}, false
	}
}
