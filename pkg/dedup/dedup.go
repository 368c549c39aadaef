// Package dedup suppresses keys seen again inside a window, e.g. the packet
// identifier of a QoS 1 message the broker redelivers.
package dedup

import (
	"sync"
	"time"
)

type Deduper struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	seen   map[string]time.Time // key -> expiry
	now    func() time.Time
}

// New returns a Deduper remembering keys for window. A non-positive window
// disables suppression.
func New(window time.Duration, max int) *Deduper {
	if max <= 0 {
		max = 1024
	}
	return &Deduper{window: window, max: max, seen: make(map[string]time.Time), now: time.Now}
}

// ShouldProcess reports whether id has not been seen inside the window and records it.
func (d *Deduper) ShouldProcess(id string) bool {
	if d == nil || d.window <= 0 || id == "" {
		return true
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false
	}
	d.seen[id] = now.Add(d.window)
	if len(d.seen) > d.max {
		d.evict(now)
	}
	return true
}

// Mark records id as seen without checking it.
func (d *Deduper) Mark(id string) {
	if d == nil || d.window <= 0 || id == "" {
		return
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[id] = now.Add(d.window)
	if len(d.seen) > d.max {
		d.evict(now)
	}
}

// evict drops expired keys; if still over capacity the oldest expiries go first.
func (d *Deduper) evict(now time.Time) {
	for k, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, k)
		}
	}
	for len(d.seen) > d.max {
		var oldestKey string
		var oldest time.Time
		for k, exp := range d.seen {
			if oldestKey == "" || exp.Before(oldest) {
				oldestKey, oldest = k, exp
			}
		}
		delete(d.seen, oldestKey)
	}
}
