package bridge

import "sync/atomic"

// Destination is where asynchronous notifications go. It is bound lazily by
// the status command and overwritten by every later one: last writer wins,
// since only one notification target is meaningful at a time.
type Destination struct {
	id atomic.Pointer[string]
}

// Bind sets the destination; empty ids are ignored.
func (d *Destination) Bind(id string) {
	if id == "" {
		return
	}
	d.id.Store(&id)
}

// Current returns the bound destination, or false if none was bound yet.
func (d *Destination) Current() (string, bool) {
	p := d.id.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}
