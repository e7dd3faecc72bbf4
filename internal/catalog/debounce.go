package catalog

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of calls into a single trailing invocation. It
// holds at most one pending task; scheduling a new one cancels and replaces
// the previous timer, so the function that eventually runs is always the
// latest scheduled one.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending func()
	// gen identifies the current schedule. A fired timer callback that lost
	// the lock race to a newer Schedule, Flush or Stop sees a stale gen and
	// must not touch the pending task.
	gen uint64
}

// NewDebouncer creates a debouncer with the given trailing delay. A
// non-positive delay makes Schedule run tasks synchronously, which keeps
// tests deterministic.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule replaces any pending task with fn and restarts the delay.
func (d *Debouncer) Schedule(fn func()) {
	if d.delay <= 0 {
		fn()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = fn
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.gen != gen {
			d.mu.Unlock()
			return
		}
		task := d.pending
		d.pending = nil
		d.timer = nil
		d.mu.Unlock()

		if task != nil {
			task()
		}
	})
}

// Flush runs the pending task immediately, if any, instead of waiting out
// the delay.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	d.gen++
	task := d.pending
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	if task != nil {
		task()
	}
}

// Stop cancels the pending task without running it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
