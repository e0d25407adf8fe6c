// Package admission implements the per-port connection-admission counter:
// bounds enforcement, hysteresis-based warning, and the closing-gate latch
// a port uses to drain its open connections.
package admission

import (
	"sync"
	"sync/atomic"
)

// Admission is a per-port atomic connection counter with bounds and a
// one-shot, hysteresis-gated warning. The zero value is not usable; build
// one with New.
type Admission struct {
	max         int64
	warnPercent int64

	count   atomic.Int64
	warned  atomic.Bool
	closing atomic.Bool

	drainOnce sync.Once
	drained   chan struct{}
}

// New returns an Admission bounding the connection count at max (0 disables
// the bound) and arming its warning at warnPercent of max.
func New(max int, warnPercent int) *Admission {
	return &Admission{
		max:         int64(max),
		warnPercent: int64(warnPercent),
		drained:     make(chan struct{}),
	}
}

// CanAccept reports whether a new connection may be admitted: false once
// the closing latch is set, or once the counter has reached max (when max
// is bound).
func (a *Admission) CanAccept() bool {
	if a.closing.Load() {
		return false
	}
	if a.max > 0 && a.count.Load() >= a.max {
		return false
	}
	return true
}

// IsClosing reports whether the closing latch has been set.
func (a *Admission) IsClosing() bool {
	return a.closing.Load()
}

// Count returns the current number of admitted connections.
func (a *Admission) Count() int64 {
	return a.count.Load()
}

// Increment records a newly admitted connection and reports whether the
// upper-threshold warning should fire for this crossing. The warning is
// one-shot: it fires at most once per arm, and re-arms only after Decrement
// has driven the count below the squared reset threshold.
func (a *Admission) Increment() (shouldWarn bool) {
	n := a.count.Add(1)
	if a.max <= 0 || a.warnPercent <= 0 {
		return false
	}
	armThreshold := a.max * a.warnPercent / 100
	if n >= armThreshold {
		return a.warned.CompareAndSwap(false, true)
	}
	return false
}

// Decrement records a connection closing. If the count has fallen below the
// squared reset threshold, the warning re-arms. If the closing latch is
// set and the count has reached zero, the drain signal fires exactly once.
func (a *Admission) Decrement() {
	n := a.count.Add(-1)

	if a.max > 0 && a.warnPercent > 0 {
		resetThreshold := a.max * a.warnPercent * a.warnPercent / 10000
		if n < resetThreshold {
			a.warned.Store(false)
		}
	}

	if a.closing.Load() && n <= 0 {
		a.signalDrained()
	}
}

// StartClosing sets the closing latch: CanAccept returns false from this
// point on, and the Drained channel closes once the count reaches zero
// (immediately, if it already has).
func (a *Admission) StartClosing() {
	a.closing.Store(true)
	if a.count.Load() <= 0 {
		a.signalDrained()
	}
}

func (a *Admission) signalDrained() {
	a.drainOnce.Do(func() { close(a.drained) })
}

// Drained returns a channel that closes once the port has finished
// draining: the closing latch is set and no connections remain.
func (a *Admission) Drained() <-chan struct{} {
	return a.drained
}
