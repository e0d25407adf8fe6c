// Package work implements the connection's outbound work handoff: a
// level-triggered "has work" flag, an async task FIFO, and the round-robin
// process-pending drain the I/O thread runs each poll cycle.
package work

import (
	"sync"
	"sync/atomic"
)

// Task is a unit of outbound work enqueued by a producer off the I/O
// thread — a timer firing, a queue delivery becoming ready, a management
// command — for the I/O thread to run.
type Task func()

// Pendable is the channel-side contract the round-robin drain needs: a
// channel that may have more than one unit of pending work to flush.
type Pendable interface {
	// ProcessPending runs one unit of the channel's pending work and
	// reports whether more work remains for a later pass.
	ProcessPending() bool
}

// Notifier is a level-triggered "has pending work" flag plus the async task
// queue and round-robin channel rotation used to hand outbound work from
// arbitrary producer goroutines onto the connection's single I/O thread.
type Notifier struct {
	hasWork atomic.Bool

	listenerMu sync.Mutex
	listener   func()

	taskMu sync.Mutex
	tasks  []Task

	rotMu    sync.Mutex
	rotation []uint16
	inRot    map[uint16]bool

	iterating atomic.Bool
}

// New returns an empty Notifier.
func New() *Notifier {
	return &Notifier{inRot: make(map[uint16]bool)}
}

// HasWork reports the current level of the "has pending work" flag.
func (n *Notifier) HasWork() bool {
	return n.hasWork.Load()
}

// ClearWork lowers the "has pending work" flag.
func (n *Notifier) ClearWork() {
	n.hasWork.Store(false)
}

// NotifyWork raises the "has pending work" flag and, if a listener is
// registered, calls it — typically the transport's selector-thread wake-up.
func (n *Notifier) NotifyWork() {
	n.hasWork.Store(true)
	n.listenerMu.Lock()
	l := n.listener
	n.listenerMu.Unlock()
	if l != nil {
		l()
	}
}

// SetWorkListener registers fn to be called by every subsequent NotifyWork.
func (n *Notifier) SetWorkListener(fn func()) {
	n.listenerMu.Lock()
	defer n.listenerMu.Unlock()
	n.listener = fn
}

// Enqueue appends t to the async task FIFO and raises the work flag. Safe
// to call from any goroutine; producers must not touch engine state
// directly and must route outbound work through this call instead.
func (n *Notifier) Enqueue(t Task) {
	n.taskMu.Lock()
	n.tasks = append(n.tasks, t)
	n.taskMu.Unlock()
	n.NotifyWork()
}

func (n *Notifier) drainTasks() []Task {
	n.taskMu.Lock()
	defer n.taskMu.Unlock()
	t := n.tasks
	n.tasks = nil
	return t
}

// ScheduleChannel adds id to the round-robin rotation, if not already
// present, and raises the work flag. Called when a channel accumulates
// outbound work of its own (a delivery becoming ready to write).
func (n *Notifier) ScheduleChannel(id uint16) {
	n.rotMu.Lock()
	if !n.inRot[id] {
		n.inRot[id] = true
		n.rotation = append(n.rotation, id)
	}
	n.rotMu.Unlock()
	n.NotifyWork()
}

// ProcessPending runs one drain pass: every channel currently in the
// rotation is visited once, in round-robin order, via lookup; a channel
// that reports more work remaining is re-queued for the next pass, one
// that reports none is dropped from the rotation. Once every channel has
// been visited, the async task queue is drained and each task run.
//
// ProcessPending must only be called from the connection's I/O thread. A
// call already in progress — evidence of a concurrent, non-owning caller —
// is treated as an empty sequence: it does no work and returns false
// immediately rather than block.
func (n *Notifier) ProcessPending(lookup func(id uint16) (Pendable, bool)) (didWork bool) {
	if !n.iterating.CompareAndSwap(false, true) {
		return false
	}
	defer n.iterating.Store(false)

	n.rotMu.Lock()
	ids := n.rotation
	n.rotation = nil
	n.rotMu.Unlock()

	var still []uint16
	for _, id := range ids {
		ch, ok := lookup(id)
		if !ok {
			n.rotMu.Lock()
			delete(n.inRot, id)
			n.rotMu.Unlock()
			continue
		}
		didWork = true
		if ch.ProcessPending() {
			still = append(still, id)
		} else {
			n.rotMu.Lock()
			delete(n.inRot, id)
			n.rotMu.Unlock()
		}
	}

	if len(still) > 0 {
		n.rotMu.Lock()
		n.rotation = append(still, n.rotation...)
		n.rotMu.Unlock()
	}

	for _, t := range n.drainTasks() {
		didWork = true
		t()
	}

	n.rotMu.Lock()
	remaining := len(n.rotation)
	n.rotMu.Unlock()
	n.taskMu.Lock()
	pending := len(n.tasks)
	n.taskMu.Unlock()
	if remaining == 0 && pending == 0 {
		n.ClearWork()
	}

	return didWork
}
