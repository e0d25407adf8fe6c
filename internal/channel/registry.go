// Package channel implements the connection-wide channel registry: the
// 16-bit-id to Channel map, its close-in-progress bookkeeping, and the
// block/unblock-all flow-control fanout.
package channel

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Channel is the contract the engine requires of whatever multiplexed
// session object a registry entry wraps. The channel's own internal state
// machine is out of scope for this package; only this surface is needed to
// drive dispatch, flow control, and teardown.
type Channel interface {
	Receive(method interface{}) error
	ReceiveComplete()
	Close(cause error, message string)
	Block()
	Unblock()
	TransportStateChanged()
	ProcessPending() bool
	IsClosing() bool
}

// ErrChannelExists is returned by Open when id is already registered.
var ErrChannelExists = errors.New("channel: id already in use")

// ErrChannelAwaitingClose is returned by Open when id is present in the
// closing-channels table, i.e. a Close-Ok for it has not yet arrived.
var ErrChannelAwaitingClose = errors.New("channel: id awaiting close-ok")

// ErrChannelIDTooLarge is returned by Open when id exceeds the negotiated
// channel-max.
var ErrChannelIDTooLarge = errors.New("channel: id exceeds negotiated max")

// ErrChannelNotFound is returned by operations addressing an id with no
// open channel.
var ErrChannelNotFound = errors.New("channel: not found")

// Registry is the connection's channel-id → Channel map. Mutations that add
// or remove entries are serialised under mu; Get is routed through a
// sync.Map so lookups from async producers never block behind a mutation in
// progress, matching the "intrinsic lock for mutation, concurrent map for
// lookup" split the engine's concurrency model requires.
type Registry struct {
	mu         sync.Mutex
	maxChannel uint16

	channels sync.Map // uint16 -> Channel
	closing  sync.Map // uint16 -> time.Time (close-initiation time)

	blocked bool
}

// NewRegistry returns an empty Registry that rejects channel ids above
// maxChannel; a maxChannel of 0 disables that check.
func NewRegistry(maxChannel uint16) *Registry {
	return &Registry{maxChannel: maxChannel}
}

// SetMaxChannel updates the negotiated channel-id ceiling, called once
// Tune-Ok has settled on a concrete value.
func (r *Registry) SetMaxChannel(maxChannel uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxChannel = maxChannel
}

// Open registers ch under id, enforcing channel-id uniqueness, the
// negotiated channel-max, and the awaiting-close-ok exclusion.
func (r *Registry) Open(id uint16, ch Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxChannel != 0 && id > r.maxChannel {
		return errors.Wrapf(ErrChannelIDTooLarge, "channel %d cannot be created as the max allowed channel id is %d", id, r.maxChannel)
	}
	if _, closing := r.closing.Load(id); closing {
		return errors.Wrapf(ErrChannelAwaitingClose, "channel %d", id)
	}
	if _, exists := r.channels.Load(id); exists {
		return errors.Wrapf(ErrChannelExists, "channel %d already exists", id)
	}

	if r.blocked {
		ch.Block()
	}
	r.channels.Store(id, ch)
	return nil
}

// Get returns the open channel for id, if any. It performs no locking
// beyond the underlying sync.Map's own, so it never blocks behind Open,
// Close, or the block/unblock-all fanout.
func (r *Registry) Get(id uint16) (Channel, bool) {
	v, ok := r.channels.Load(id)
	if !ok {
		return nil, false
	}
	return v.(Channel), true
}

// MarkAwaitingCloseOk moves id from the open map into the closing table,
// stamping the close-initiation time used by the Close-Ok timeout sweep.
func (r *Registry) MarkAwaitingCloseOk(id uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels.Delete(id)
	r.closing.Store(id, time.Now())
}

// CloseOk removes id from the closing table once its Close-Ok has arrived,
// fully dissolving the channel.
func (r *Registry) CloseOk(id uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closing.Delete(id)
}

// Close immediately removes id from both maps without waiting for a
// Close-Ok, used for forced/error-path channel teardown.
func (r *Registry) Close(id uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels.Delete(id)
	r.closing.Delete(id)
}

// BlockAll sets the connection-wide blocked flag and notifies every open
// channel, under the same lock that serialises registry mutation so a
// concurrent Open sees a consistent blocked state for the channel it is
// about to add.
func (r *Registry) BlockAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocked = true
	r.channels.Range(func(_, v interface{}) bool {
		v.(Channel).Block()
		return true
	})
}

// UnblockAll clears the connection-wide blocked flag and notifies every
// open channel.
func (r *Registry) UnblockAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocked = false
	r.channels.Range(func(_, v interface{}) bool {
		v.(Channel).Unblock()
		return true
	})
}

// ForEach calls fn for every currently open channel, in no particular
// order. fn must not call back into Open/Close on the same registry.
func (r *Registry) ForEach(fn func(id uint16, ch Channel)) {
	r.channels.Range(func(k, v interface{}) bool {
		fn(k.(uint16), v.(Channel))
		return true
	})
}

// TimedOutClosing returns the ids that have been in the closing table
// longer than timeout, the set the heartbeat/idle ticker forcibly drops the
// network over.
func (r *Registry) TimedOutClosing(timeout time.Duration) []uint16 {
	var ids []uint16
	now := time.Now()
	r.closing.Range(func(k, v interface{}) bool {
		if now.Sub(v.(time.Time)) > timeout {
			ids = append(ids, k.(uint16))
		}
		return true
	})
	return ids
}

// Len returns the number of currently open channels (excluding those
// awaiting Close-Ok).
func (r *Registry) Len() int {
	n := 0
	r.channels.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
