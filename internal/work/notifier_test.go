package work

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type mockPendable struct {
	remaining int
	runs      int
}

func (m *mockPendable) ProcessPending() bool {
	m.runs++
	if m.remaining > 0 {
		m.remaining--
		return m.remaining > 0
	}
	return false
}

func TestNotifyWorkRaisesFlagAndCallsListener(t *testing.T) {
	n := New()
	called := false
	n.SetWorkListener(func() { called = true })

	require.False(t, n.HasWork())
	n.NotifyWork()
	require.True(t, n.HasWork())
	require.True(t, called)
}

func TestClearWork(t *testing.T) {
	n := New()
	n.NotifyWork()
	n.ClearWork()
	require.False(t, n.HasWork())
}

func TestEnqueueRunsTaskDuringProcessPending(t *testing.T) {
	n := New()
	ran := false
	n.Enqueue(func() { ran = true })

	did := n.ProcessPending(func(uint16) (Pendable, bool) { return nil, false })
	require.True(t, did)
	require.True(t, ran)
	require.False(t, n.HasWork(), "flag should clear once the queue is fully drained")
}

func TestScheduleChannelRoundRobinsUntilExhausted(t *testing.T) {
	n := New()
	chans := map[uint16]*mockPendable{
		1: {remaining: 2},
		2: {remaining: 1},
	}
	n.ScheduleChannel(1)
	n.ScheduleChannel(2)

	lookup := func(id uint16) (Pendable, bool) {
		c, ok := chans[id]
		return c, ok
	}

	n.ProcessPending(lookup)
	require.Equal(t, 1, chans[1].runs)
	require.Equal(t, 1, chans[2].runs)
	require.True(t, n.HasWork(), "channel 1 still has pending work")

	n.ProcessPending(lookup)
	require.Equal(t, 2, chans[1].runs)
	require.False(t, n.HasWork(), "both channels exhausted and no tasks queued")
}

func TestScheduleChannelDropsMissingChannelFromRotation(t *testing.T) {
	n := New()
	n.ScheduleChannel(9)

	n.ProcessPending(func(uint16) (Pendable, bool) { return nil, false })
	require.False(t, n.HasWork())
}

func TestProcessPendingRefusesConcurrentCaller(t *testing.T) {
	n := New()
	n.iterating.Store(true) // simulate an in-progress pass
	did := n.ProcessPending(func(uint16) (Pendable, bool) { return nil, false })
	require.False(t, did)
}
