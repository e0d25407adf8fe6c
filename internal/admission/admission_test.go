package admission

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanAcceptRespectsMax(t *testing.T) {
	a := New(2, 0)
	require.True(t, a.CanAccept())
	a.Increment()
	require.True(t, a.CanAccept())
	a.Increment()
	require.False(t, a.CanAccept())
}

func TestUnboundedMaxAlwaysAccepts(t *testing.T) {
	a := New(0, 0)
	for i := 0; i < 1000; i++ {
		a.Increment()
	}
	require.True(t, a.CanAccept())
}

func TestWarningFiresOnceThenRearms(t *testing.T) {
	a := New(100, 80) // arm at 80, reset below 100*80*80/10000 = 64

	for i := 0; i < 79; i++ {
		require.False(t, a.Increment())
	}
	require.True(t, a.Increment(), "crossing the 80%% threshold must warn exactly once")
	require.False(t, a.Increment(), "warning must not refire before re-arming")

	for i := 0; i < 18; i++ { // drop count from 81 to 63 (below reset threshold)
		a.Decrement()
	}
	for i := 0; i < 16; i++ { // climb back from 63 to 79 (still under 80)
		require.False(t, a.Increment())
	}
	require.True(t, a.Increment(), "warning must re-arm after falling below the squared reset threshold")
}

func TestStartClosingRejectsAndSignalsWhenEmpty(t *testing.T) {
	a := New(5, 0)
	a.StartClosing()
	require.False(t, a.CanAccept())

	select {
	case <-a.Drained():
	default:
		t.Fatal("expected Drained to be closed immediately when count is already zero")
	}
}

func TestStartClosingWaitsForDrain(t *testing.T) {
	a := New(5, 0)
	a.Increment()
	a.StartClosing()

	select {
	case <-a.Drained():
		t.Fatal("Drained must not close while a connection remains")
	default:
	}

	a.Decrement()

	select {
	case <-a.Drained():
	default:
		t.Fatal("Drained must close once the last connection is removed")
	}
}
