package metadata

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	m := Metadata{
		PublishInfo: PublishInfo{
			Exchange:   "amq.direct",
			RoutingKey: "orders.created",
			Mandatory:  true,
			Immediate:  false,
		},
		ContentHeader: []byte{0, 60, 0, 0, 1, 2, 3, 4},
		ArrivalTime:   time.UnixMilli(1700000000123).UTC(),
	}

	encoded, err := Marshal(m)
	require.NoError(t, err)
	require.Equal(t, m.StorableSize(), len(encoded))

	got, err := Unmarshal(encoded)
	require.NoError(t, err)

	if diff := cmp.Diff(m, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStorableSizeMatchesEmptyHeader(t *testing.T) {
	m := Metadata{PublishInfo: PublishInfo{Exchange: "", RoutingKey: "q"}, ArrivalTime: time.UnixMilli(0)}
	encoded, err := Marshal(m)
	require.NoError(t, err)
	require.Equal(t, m.StorableSize(), len(encoded))
}

func TestUnmarshalTruncated(t *testing.T) {
	_, err := Unmarshal([]byte{0, 0, 0, 10})
	require.ErrorIs(t, err, ErrTruncated)
}

func TestUnmarshalEmpty(t *testing.T) {
	_, err := Unmarshal(nil)
	require.ErrorIs(t, err, ErrTruncated)
}
