package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qpid-connengine/broker/internal/buffer"
)

func TestConnectionStartRoundTrip(t *testing.T) {
	start := ConnectionStart{
		VersionMajor:     0,
		VersionMinor:     9,
		ServerProperties: Table{"product": "broker"},
		Mechanisms:       []byte("PLAIN AMQPLAIN"),
		Locales:          []byte("en_US"),
	}

	var buf buffer.Buffer
	require.NoError(t, start.Marshal(&buf))

	got, err := UnmarshalConnectionStart(&buf)
	require.NoError(t, err)
	require.Equal(t, start.VersionMajor, got.VersionMajor)
	require.Equal(t, start.VersionMinor, got.VersionMinor)
	require.Equal(t, start.Mechanisms, got.Mechanisms)
	require.Equal(t, start.Locales, got.Locales)
	require.Equal(t, "broker", got.ServerProperties["product"])
}

func TestConnectionTuneOkRoundTrip(t *testing.T) {
	tuneOk := ConnectionTuneOk{ChannelMax: 2047, FrameMax: 131072, Heartbeat: 60}

	var buf buffer.Buffer
	require.NoError(t, tuneOk.Marshal(&buf))

	got, err := UnmarshalConnectionTuneOk(&buf)
	require.NoError(t, err)
	require.Equal(t, tuneOk, got)
}

func TestChannelCloseRoundTrip(t *testing.T) {
	cc := ChannelClose{ReplyCode: 504, ReplyText: "CHANNEL_ERROR", ClassID: ClassBasic, MethodID: MethodBasicDeliver}

	var buf buffer.Buffer
	require.NoError(t, cc.Marshal(&buf))

	got, err := UnmarshalChannelClose(&buf)
	require.NoError(t, err)
	require.Equal(t, cc, got)
}

func TestRegistryDecodesMethodFrame(t *testing.T) {
	r := NewRegistry(Rev091)

	frame, err := EncodeMethodFrame(5, ClassChannel, MethodChannelOpen, ChannelOpen{})
	require.NoError(t, err)

	classID, methodID, m, err := r.DecodeMethodFrame(frame)
	require.NoError(t, err)
	require.Equal(t, ClassChannel, classID)
	require.Equal(t, MethodChannelOpen, methodID)
	require.IsType(t, ChannelOpen{}, m)
}

func TestRegistryUsesRevisionSpecificCloseIDs(t *testing.T) {
	r8 := NewRegistry(Rev08)
	r91 := NewRegistry(Rev091)

	_, err := r8.Decode(ClassConnection, MethodConnectionClose08, buffer.New(encodeClose(t)))
	require.NoError(t, err)

	_, err = r91.Decode(ClassConnection, MethodConnectionClose091, buffer.New(encodeClose(t)))
	require.NoError(t, err)

	_, err = r91.Decode(ClassConnection, MethodConnectionClose08, buffer.New(encodeClose(t)))
	require.ErrorIs(t, err, ErrUnknownMethod)
}

func encodeClose(t *testing.T) []byte {
	t.Helper()
	var buf buffer.Buffer
	require.NoError(t, (ConnectionClose{ReplyCode: 200, ReplyText: "ok"}).Marshal(&buf))
	return buf.Bytes()
}

func TestRegistryRejectsUnknownMethod(t *testing.T) {
	r := NewRegistry(Rev091)
	_, err := r.Decode(999, 999, buffer.New(nil))
	require.ErrorIs(t, err, ErrUnknownMethod)
}
