package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qpid-connengine/broker/internal/buffer"
)

func TestProtocolHeaderRoundTrip(t *testing.T) {
	var buf buffer.Buffer
	WriteProtocolHeader(&buf, ProtocolHeader{ProtocolID: 0, Major: 0, Minor: 9, Revision: 1})

	got, ok, err := ReadProtocolHeader(&buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ProtocolHeader{Major: 0, Minor: 9, Revision: 1}, got)
}

func TestReadProtocolHeaderRejectsBadMagic(t *testing.T) {
	buf := buffer.New([]byte("XMQP\x00\x00\x09\x01"))
	_, _, err := ReadProtocolHeader(buf)
	require.ErrorIs(t, err, ErrBadProtocolHeader)
}

func TestReadProtocolHeaderWaitsForMoreBytes(t *testing.T) {
	buf := buffer.New([]byte("AMQP"))
	_, ok, err := ReadProtocolHeader(buf)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFrameRoundTrip(t *testing.T) {
	var buf buffer.Buffer
	f := Frame{Type: FrameMethod, Channel: 7, Payload: []byte{1, 2, 3, 4}}
	WriteFrame(&buf, f)

	d := NewDecoder(0)
	d.Feed(buf.Bytes())

	got, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, f, got)
	require.Equal(t, 0, d.Pending())
}

func TestDecoderAccumulatesPartialFrames(t *testing.T) {
	var buf buffer.Buffer
	WriteFrame(&buf, Frame{Type: FrameBody, Channel: 1, Payload: []byte("hello")})
	whole := append([]byte(nil), buf.Bytes()...)

	d := NewDecoder(0)
	d.Feed(whole[:5])
	_, ok, err := d.Next()
	require.NoError(t, err)
	require.False(t, ok)

	d.Feed(whole[5:])
	f, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), f.Payload)
}

func TestDecoderRejectsMissingEndMarker(t *testing.T) {
	var buf buffer.Buffer
	WriteFrame(&buf, Frame{Type: FrameMethod, Channel: 0, Payload: []byte{1}})
	corrupt := append([]byte(nil), buf.Bytes()...)
	corrupt[len(corrupt)-1] = 0x00

	d := NewDecoder(0)
	d.Feed(corrupt)
	_, _, err := d.Next()
	require.ErrorIs(t, err, ErrMissingFrameEnd)
}

func TestDecoderEnforcesMaxFrameSize(t *testing.T) {
	var buf buffer.Buffer
	WriteFrame(&buf, Frame{Type: FrameBody, Channel: 0, Payload: make([]byte, 128)})

	d := NewDecoder(64)
	d.Feed(buf.Bytes())
	_, _, err := d.Next()
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecoderDecodesMultipleQueuedFrames(t *testing.T) {
	var buf buffer.Buffer
	WriteFrame(&buf, Frame{Type: FrameMethod, Channel: 0, Payload: []byte{1}})
	WriteFrame(&buf, Frame{Type: FrameHeartbeat, Channel: 0, Payload: nil})

	d := NewDecoder(0)
	d.Feed(buf.Bytes())

	f1, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, FrameMethod, f1.Type)

	f2, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, FrameHeartbeat, f2.Type)

	require.Equal(t, 0, d.Pending())
}
