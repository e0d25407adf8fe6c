package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	b := New(nil)
	b.WriteByte(0xAB)
	b.WriteUint16(0x1234)
	b.WriteUint32(0xDEADBEEF)
	b.WriteUint64(0x0102030405060708)
	b.WriteString("hi")

	require.Equal(t, 1+2+4+8+2, b.Len())

	c, err := b.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), c)

	u16, err := b.ReadUint16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), u16)

	u32, err := b.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), u32)

	u64, err := b.ReadUint64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), u64)

	rest, ok := b.Next(2)
	require.True(t, ok)
	require.Equal(t, "hi", string(rest))
	require.Equal(t, 0, b.Len())
}

func TestReadInsufficientData(t *testing.T) {
	b := New([]byte{0x01})
	_, err := b.ReadUint32()
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestNextShortSlice(t *testing.T) {
	b := New([]byte{1, 2, 3})
	p, ok := b.Next(5)
	require.False(t, ok)
	require.Equal(t, []byte{1, 2, 3}, p)
	require.Equal(t, 0, b.Len())
}

func TestReset(t *testing.T) {
	b := New([]byte{1, 2, 3})
	_, _ = b.ReadByte()
	b.Reset()
	require.Equal(t, 0, b.Len())
}
