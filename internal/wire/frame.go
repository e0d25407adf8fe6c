package wire

import (
	"github.com/pkg/errors"

	"github.com/qpid-connengine/broker/internal/buffer"
)

// Frame octet-level constants (§4.1).
const (
	FrameMethod    byte = 1
	FrameHeader    byte = 2
	FrameBody      byte = 3
	FrameHeartbeat byte = 8

	FrameEnd byte = 0xCE

	// FrameOverhead is the number of octets the envelope adds around a
	// frame's payload: type(1) + channel(2) + size(4) + end-marker(1).
	FrameOverhead = 7 + 1

	// MinFrameSize is the smallest max-frame-size a peer may propose
	// without being rejected during tuning.
	MinFrameSize = 4096
)

// Frame is one decoded AMQP frame: envelope plus raw payload. Method frames
// carry a marshalled method body in Payload; header and body frames carry
// the content-header/body-chunk payload verbatim.
type Frame struct {
	Type    byte
	Channel uint16
	Payload []byte
}

// ProtocolHeader is the eight-octet "AMQP" preamble exchanged before any
// framed traffic, used to negotiate the protocol version.
type ProtocolHeader struct {
	ProtocolID byte // 0 for the ASCII "AMQP" banner
	Major      byte
	Minor      byte
	Revision   byte
}

var protocolHeaderMagic = [4]byte{'A', 'M', 'Q', 'P'}

// WriteProtocolHeader encodes h onto buf.
func WriteProtocolHeader(buf *buffer.Buffer, h ProtocolHeader) {
	buf.Append(protocolHeaderMagic[:])
	buf.WriteByte(h.ProtocolID)
	buf.WriteByte(h.Major)
	buf.WriteByte(h.Minor)
	buf.WriteByte(h.Revision)
}

// ErrBadProtocolHeader is returned when the first eight octets on a new
// connection do not carry the "AMQP" magic.
var ErrBadProtocolHeader = errors.New("wire: invalid protocol header")

// ReadProtocolHeader decodes the eight-octet preamble from buf, or returns
// (zero, false, nil) if fewer than eight octets are buffered.
func ReadProtocolHeader(buf *buffer.Buffer) (ProtocolHeader, bool, error) {
	if buf.Len() < 8 {
		return ProtocolHeader{}, false, nil
	}
	magic, _ := buf.Next(4)
	for i, c := range protocolHeaderMagic {
		if magic[i] != c {
			return ProtocolHeader{}, false, ErrBadProtocolHeader
		}
	}
	protocolID, _ := buf.ReadByte()
	major, _ := buf.ReadByte()
	minor, _ := buf.ReadByte()
	revision, _ := buf.ReadByte()
	return ProtocolHeader{ProtocolID: protocolID, Major: major, Minor: minor, Revision: revision}, true, nil
}

// WriteFrame encodes f onto buf using the standard envelope.
func WriteFrame(buf *buffer.Buffer, f Frame) {
	buf.WriteByte(f.Type)
	buf.WriteUint16(f.Channel)
	buf.WriteUint32(uint32(len(f.Payload)))
	buf.Append(f.Payload)
	buf.WriteByte(FrameEnd)
}

// ErrFrameTooLarge is returned when a decoded frame's declared payload size
// exceeds the negotiated max-frame-size.
var ErrFrameTooLarge = errors.New("wire: frame exceeds negotiated max-frame-size")

// ErrMissingFrameEnd is returned when the octet at the declared end-of-frame
// position is not FrameEnd — the connection is no longer framing-aligned and
// must be closed by its caller.
var ErrMissingFrameEnd = errors.New("wire: missing frame end marker")

// Decoder is a stateful frame decoder over a growing byte stream: bytes are
// fed in with Feed, and complete frames are pulled out with Next. It retains
// any trailing partial frame across calls, matching how a single I/O thread
// accumulates data off a non-blocking socket read.
type Decoder struct {
	buf          buffer.Buffer
	maxFrameSize uint32
}

// NewDecoder returns a Decoder that rejects frames whose payload exceeds
// maxFrameSize. A maxFrameSize of 0 disables the check, used before tuning
// has negotiated a concrete value.
func NewDecoder(maxFrameSize uint32) *Decoder {
	return &Decoder{maxFrameSize: maxFrameSize}
}

// SetMaxFrameSize updates the enforced limit, called once Tune-Ok has
// negotiated a concrete value.
func (d *Decoder) SetMaxFrameSize(n uint32) {
	d.maxFrameSize = n
}

// Feed appends newly read bytes to the decoder's internal buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf.Append(p)
}

// Next attempts to decode one complete frame from the buffered bytes. It
// returns (frame, true, nil) on success, (zero, false, nil) if more bytes
// are needed, or a non-nil error if the stream is no longer parseable.
func (d *Decoder) Next() (Frame, bool, error) {
	if d.buf.Len() < 7 {
		return Frame{}, false, nil
	}

	header := d.buf.Bytes()
	payloadSize := uint32(header[3])<<24 | uint32(header[4])<<16 | uint32(header[5])<<8 | uint32(header[6])
	if d.maxFrameSize != 0 && payloadSize > d.maxFrameSize {
		return Frame{}, false, ErrFrameTooLarge
	}

	total := 7 + int(payloadSize) + 1
	if d.buf.Len() < total {
		return Frame{}, false, nil
	}

	typ, _ := d.buf.ReadByte()
	channel, _ := d.buf.ReadUint16()
	_, _ = d.buf.ReadUint32() // size, already validated above
	payload, _ := d.buf.Next(int(payloadSize))
	end, _ := d.buf.ReadByte()
	if end != FrameEnd {
		return Frame{}, false, ErrMissingFrameEnd
	}

	return Frame{
		Type:    typ,
		Channel: channel,
		Payload: append([]byte(nil), payload...),
	}, true, nil
}

// Pending reports the number of unconsumed bytes retained across Feed
// calls, the partial-frame tail an I/O thread must not discard.
func (d *Decoder) Pending() int {
	return d.buf.Len()
}

// ReadProtocolHeader attempts to read the eight-octet protocol-initiation
// preamble off the decoder's buffered bytes, for use while the connection
// is still in "expect protocol header" mode.
func (d *Decoder) ReadProtocolHeader() (ProtocolHeader, bool, error) {
	return ReadProtocolHeader(&d.buf)
}
