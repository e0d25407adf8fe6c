// Package metadata implements the durable per-message metadata envelope:
// the header the message store persists alongside a message's content body.
package metadata

import (
	"time"

	"github.com/pkg/errors"

	"github.com/qpid-connengine/broker/internal/buffer"
	"github.com/qpid-connengine/broker/internal/wire"
)

// PublishInfo is the routing information captured from the Basic.Publish
// that introduced a message.
type PublishInfo struct {
	Exchange   string
	RoutingKey string
	Mandatory  bool
	Immediate  bool
}

// Metadata is the durable envelope persisted alongside a message's content
// body: its publish-time routing info, the raw content-header body (class
// id, weight, body size, and the AMQP basic properties table), and the
// arrival timestamp.
type Metadata struct {
	PublishInfo      PublishInfo
	ContentHeader    []byte // opaque encoded content-header body
	ArrivalTime      time.Time
}

const (
	flagMandatory = 1 << 0
	flagImmediate = 1 << 1
)

// StorableSize returns the number of bytes Marshal will produce for m,
// matching the invariant that content_header.size + 4 + short_string_len
// (exchange) + short_string_len(routing_key) + 1 + 8 equals the encoded
// length exactly.
func (m Metadata) StorableSize() int {
	return len(m.ContentHeader) + 4 +
		shortStringLen(m.PublishInfo.Exchange) +
		shortStringLen(m.PublishInfo.RoutingKey) +
		1 + 8
}

func shortStringLen(s string) int {
	return 1 + len(s)
}

// Marshal encodes m per the fixed durable layout:
//
//	content_header_size : u32
//	content_header_body : bytes[content_header_size]
//	exchange            : short_string
//	routing_key         : short_string
//	flags               : u8   (bit0 mandatory, bit1 immediate)
//	arrival_time        : i64  (ms since epoch)
func Marshal(m Metadata) ([]byte, error) {
	var buf buffer.Buffer

	buf.WriteUint32(uint32(len(m.ContentHeader)))
	buf.Append(m.ContentHeader)

	if err := wire.WriteShortString(&buf, m.PublishInfo.Exchange); err != nil {
		return nil, errors.Wrap(err, "metadata: exchange")
	}
	if err := wire.WriteShortString(&buf, m.PublishInfo.RoutingKey); err != nil {
		return nil, errors.Wrap(err, "metadata: routing key")
	}

	var flags byte
	if m.PublishInfo.Mandatory {
		flags |= flagMandatory
	}
	if m.PublishInfo.Immediate {
		flags |= flagImmediate
	}
	buf.WriteByte(flags)

	buf.WriteUint64(uint64(m.ArrivalTime.UnixMilli()))

	out := append([]byte(nil), buf.Bytes()...)
	if len(out) != m.StorableSize() {
		return nil, errors.Errorf("metadata: encoded size %d does not match storable size %d", len(out), m.StorableSize())
	}
	return out, nil
}

// ErrTruncated is returned by Unmarshal when fewer bytes are present than
// the declared layout requires.
var ErrTruncated = errors.New("metadata: truncated record")

// Unmarshal decodes a record produced by Marshal.
func Unmarshal(data []byte) (Metadata, error) {
	buf := buffer.New(data)

	headerSize, err := buf.ReadUint32()
	if err != nil {
		return Metadata{}, errors.Wrap(ErrTruncated, "content header size")
	}
	header, ok := buf.Next(int(headerSize))
	if !ok {
		return Metadata{}, errors.Wrap(ErrTruncated, "content header body")
	}

	exchange, err := wire.ReadShortString(buf)
	if err != nil {
		return Metadata{}, errors.Wrap(ErrTruncated, "exchange")
	}
	routingKey, err := wire.ReadShortString(buf)
	if err != nil {
		return Metadata{}, errors.Wrap(ErrTruncated, "routing key")
	}

	flags, err := buf.ReadByte()
	if err != nil {
		return Metadata{}, errors.Wrap(ErrTruncated, "flags")
	}

	arrivalMs, err := buf.ReadUint64()
	if err != nil {
		return Metadata{}, errors.Wrap(ErrTruncated, "arrival time")
	}

	return Metadata{
		PublishInfo: PublishInfo{
			Exchange:   exchange,
			RoutingKey: routingKey,
			Mandatory:  flags&flagMandatory != 0,
			Immediate:  flags&flagImmediate != 0,
		},
		ContentHeader: append([]byte(nil), header...),
		ArrivalTime:   time.UnixMilli(int64(arrivalMs)).UTC(),
	}, nil
}
