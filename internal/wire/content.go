package wire

import (
	"time"

	"github.com/pkg/errors"

	"github.com/qpid-connengine/broker/internal/buffer"
)

// Basic-class property-flag bits (§1.1's basic-properties, high bit first).
const (
	flagContentType     uint16 = 1 << 15
	flagContentEncoding uint16 = 1 << 14
	flagHeaders         uint16 = 1 << 13
	flagDeliveryMode    uint16 = 1 << 12
	flagPriority        uint16 = 1 << 11
	flagCorrelationID   uint16 = 1 << 10
	flagReplyTo         uint16 = 1 << 9
	flagExpiration      uint16 = 1 << 8
	flagMessageID       uint16 = 1 << 7
	flagTimestamp       uint16 = 1 << 6
	flagType            uint16 = 1 << 5
	flagUserID          uint16 = 1 << 4
	flagAppID           uint16 = 1 << 3
	flagClusterID       uint16 = 1 << 2
)

// BasicProperties is the basic-class content-header properties table. A
// field is present on the wire only when its corresponding flag bit is set;
// zero values for absent fields carry no meaning.
type BasicProperties struct {
	ContentType     string
	ContentEncoding string
	Headers         Table
	DeliveryMode    byte
	Priority        byte
	CorrelationID   string
	ReplyTo         string
	Expiration      string
	MessageID       string
	Timestamp       time.Time
	Type            string
	UserID          string
	AppID           string
	ClusterID       string

	hasContentType     bool
	hasContentEncoding bool
	hasHeaders         bool
	hasDeliveryMode    bool
	hasPriority        bool
	hasCorrelationID   bool
	hasReplyTo         bool
	hasExpiration      bool
	hasMessageID       bool
	hasTimestamp       bool
	hasType            bool
	hasUserID          bool
	hasAppID           bool
	hasClusterID       bool
}

// HasContentEncoding reports whether content-encoding was set, distinct
// from it being set to the empty string.
func (p *BasicProperties) HasContentEncoding() bool { return p.hasContentEncoding }

// SetContentEncoding sets content-encoding, marking it present. An empty
// value clears the property instead, matching "absent" per §4.5's bridging
// rule ("content-encoding is absent").
func (p *BasicProperties) SetContentEncoding(v string) {
	p.ContentEncoding = v
	p.hasContentEncoding = v != ""
}

// ClearContentEncoding removes the property entirely.
func (p *BasicProperties) ClearContentEncoding() {
	p.ContentEncoding = ""
	p.hasContentEncoding = false
}

// Clone returns a deep-enough copy for the compression-bridging path, which
// must mutate content-encoding on a copy of the stored header without
// disturbing the original (§4.5, step 4: "dispose every buffer, original
// and bridging copy").
func (p BasicProperties) Clone() BasicProperties {
	clone := p
	if p.Headers != nil {
		clone.Headers = make(Table, len(p.Headers))
		for k, v := range p.Headers {
			clone.Headers[k] = v
		}
	}
	return clone
}

func (p *BasicProperties) flags() uint16 {
	var f uint16
	if p.hasContentType {
		f |= flagContentType
	}
	if p.hasContentEncoding {
		f |= flagContentEncoding
	}
	if p.hasHeaders {
		f |= flagHeaders
	}
	if p.hasDeliveryMode {
		f |= flagDeliveryMode
	}
	if p.hasPriority {
		f |= flagPriority
	}
	if p.hasCorrelationID {
		f |= flagCorrelationID
	}
	if p.hasReplyTo {
		f |= flagReplyTo
	}
	if p.hasExpiration {
		f |= flagExpiration
	}
	if p.hasMessageID {
		f |= flagMessageID
	}
	if p.hasTimestamp {
		f |= flagTimestamp
	}
	if p.hasType {
		f |= flagType
	}
	if p.hasUserID {
		f |= flagUserID
	}
	if p.hasAppID {
		f |= flagAppID
	}
	if p.hasClusterID {
		f |= flagClusterID
	}
	return f
}

// Marshal appends the property-flags word and every present field to buf, in
// basic-properties field order.
func (p *BasicProperties) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(p.flags())

	if p.hasContentType {
		if err := WriteShortString(buf, p.ContentType); err != nil {
			return err
		}
	}
	if p.hasContentEncoding {
		if err := WriteShortString(buf, p.ContentEncoding); err != nil {
			return err
		}
	}
	if p.hasHeaders {
		if err := p.Headers.Marshal(buf); err != nil {
			return err
		}
	}
	if p.hasDeliveryMode {
		buf.WriteByte(p.DeliveryMode)
	}
	if p.hasPriority {
		buf.WriteByte(p.Priority)
	}
	if p.hasCorrelationID {
		if err := WriteShortString(buf, p.CorrelationID); err != nil {
			return err
		}
	}
	if p.hasReplyTo {
		if err := WriteShortString(buf, p.ReplyTo); err != nil {
			return err
		}
	}
	if p.hasExpiration {
		if err := WriteShortString(buf, p.Expiration); err != nil {
			return err
		}
	}
	if p.hasMessageID {
		if err := WriteShortString(buf, p.MessageID); err != nil {
			return err
		}
	}
	if p.hasTimestamp {
		buf.WriteUint64(uint64(p.Timestamp.Unix()))
	}
	if p.hasType {
		if err := WriteShortString(buf, p.Type); err != nil {
			return err
		}
	}
	if p.hasUserID {
		if err := WriteShortString(buf, p.UserID); err != nil {
			return err
		}
	}
	if p.hasAppID {
		if err := WriteShortString(buf, p.AppID); err != nil {
			return err
		}
	}
	if p.hasClusterID {
		if err := WriteShortString(buf, p.ClusterID); err != nil {
			return err
		}
	}
	return nil
}

// ReadBasicProperties decodes a property-flags word and its present fields
// from buf.
func ReadBasicProperties(buf *buffer.Buffer) (BasicProperties, error) {
	var p BasicProperties
	f, err := buf.ReadUint16()
	if err != nil {
		return p, errors.Wrap(err, "wire: truncated basic-properties flags")
	}

	if f&flagContentType != 0 {
		if p.ContentType, err = ReadShortString(buf); err != nil {
			return p, err
		}
		p.hasContentType = true
	}
	if f&flagContentEncoding != 0 {
		if p.ContentEncoding, err = ReadShortString(buf); err != nil {
			return p, err
		}
		p.hasContentEncoding = true
	}
	if f&flagHeaders != 0 {
		if p.Headers, err = ReadTable(buf); err != nil {
			return p, err
		}
		p.hasHeaders = true
	}
	if f&flagDeliveryMode != 0 {
		if p.DeliveryMode, err = buf.ReadByte(); err != nil {
			return p, errors.Wrap(err, "wire: truncated delivery-mode")
		}
		p.hasDeliveryMode = true
	}
	if f&flagPriority != 0 {
		if p.Priority, err = buf.ReadByte(); err != nil {
			return p, errors.Wrap(err, "wire: truncated priority")
		}
		p.hasPriority = true
	}
	if f&flagCorrelationID != 0 {
		if p.CorrelationID, err = ReadShortString(buf); err != nil {
			return p, err
		}
		p.hasCorrelationID = true
	}
	if f&flagReplyTo != 0 {
		if p.ReplyTo, err = ReadShortString(buf); err != nil {
			return p, err
		}
		p.hasReplyTo = true
	}
	if f&flagExpiration != 0 {
		if p.Expiration, err = ReadShortString(buf); err != nil {
			return p, err
		}
		p.hasExpiration = true
	}
	if f&flagMessageID != 0 {
		if p.MessageID, err = ReadShortString(buf); err != nil {
			return p, err
		}
		p.hasMessageID = true
	}
	if f&flagTimestamp != 0 {
		ts, err := buf.ReadUint64()
		if err != nil {
			return p, errors.Wrap(err, "wire: truncated timestamp")
		}
		p.Timestamp = time.Unix(int64(ts), 0).UTC()
		p.hasTimestamp = true
	}
	if f&flagType != 0 {
		if p.Type, err = ReadShortString(buf); err != nil {
			return p, err
		}
		p.hasType = true
	}
	if f&flagUserID != 0 {
		if p.UserID, err = ReadShortString(buf); err != nil {
			return p, err
		}
		p.hasUserID = true
	}
	if f&flagAppID != 0 {
		if p.AppID, err = ReadShortString(buf); err != nil {
			return p, err
		}
		p.hasAppID = true
	}
	if f&flagClusterID != 0 {
		if p.ClusterID, err = ReadShortString(buf); err != nil {
			return p, err
		}
		p.hasClusterID = true
	}
	return p, nil
}

// ContentHeader is the frame-header-type payload that follows a Basic
// method's content-bearing frame: class id, (unused) weight, total body
// size, and the basic-properties table.
type ContentHeader struct {
	ClassID    uint16
	Weight     uint16
	BodySize   uint64
	Properties BasicProperties
}

// Marshal encodes h as a content-header frame payload.
func (h *ContentHeader) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(h.ClassID)
	buf.WriteUint16(h.Weight)
	buf.WriteUint64(h.BodySize)
	return h.Properties.Marshal(buf)
}

// ReadContentHeader decodes a content-header frame payload.
func ReadContentHeader(payload []byte) (ContentHeader, error) {
	var buf buffer.Buffer
	buf.Append(payload)

	classID, err := buf.ReadUint16()
	if err != nil {
		return ContentHeader{}, errors.Wrap(err, "wire: truncated content-header class id")
	}
	weight, err := buf.ReadUint16()
	if err != nil {
		return ContentHeader{}, errors.Wrap(err, "wire: truncated content-header weight")
	}
	bodySize, err := buf.ReadUint64()
	if err != nil {
		return ContentHeader{}, errors.Wrap(err, "wire: truncated content-header body size")
	}
	props, err := ReadBasicProperties(&buf)
	if err != nil {
		return ContentHeader{}, err
	}
	return ContentHeader{ClassID: classID, Weight: weight, BodySize: bodySize, Properties: props}, nil
}

// EncodeContentHeaderFrame builds the Type-2 frame carrying h.
func EncodeContentHeaderFrame(ch uint16, h *ContentHeader) (Frame, error) {
	var buf buffer.Buffer
	if err := h.Marshal(&buf); err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameHeader, Channel: ch, Payload: buf.Bytes()}, nil
}

// EncodeContentBodyFrame builds one Type-3 frame carrying a body chunk.
func EncodeContentBodyFrame(ch uint16, chunk []byte) Frame {
	return Frame{Type: FrameBody, Channel: ch, Payload: chunk}
}
