// Package wire implements the AMQP 0-8/0-9/0-9-1 octet-level framing and
// field-type codec: the FrameCodec and the typed-value rules that method
// arguments and field tables follow.
package wire

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/qpid-connengine/broker/internal/buffer"
)

// MaxShortStringLen is the largest length a ShortString's 1-byte length
// prefix can represent.
const MaxShortStringLen = 255

// WriteShortString encodes s as a ShortString: a 1-byte length prefix
// followed by its UTF-8 bytes.
func WriteShortString(buf *buffer.Buffer, s string) error {
	if len(s) > MaxShortStringLen {
		return errors.Errorf("wire: short string %q exceeds %d bytes", s, MaxShortStringLen)
	}
	if !utf8.ValidString(s) {
		return errors.New("wire: short string is not valid UTF-8")
	}
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	return nil
}

// ReadShortString decodes a ShortString.
func ReadShortString(buf *buffer.Buffer) (string, error) {
	n, err := buf.ReadByte()
	if err != nil {
		return "", errors.Wrap(err, "wire: short string length")
	}
	p, ok := buf.Next(int(n))
	if !ok {
		return "", errors.New("wire: short string body truncated")
	}
	return string(p), nil
}

// WriteLongString encodes b as a LongString: a 4-byte length prefix
// followed by its raw bytes.
func WriteLongString(buf *buffer.Buffer, b []byte) error {
	if uint(len(b)) > math.MaxUint32 {
		return errors.New("wire: long string too large")
	}
	buf.WriteUint32(uint32(len(b)))
	buf.Append(b)
	return nil
}

// ReadLongString decodes a LongString.
func ReadLongString(buf *buffer.Buffer) ([]byte, error) {
	n, err := buf.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "wire: long string length")
	}
	p, ok := buf.Next(int(n))
	if !ok {
		return nil, errors.New("wire: long string body truncated")
	}
	return append([]byte(nil), p...), nil
}

// Table is an AMQP field-table: an ordered-on-the-wire, unordered-in-memory
// mapping of short-string names to typed values.
type Table map[string]interface{}

// field-table value type tags (AMQP 0-9-1, §4.2.5.3 plus common broker
// extensions for table/array nesting).
const (
	tagBoolean     = 't'
	tagShortShortI = 'b'
	tagShortShortU = 'B'
	tagShortI      = 'U'
	tagShortU      = 'u'
	tagLongI       = 'I'
	tagLongU       = 'i'
	tagLongLongI   = 'L'
	tagLongLongU   = 'l'
	tagFloat       = 'f'
	tagDouble      = 'd'
	tagLongString  = 'S'
	tagArray       = 'A'
	tagTimestamp   = 'T'
	tagFieldTable  = 'F'
	tagVoid        = 'V'
)

// packBits packs up to 8 consecutive bit-typed method arguments into a
// single octet, least-significant bit first, the way AMQP 0-9-1 packs a run
// of bit fields onto one wire octet (§4.2.5.3).
func packBits(bits ...bool) byte {
	var b byte
	for i, v := range bits {
		if v {
			b |= 1 << uint(i)
		}
	}
	return b
}

// unpackBits unpacks the low n bits of b, least-significant bit first.
func unpackBits(b byte, n int) []bool {
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		out[i] = b&(1<<uint(i)) != 0
	}
	return out
}

// Marshal encodes t as a field-table: a 4-byte byte-length prefix followed
// by a sequence of (short-string name, typed value) pairs.
func (t Table) Marshal(buf *buffer.Buffer) error {
	// write placeholder length, remember the absolute start so we can patch it.
	start := len(buf.Bytes())
	buf.WriteUint32(0)
	bodyStart := len(buf.Bytes())

	for name, val := range t {
		if err := WriteShortString(buf, name); err != nil {
			return err
		}
		if err := marshalValue(buf, val); err != nil {
			return errors.Wrapf(err, "wire: field table key %q", name)
		}
	}

	bodyLen := len(buf.Bytes()) - bodyStart
	patchUint32(buf, start, uint32(bodyLen))
	return nil
}

// patchUint32 overwrites the 4 bytes at byte offset off (relative to the
// buffer's current unread window) with n, big-endian. Used to backfill a
// length prefix written before its payload size was known.
func patchUint32(buf *buffer.Buffer, off int, n uint32) {
	b := buf.Bytes()
	b[off] = byte(n >> 24)
	b[off+1] = byte(n >> 16)
	b[off+2] = byte(n >> 8)
	b[off+3] = byte(n)
}

// ReadTable decodes a field-table.
func ReadTable(buf *buffer.Buffer) (Table, error) {
	n, err := buf.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "wire: field table length")
	}
	body, ok := buf.Next(int(n))
	if !ok {
		return nil, errors.New("wire: field table body truncated")
	}
	sub := buffer.New(body)

	t := Table{}
	for sub.Len() > 0 {
		name, err := ReadShortString(sub)
		if err != nil {
			return nil, errors.Wrap(err, "wire: field table entry name")
		}
		val, err := unmarshalValue(sub)
		if err != nil {
			return nil, errors.Wrapf(err, "wire: field table entry %q value", name)
		}
		t[name] = val
	}
	return t, nil
}

// marshalValue encodes a single typed field-table/array value, writing its
// one-byte type tag followed by the type-specific encoding.
func marshalValue(buf *buffer.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteByte(tagVoid)
	case bool:
		buf.WriteByte(tagBoolean)
		if t {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case int8:
		buf.WriteByte(tagShortShortI)
		buf.WriteByte(byte(t))
	case uint8:
		buf.WriteByte(tagShortShortU)
		buf.WriteByte(t)
	case int16:
		buf.WriteByte(tagShortI)
		buf.WriteUint16(uint16(t))
	case uint16:
		buf.WriteByte(tagShortU)
		buf.WriteUint16(t)
	case int32:
		buf.WriteByte(tagLongI)
		buf.WriteUint32(uint32(t))
	case uint32:
		buf.WriteByte(tagLongU)
		buf.WriteUint32(t)
	case int:
		buf.WriteByte(tagLongLongI)
		buf.WriteUint64(uint64(t))
	case int64:
		buf.WriteByte(tagLongLongI)
		buf.WriteUint64(uint64(t))
	case uint64:
		buf.WriteByte(tagLongLongU)
		buf.WriteUint64(t)
	case float32:
		buf.WriteByte(tagFloat)
		buf.WriteUint32(math.Float32bits(t))
	case float64:
		buf.WriteByte(tagDouble)
		buf.WriteUint64(math.Float64bits(t))
	case string:
		buf.WriteByte(tagLongString)
		return WriteLongString(buf, []byte(t))
	case []byte:
		buf.WriteByte(tagLongString)
		return WriteLongString(buf, t)
	case time.Time:
		buf.WriteByte(tagTimestamp)
		buf.WriteUint64(uint64(t.Unix()))
	case Table:
		buf.WriteByte(tagFieldTable)
		return t.Marshal(buf)
	case []interface{}:
		buf.WriteByte(tagArray)
		return marshalArray(buf, t)
	default:
		return fmt.Errorf("wire: marshal not implemented for field value type %T", v)
	}
	return nil
}

func marshalArray(buf *buffer.Buffer, vs []interface{}) error {
	start := len(buf.Bytes())
	buf.WriteUint32(0)
	bodyStart := len(buf.Bytes())
	for _, v := range vs {
		if err := marshalValue(buf, v); err != nil {
			return err
		}
	}
	patchUint32(buf, start, uint32(len(buf.Bytes())-bodyStart))
	return nil
}

// unmarshalValue decodes a single typed field-table/array value.
func unmarshalValue(buf *buffer.Buffer) (interface{}, error) {
	tag, err := buf.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "wire: field value tag")
	}
	switch tag {
	case tagVoid:
		return nil, nil
	case tagBoolean:
		b, err := buf.ReadByte()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case tagShortShortI:
		b, err := buf.ReadByte()
		if err != nil {
			return nil, err
		}
		return int8(b), nil
	case tagShortShortU:
		b, err := buf.ReadByte()
		if err != nil {
			return nil, err
		}
		return b, nil
	case tagShortI:
		n, err := buf.ReadUint16()
		if err != nil {
			return nil, err
		}
		return int16(n), nil
	case tagShortU:
		n, err := buf.ReadUint16()
		if err != nil {
			return nil, err
		}
		return n, nil
	case tagLongI:
		n, err := buf.ReadUint32()
		if err != nil {
			return nil, err
		}
		return int32(n), nil
	case tagLongU:
		n, err := buf.ReadUint32()
		if err != nil {
			return nil, err
		}
		return n, nil
	case tagLongLongI:
		n, err := buf.ReadUint64()
		if err != nil {
			return nil, err
		}
		return int64(n), nil
	case tagLongLongU:
		n, err := buf.ReadUint64()
		if err != nil {
			return nil, err
		}
		return n, nil
	case tagFloat:
		n, err := buf.ReadUint32()
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(n), nil
	case tagDouble:
		n, err := buf.ReadUint64()
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(n), nil
	case tagLongString:
		b, err := ReadLongString(buf)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case tagTimestamp:
		n, err := buf.ReadUint64()
		if err != nil {
			return nil, err
		}
		return time.Unix(int64(n), 0).UTC(), nil
	case tagFieldTable:
		return ReadTable(buf)
	case tagArray:
		return unmarshalArray(buf)
	default:
		return nil, fmt.Errorf("wire: unsupported field value tag %q", tag)
	}
}

func unmarshalArray(buf *buffer.Buffer) ([]interface{}, error) {
	n, err := buf.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "wire: array length")
	}
	body, ok := buf.Next(int(n))
	if !ok {
		return nil, errors.New("wire: array body truncated")
	}
	sub := buffer.New(body)
	var vs []interface{}
	for sub.Len() > 0 {
		v, err := unmarshalValue(sub)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}
