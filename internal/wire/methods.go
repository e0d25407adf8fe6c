package wire

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/qpid-connengine/broker/internal/buffer"
)

// AMQP class ids (§4.2).
const (
	ClassConnection uint16 = 10
	ClassChannel    uint16 = 20
	ClassQueue      uint16 = 50
	ClassBasic      uint16 = 60
)

// Connection-class method ids. Close/Close-Ok differ between the 0-8 and
// 0-9/0-9-1 wire revisions; callers pick the pair via Revision.
const (
	MethodConnectionStart    uint16 = 10
	MethodConnectionStartOk  uint16 = 11
	MethodConnectionSecure   uint16 = 20
	MethodConnectionSecureOk uint16 = 21
	MethodConnectionTune     uint16 = 30
	MethodConnectionTuneOk   uint16 = 31
	MethodConnectionOpen     uint16 = 40
	MethodConnectionOpenOk   uint16 = 41

	MethodConnectionClose08   uint16 = 60
	MethodConnectionCloseOk08 uint16 = 61
	MethodConnectionClose091   uint16 = 50
	MethodConnectionCloseOk091 uint16 = 51
)

// Channel-class method ids.
const (
	MethodChannelOpen    uint16 = 10
	MethodChannelOpenOk  uint16 = 11
	MethodChannelFlow    uint16 = 20
	MethodChannelFlowOk  uint16 = 21
	MethodChannelClose   uint16 = 40
	MethodChannelCloseOk uint16 = 41
)

// Basic-class method ids relevant to this engine's responsibilities.
const (
	MethodBasicReturn uint16 = 50
	MethodBasicDeliver uint16 = 60
	MethodBasicGetOk   uint16 = 71
)

// Queue-class method ids relevant to this engine's responsibilities.
const (
	MethodQueueDeleteOk uint16 = 41
)

// Revision selects which Close/Close-Ok method-id pair a connection
// negotiated during protocol-header exchange.
type Revision int

const (
	Rev08 Revision = iota
	Rev091
)

// ConnectionCloseMethodIDs returns the (Close, Close-Ok) method-id pair for
// rev, since the two wire revisions disagree on the connection-class close
// handshake's opcodes.
func ConnectionCloseMethodIDs(rev Revision) (closeID, closeOkID uint16) {
	if rev == Rev08 {
		return MethodConnectionClose08, MethodConnectionCloseOk08
	}
	return MethodConnectionClose091, MethodConnectionCloseOk091
}

// Key packs a class id and method id into the single integer used to
// index the method registry, mirroring the (class_id<<16)|method_id
// dispatch key specified for the method table.
func Key(classID, methodID uint16) uint32 {
	return uint32(classID)<<16 | uint32(methodID)
}

// Method is any decodable/encodable AMQP method-frame body.
type Method interface {
	ClassID() uint16
	MethodID() uint16
	Marshal(buf *buffer.Buffer) error
}

// ConnectionStart is sent by the broker at the start of the handshake.
type ConnectionStart struct {
	VersionMajor     byte
	VersionMinor     byte
	ServerProperties Table
	Mechanisms       []byte // space-separated SASL mechanism names, long-string
	Locales          []byte // space-separated locale names, long-string
}

func (ConnectionStart) ClassID() uint16  { return ClassConnection }
func (ConnectionStart) MethodID() uint16 { return MethodConnectionStart }

func (m ConnectionStart) Marshal(buf *buffer.Buffer) error {
	buf.WriteByte(m.VersionMajor)
	buf.WriteByte(m.VersionMinor)
	if err := m.ServerProperties.Marshal(buf); err != nil {
		return err
	}
	if err := WriteLongString(buf, m.Mechanisms); err != nil {
		return err
	}
	return WriteLongString(buf, m.Locales)
}

// UnmarshalConnectionStart decodes a Connection.Start argument list.
func UnmarshalConnectionStart(buf *buffer.Buffer) (ConnectionStart, error) {
	var m ConnectionStart
	var err error
	if m.VersionMajor, err = buf.ReadByte(); err != nil {
		return m, err
	}
	if m.VersionMinor, err = buf.ReadByte(); err != nil {
		return m, err
	}
	if m.ServerProperties, err = ReadTable(buf); err != nil {
		return m, err
	}
	if m.Mechanisms, err = ReadLongString(buf); err != nil {
		return m, err
	}
	if m.Locales, err = ReadLongString(buf); err != nil {
		return m, err
	}
	return m, nil
}

// ConnectionStartOk is the client's reply to Connection.Start, naming the
// chosen SASL mechanism and its initial response.
type ConnectionStartOk struct {
	ClientProperties Table
	Mechanism        string
	Response         []byte
	Locale           string
}

func (ConnectionStartOk) ClassID() uint16  { return ClassConnection }
func (ConnectionStartOk) MethodID() uint16 { return MethodConnectionStartOk }

func (m ConnectionStartOk) Marshal(buf *buffer.Buffer) error {
	if err := m.ClientProperties.Marshal(buf); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.Mechanism); err != nil {
		return err
	}
	if err := WriteLongString(buf, m.Response); err != nil {
		return err
	}
	return WriteShortString(buf, m.Locale)
}

// UnmarshalConnectionStartOk decodes a Connection.Start-Ok argument list.
func UnmarshalConnectionStartOk(buf *buffer.Buffer) (ConnectionStartOk, error) {
	var m ConnectionStartOk
	var err error
	if m.ClientProperties, err = ReadTable(buf); err != nil {
		return m, err
	}
	if m.Mechanism, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.Response, err = ReadLongString(buf); err != nil {
		return m, err
	}
	if m.Locale, err = ReadShortString(buf); err != nil {
		return m, err
	}
	return m, nil
}

// ConnectionSecure carries a SASL challenge; ConnectionSecureOk carries the
// client's response to it. Both reuse the challenge/response shape.
type ConnectionSecure struct {
	Challenge []byte
}

func (ConnectionSecure) ClassID() uint16  { return ClassConnection }
func (ConnectionSecure) MethodID() uint16 { return MethodConnectionSecure }
func (m ConnectionSecure) Marshal(buf *buffer.Buffer) error {
	return WriteLongString(buf, m.Challenge)
}

func UnmarshalConnectionSecure(buf *buffer.Buffer) (ConnectionSecure, error) {
	c, err := ReadLongString(buf)
	return ConnectionSecure{Challenge: c}, err
}

type ConnectionSecureOk struct {
	Response []byte
}

func (ConnectionSecureOk) ClassID() uint16  { return ClassConnection }
func (ConnectionSecureOk) MethodID() uint16 { return MethodConnectionSecureOk }
func (m ConnectionSecureOk) Marshal(buf *buffer.Buffer) error {
	return WriteLongString(buf, m.Response)
}

func UnmarshalConnectionSecureOk(buf *buffer.Buffer) (ConnectionSecureOk, error) {
	r, err := ReadLongString(buf)
	return ConnectionSecureOk{Response: r}, err
}

// ConnectionTune proposes channel-max/frame-max/heartbeat; Connection.Tune-Ok
// is the client's (possibly lower) counter-proposal.
type ConnectionTune struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (ConnectionTune) ClassID() uint16  { return ClassConnection }
func (ConnectionTune) MethodID() uint16 { return MethodConnectionTune }
func (m ConnectionTune) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.ChannelMax)
	buf.WriteUint32(m.FrameMax)
	buf.WriteUint16(m.Heartbeat)
	return nil
}

func UnmarshalConnectionTune(buf *buffer.Buffer) (ConnectionTune, error) {
	var m ConnectionTune
	var err error
	if m.ChannelMax, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.FrameMax, err = buf.ReadUint32(); err != nil {
		return m, err
	}
	if m.Heartbeat, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	return m, nil
}

type ConnectionTuneOk struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (ConnectionTuneOk) ClassID() uint16  { return ClassConnection }
func (ConnectionTuneOk) MethodID() uint16 { return MethodConnectionTuneOk }
func (m ConnectionTuneOk) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.ChannelMax)
	buf.WriteUint32(m.FrameMax)
	buf.WriteUint16(m.Heartbeat)
	return nil
}

func UnmarshalConnectionTuneOk(buf *buffer.Buffer) (ConnectionTuneOk, error) {
	var m ConnectionTuneOk
	var err error
	if m.ChannelMax, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.FrameMax, err = buf.ReadUint32(); err != nil {
		return m, err
	}
	if m.Heartbeat, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	return m, nil
}

type ConnectionOpen struct {
	VirtualHost string
	CapabilitiesReserved string // reserved-1, historically "capabilities"
	InsistReserved       bool   // reserved-2, historically "insist"
}

func (ConnectionOpen) ClassID() uint16  { return ClassConnection }
func (ConnectionOpen) MethodID() uint16 { return MethodConnectionOpen }
func (m ConnectionOpen) Marshal(buf *buffer.Buffer) error {
	if err := WriteShortString(buf, m.VirtualHost); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.CapabilitiesReserved); err != nil {
		return err
	}
	buf.WriteByte(boolByte(m.InsistReserved))
	return nil
}

func UnmarshalConnectionOpen(buf *buffer.Buffer) (ConnectionOpen, error) {
	var m ConnectionOpen
	var err error
	if m.VirtualHost, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.CapabilitiesReserved, err = ReadShortString(buf); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	m.InsistReserved = b != 0
	return m, nil
}

type ConnectionOpenOk struct {
	KnownHostsReserved string
}

func (ConnectionOpenOk) ClassID() uint16  { return ClassConnection }
func (ConnectionOpenOk) MethodID() uint16 { return MethodConnectionOpenOk }
func (m ConnectionOpenOk) Marshal(buf *buffer.Buffer) error {
	return WriteShortString(buf, m.KnownHostsReserved)
}

func UnmarshalConnectionOpenOk(buf *buffer.Buffer) (ConnectionOpenOk, error) {
	s, err := ReadShortString(buf)
	return ConnectionOpenOk{KnownHostsReserved: s}, err
}

// ConnectionClose carries the reply code/text that ended a connection,
// plus the (class,method) of the method that provoked it, if any.
type ConnectionClose struct {
	ReplyCode uint16
	ReplyText string
	ClassID   uint16
	MethodID  uint16
}

func (ConnectionClose) ClassID() uint16  { return ClassConnection }
func (ConnectionClose) MethodID() uint16 { return 0 } // caller supplies the revision-specific id
func (m ConnectionClose) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.ReplyCode)
	if err := WriteShortString(buf, m.ReplyText); err != nil {
		return err
	}
	buf.WriteUint16(m.ClassID)
	buf.WriteUint16(m.MethodID)
	return nil
}

func UnmarshalConnectionClose(buf *buffer.Buffer) (ConnectionClose, error) {
	var m ConnectionClose
	var err error
	if m.ReplyCode, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.ReplyText, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.ClassID, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.MethodID, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	return m, nil
}

// ConnectionCloseOk has no arguments.
type ConnectionCloseOk struct{}

func (ConnectionCloseOk) ClassID() uint16             { return ClassConnection }
func (ConnectionCloseOk) MethodID() uint16            { return 0 }
func (ConnectionCloseOk) Marshal(*buffer.Buffer) error { return nil }

// ChannelOpen has no arguments besides the historical reserved field.
type ChannelOpen struct {
	OutOfBandReserved string
}

func (ChannelOpen) ClassID() uint16  { return ClassChannel }
func (ChannelOpen) MethodID() uint16 { return MethodChannelOpen }
func (m ChannelOpen) Marshal(buf *buffer.Buffer) error {
	return WriteShortString(buf, m.OutOfBandReserved)
}

func UnmarshalChannelOpen(buf *buffer.Buffer) (ChannelOpen, error) {
	s, err := ReadShortString(buf)
	return ChannelOpen{OutOfBandReserved: s}, err
}

type ChannelOpenOk struct {
	ChannelIDReserved []byte
}

func (ChannelOpenOk) ClassID() uint16  { return ClassChannel }
func (ChannelOpenOk) MethodID() uint16 { return MethodChannelOpenOk }
func (m ChannelOpenOk) Marshal(buf *buffer.Buffer) error {
	return WriteLongString(buf, m.ChannelIDReserved)
}

func UnmarshalChannelOpenOk(buf *buffer.Buffer) (ChannelOpenOk, error) {
	b, err := ReadLongString(buf)
	return ChannelOpenOk{ChannelIDReserved: b}, err
}

type ChannelFlow struct {
	Active bool
}

func (ChannelFlow) ClassID() uint16  { return ClassChannel }
func (ChannelFlow) MethodID() uint16 { return MethodChannelFlow }
func (m ChannelFlow) Marshal(buf *buffer.Buffer) error {
	buf.WriteByte(boolByte(m.Active))
	return nil
}

func UnmarshalChannelFlow(buf *buffer.Buffer) (ChannelFlow, error) {
	b, err := buf.ReadByte()
	return ChannelFlow{Active: b != 0}, err
}

type ChannelFlowOk struct {
	Active bool
}

func (ChannelFlowOk) ClassID() uint16  { return ClassChannel }
func (ChannelFlowOk) MethodID() uint16 { return MethodChannelFlowOk }
func (m ChannelFlowOk) Marshal(buf *buffer.Buffer) error {
	buf.WriteByte(boolByte(m.Active))
	return nil
}

func UnmarshalChannelFlowOk(buf *buffer.Buffer) (ChannelFlowOk, error) {
	b, err := buf.ReadByte()
	return ChannelFlowOk{Active: b != 0}, err
}

type ChannelClose struct {
	ReplyCode uint16
	ReplyText string
	ClassID   uint16
	MethodID  uint16
}

func (ChannelClose) ClassID() uint16  { return ClassChannel }
func (ChannelClose) MethodID() uint16 { return MethodChannelClose }
func (m ChannelClose) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.ReplyCode)
	if err := WriteShortString(buf, m.ReplyText); err != nil {
		return err
	}
	buf.WriteUint16(m.ClassID)
	buf.WriteUint16(m.MethodID)
	return nil
}

func UnmarshalChannelClose(buf *buffer.Buffer) (ChannelClose, error) {
	var m ChannelClose
	var err error
	if m.ReplyCode, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.ReplyText, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.ClassID, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.MethodID, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	return m, nil
}

type ChannelCloseOk struct{}

func (ChannelCloseOk) ClassID() uint16             { return ClassChannel }
func (ChannelCloseOk) MethodID() uint16            { return MethodChannelCloseOk }
func (ChannelCloseOk) Marshal(*buffer.Buffer) error { return nil }

// BasicDeliver introduces a message pushed to a consumer; the content
// header and body frames that follow carry the payload itself.
type BasicDeliver struct {
	ConsumerTag string
	DeliveryTag uint64
	Redelivered bool
	Exchange    string
	RoutingKey  string
}

func (BasicDeliver) ClassID() uint16  { return ClassBasic }
func (BasicDeliver) MethodID() uint16 { return MethodBasicDeliver }
func (m BasicDeliver) Marshal(buf *buffer.Buffer) error {
	if err := WriteShortString(buf, m.ConsumerTag); err != nil {
		return err
	}
	buf.WriteUint64(m.DeliveryTag)
	buf.WriteByte(boolByte(m.Redelivered))
	if err := WriteShortString(buf, m.Exchange); err != nil {
		return err
	}
	return WriteShortString(buf, m.RoutingKey)
}

func UnmarshalBasicDeliver(buf *buffer.Buffer) (BasicDeliver, error) {
	var m BasicDeliver
	var err error
	if m.ConsumerTag, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.DeliveryTag, err = buf.ReadUint64(); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	m.Redelivered = b != 0
	if m.Exchange, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.RoutingKey, err = ReadShortString(buf); err != nil {
		return m, err
	}
	return m, nil
}

// BasicReturn carries an undeliverable published message back to the
// publisher (mandatory/immediate failure).
type BasicReturn struct {
	ReplyCode  uint16
	ReplyText  string
	Exchange   string
	RoutingKey string
}

func (BasicReturn) ClassID() uint16  { return ClassBasic }
func (BasicReturn) MethodID() uint16 { return MethodBasicReturn }
func (m BasicReturn) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.ReplyCode)
	if err := WriteShortString(buf, m.ReplyText); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.Exchange); err != nil {
		return err
	}
	return WriteShortString(buf, m.RoutingKey)
}

func UnmarshalBasicReturn(buf *buffer.Buffer) (BasicReturn, error) {
	var m BasicReturn
	var err error
	if m.ReplyCode, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.ReplyText, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.Exchange, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.RoutingKey, err = ReadShortString(buf); err != nil {
		return m, err
	}
	return m, nil
}

// BasicGetOk is the synchronous reply to a successful Basic.Get, carrying
// the same delivery payload shape as Basic.Deliver plus the queue's
// remaining message count.
type BasicGetOk struct {
	DeliveryTag  uint64
	Redelivered  bool
	Exchange     string
	RoutingKey   string
	MessageCount uint32
}

func (BasicGetOk) ClassID() uint16  { return ClassBasic }
func (BasicGetOk) MethodID() uint16 { return MethodBasicGetOk }
func (m BasicGetOk) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint64(m.DeliveryTag)
	buf.WriteByte(boolByte(m.Redelivered))
	if err := WriteShortString(buf, m.Exchange); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.RoutingKey); err != nil {
		return err
	}
	buf.WriteUint32(m.MessageCount)
	return nil
}

func UnmarshalBasicGetOk(buf *buffer.Buffer) (BasicGetOk, error) {
	var m BasicGetOk
	var err error
	if m.DeliveryTag, err = buf.ReadUint64(); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	m.Redelivered = b != 0
	if m.Exchange, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.RoutingKey, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.MessageCount, err = buf.ReadUint32(); err != nil {
		return m, err
	}
	return m, nil
}

// QueueDeleteOk reports the message count purged by a queue deletion. The
// originating Queue.Delete is decoded unchanged, nowait included; the engine
// only exposes its send-Delete-Ok-regardless flag to channels through
// EngineHandle.SendQueueDeleteOkRegardless.
type QueueDeleteOk struct {
	MessageCount uint32
}

func (QueueDeleteOk) ClassID() uint16  { return ClassQueue }
func (QueueDeleteOk) MethodID() uint16 { return MethodQueueDeleteOk }
func (m QueueDeleteOk) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint32(m.MessageCount)
	return nil
}

func UnmarshalQueueDeleteOk(buf *buffer.Buffer) (QueueDeleteOk, error) {
	n, err := buf.ReadUint32()
	return QueueDeleteOk{MessageCount: n}, err
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// DecodeFunc decodes a method argument list already stripped of its
// class-id/method-id header.
type DecodeFunc func(buf *buffer.Buffer) (Method, error)

// Registry maps (class id, method id) to a decode function, the
// version-parameterised method table the connection engine dispatches
// incoming method frames through.
type Registry struct {
	rev   Revision
	funcs map[uint32]DecodeFunc
}

// NewRegistry builds the method table for the given wire revision. The
// connection-class Close/Close-Ok entries are registered under whichever
// method ids that revision uses.
func NewRegistry(rev Revision) *Registry {
	r := &Registry{rev: rev, funcs: make(map[uint32]DecodeFunc)}

	r.register(ClassConnection, MethodConnectionStart, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalConnectionStart(buf)
	})
	r.register(ClassConnection, MethodConnectionStartOk, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalConnectionStartOk(buf)
	})
	r.register(ClassConnection, MethodConnectionSecure, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalConnectionSecure(buf)
	})
	r.register(ClassConnection, MethodConnectionSecureOk, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalConnectionSecureOk(buf)
	})
	r.register(ClassConnection, MethodConnectionTune, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalConnectionTune(buf)
	})
	r.register(ClassConnection, MethodConnectionTuneOk, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalConnectionTuneOk(buf)
	})
	r.register(ClassConnection, MethodConnectionOpen, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalConnectionOpen(buf)
	})
	r.register(ClassConnection, MethodConnectionOpenOk, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalConnectionOpenOk(buf)
	})

	closeID, closeOkID := ConnectionCloseMethodIDs(rev)
	r.register(ClassConnection, closeID, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalConnectionClose(buf)
	})
	r.register(ClassConnection, closeOkID, func(buf *buffer.Buffer) (Method, error) {
		return ConnectionCloseOk{}, nil
	})

	r.register(ClassChannel, MethodChannelOpen, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalChannelOpen(buf)
	})
	r.register(ClassChannel, MethodChannelOpenOk, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalChannelOpenOk(buf)
	})
	r.register(ClassChannel, MethodChannelFlow, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalChannelFlow(buf)
	})
	r.register(ClassChannel, MethodChannelFlowOk, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalChannelFlowOk(buf)
	})
	r.register(ClassChannel, MethodChannelClose, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalChannelClose(buf)
	})
	r.register(ClassChannel, MethodChannelCloseOk, func(buf *buffer.Buffer) (Method, error) {
		return ChannelCloseOk{}, nil
	})

	r.register(ClassBasic, MethodBasicDeliver, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicDeliver(buf)
	})
	r.register(ClassBasic, MethodBasicReturn, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicReturn(buf)
	})
	r.register(ClassBasic, MethodBasicGetOk, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicGetOk(buf)
	})

	r.register(ClassQueue, MethodQueueDeleteOk, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalQueueDeleteOk(buf)
	})

	registerModelMethods(r)

	return r
}

// registerModelMethods registers the Basic/Queue/Exchange/Tx/Confirm
// decoders a real client drives once past the connection/channel
// handshake — the business-semantic methods whose decode is core-engine
// work even though their routing/execution belongs to the Channel.
func registerModelMethods(r *Registry) {
	r.register(ClassBasic, MethodBasicQos, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicQos(buf)
	})
	r.register(ClassBasic, MethodBasicQosOk, func(buf *buffer.Buffer) (Method, error) {
		return BasicQosOk{}, nil
	})
	r.register(ClassBasic, MethodBasicConsume, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicConsume(buf)
	})
	r.register(ClassBasic, MethodBasicConsumeOk, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicConsumeOk(buf)
	})
	r.register(ClassBasic, MethodBasicCancel, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicCancel(buf)
	})
	r.register(ClassBasic, MethodBasicCancelOk, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicCancelOk(buf)
	})
	r.register(ClassBasic, MethodBasicPublish, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicPublish(buf)
	})
	r.register(ClassBasic, MethodBasicGet, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicGet(buf)
	})
	r.register(ClassBasic, MethodBasicGetEmpty, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicGetEmpty(buf)
	})
	r.register(ClassBasic, MethodBasicAck, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicAck(buf)
	})
	r.register(ClassBasic, MethodBasicReject, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicReject(buf)
	})
	r.register(ClassBasic, MethodBasicRecoverAsync, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicRecoverAsync(buf)
	})
	r.register(ClassBasic, MethodBasicRecover, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicRecover(buf)
	})
	r.register(ClassBasic, MethodBasicRecoverOk, func(buf *buffer.Buffer) (Method, error) {
		return BasicRecoverOk{}, nil
	})
	r.register(ClassBasic, MethodBasicNack, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalBasicNack(buf)
	})

	r.register(ClassQueue, MethodQueueDeclare, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalQueueDeclare(buf)
	})
	r.register(ClassQueue, MethodQueueDeclareOk, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalQueueDeclareOk(buf)
	})
	r.register(ClassQueue, MethodQueueBind, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalQueueBind(buf)
	})
	r.register(ClassQueue, MethodQueueBindOk, func(buf *buffer.Buffer) (Method, error) {
		return QueueBindOk{}, nil
	})
	r.register(ClassQueue, MethodQueuePurge, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalQueuePurge(buf)
	})
	r.register(ClassQueue, MethodQueuePurgeOk, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalQueuePurgeOk(buf)
	})
	r.register(ClassQueue, MethodQueueDelete, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalQueueDelete(buf)
	})
	r.register(ClassQueue, MethodQueueUnbind, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalQueueUnbind(buf)
	})
	r.register(ClassQueue, MethodQueueUnbindOk, func(buf *buffer.Buffer) (Method, error) {
		return QueueUnbindOk{}, nil
	})

	r.register(ClassExchange, MethodExchangeDeclare, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalExchangeDeclare(buf)
	})
	r.register(ClassExchange, MethodExchangeDeclareOk, func(buf *buffer.Buffer) (Method, error) {
		return ExchangeDeclareOk{}, nil
	})
	r.register(ClassExchange, MethodExchangeDelete, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalExchangeDelete(buf)
	})
	r.register(ClassExchange, MethodExchangeDeleteOk, func(buf *buffer.Buffer) (Method, error) {
		return ExchangeDeleteOk{}, nil
	})
	r.register(ClassExchange, MethodExchangeBind, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalExchangeBind(buf)
	})
	r.register(ClassExchange, MethodExchangeBindOk, func(buf *buffer.Buffer) (Method, error) {
		return ExchangeBindOk{}, nil
	})
	r.register(ClassExchange, MethodExchangeUnbind, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalExchangeUnbind(buf)
	})
	r.register(ClassExchange, MethodExchangeUnbindOk, func(buf *buffer.Buffer) (Method, error) {
		return ExchangeUnbindOk{}, nil
	})

	r.register(ClassTx, MethodTxSelect, func(buf *buffer.Buffer) (Method, error) {
		return TxSelect{}, nil
	})
	r.register(ClassTx, MethodTxSelectOk, func(buf *buffer.Buffer) (Method, error) {
		return TxSelectOk{}, nil
	})
	r.register(ClassTx, MethodTxCommit, func(buf *buffer.Buffer) (Method, error) {
		return TxCommit{}, nil
	})
	r.register(ClassTx, MethodTxCommitOk, func(buf *buffer.Buffer) (Method, error) {
		return TxCommitOk{}, nil
	})
	r.register(ClassTx, MethodTxRollback, func(buf *buffer.Buffer) (Method, error) {
		return TxRollback{}, nil
	})
	r.register(ClassTx, MethodTxRollbackOk, func(buf *buffer.Buffer) (Method, error) {
		return TxRollbackOk{}, nil
	})

	r.register(ClassConfirm, MethodConfirmSelect, func(buf *buffer.Buffer) (Method, error) {
		return UnmarshalConfirmSelect(buf)
	})
	r.register(ClassConfirm, MethodConfirmSelectOk, func(buf *buffer.Buffer) (Method, error) {
		return ConfirmSelectOk{}, nil
	})
}

func (r *Registry) register(classID, methodID uint16, fn DecodeFunc) {
	r.funcs[Key(classID, methodID)] = fn
}

// ErrUnknownMethod is returned by Decode when no entry matches the given
// class id and method id, the wire-level analogue of AMQP's
// command-invalid condition.
var ErrUnknownMethod = errors.New("wire: unknown method")

// Decode looks up the decoder for (classID, methodID) and runs it against
// buf, which must hold exactly the method's argument list.
func (r *Registry) Decode(classID, methodID uint16, buf *buffer.Buffer) (Method, error) {
	fn, ok := r.funcs[Key(classID, methodID)]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownMethod, "class=%d method=%d", classID, methodID)
	}
	m, err := fn(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "wire: decode %s", methodName(classID, methodID))
	}
	return m, nil
}

func methodName(classID, methodID uint16) string {
	return fmt.Sprintf("class=%d/method=%d", classID, methodID)
}

// EncodeMethodFrame marshals m's argument list and wraps it in a
// method-type Frame on channel ch, using classID/methodID explicitly since
// ConnectionClose/-Ok have revision-dependent method ids not fixed on the
// type itself.
func EncodeMethodFrame(ch uint16, classID, methodID uint16, m Method) (Frame, error) {
	var buf buffer.Buffer
	buf.WriteUint16(classID)
	buf.WriteUint16(methodID)
	if err := m.Marshal(&buf); err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameMethod, Channel: ch, Payload: append([]byte(nil), buf.Bytes()...)}, nil
}

// DecodeMethodFrame reads the class-id/method-id header off a method-type
// frame's payload and dispatches the remainder through r.
func (r *Registry) DecodeMethodFrame(f Frame) (classID, methodID uint16, m Method, err error) {
	if f.Type != FrameMethod {
		return 0, 0, nil, errors.Errorf("wire: frame type %d is not a method frame", f.Type)
	}
	buf := buffer.New(f.Payload)
	classID, err = buf.ReadUint16()
	if err != nil {
		return 0, 0, nil, err
	}
	methodID, err = buf.ReadUint16()
	if err != nil {
		return 0, 0, nil, err
	}
	m, err = r.Decode(classID, methodID, buf)
	return classID, methodID, m, err
}
