package wire

import (
	"github.com/qpid-connengine/broker/internal/buffer"
)

// AMQP class ids not already declared alongside Connection/Channel (§4.2).
const (
	ClassExchange uint16 = 40
	ClassConfirm  uint16 = 85
	ClassTx       uint16 = 90
)

// Basic-class method ids beyond Deliver/Return/Get-Ok, covering the
// publish/consume/acknowledge surface a real client actually drives.
const (
	MethodBasicQos          uint16 = 10
	MethodBasicQosOk        uint16 = 11
	MethodBasicConsume      uint16 = 20
	MethodBasicConsumeOk    uint16 = 21
	MethodBasicCancel       uint16 = 30
	MethodBasicCancelOk     uint16 = 31
	MethodBasicPublish      uint16 = 40
	MethodBasicGet          uint16 = 70
	MethodBasicGetEmpty     uint16 = 72
	MethodBasicAck          uint16 = 80
	MethodBasicReject       uint16 = 90
	MethodBasicRecoverAsync uint16 = 100
	MethodBasicRecover      uint16 = 110
	MethodBasicRecoverOk    uint16 = 111
	MethodBasicNack         uint16 = 120
)

// Queue-class method ids beyond Delete-Ok.
const (
	MethodQueueDeclare   uint16 = 10
	MethodQueueDeclareOk uint16 = 11
	MethodQueueBind      uint16 = 20
	MethodQueueBindOk    uint16 = 21
	MethodQueuePurge     uint16 = 30
	MethodQueuePurgeOk   uint16 = 31
	MethodQueueDelete    uint16 = 40
	MethodQueueUnbind    uint16 = 50
	MethodQueueUnbindOk  uint16 = 51
)

// Exchange-class method ids.
const (
	MethodExchangeDeclare   uint16 = 10
	MethodExchangeDeclareOk uint16 = 11
	MethodExchangeDelete    uint16 = 20
	MethodExchangeDeleteOk  uint16 = 21
	MethodExchangeBind      uint16 = 30
	MethodExchangeBindOk    uint16 = 31
	MethodExchangeUnbind    uint16 = 40
	MethodExchangeUnbindOk  uint16 = 51
)

// Tx-class method ids.
const (
	MethodTxSelect     uint16 = 10
	MethodTxSelectOk   uint16 = 11
	MethodTxCommit     uint16 = 20
	MethodTxCommitOk   uint16 = 21
	MethodTxRollback   uint16 = 30
	MethodTxRollbackOk uint16 = 31
)

// Confirm-class method ids.
const (
	MethodConfirmSelect   uint16 = 10
	MethodConfirmSelectOk uint16 = 11
)

// BasicQos sets the consumer prefetch limits ahead of delivery.
type BasicQos struct {
	PrefetchSize  uint32
	PrefetchCount uint16
	Global        bool
}

func (BasicQos) ClassID() uint16  { return ClassBasic }
func (BasicQos) MethodID() uint16 { return MethodBasicQos }
func (m BasicQos) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint32(m.PrefetchSize)
	buf.WriteUint16(m.PrefetchCount)
	buf.WriteByte(packBits(m.Global))
	return nil
}

func UnmarshalBasicQos(buf *buffer.Buffer) (BasicQos, error) {
	var m BasicQos
	var err error
	if m.PrefetchSize, err = buf.ReadUint32(); err != nil {
		return m, err
	}
	if m.PrefetchCount, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	m.Global = unpackBits(b, 1)[0]
	return m, nil
}

type BasicQosOk struct{}

func (BasicQosOk) ClassID() uint16             { return ClassBasic }
func (BasicQosOk) MethodID() uint16            { return MethodBasicQosOk }
func (BasicQosOk) Marshal(*buffer.Buffer) error { return nil }

// BasicConsume registers a consumer on a queue.
type BasicConsume struct {
	TicketReserved uint16
	Queue          string
	ConsumerTag    string
	NoLocal        bool
	NoAck          bool
	Exclusive      bool
	NoWait         bool
	Arguments      Table
}

func (BasicConsume) ClassID() uint16  { return ClassBasic }
func (BasicConsume) MethodID() uint16 { return MethodBasicConsume }
func (m BasicConsume) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.TicketReserved)
	if err := WriteShortString(buf, m.Queue); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.ConsumerTag); err != nil {
		return err
	}
	buf.WriteByte(packBits(m.NoLocal, m.NoAck, m.Exclusive, m.NoWait))
	return m.Arguments.Marshal(buf)
}

func UnmarshalBasicConsume(buf *buffer.Buffer) (BasicConsume, error) {
	var m BasicConsume
	var err error
	if m.TicketReserved, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.Queue, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.ConsumerTag, err = ReadShortString(buf); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	bits := unpackBits(b, 4)
	m.NoLocal, m.NoAck, m.Exclusive, m.NoWait = bits[0], bits[1], bits[2], bits[3]
	if m.Arguments, err = ReadTable(buf); err != nil {
		return m, err
	}
	return m, nil
}

type BasicConsumeOk struct {
	ConsumerTag string
}

func (BasicConsumeOk) ClassID() uint16  { return ClassBasic }
func (BasicConsumeOk) MethodID() uint16 { return MethodBasicConsumeOk }
func (m BasicConsumeOk) Marshal(buf *buffer.Buffer) error {
	return WriteShortString(buf, m.ConsumerTag)
}

func UnmarshalBasicConsumeOk(buf *buffer.Buffer) (BasicConsumeOk, error) {
	s, err := ReadShortString(buf)
	return BasicConsumeOk{ConsumerTag: s}, err
}

type BasicCancel struct {
	ConsumerTag string
	NoWait      bool
}

func (BasicCancel) ClassID() uint16  { return ClassBasic }
func (BasicCancel) MethodID() uint16 { return MethodBasicCancel }
func (m BasicCancel) Marshal(buf *buffer.Buffer) error {
	if err := WriteShortString(buf, m.ConsumerTag); err != nil {
		return err
	}
	buf.WriteByte(packBits(m.NoWait))
	return nil
}

func UnmarshalBasicCancel(buf *buffer.Buffer) (BasicCancel, error) {
	var m BasicCancel
	var err error
	if m.ConsumerTag, err = ReadShortString(buf); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	m.NoWait = unpackBits(b, 1)[0]
	return m, nil
}

type BasicCancelOk struct {
	ConsumerTag string
}

func (BasicCancelOk) ClassID() uint16  { return ClassBasic }
func (BasicCancelOk) MethodID() uint16 { return MethodBasicCancelOk }
func (m BasicCancelOk) Marshal(buf *buffer.Buffer) error {
	return WriteShortString(buf, m.ConsumerTag)
}

func UnmarshalBasicCancelOk(buf *buffer.Buffer) (BasicCancelOk, error) {
	s, err := ReadShortString(buf)
	return BasicCancelOk{ConsumerTag: s}, err
}

// BasicPublish introduces an outbound message; the content-header and body
// frames that follow carry the payload, delivered to the channel as
// separate Receive calls rather than buffered here.
type BasicPublish struct {
	TicketReserved uint16
	Exchange       string
	RoutingKey     string
	Mandatory      bool
	Immediate      bool
}

func (BasicPublish) ClassID() uint16  { return ClassBasic }
func (BasicPublish) MethodID() uint16 { return MethodBasicPublish }
func (m BasicPublish) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.TicketReserved)
	if err := WriteShortString(buf, m.Exchange); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.RoutingKey); err != nil {
		return err
	}
	buf.WriteByte(packBits(m.Mandatory, m.Immediate))
	return nil
}

func UnmarshalBasicPublish(buf *buffer.Buffer) (BasicPublish, error) {
	var m BasicPublish
	var err error
	if m.TicketReserved, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.Exchange, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.RoutingKey, err = ReadShortString(buf); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	bits := unpackBits(b, 2)
	m.Mandatory, m.Immediate = bits[0], bits[1]
	return m, nil
}

type BasicGet struct {
	TicketReserved uint16
	Queue          string
	NoAck          bool
}

func (BasicGet) ClassID() uint16  { return ClassBasic }
func (BasicGet) MethodID() uint16 { return MethodBasicGet }
func (m BasicGet) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.TicketReserved)
	if err := WriteShortString(buf, m.Queue); err != nil {
		return err
	}
	buf.WriteByte(packBits(m.NoAck))
	return nil
}

func UnmarshalBasicGet(buf *buffer.Buffer) (BasicGet, error) {
	var m BasicGet
	var err error
	if m.TicketReserved, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.Queue, err = ReadShortString(buf); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	m.NoAck = unpackBits(b, 1)[0]
	return m, nil
}

// BasicGetEmpty answers a Basic.Get against an empty queue.
type BasicGetEmpty struct {
	ClusterIDReserved string
}

func (BasicGetEmpty) ClassID() uint16  { return ClassBasic }
func (BasicGetEmpty) MethodID() uint16 { return MethodBasicGetEmpty }
func (m BasicGetEmpty) Marshal(buf *buffer.Buffer) error {
	return WriteShortString(buf, m.ClusterIDReserved)
}

func UnmarshalBasicGetEmpty(buf *buffer.Buffer) (BasicGetEmpty, error) {
	s, err := ReadShortString(buf)
	return BasicGetEmpty{ClusterIDReserved: s}, err
}

type BasicAck struct {
	DeliveryTag uint64
	Multiple    bool
}

func (BasicAck) ClassID() uint16  { return ClassBasic }
func (BasicAck) MethodID() uint16 { return MethodBasicAck }
func (m BasicAck) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint64(m.DeliveryTag)
	buf.WriteByte(packBits(m.Multiple))
	return nil
}

func UnmarshalBasicAck(buf *buffer.Buffer) (BasicAck, error) {
	var m BasicAck
	var err error
	if m.DeliveryTag, err = buf.ReadUint64(); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	m.Multiple = unpackBits(b, 1)[0]
	return m, nil
}

type BasicReject struct {
	DeliveryTag uint64
	Requeue     bool
}

func (BasicReject) ClassID() uint16  { return ClassBasic }
func (BasicReject) MethodID() uint16 { return MethodBasicReject }
func (m BasicReject) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint64(m.DeliveryTag)
	buf.WriteByte(packBits(m.Requeue))
	return nil
}

func UnmarshalBasicReject(buf *buffer.Buffer) (BasicReject, error) {
	var m BasicReject
	var err error
	if m.DeliveryTag, err = buf.ReadUint64(); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	m.Requeue = unpackBits(b, 1)[0]
	return m, nil
}

type BasicRecoverAsync struct {
	Requeue bool
}

func (BasicRecoverAsync) ClassID() uint16  { return ClassBasic }
func (BasicRecoverAsync) MethodID() uint16 { return MethodBasicRecoverAsync }
func (m BasicRecoverAsync) Marshal(buf *buffer.Buffer) error {
	buf.WriteByte(packBits(m.Requeue))
	return nil
}

func UnmarshalBasicRecoverAsync(buf *buffer.Buffer) (BasicRecoverAsync, error) {
	b, err := buf.ReadByte()
	return BasicRecoverAsync{Requeue: unpackBits(b, 1)[0]}, err
}

type BasicRecover struct {
	Requeue bool
}

func (BasicRecover) ClassID() uint16  { return ClassBasic }
func (BasicRecover) MethodID() uint16 { return MethodBasicRecover }
func (m BasicRecover) Marshal(buf *buffer.Buffer) error {
	buf.WriteByte(packBits(m.Requeue))
	return nil
}

func UnmarshalBasicRecover(buf *buffer.Buffer) (BasicRecover, error) {
	b, err := buf.ReadByte()
	return BasicRecover{Requeue: unpackBits(b, 1)[0]}, err
}

type BasicRecoverOk struct{}

func (BasicRecoverOk) ClassID() uint16             { return ClassBasic }
func (BasicRecoverOk) MethodID() uint16            { return MethodBasicRecoverOk }
func (BasicRecoverOk) Marshal(*buffer.Buffer) error { return nil }

// BasicNack is the RabbitMQ-style negative acknowledgement extension this
// engine's clients are expected to send alongside the plain Basic.Reject.
type BasicNack struct {
	DeliveryTag uint64
	Multiple    bool
	Requeue     bool
}

func (BasicNack) ClassID() uint16  { return ClassBasic }
func (BasicNack) MethodID() uint16 { return MethodBasicNack }
func (m BasicNack) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint64(m.DeliveryTag)
	buf.WriteByte(packBits(m.Multiple, m.Requeue))
	return nil
}

func UnmarshalBasicNack(buf *buffer.Buffer) (BasicNack, error) {
	var m BasicNack
	var err error
	if m.DeliveryTag, err = buf.ReadUint64(); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	bits := unpackBits(b, 2)
	m.Multiple, m.Requeue = bits[0], bits[1]
	return m, nil
}

// QueueDeclare creates or asserts a queue.
type QueueDeclare struct {
	TicketReserved uint16
	Queue          string
	Passive        bool
	Durable        bool
	Exclusive      bool
	AutoDelete     bool
	NoWait         bool
	Arguments      Table
}

func (QueueDeclare) ClassID() uint16  { return ClassQueue }
func (QueueDeclare) MethodID() uint16 { return MethodQueueDeclare }
func (m QueueDeclare) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.TicketReserved)
	if err := WriteShortString(buf, m.Queue); err != nil {
		return err
	}
	buf.WriteByte(packBits(m.Passive, m.Durable, m.Exclusive, m.AutoDelete, m.NoWait))
	return m.Arguments.Marshal(buf)
}

func UnmarshalQueueDeclare(buf *buffer.Buffer) (QueueDeclare, error) {
	var m QueueDeclare
	var err error
	if m.TicketReserved, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.Queue, err = ReadShortString(buf); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	bits := unpackBits(b, 5)
	m.Passive, m.Durable, m.Exclusive, m.AutoDelete, m.NoWait = bits[0], bits[1], bits[2], bits[3], bits[4]
	if m.Arguments, err = ReadTable(buf); err != nil {
		return m, err
	}
	return m, nil
}

type QueueDeclareOk struct {
	Queue         string
	MessageCount  uint32
	ConsumerCount uint32
}

func (QueueDeclareOk) ClassID() uint16  { return ClassQueue }
func (QueueDeclareOk) MethodID() uint16 { return MethodQueueDeclareOk }
func (m QueueDeclareOk) Marshal(buf *buffer.Buffer) error {
	if err := WriteShortString(buf, m.Queue); err != nil {
		return err
	}
	buf.WriteUint32(m.MessageCount)
	buf.WriteUint32(m.ConsumerCount)
	return nil
}

func UnmarshalQueueDeclareOk(buf *buffer.Buffer) (QueueDeclareOk, error) {
	var m QueueDeclareOk
	var err error
	if m.Queue, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.MessageCount, err = buf.ReadUint32(); err != nil {
		return m, err
	}
	if m.ConsumerCount, err = buf.ReadUint32(); err != nil {
		return m, err
	}
	return m, nil
}

type QueueBind struct {
	TicketReserved uint16
	Queue          string
	Exchange       string
	RoutingKey     string
	NoWait         bool
	Arguments      Table
}

func (QueueBind) ClassID() uint16  { return ClassQueue }
func (QueueBind) MethodID() uint16 { return MethodQueueBind }
func (m QueueBind) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.TicketReserved)
	if err := WriteShortString(buf, m.Queue); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.Exchange); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.RoutingKey); err != nil {
		return err
	}
	buf.WriteByte(packBits(m.NoWait))
	return m.Arguments.Marshal(buf)
}

func UnmarshalQueueBind(buf *buffer.Buffer) (QueueBind, error) {
	var m QueueBind
	var err error
	if m.TicketReserved, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.Queue, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.Exchange, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.RoutingKey, err = ReadShortString(buf); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	m.NoWait = unpackBits(b, 1)[0]
	if m.Arguments, err = ReadTable(buf); err != nil {
		return m, err
	}
	return m, nil
}

type QueueBindOk struct{}

func (QueueBindOk) ClassID() uint16             { return ClassQueue }
func (QueueBindOk) MethodID() uint16            { return MethodQueueBindOk }
func (QueueBindOk) Marshal(*buffer.Buffer) error { return nil }

type QueuePurge struct {
	TicketReserved uint16
	Queue          string
	NoWait         bool
}

func (QueuePurge) ClassID() uint16  { return ClassQueue }
func (QueuePurge) MethodID() uint16 { return MethodQueuePurge }
func (m QueuePurge) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.TicketReserved)
	if err := WriteShortString(buf, m.Queue); err != nil {
		return err
	}
	buf.WriteByte(packBits(m.NoWait))
	return nil
}

func UnmarshalQueuePurge(buf *buffer.Buffer) (QueuePurge, error) {
	var m QueuePurge
	var err error
	if m.TicketReserved, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.Queue, err = ReadShortString(buf); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	m.NoWait = unpackBits(b, 1)[0]
	return m, nil
}

type QueuePurgeOk struct {
	MessageCount uint32
}

func (QueuePurgeOk) ClassID() uint16  { return ClassQueue }
func (QueuePurgeOk) MethodID() uint16 { return MethodQueuePurgeOk }
func (m QueuePurgeOk) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint32(m.MessageCount)
	return nil
}

func UnmarshalQueuePurgeOk(buf *buffer.Buffer) (QueuePurgeOk, error) {
	n, err := buf.ReadUint32()
	return QueuePurgeOk{MessageCount: n}, err
}

type QueueDelete struct {
	TicketReserved uint16
	Queue          string
	IfUnused       bool
	IfEmpty        bool
	NoWait         bool
}

func (QueueDelete) ClassID() uint16  { return ClassQueue }
func (QueueDelete) MethodID() uint16 { return MethodQueueDelete }
func (m QueueDelete) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.TicketReserved)
	if err := WriteShortString(buf, m.Queue); err != nil {
		return err
	}
	buf.WriteByte(packBits(m.IfUnused, m.IfEmpty, m.NoWait))
	return nil
}

func UnmarshalQueueDelete(buf *buffer.Buffer) (QueueDelete, error) {
	var m QueueDelete
	var err error
	if m.TicketReserved, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.Queue, err = ReadShortString(buf); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	bits := unpackBits(b, 3)
	m.IfUnused, m.IfEmpty, m.NoWait = bits[0], bits[1], bits[2]
	return m, nil
}

type QueueUnbind struct {
	TicketReserved uint16
	Queue          string
	Exchange       string
	RoutingKey     string
	Arguments      Table
}

func (QueueUnbind) ClassID() uint16  { return ClassQueue }
func (QueueUnbind) MethodID() uint16 { return MethodQueueUnbind }
func (m QueueUnbind) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.TicketReserved)
	if err := WriteShortString(buf, m.Queue); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.Exchange); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.RoutingKey); err != nil {
		return err
	}
	return m.Arguments.Marshal(buf)
}

func UnmarshalQueueUnbind(buf *buffer.Buffer) (QueueUnbind, error) {
	var m QueueUnbind
	var err error
	if m.TicketReserved, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.Queue, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.Exchange, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.RoutingKey, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.Arguments, err = ReadTable(buf); err != nil {
		return m, err
	}
	return m, nil
}

type QueueUnbindOk struct{}

func (QueueUnbindOk) ClassID() uint16             { return ClassQueue }
func (QueueUnbindOk) MethodID() uint16            { return MethodQueueUnbindOk }
func (QueueUnbindOk) Marshal(*buffer.Buffer) error { return nil }

// ExchangeDeclare creates or asserts an exchange.
type ExchangeDeclare struct {
	TicketReserved uint16
	Exchange       string
	Type           string
	Passive        bool
	Durable        bool
	AutoDelete     bool
	Internal       bool
	NoWait         bool
	Arguments      Table
}

func (ExchangeDeclare) ClassID() uint16  { return ClassExchange }
func (ExchangeDeclare) MethodID() uint16 { return MethodExchangeDeclare }
func (m ExchangeDeclare) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.TicketReserved)
	if err := WriteShortString(buf, m.Exchange); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.Type); err != nil {
		return err
	}
	buf.WriteByte(packBits(m.Passive, m.Durable, m.AutoDelete, m.Internal, m.NoWait))
	return m.Arguments.Marshal(buf)
}

func UnmarshalExchangeDeclare(buf *buffer.Buffer) (ExchangeDeclare, error) {
	var m ExchangeDeclare
	var err error
	if m.TicketReserved, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.Exchange, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.Type, err = ReadShortString(buf); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	bits := unpackBits(b, 5)
	m.Passive, m.Durable, m.AutoDelete, m.Internal, m.NoWait = bits[0], bits[1], bits[2], bits[3], bits[4]
	if m.Arguments, err = ReadTable(buf); err != nil {
		return m, err
	}
	return m, nil
}

type ExchangeDeclareOk struct{}

func (ExchangeDeclareOk) ClassID() uint16             { return ClassExchange }
func (ExchangeDeclareOk) MethodID() uint16            { return MethodExchangeDeclareOk }
func (ExchangeDeclareOk) Marshal(*buffer.Buffer) error { return nil }

type ExchangeDelete struct {
	TicketReserved uint16
	Exchange       string
	IfUnused       bool
	NoWait         bool
}

func (ExchangeDelete) ClassID() uint16  { return ClassExchange }
func (ExchangeDelete) MethodID() uint16 { return MethodExchangeDelete }
func (m ExchangeDelete) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.TicketReserved)
	if err := WriteShortString(buf, m.Exchange); err != nil {
		return err
	}
	buf.WriteByte(packBits(m.IfUnused, m.NoWait))
	return nil
}

func UnmarshalExchangeDelete(buf *buffer.Buffer) (ExchangeDelete, error) {
	var m ExchangeDelete
	var err error
	if m.TicketReserved, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.Exchange, err = ReadShortString(buf); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	bits := unpackBits(b, 2)
	m.IfUnused, m.NoWait = bits[0], bits[1]
	return m, nil
}

type ExchangeDeleteOk struct{}

func (ExchangeDeleteOk) ClassID() uint16             { return ClassExchange }
func (ExchangeDeleteOk) MethodID() uint16            { return MethodExchangeDeleteOk }
func (ExchangeDeleteOk) Marshal(*buffer.Buffer) error { return nil }

// ExchangeBind and ExchangeUnbind are the exchange-to-exchange routing
// extension, laid out like Queue.Bind/Unbind but with a destination and a
// source exchange in place of the queue/exchange pair.
type ExchangeBind struct {
	TicketReserved uint16
	Destination    string
	Source         string
	RoutingKey     string
	NoWait         bool
	Arguments      Table
}

func (ExchangeBind) ClassID() uint16  { return ClassExchange }
func (ExchangeBind) MethodID() uint16 { return MethodExchangeBind }
func (m ExchangeBind) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.TicketReserved)
	if err := WriteShortString(buf, m.Destination); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.Source); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.RoutingKey); err != nil {
		return err
	}
	buf.WriteByte(packBits(m.NoWait))
	return m.Arguments.Marshal(buf)
}

func UnmarshalExchangeBind(buf *buffer.Buffer) (ExchangeBind, error) {
	var m ExchangeBind
	var err error
	if m.TicketReserved, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.Destination, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.Source, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.RoutingKey, err = ReadShortString(buf); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	m.NoWait = unpackBits(b, 1)[0]
	if m.Arguments, err = ReadTable(buf); err != nil {
		return m, err
	}
	return m, nil
}

type ExchangeBindOk struct{}

func (ExchangeBindOk) ClassID() uint16             { return ClassExchange }
func (ExchangeBindOk) MethodID() uint16            { return MethodExchangeBindOk }
func (ExchangeBindOk) Marshal(*buffer.Buffer) error { return nil }

type ExchangeUnbind struct {
	TicketReserved uint16
	Destination    string
	Source         string
	RoutingKey     string
	NoWait         bool
	Arguments      Table
}

func (ExchangeUnbind) ClassID() uint16  { return ClassExchange }
func (ExchangeUnbind) MethodID() uint16 { return MethodExchangeUnbind }
func (m ExchangeUnbind) Marshal(buf *buffer.Buffer) error {
	buf.WriteUint16(m.TicketReserved)
	if err := WriteShortString(buf, m.Destination); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.Source); err != nil {
		return err
	}
	if err := WriteShortString(buf, m.RoutingKey); err != nil {
		return err
	}
	buf.WriteByte(packBits(m.NoWait))
	return m.Arguments.Marshal(buf)
}

func UnmarshalExchangeUnbind(buf *buffer.Buffer) (ExchangeUnbind, error) {
	var m ExchangeUnbind
	var err error
	if m.TicketReserved, err = buf.ReadUint16(); err != nil {
		return m, err
	}
	if m.Destination, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.Source, err = ReadShortString(buf); err != nil {
		return m, err
	}
	if m.RoutingKey, err = ReadShortString(buf); err != nil {
		return m, err
	}
	b, err := buf.ReadByte()
	if err != nil {
		return m, err
	}
	m.NoWait = unpackBits(b, 1)[0]
	if m.Arguments, err = ReadTable(buf); err != nil {
		return m, err
	}
	return m, nil
}

type ExchangeUnbindOk struct{}

func (ExchangeUnbindOk) ClassID() uint16             { return ClassExchange }
func (ExchangeUnbindOk) MethodID() uint16            { return MethodExchangeUnbindOk }
func (ExchangeUnbindOk) Marshal(*buffer.Buffer) error { return nil }

// Tx-class methods carry no arguments; the transaction is identified purely
// by the channel it arrives on.
type TxSelect struct{}

func (TxSelect) ClassID() uint16             { return ClassTx }
func (TxSelect) MethodID() uint16            { return MethodTxSelect }
func (TxSelect) Marshal(*buffer.Buffer) error { return nil }

type TxSelectOk struct{}

func (TxSelectOk) ClassID() uint16             { return ClassTx }
func (TxSelectOk) MethodID() uint16            { return MethodTxSelectOk }
func (TxSelectOk) Marshal(*buffer.Buffer) error { return nil }

type TxCommit struct{}

func (TxCommit) ClassID() uint16             { return ClassTx }
func (TxCommit) MethodID() uint16            { return MethodTxCommit }
func (TxCommit) Marshal(*buffer.Buffer) error { return nil }

type TxCommitOk struct{}

func (TxCommitOk) ClassID() uint16             { return ClassTx }
func (TxCommitOk) MethodID() uint16            { return MethodTxCommitOk }
func (TxCommitOk) Marshal(*buffer.Buffer) error { return nil }

type TxRollback struct{}

func (TxRollback) ClassID() uint16             { return ClassTx }
func (TxRollback) MethodID() uint16            { return MethodTxRollback }
func (TxRollback) Marshal(*buffer.Buffer) error { return nil }

type TxRollbackOk struct{}

func (TxRollbackOk) ClassID() uint16             { return ClassTx }
func (TxRollbackOk) MethodID() uint16            { return MethodTxRollbackOk }
func (TxRollbackOk) Marshal(*buffer.Buffer) error { return nil }

type ConfirmSelect struct {
	NoWait bool
}

func (ConfirmSelect) ClassID() uint16  { return ClassConfirm }
func (ConfirmSelect) MethodID() uint16 { return MethodConfirmSelect }
func (m ConfirmSelect) Marshal(buf *buffer.Buffer) error {
	buf.WriteByte(packBits(m.NoWait))
	return nil
}

func UnmarshalConfirmSelect(buf *buffer.Buffer) (ConfirmSelect, error) {
	b, err := buf.ReadByte()
	return ConfirmSelect{NoWait: unpackBits(b, 1)[0]}, err
}

type ConfirmSelectOk struct{}

func (ConfirmSelectOk) ClassID() uint16             { return ClassConfirm }
func (ConfirmSelectOk) MethodID() uint16            { return MethodConfirmSelectOk }
func (ConfirmSelectOk) Marshal(*buffer.Buffer) error { return nil }
