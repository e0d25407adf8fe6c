package broker

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/qpid-connengine/broker/internal/buffer"
	"github.com/qpid-connengine/broker/internal/channel"
	"github.com/qpid-connengine/broker/internal/wire"
	"github.com/qpid-connengine/broker/internal/work"
)

// recordingChannel is a business-logic Channel stand-in that records every
// method handed to Receive, so dispatch can be asserted end to end.
type recordingChannel struct {
	id       uint16
	handle   EngineHandle
	received []interface{}
	blocked  bool
	closed   bool
}

func (c *recordingChannel) Receive(m interface{}) error {
	c.received = append(c.received, m)
	return nil
}
func (c *recordingChannel) ReceiveComplete()         {}
func (c *recordingChannel) Close(error, string)      { c.closed = true }
func (c *recordingChannel) Block()                   { c.blocked = true }
func (c *recordingChannel) Unblock()                 { c.blocked = false }
func (c *recordingChannel) TransportStateChanged()   {}
func (c *recordingChannel) ProcessPending() bool     { return false }
func (c *recordingChannel) IsClosing() bool          { return false }

func TestEngineStateProgressesMonotonically(t *testing.T) {
	vh := stubVHost{active: true, authOK: true}
	e, _, _ := driveToOpen(t, vh)
	require.Equal(t, StateOpen, e.State())
}

func TestEngineDispatchesNonChannelClassMethodsToBusinessChannel(t *testing.T) {
	defer leaktest.Check(t)()

	var captured *recordingChannel
	sender := &recordingSender{}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	factory := func(id uint16, handle EngineHandle) channel.Channel {
		captured = &recordingChannel{id: id, handle: handle}
		return captured
	}

	e := NewEngine(testConfig(), sender, log, "127.0.0.1:1", testVHostLookup(stubVHost{active: true, authOK: true}), acceptAnyAuth, nil, factory)
	require.NoError(t, e.Received(protocolInit(1)))
	feed(t, e, methodFrame(t, 0, wire.ConnectionStartOk{Mechanism: "PLAIN", Response: []byte("\x00guest\x00guest")}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionTuneOk{FrameMax: 65536}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionOpen{VirtualHost: "/"}))
	require.Equal(t, StateOpen, e.State())

	feed(t, e, methodFrame(t, 1, wire.ChannelOpen{}))
	require.NotNil(t, captured)

	deliver := wire.BasicDeliver{ConsumerTag: "ct", DeliveryTag: 1}
	feed(t, e, methodFrame(t, 1, deliver))

	require.Len(t, captured.received, 1)
	require.Equal(t, deliver, captured.received[0])
}

func TestEngineDispatchesBasicPublishToBusinessChannel(t *testing.T) {
	var captured *recordingChannel
	factory := func(id uint16, handle EngineHandle) channel.Channel {
		captured = &recordingChannel{id: id, handle: handle}
		return captured
	}
	sender := &recordingSender{}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	e := NewEngine(testConfig(), sender, log, "127.0.0.1:1", testVHostLookup(stubVHost{active: true, authOK: true}), acceptAnyAuth, nil, factory)
	require.NoError(t, e.Received(protocolInit(1)))
	feed(t, e, methodFrame(t, 0, wire.ConnectionStartOk{Mechanism: "PLAIN", Response: []byte("\x00guest\x00guest")}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionTuneOk{FrameMax: 65536}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionOpen{VirtualHost: "/"}))
	feed(t, e, methodFrame(t, 1, wire.ChannelOpen{}))

	publish := wire.BasicPublish{Exchange: "amq.direct", RoutingKey: "rk"}
	feed(t, e, methodFrame(t, 1, publish))
	require.Equal(t, StateOpen, e.State())

	require.Len(t, captured.received, 1)
	require.Equal(t, publish, captured.received[0])
}

func TestEngineRoutesInboundContentHeaderAndBodyToBusinessChannel(t *testing.T) {
	var captured *recordingChannel
	factory := func(id uint16, handle EngineHandle) channel.Channel {
		captured = &recordingChannel{id: id, handle: handle}
		return captured
	}
	sender := &recordingSender{}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	e := NewEngine(testConfig(), sender, log, "127.0.0.1:1", testVHostLookup(stubVHost{active: true, authOK: true}), acceptAnyAuth, nil, factory)
	require.NoError(t, e.Received(protocolInit(1)))
	feed(t, e, methodFrame(t, 0, wire.ConnectionStartOk{Mechanism: "PLAIN", Response: []byte("\x00guest\x00guest")}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionTuneOk{FrameMax: 65536}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionOpen{VirtualHost: "/"}))
	feed(t, e, methodFrame(t, 1, wire.ChannelOpen{}))
	feed(t, e, methodFrame(t, 1, wire.BasicPublish{Exchange: "", RoutingKey: "rk"}))

	hdr := &wire.ContentHeader{ClassID: wire.ClassBasic, BodySize: 5}
	headerFrame, err := wire.EncodeContentHeaderFrame(1, hdr)
	require.NoError(t, err)
	bodyFrame := wire.EncodeContentBodyFrame(1, []byte("hello"))
	feed(t, e, headerFrame, bodyFrame)

	require.Equal(t, StateOpen, e.State())
	require.Len(t, captured.received, 3)
	gotHeader, ok := captured.received[1].(wire.ContentHeader)
	require.True(t, ok)
	require.Equal(t, uint64(5), gotHeader.BodySize)
	gotBody, ok := captured.received[2].(ContentBodyChunk)
	require.True(t, ok)
	require.Equal(t, "hello", string(gotBody))
}

func TestEnginePortMaxMessageSizeRejectsOversizedContent(t *testing.T) {
	factory := func(id uint16, handle EngineHandle) channel.Channel {
		return &recordingChannel{id: id, handle: handle}
	}
	sender := &recordingSender{}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	cfg := testConfig()
	cfg.PortMaxMessageSize = 4
	e := NewEngine(cfg, sender, log, "127.0.0.1:1", testVHostLookup(stubVHost{active: true, authOK: true}), acceptAnyAuth, nil, factory)
	require.NoError(t, e.Received(protocolInit(1)))
	feed(t, e, methodFrame(t, 0, wire.ConnectionStartOk{Mechanism: "PLAIN", Response: []byte("\x00guest\x00guest")}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionTuneOk{FrameMax: 65536}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionOpen{VirtualHost: "/"}))
	feed(t, e, methodFrame(t, 1, wire.ChannelOpen{}))
	feed(t, e, methodFrame(t, 1, wire.BasicPublish{RoutingKey: "rk"}))

	hdr := &wire.ContentHeader{ClassID: wire.ClassBasic, BodySize: 5}
	headerFrame, err := wire.EncodeContentHeaderFrame(1, hdr)
	require.NoError(t, err)

	var buf buffer.Buffer
	wire.WriteFrame(&buf, headerFrame)
	require.Error(t, e.Received(buf.Bytes()))
	require.Equal(t, StateClosed, e.State())

	reg := wire.NewRegistry(wire.Rev091)
	_, methodID, m := sender.lastMethod(reg)
	require.Equal(t, wire.MethodConnectionClose091, methodID)
	require.Equal(t, uint16(ReplyResourceError), m.(wire.ConnectionClose).ReplyCode)
}

func TestEngineUnknownChannelClosesConnection(t *testing.T) {
	vh := stubVHost{active: true, authOK: true}
	e, sender, reg := driveToOpen(t, vh)

	feedExpectingClose(t, e, methodFrame(t, 7, wire.BasicReturn{}))
	require.Equal(t, StateClosed, e.State())

	_, methodID, m := sender.lastMethod(reg)
	require.Equal(t, wire.MethodConnectionClose091, methodID)
	require.Equal(t, uint16(ReplyChannelError), m.(wire.ConnectionClose).ReplyCode)
}

func TestEngineChannelFlowTogglesBlockState(t *testing.T) {
	var captured *recordingChannel
	factory := func(id uint16, handle EngineHandle) channel.Channel {
		captured = &recordingChannel{id: id, handle: handle}
		return captured
	}
	sender := &recordingSender{}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	e := NewEngine(testConfig(), sender, log, "127.0.0.1:1", testVHostLookup(stubVHost{active: true, authOK: true}), acceptAnyAuth, nil, factory)
	require.NoError(t, e.Received(protocolInit(1)))
	feed(t, e, methodFrame(t, 0, wire.ConnectionStartOk{Mechanism: "PLAIN", Response: []byte("\x00guest\x00guest")}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionTuneOk{FrameMax: 65536}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionOpen{VirtualHost: "/"}))
	feed(t, e, methodFrame(t, 1, wire.ChannelOpen{}))

	feed(t, e, methodFrame(t, 1, wire.ChannelFlow{Active: false}))
	require.True(t, captured.blocked)

	feed(t, e, methodFrame(t, 1, wire.ChannelFlow{Active: true}))
	require.False(t, captured.blocked)
}

func TestEngineWorkNotifierScheduledChannelDrainsViaEngineHandle(t *testing.T) {
	var handle EngineHandle
	processed := 0
	factory := func(id uint16, h EngineHandle) channel.Channel {
		handle = h
		return &schedulingChannel{onProcess: func() { processed++ }}
	}
	sender := &recordingSender{}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	e := NewEngine(testConfig(), sender, log, "127.0.0.1:1", testVHostLookup(stubVHost{active: true, authOK: true}), acceptAnyAuth, nil, factory)
	require.NoError(t, e.Received(protocolInit(1)))
	feed(t, e, methodFrame(t, 0, wire.ConnectionStartOk{Mechanism: "PLAIN", Response: []byte("\x00guest\x00guest")}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionTuneOk{FrameMax: 65536}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionOpen{VirtualHost: "/"}))
	feed(t, e, methodFrame(t, 1, wire.ChannelOpen{}))

	handle.ScheduleChannel(1)
	require.True(t, e.Work().HasWork())

	ch, ok := e.channels.Get(1)
	require.True(t, ok)
	e.Work().ProcessPending(func(id uint16) (work.Pendable, bool) {
		if id == 1 {
			return ch.(work.Pendable), true
		}
		return nil, false
	})
	require.Equal(t, 1, processed)
}

type schedulingChannel struct {
	onProcess func()
	exhausted bool
}

func (s *schedulingChannel) Receive(interface{}) error    { return nil }
func (s *schedulingChannel) ReceiveComplete()              {}
func (s *schedulingChannel) Close(error, string)           {}
func (s *schedulingChannel) Block()                        {}
func (s *schedulingChannel) Unblock()                       {}
func (s *schedulingChannel) TransportStateChanged()        {}
func (s *schedulingChannel) IsClosing() bool                { return false }
func (s *schedulingChannel) ProcessPending() bool {
	if s.exhausted {
		return false
	}
	s.onProcess()
	s.exhausted = true
	return false
}

func TestTickSendsHeartbeatOnWriteIdle(t *testing.T) {
	e, sender := newTestEngine(stubVHost{active: true, authOK: true})
	e.heartbeatDelay = 1 * time.Second
	base := time.Now()
	e.lastReadAt = base
	e.lastWriteAt = base

	require.NoError(t, e.Tick(base.Add(2*time.Second)))

	foundHeartbeat := false
	for _, f := range sender.frames {
		if f.Type == wire.FrameHeartbeat {
			foundHeartbeat = true
		}
	}
	require.True(t, foundHeartbeat)
}

func TestTickClosesOnReadIdleTimeout(t *testing.T) {
	e, _ := newTestEngine(stubVHost{active: true, authOK: true})
	e.heartbeatDelay = 1 * time.Second
	base := time.Now()
	e.lastReadAt = base
	e.lastWriteAt = base

	err := e.Tick(base.Add(3 * time.Second))
	require.Error(t, err)
	require.Equal(t, StateClosed, e.State())
}

func TestTickSweepsTimedOutClosingChannels(t *testing.T) {
	original := CloseOkTimeout
	CloseOkTimeout = 10 * time.Millisecond
	defer func() { CloseOkTimeout = original }()

	vh := stubVHost{active: true, authOK: true}
	e, _, _ := driveToOpen(t, vh)
	feed(t, e, methodFrame(t, 1, wire.ChannelOpen{}))
	feed(t, e, methodFrame(t, 1, wire.ChannelClose{}))
	require.Equal(t, StateOpen, e.State())

	time.Sleep(20 * time.Millisecond)

	err := e.Tick(time.Now())
	require.Error(t, err)
	require.Equal(t, StateClosed, e.State())
}

func TestTickSweepForcesTransportDropWithoutCloseHandshake(t *testing.T) {
	original := CloseOkTimeout
	CloseOkTimeout = 10 * time.Millisecond
	defer func() { CloseOkTimeout = original }()

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.InfoLevel)

	vh := stubVHost{active: true, authOK: true}
	sender := &recordingSender{}
	e := NewEngine(testConfig(), sender, log, "127.0.0.1:1", testVHostLookup(vh), acceptAnyAuth, nil, noopChannelFactory)
	require.NoError(t, e.Received(protocolInit(1)))
	feed(t, e, methodFrame(t, 0, wire.ConnectionStartOk{Mechanism: "PLAIN", Response: []byte("\x00guest\x00guest")}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionTuneOk{FrameMax: 65536}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionOpen{VirtualHost: "/"}))
	feed(t, e, methodFrame(t, 1, wire.ChannelOpen{}))
	feed(t, e, methodFrame(t, 1, wire.ChannelClose{}))

	beforeSweep := len(sender.frames)
	time.Sleep(20 * time.Millisecond)
	require.Error(t, e.Tick(time.Now()))
	require.Equal(t, StateClosed, e.State())

	for _, f := range sender.frames[beforeSweep:] {
		require.NotEqual(t, wire.FrameMethod, f.Type, "no Connection.Close handshake is attempted on a forced transport drop")
	}

	found := false
	for _, entry := range hook.AllEntries() {
		if entry.Data["event"] == "CONNECTION.DROPPED" {
			found = true
		}
	}
	require.True(t, found)
}

var _ channel.Channel = (*recordingChannel)(nil)
var _ channel.Channel = (*schedulingChannel)(nil)
