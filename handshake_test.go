package broker

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/qpid-connengine/broker/internal/buffer"
	"github.com/qpid-connengine/broker/internal/channel"
	"github.com/qpid-connengine/broker/internal/wire"
)

// recordingSender captures every frame handed to Send, for assertions
// against the frames/methods an Engine wrote. Bytes that do not form a
// complete frame (such as a bare protocol header) are not recorded.
type recordingSender struct {
	frames []wire.Frame
}

func (s *recordingSender) Send(buf []byte) error {
	var b buffer.Buffer
	b.Append(buf)
	for {
		if b.Len() == 0 {
			break
		}
		typ, err := b.ReadByte()
		if err != nil {
			break
		}
		ch, _ := b.ReadUint16()
		size, _ := b.ReadUint32()
		payload, complete := b.Next(int(size))
		end, err := b.ReadByte()
		if !complete || err != nil || end != wire.FrameEnd {
			break // not a frame, e.g. a bare protocol header
		}
		s.frames = append(s.frames, wire.Frame{Type: typ, Channel: ch, Payload: append([]byte(nil), payload...)})
	}
	return nil
}

func (s *recordingSender) lastMethod(reg *wire.Registry) (uint16, uint16, wire.Method) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Type == wire.FrameMethod {
			classID, methodID, m, err := reg.DecodeMethodFrame(s.frames[i])
			if err == nil {
				return classID, methodID, m
			}
		}
	}
	return 0, 0, nil
}

type stubVHost struct {
	name     string
	active   bool
	authOK   bool
}

func (v stubVHost) Name() string { return v.name }
func (v stubVHost) IsActive() bool { return v.active }
func (v stubVHost) AuthoriseCreateConnection(string) bool { return v.authOK }

func testVHostLookup(v VirtualHost) VirtualHostLookup {
	return func(name string) (VirtualHost, bool) {
		if name == v.Name() {
			return v, true
		}
		return nil, false
	}
}

func acceptAnyAuth(_ string, _, authcid, password string) (string, bool) {
	if authcid == "guest" && password == "guest" {
		return authcid, true
	}
	return "", false
}

type noopChannel struct{}

func (noopChannel) Receive(interface{}) error      { return nil }
func (noopChannel) ReceiveComplete()                {}
func (noopChannel) Close(error, string)             {}
func (noopChannel) Block()                          {}
func (noopChannel) Unblock()                         {}
func (noopChannel) TransportStateChanged()          {}
func (noopChannel) ProcessPending() bool            { return false }
func (noopChannel) IsClosing() bool                 { return false }

func noopChannelFactory(uint16, EngineHandle) channel.Channel { return noopChannel{} }

func testConfig() Config {
	return Config{
		SessionCountLimit: 16,
		NetworkBufferSize: 65536 + wire.FrameOverhead,
		Product:           "test-broker",
		ProductVersion:    "1.0",
	}
}

func newTestEngine(vh VirtualHost) (*Engine, *recordingSender) {
	sender := &recordingSender{}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	e := NewEngine(testConfig(), sender, log, "127.0.0.1:1234", testVHostLookup(vh), acceptAnyAuth, nil, noopChannelFactory)
	return e, sender
}

func feed(t *testing.T, e *Engine, frames ...wire.Frame) {
	t.Helper()
	var buf buffer.Buffer
	for _, f := range frames {
		wire.WriteFrame(&buf, f)
	}
	require.NoError(t, e.Received(buf.Bytes()))
}

// feedExpectingClose is feed for a step that ends the connection: Received
// reports the connection-fatal error it closed with.
func feedExpectingClose(t *testing.T, e *Engine, frames ...wire.Frame) {
	t.Helper()
	var buf buffer.Buffer
	for _, f := range frames {
		wire.WriteFrame(&buf, f)
	}
	require.Error(t, e.Received(buf.Bytes()))
}

func protocolInit(rev byte) []byte {
	var buf buffer.Buffer
	minor, revision := byte(9), rev
	if rev == 0 {
		minor = 8
	}
	wire.WriteProtocolHeader(&buf, wire.ProtocolHeader{Major: 0, Minor: minor, Revision: revision})
	return buf.Bytes()
}

func methodFrame(t *testing.T, ch uint16, m wire.Method) wire.Frame {
	t.Helper()
	f, err := wire.EncodeMethodFrame(ch, m.ClassID(), m.MethodID(), m)
	require.NoError(t, err)
	return f
}

// driveToOpen runs a full 0-9-1 handshake (H1) and returns the engine, its
// recording sender, and a registry for decoding the sender's frames.
func driveToOpen(t *testing.T, vh VirtualHost) (*Engine, *recordingSender, *wire.Registry) {
	t.Helper()
	e, sender := newTestEngine(vh)

	require.NoError(t, e.Received(protocolInit(1)))
	require.Equal(t, StateAwaitStartOk, e.State())

	reg := wire.NewRegistry(wire.Rev091)

	startOk := wire.ConnectionStartOk{
		ClientProperties: wire.Table{"product": "tester"},
		Mechanism:        "PLAIN",
		Response:         []byte("\x00guest\x00guest"),
		Locale:           "en_US",
	}
	feed(t, e, methodFrame(t, 0, startOk))
	require.Equal(t, StateAwaitTuneOk, e.State())

	tuneOk := wire.ConnectionTuneOk{ChannelMax: 8, FrameMax: 65536, Heartbeat: 0}
	feed(t, e, methodFrame(t, 0, tuneOk))
	require.Equal(t, StateAwaitOpen, e.State())

	open := wire.ConnectionOpen{VirtualHost: "/" + vh.Name()}
	feed(t, e, methodFrame(t, 0, open))
	require.Equal(t, StateOpen, e.State())

	return e, sender, reg
}

// Scenario H1: a 0-9-1 client completes the full handshake successfully.
func TestHandshakeH1AcceptsSupportedVersion(t *testing.T) {
	vh := stubVHost{name: "", active: true, authOK: true}
	e, sender, reg := driveToOpen(t, vh)
	require.Equal(t, StateOpen, e.State())

	classID, methodID, _ := sender.lastMethod(reg)
	require.Equal(t, wire.ClassConnection, classID)
	require.Equal(t, wire.MethodConnectionOpenOk, methodID)
}

// Scenario H2: an unsupported protocol version gets the broker's own
// 0-9-1 header echoed back and the connection closes.
func TestHandshakeH2RejectsUnsupportedVersion(t *testing.T) {
	e, sender := newTestEngine(stubVHost{name: "", active: true, authOK: true})

	var buf buffer.Buffer
	wire.WriteProtocolHeader(&buf, wire.ProtocolHeader{Major: 0, Minor: 10, Revision: 0})
	err := e.Received(buf.Bytes())
	require.Error(t, err)
	require.Equal(t, StateClosed, e.State())

	require.Len(t, sender.frames, 0) // the reply is a bare header, not a framed method
}

// Scenario T1: a client proposing a frame-max below the protocol minimum
// is rejected with SYNTAX_ERROR and the connection closes.
func TestHandshakeT1RejectsUndersizedFrameMax(t *testing.T) {
	e, sender := newTestEngine(stubVHost{name: "", active: true, authOK: true})
	reg := wire.NewRegistry(wire.Rev091)

	require.NoError(t, e.Received(protocolInit(1)))
	startOk := wire.ConnectionStartOk{Mechanism: "PLAIN", Response: []byte("\x00guest\x00guest")}
	feed(t, e, methodFrame(t, 0, startOk))

	tuneOk := wire.ConnectionTuneOk{FrameMax: 128}
	feedExpectingClose(t, e, methodFrame(t, 0, tuneOk))

	require.Equal(t, StateClosed, e.State())
	_, methodID, m := sender.lastMethod(reg)
	require.Equal(t, wire.MethodConnectionClose091, methodID)
	closeMsg := m.(wire.ConnectionClose)
	require.Equal(t, uint16(ReplySyntaxError), closeMsg.ReplyCode)
}

// Scenario T1 (upper bound): a client counter-proposing a frame-max above
// the broker's own proposed value is rejected with SYNTAX_ERROR.
func TestHandshakeT1RejectsOversizedFrameMax(t *testing.T) {
	e, sender := newTestEngine(stubVHost{name: "", active: true, authOK: true})
	reg := wire.NewRegistry(wire.Rev091)

	require.NoError(t, e.Received(protocolInit(1)))
	feed(t, e, methodFrame(t, 0, wire.ConnectionStartOk{Mechanism: "PLAIN", Response: []byte("\x00guest\x00guest")}))

	tuneOk := wire.ConnectionTuneOk{FrameMax: e.defaultFrameMax + 1}
	feedExpectingClose(t, e, methodFrame(t, 0, tuneOk))

	require.Equal(t, StateClosed, e.State())
	_, methodID, m := sender.lastMethod(reg)
	require.Equal(t, wire.MethodConnectionClose091, methodID)
	closeMsg := m.(wire.ConnectionClose)
	require.Equal(t, uint16(ReplySyntaxError), closeMsg.ReplyCode)
}

// A client-proposed frame-max of 0 is clamped to the broker's own proposed
// value instead of disabling frame-size enforcement.
func TestHandshakeTuneOkClampsZeroFrameMax(t *testing.T) {
	e, _ := newTestEngine(stubVHost{name: "", active: true, authOK: true})

	require.NoError(t, e.Received(protocolInit(1)))
	feed(t, e, methodFrame(t, 0, wire.ConnectionStartOk{Mechanism: "PLAIN", Response: []byte("\x00guest\x00guest")}))

	feed(t, e, methodFrame(t, 0, wire.ConnectionTuneOk{FrameMax: 0}))

	require.Equal(t, StateAwaitOpen, e.State())
	require.Equal(t, e.defaultFrameMax, e.maxFrameSize)
	require.NotZero(t, e.maxFrameSize)
}

// Scenario C1: re-opening a channel id that is already open is rejected
// with CHANNEL_ERROR at the connection level.
func TestHandshakeC1RejectsDuplicateChannelOpen(t *testing.T) {
	vh := stubVHost{name: "", active: true, authOK: true}
	e, sender, reg := driveToOpen(t, vh)

	feed(t, e, methodFrame(t, 1, wire.ChannelOpen{}))
	require.Equal(t, StateOpen, e.State())

	feedExpectingClose(t, e, methodFrame(t, 1, wire.ChannelOpen{}))
	require.Equal(t, StateClosed, e.State())

	_, methodID, m := sender.lastMethod(reg)
	require.Equal(t, wire.MethodConnectionClose091, methodID)
	closeMsg := m.(wire.ConnectionClose)
	require.Equal(t, uint16(ReplyChannelError), closeMsg.ReplyCode)
}

// Scenario F1: opening a channel id beyond the negotiated channel-max is
// rejected with CHANNEL_ERROR at the connection level.
func TestHandshakeF1RejectsOversizeChannelID(t *testing.T) {
	e, sender := newTestEngine(stubVHost{name: "", active: true, authOK: true})
	reg := wire.NewRegistry(wire.Rev091)

	require.NoError(t, e.Received(protocolInit(1)))
	feed(t, e, methodFrame(t, 0, wire.ConnectionStartOk{Mechanism: "PLAIN", Response: []byte("\x00guest\x00guest")}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionTuneOk{ChannelMax: 4, FrameMax: 65536}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionOpen{VirtualHost: "/"}))
	require.Equal(t, StateOpen, e.State())

	feedExpectingClose(t, e, methodFrame(t, 10, wire.ChannelOpen{}))
	require.Equal(t, StateClosed, e.State())

	_, methodID, m := sender.lastMethod(reg)
	require.Equal(t, wire.MethodConnectionClose091, methodID)
	closeMsg := m.(wire.ConnectionClose)
	require.Equal(t, uint16(ReplyChannelError), closeMsg.ReplyCode)
}

func TestHandshakeRejectsUnauthorizedVirtualHost(t *testing.T) {
	vh := stubVHost{name: "", active: true, authOK: false}
	e, sender := newTestEngine(vh)
	reg := wire.NewRegistry(wire.Rev091)

	require.NoError(t, e.Received(protocolInit(1)))
	feed(t, e, methodFrame(t, 0, wire.ConnectionStartOk{Mechanism: "PLAIN", Response: []byte("\x00guest\x00guest")}))
	feed(t, e, methodFrame(t, 0, wire.ConnectionTuneOk{FrameMax: 65536}))
	feedExpectingClose(t, e, methodFrame(t, 0, wire.ConnectionOpen{VirtualHost: "/"}))

	require.Equal(t, StateClosed, e.State())
	_, methodID, m := sender.lastMethod(reg)
	require.Equal(t, wire.MethodConnectionClose091, methodID)
	closeMsg := m.(wire.ConnectionClose)
	require.Equal(t, uint16(ReplyAccessRefused), closeMsg.ReplyCode)
}

func TestHandshakeRejectsBadCredentials(t *testing.T) {
	e, sender := newTestEngine(stubVHost{name: "", active: true, authOK: true})
	reg := wire.NewRegistry(wire.Rev091)

	require.NoError(t, e.Received(protocolInit(1)))
	feedExpectingClose(t, e, methodFrame(t, 0, wire.ConnectionStartOk{Mechanism: "PLAIN", Response: []byte("\x00guest\x00wrong")}))

	require.Equal(t, StateClosed, e.State())
	_, methodID, m := sender.lastMethod(reg)
	require.Equal(t, wire.MethodConnectionClose091, methodID)
	closeMsg := m.(wire.ConnectionClose)
	require.Equal(t, uint16(ReplyAccessRefused), closeMsg.ReplyCode)
}
