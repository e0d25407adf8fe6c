package broker

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/qpid-connengine/broker/internal/admission"
	"github.com/qpid-connengine/broker/internal/buffer"
	"github.com/qpid-connengine/broker/internal/channel"
	"github.com/qpid-connengine/broker/internal/sasl"
	"github.com/qpid-connengine/broker/internal/wire"
	"github.com/qpid-connengine/broker/internal/work"
)

// State is the connection's position in the handshake/operation state
// machine (§4.3).
type State int

const (
	StateInit State = iota
	StateAwaitStartOk
	StateAwaitSecureOk
	StateAwaitTuneOk
	StateAwaitOpen
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateAwaitStartOk:
		return "AWAIT_START_OK"
	case StateAwaitSecureOk:
		return "AWAIT_SECURE_OK"
	case StateAwaitTuneOk:
		return "AWAIT_TUNE_OK"
	case StateAwaitOpen:
		return "AWAIT_OPEN"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// MinFrameSize is the floor a client's proposed frame-max must clear.
const MinFrameSize = wire.MinFrameSize

// CloseOkTimeout bounds how long a channel may sit awaiting its peer's
// Channel.Close-Ok before Tick forces the network down. The connection's own
// Connection.Close is not timed: closeConnection moves the engine to
// StateClosed as soon as it has sent it. A var
// rather than a const so tests can shrink it instead of sleeping ten
// seconds of real wall-clock time.
var CloseOkTimeout = 10 * time.Second

// HeartbeatTimeoutFactor multiplies heartbeat_delay to derive the read-idle
// timeout, per §5.
const HeartbeatTimeoutFactor = 2

// Sender is the outbound byte sink the engine writes framed traffic to —
// the `ByteBufferSender` external collaborator from spec §1.
type Sender interface {
	Send(buf []byte) error
}

// ContentBodyChunk is one content-body frame's raw payload, handed to a
// channel's Receive the same way a decoded method is, so a Channel
// implementation can type-switch between the two without ambiguity.
type ContentBodyChunk []byte

// VirtualHost is the subset of a resolved virtual host the engine needs
// once Connection.Open names it.
type VirtualHost interface {
	Name() string
	IsActive() bool
	AuthoriseCreateConnection(subject string) bool
}

// VirtualHostLookup resolves a requested vhost name to a VirtualHost,
// standing in for the broker's configuration/model tree.
type VirtualHostLookup func(name string) (VirtualHost, bool)

// Authenticator verifies decoded SASL credentials against the port's
// configured AuthenticationProvider.
type Authenticator func(mechanism string, authzid, authcid, password string) (subject string, ok bool)

// Config carries the configuration inputs the engine consumes from the
// broker model (§6), as plain fields rather than environment lookups.
type Config struct {
	SessionCountLimit                uint16
	HeartbeatDelay                    time.Duration
	CloseWhenNoRoute                  bool
	MessageCompressionEnabled         bool
	VirtualhostPropertiesNodeEnabled  bool
	NetworkBufferSize                 uint32

	PortMaxMessageSize                      uint64
	MaxOpenConnections                      int
	OpenConnectionsWarnPercent              int
	DebugBinaryDataLength                   int
	MessageCompressionThreshold             int
	SendQueueDeleteOkClientProduct          []string // product names matched case-insensitively (e.g. "qpid", "unknown")
	SendQueueDeleteOkClientVersionPredicate func(version string) bool

	Product       string
	ProductVersion string
	BuildLabel     string
	InstanceName   string
}

// clientProperties captures the fields of Connection.Start-Ok's
// client-properties table this engine inspects.
type clientProperties struct {
	product               string
	version               string
	compressionSupported  bool
}

// Engine is the per-connection protocol engine (ConnectionEngine): it owns
// the decoder, the channel registry, the async-task queue, and the SASL
// context for exactly one client connection. All of its mutable state is
// touched only from the single goroutine that calls Received/ProcessPending
// — the I/O thread — except where explicitly noted as a cross-goroutine
// atomic/lock-guarded field.
type Engine struct {
	cfg    Config
	sender Sender
	log    logrus.FieldLogger

	vhosts     VirtualHostLookup
	authn      Authenticator
	admission  *admission.Admission
	remoteAddr string

	decoder  *wire.Decoder
	registry *wire.Registry
	revision wire.Revision

	channels       *channel.Registry
	channelFactory ChannelFactory
	work           *work.Notifier

	state             State
	maxFrameSize       uint32
	defaultFrameMax    uint32
	maxChannels        uint16
	heartbeatDelay     time.Duration
	virtualHost        VirtualHost
	clientProps        clientProperties
	authorizedSubject  string
	saslCtx            *sasl.Context

	sendQueueDeleteOkRegardless bool

	currentClassID  uint16
	currentMethodID uint16

	orderlyClose atomic.Bool

	lastReadAt  time.Time
	lastWriteAt time.Time
}

// NewEngine constructs an Engine bound to the given transport sender and
// configuration. The protocol version is not yet known; it is determined
// by the first bytes delivered to Received. channelFactory builds the
// business-logic Channel object for each Channel.Open — this engine owns
// only the channel's bookkeeping (registry slot, flow-control fanout,
// close handshake), not its queue/exchange semantics.
func NewEngine(cfg Config, sender Sender, log logrus.FieldLogger, remoteAddr string, vhosts VirtualHostLookup, authn Authenticator, adm *admission.Admission, channelFactory ChannelFactory) *Engine {
	return &Engine{
		cfg:            cfg,
		sender:         sender,
		log:            log,
		vhosts:         vhosts,
		authn:          authn,
		admission:      adm,
		remoteAddr:     remoteAddr,
		decoder:        wire.NewDecoder(0),
		channels:       channel.NewRegistry(0),
		channelFactory: channelFactory,
		work:           work.New(),
		state:          StateInit,
	}
}

// State returns the engine's current connection state.
func (e *Engine) State() State {
	return e.state
}

// Work returns the engine's WorkNotifier, so transport code can poll
// HasWork and drive ProcessPending from the I/O thread.
func (e *Engine) Work() *work.Notifier {
	return e.work
}

// Received feeds newly read bytes into the engine. It decodes as many
// complete frames as are available, dispatches each in wire order, and
// calls ReceiveComplete exactly once on every channel touched by this
// call, per the receive-complete ordering guarantee in §5.
func (e *Engine) Received(buf []byte) error {
	e.lastReadAt = time.Now()
	e.decoder.Feed(buf)

	touched := make(map[uint16]bool)

	for {
		if e.state == StateInit {
			hdr, ok, err := e.decoder.ReadProtocolHeader()
			if err != nil {
				return e.handleVersionMismatch()
			}
			if !ok {
				return nil
			}
			if err := e.onProtocolInitiation(hdr); err != nil {
				return err
			}
			continue
		}

		f, ok, err := e.decoder.Next()
		if err != nil {
			return e.fatalDecodeError(err)
		}
		if !ok {
			break
		}

		if f.Type == wire.FrameHeartbeat {
			continue
		}

		if f.Type == wire.FrameHeader {
			hdr, err := wire.ReadContentHeader(f.Payload)
			if err != nil {
				return e.fatalDecodeError(err)
			}
			if e.cfg.PortMaxMessageSize > 0 && hdr.BodySize > e.cfg.PortMaxMessageSize {
				return e.closeConnection(NewConnectionError(ReplyResourceError, wire.ClassBasic, wire.MethodBasicPublish,
					"Message size %d exceeds the maximum allowed message size %d", hdr.BodySize, e.cfg.PortMaxMessageSize))
			}
			ch, found := e.channels.Get(f.Channel)
			if !found {
				return e.closeConnection(NewConnectionError(ReplyChannelError, wire.ClassBasic, 0, "Unknown channel id: %d", f.Channel))
			}
			if err := ch.Receive(hdr); err != nil {
				return err
			}
			touched[f.Channel] = true
			continue
		}

		if f.Type == wire.FrameBody {
			ch, found := e.channels.Get(f.Channel)
			if !found {
				return e.closeConnection(NewConnectionError(ReplyChannelError, wire.ClassBasic, 0, "Unknown channel id: %d", f.Channel))
			}
			if err := ch.Receive(ContentBodyChunk(f.Payload)); err != nil {
				return err
			}
			touched[f.Channel] = true
			continue
		}

		if f.Type != wire.FrameMethod {
			continue
		}

		classID, methodID, m, err := e.registry.DecodeMethodFrame(f)
		if err != nil {
			return e.fatalDecodeError(err)
		}
		e.currentClassID, e.currentMethodID = classID, methodID

		if classID == wire.ClassConnection {
			if err := e.dispatchConnectionMethod(methodID, m); err != nil {
				return err
			}
			continue
		}

		if classID == wire.ClassChannel {
			if err := e.dispatchChannelMethod(f.Channel, methodID, m); err != nil {
				return err
			}
			touched[f.Channel] = true
			continue
		}

		ch, found := e.channels.Get(f.Channel)
		if !found {
			return e.closeConnection(NewConnectionError(ReplyChannelError, classID, methodID, "Unknown channel id: %d", f.Channel))
		}
		if err := ch.Receive(m); err != nil {
			return err
		}
		touched[f.Channel] = true
	}

	for id := range touched {
		if ch, ok := e.channels.Get(id); ok {
			ch.ReceiveComplete()
		}
	}
	return nil
}

func (e *Engine) onProtocolInitiation(hdr wire.ProtocolHeader) error {
	switch {
	case hdr.Major == 0 && hdr.Minor == 9 && hdr.Revision == 1:
		e.revision = wire.Rev091
	case hdr.Major == 0 && hdr.Minor == 8 && hdr.Revision == 0:
		e.revision = wire.Rev08
	default:
		return e.handleVersionMismatch()
	}
	e.registry = wire.NewRegistry(e.revision)
	e.decoder.SetMaxFrameSize(0)

	start := wire.ConnectionStart{
		VersionMajor: 0,
		VersionMinor: hdr.Minor,
		ServerProperties: wire.Table{
			"product":                              e.cfg.Product,
			"version":                              e.cfg.ProductVersion,
			"qpid.build":                            e.cfg.BuildLabel,
			"qpid.instance_name":                    e.cfg.InstanceName,
			"qpid.close_when_no_route":              e.cfg.CloseWhenNoRoute,
			"qpid.message_compression_supported":    e.cfg.MessageCompressionEnabled,
			"qpid.confirmed_publish_supported":       true,
			"qpid.virtualhost_properties_supported": e.cfg.VirtualhostPropertiesNodeEnabled,
		},
		Mechanisms: sasl.OfferedMechanisms,
		Locales:    []byte("en_US"),
	}

	if err := e.sendMethod(0, start); err != nil {
		return err
	}
	e.state = StateAwaitStartOk
	return nil
}

// handleVersionMismatch replies with the broker's supported protocol
// header and closes, per scenario H2.
func (e *Engine) handleVersionMismatch() error {
	var buf buffer.Buffer
	wire.WriteProtocolHeader(&buf, wire.ProtocolHeader{ProtocolID: 0, Major: 0, Minor: 9, Revision: 1})
	_ = e.sender.Send(buf.Bytes())
	e.state = StateClosed
	return errors.New("broker: unsupported protocol version")
}

func (e *Engine) fatalDecodeError(err error) error {
	return e.closeConnection(WrapConnectionError(err, ReplySyntaxError, e.currentClassID, e.currentMethodID, "framing error"))
}

// sendMethod encodes m as a method frame on ch and writes it via Sender.
// Connection.Close and Close-Ok carry revision-dependent method ids that
// the method value itself does not know, so they are resolved here.
func (e *Engine) sendMethod(ch uint16, m wire.Method) error {
	classID, methodID := m.ClassID(), m.MethodID()
	switch m.(type) {
	case wire.ConnectionClose:
		methodID, _ = wire.ConnectionCloseMethodIDs(e.revision)
	case wire.ConnectionCloseOk:
		_, methodID = wire.ConnectionCloseMethodIDs(e.revision)
	}
	f, err := wire.EncodeMethodFrame(ch, classID, methodID, m)
	if err != nil {
		return err
	}
	var buf buffer.Buffer
	wire.WriteFrame(&buf, f)
	e.lastWriteAt = time.Now()
	return e.sender.Send(buf.Bytes())
}

// closeConnection sends Connection.Close for err and marks the connection
// closed. It is the single path for every connection-fatal error.
func (e *Engine) closeConnection(err AMQPError) error {
	if !e.orderlyClose.CompareAndSwap(false, true) {
		return err
	}

	if err.Scope() != ScopeTransport {
		closeMethod := wire.ConnectionClose{
			ReplyCode: uint16(err.Code()),
			ReplyText: err.Error(),
			ClassID:   err.ClassID(),
			MethodID:  err.MethodID(),
		}
		_ = e.sendMethod(0, closeMethod)
	}

	e.channels.ForEach(func(_ uint16, ch channel.Channel) {
		ch.Close(err, err.Error())
	})
	e.state = StateClosed
	e.releaseAdmission()
	if e.log != nil {
		if err.Scope() == ScopeTransport {
			ConnectionDropped(e.log, e.remoteAddr, err)
		} else {
			ConnectionClose(e.log, e.remoteAddr, err.Code(), err.Error())
		}
	}
	return err
}

// releaseAdmission returns this connection's slot to the port's admission
// counter exactly once, on whichever teardown path runs first.
func (e *Engine) releaseAdmission() {
	if e.admission != nil {
		e.admission.Decrement()
	}
}
