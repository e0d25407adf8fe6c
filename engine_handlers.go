package broker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qpid-connengine/broker/internal/channel"
	"github.com/qpid-connengine/broker/internal/sasl"
	"github.com/qpid-connengine/broker/internal/wire"
)

// EngineHandle is the small, non-owning capability passed to each Channel
// at construction, per the design note resolving the cyclic
// connection/channel reference: a channel may send replies and read a
// handful of connection-level facts without holding a reference back into
// the Engine's full state.
type EngineHandle interface {
	SendMethod(ch uint16, m wire.Method) error
	MaxFrameSize() uint32
	SendQueueDeleteOkRegardless() bool
	ScheduleChannel(id uint16)
}

// ChannelFactory builds the business-logic Channel for a newly opened
// channel id. The engine supplies an EngineHandle rather than itself.
type ChannelFactory func(id uint16, handle EngineHandle) channel.Channel

type engineHandle struct{ e *Engine }

func (h engineHandle) SendMethod(ch uint16, m wire.Method) error { return h.e.sendMethod(ch, m) }
func (h engineHandle) MaxFrameSize() uint32                      { return h.e.maxFrameSize }
func (h engineHandle) SendQueueDeleteOkRegardless() bool         { return h.e.sendQueueDeleteOkRegardless }
func (h engineHandle) ScheduleChannel(id uint16)                 { h.e.work.ScheduleChannel(id) }

// dispatchConnectionMethod handles every class-10 method, the connection
// state machine's own transitions (§4.3). Any method not valid for the
// current state closes the connection with COMMAND_INVALID.
func (e *Engine) dispatchConnectionMethod(methodID uint16, m wire.Method) error {
	closeID, closeOkID := wire.ConnectionCloseMethodIDs(e.revision)

	switch {
	case methodID == closeID:
		return e.handleConnectionClose(m.(wire.ConnectionClose))
	case methodID == closeOkID:
		e.state = StateClosed
		return nil
	}

	switch e.state {
	case StateAwaitStartOk:
		if methodID != wire.MethodConnectionStartOk {
			return e.commandInvalid()
		}
		return e.handleStartOk(m.(wire.ConnectionStartOk))

	case StateAwaitSecureOk:
		if methodID != wire.MethodConnectionSecureOk {
			return e.commandInvalid()
		}
		return e.handleSecureOk(m.(wire.ConnectionSecureOk))

	case StateAwaitTuneOk:
		if methodID != wire.MethodConnectionTuneOk {
			return e.commandInvalid()
		}
		return e.handleTuneOk(m.(wire.ConnectionTuneOk))

	case StateAwaitOpen:
		if methodID != wire.MethodConnectionOpen {
			return e.commandInvalid()
		}
		return e.handleOpen(m.(wire.ConnectionOpen))

	default:
		return e.commandInvalid()
	}
}

func (e *Engine) commandInvalid() error {
	return e.closeConnection(NewConnectionError(ReplyCommandInvalid, e.currentClassID, e.currentMethodID, "Command Invalid"))
}

// handleStartOk creates the SASL context, authenticates the initial
// response, and applies the qpid-client Queue.Delete-Ok workaround (§4.3).
func (e *Engine) handleStartOk(m wire.ConnectionStartOk) error {
	e.applyClientProperties(m.ClientProperties)

	ctx, err := sasl.NewContext(m.Mechanism)
	if err != nil {
		return e.closeConnection(WrapConnectionError(err, ReplyConnectionForced, e.currentClassID, e.currentMethodID, "unsupported SASL mechanism"))
	}
	e.saslCtx = ctx

	return e.authenticate(m.Response)
}

// handleSecureOk continues an in-progress SASL exchange. This engine's
// single mechanism (PLAIN) never issues a challenge, so this path exists
// for protocol completeness but is not reachable in normal operation.
func (e *Engine) handleSecureOk(m wire.ConnectionSecureOk) error {
	return e.authenticate(m.Response)
}

func (e *Engine) authenticate(response []byte) error {
	verify := func(authzid, authcid, password string) (string, bool) {
		if e.authn == nil {
			return "", false
		}
		return e.authn(sasl.MechanismPlain, authzid, authcid, password)
	}

	outcome, err := e.saslCtx.Authenticate(response, verify)
	if err != nil {
		e.disposeSasl()
		return e.closeConnection(WrapConnectionError(err, ReplyConnectionForced, e.currentClassID, e.currentMethodID, "malformed SASL response"))
	}

	switch outcome {
	case sasl.OutcomeSuccess:
		e.authorizedSubject = e.saslCtx.AuthorizedSubject()
		e.disposeSasl()
		return e.sendTune()
	case sasl.OutcomeFailure:
		e.disposeSasl()
		return e.closeConnection(NewConnectionError(ReplyAccessRefused, e.currentClassID, e.currentMethodID, "Authentication failed"))
	default: // OutcomeContinue
		e.state = StateAwaitSecureOk
		return nil
	}
}

func (e *Engine) disposeSasl() {
	if e.saslCtx != nil {
		e.saslCtx.Dispose()
	}
}

func (e *Engine) applyClientProperties(props wire.Table) {
	product, _ := props["product"].(string)
	version, _ := props["version"].(string)
	compression, _ := props["qpid.message_compression_supported"].(bool)
	e.clientProps = clientProperties{product: product, version: version, compressionSupported: compression}

	lower := strings.ToLower(product)
	if lower != "qpid" && lower != "unknown" {
		return
	}
	if len(e.cfg.SendQueueDeleteOkClientProduct) > 0 {
		matched := false
		for _, p := range e.cfg.SendQueueDeleteOkClientProduct {
			if strings.EqualFold(p, product) {
				matched = true
				break
			}
		}
		if !matched {
			return
		}
	}
	if e.cfg.SendQueueDeleteOkClientVersionPredicate == nil || e.cfg.SendQueueDeleteOkClientVersionPredicate(version) {
		e.sendQueueDeleteOkRegardless = true
	}
}

func (e *Engine) sendTune() error {
	e.defaultFrameMax = e.cfg.NetworkBufferSize - wire.FrameOverhead
	tune := wire.ConnectionTune{
		ChannelMax: e.cfg.SessionCountLimit,
		FrameMax:   e.defaultFrameMax,
		Heartbeat:  uint16(e.cfg.HeartbeatDelay / 1e9),
	}
	if err := e.sendMethod(0, tune); err != nil {
		return err
	}
	e.state = StateAwaitTuneOk
	return nil
}

// handleTuneOk validates the client's counter-proposal per §4.3's Tune-Ok
// validation rules, scenario T1: frame_max must land within
// [MIN_FRAME_SIZE, broker_frame_max]. A client-proposed 0 is taken to mean
// "no additional constraint from this side", per protocol convention, and
// is clamped to the broker's own proposed frame_max rather than accepted
// verbatim — accepting it verbatim would disable this engine's own
// frame-size enforcement.
func (e *Engine) handleTuneOk(m wire.ConnectionTuneOk) error {
	if m.FrameMax != 0 && m.FrameMax < MinFrameSize {
		return e.closeConnection(NewConnectionError(ReplySyntaxError, e.currentClassID, e.currentMethodID,
			"Attempt to set max frame size to %d which is smaller than the specification defined minimum: %d", m.FrameMax, MinFrameSize))
	}
	if m.FrameMax > e.defaultFrameMax {
		return e.closeConnection(NewConnectionError(ReplySyntaxError, e.currentClassID, e.currentMethodID,
			"Attempt to set max frame size to %d which is larger than the broker's proposed maximum: %d", m.FrameMax, e.defaultFrameMax))
	}

	frameMax := m.FrameMax
	if frameMax == 0 {
		frameMax = e.defaultFrameMax
	}

	channelMax := m.ChannelMax
	if channelMax == 0 {
		channelMax = 0xFFFF
	}

	e.maxFrameSize = frameMax
	e.maxChannels = channelMax
	e.heartbeatDelay = secondsToDuration(m.Heartbeat)

	e.decoder.SetMaxFrameSize(e.maxFrameSize)
	e.channels.SetMaxChannel(e.maxChannels)

	e.state = StateAwaitOpen
	return nil
}

// handleOpen resolves the requested virtual host and authorises the
// connection, per §4.3's Open handling.
func (e *Engine) handleOpen(m wire.ConnectionOpen) error {
	name := strings.TrimPrefix(m.VirtualHost, "/")

	if e.vhosts == nil {
		return e.closeConnection(NewConnectionError(ReplyNotFound, e.currentClassID, e.currentMethodID, "Unknown virtual host: %q", m.VirtualHost))
	}
	vh, ok := e.vhosts(name)
	if !ok {
		return e.closeConnection(NewConnectionError(ReplyNotFound, e.currentClassID, e.currentMethodID, "Unknown virtual host: %q", m.VirtualHost))
	}
	if !vh.IsActive() {
		return e.closeConnection(NewConnectionError(ReplyConnectionForced, e.currentClassID, e.currentMethodID, "Virtual host %q is not active", name))
	}
	if !vh.AuthoriseCreateConnection(e.authorizedSubject) {
		return e.closeConnection(NewConnectionError(ReplyAccessRefused, e.currentClassID, e.currentMethodID, "Connection refused to virtual host %q", name))
	}

	e.virtualHost = vh
	if err := e.sendMethod(0, wire.ConnectionOpenOk{}); err != nil {
		return err
	}
	e.state = StateOpen
	if e.log != nil {
		ConnectionOpen(e.log, e.remoteAddr, name)
	}
	return nil
}

// handleConnectionClose handles a peer-initiated orderly close: it is
// valid from any state per §4.3's "any" row.
func (e *Engine) handleConnectionClose(wire.ConnectionClose) error {
	if !e.orderlyClose.CompareAndSwap(false, true) {
		return nil
	}
	e.channels.ForEach(func(_ uint16, ch channel.Channel) {
		ch.Close(nil, "connection closing")
	})
	if err := e.sendMethod(0, wire.ConnectionCloseOk{}); err != nil {
		return err
	}
	e.state = StateClosed
	e.releaseAdmission()
	if e.log != nil {
		ConnectionClose(e.log, e.remoteAddr, 200, "client initiated close")
	}
	return nil
}

func secondsToDuration(s uint16) (d time.Duration) {
	return time.Duration(s) * time.Second
}

// dispatchChannelMethod handles every class-20 method: channel open/close
// bookkeeping lives in the engine (§4.4), never in the business-logic
// Channel object.
func (e *Engine) dispatchChannelMethod(chID uint16, methodID uint16, m wire.Method) error {
	switch methodID {
	case wire.MethodChannelOpen:
		return e.handleChannelOpen(chID)
	case wire.MethodChannelClose:
		return e.handleChannelClose(chID, m.(wire.ChannelClose))
	case wire.MethodChannelCloseOk:
		e.channels.CloseOk(chID)
		return nil
	case wire.MethodChannelFlow:
		return e.handleChannelFlow(chID, m.(wire.ChannelFlow))
	case wire.MethodChannelFlowOk:
		return nil
	default:
		return e.commandInvalid()
	}
}

func (e *Engine) handleChannelOpen(chID uint16) error {
	if e.channelFactory == nil {
		return e.closeConnection(NewConnectionError(ReplyInternalError, wire.ClassChannel, wire.MethodChannelOpen, "no channel factory configured"))
	}
	ch := e.channelFactory(chID, engineHandle{e})

	if err := e.channels.Open(chID, ch); err != nil {
		return e.closeConnection(NewConnectionError(ReplyChannelError, wire.ClassChannel, wire.MethodChannelOpen, "%s", channelOpenErrorText(err, chID, e.maxChannels)))
	}
	return e.sendMethod(chID, wire.ChannelOpenOk{})
}

func channelOpenErrorText(err error, id, maxChannels uint16) string {
	switch {
	case errors.Is(err, channel.ErrChannelExists):
		return fmt.Sprintf("Channel %d already exists", id)
	case errors.Is(err, channel.ErrChannelAwaitingClose):
		return fmt.Sprintf("Channel %d already exists", id)
	case errors.Is(err, channel.ErrChannelIDTooLarge):
		return fmt.Sprintf("Channel %d cannot be created as the max allowed channel id is %d", id, maxChannels)
	default:
		return err.Error()
	}
}

func (e *Engine) handleChannelClose(chID uint16, m wire.ChannelClose) error {
	if ch, ok := e.channels.Get(chID); ok {
		ch.Close(nil, m.ReplyText)
	}
	e.channels.MarkAwaitingCloseOk(chID)
	return e.sendMethod(chID, wire.ChannelCloseOk{})
}

func (e *Engine) handleChannelFlow(chID uint16, m wire.ChannelFlow) error {
	if ch, ok := e.channels.Get(chID); ok {
		if m.Active {
			ch.Unblock()
		} else {
			ch.Block()
		}
	}
	return e.sendMethod(chID, wire.ChannelFlowOk{Active: m.Active})
}
