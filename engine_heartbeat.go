package broker

import (
	"time"

	"github.com/qpid-connengine/broker/internal/buffer"
	"github.com/qpid-connengine/broker/internal/wire"
)

// Tick is driven periodically by the transport's idle/heartbeat ticker (the
// teacher's connReader/keepalive loop, generalised). It enforces the
// read-idle close and write-idle heartbeat rules of §5, and sweeps channels
// that have sat in the closing table past CloseOkTimeout.
//
// now is passed in rather than read from time.Now so the timeout math is
// exercised deterministically in tests.
func (e *Engine) Tick(now time.Time) error {
	if e.state == StateClosed {
		return nil
	}

	if e.heartbeatDelay <= 0 {
		return e.sweepClosingChannels(now)
	}

	readIdleLimit := e.heartbeatDelay * HeartbeatTimeoutFactor
	if !e.lastReadAt.IsZero() && now.Sub(e.lastReadAt) > readIdleLimit {
		return e.closeIdleConnection(now)
	}

	if !e.lastWriteAt.IsZero() && now.Sub(e.lastWriteAt) >= e.heartbeatDelay {
		if err := e.sendHeartbeat(now); err != nil {
			return err
		}
	}

	return e.sweepClosingChannels(now)
}

func (e *Engine) sendHeartbeat(now time.Time) error {
	var buf buffer.Buffer
	wire.WriteFrame(&buf, wire.Frame{Type: wire.FrameHeartbeat, Channel: 0})
	if err := e.sender.Send(buf.Bytes()); err != nil {
		return err
	}
	e.lastWriteAt = now
	return nil
}

// closeIdleConnection forces the network down with IDLE_CLOSE (§5): no
// Connection.Close handshake is attempted, since the peer has already
// proven unresponsive.
func (e *Engine) closeIdleConnection(now time.Time) error {
	if !e.orderlyClose.CompareAndSwap(false, true) {
		return nil
	}
	e.state = StateClosed
	e.releaseAdmission()
	if e.log != nil {
		ConnectionIdleClose(e.log, e.remoteAddr, now.Sub(e.lastReadAt).String())
	}
	return errIdleClose
}

// sweepClosingChannels force-closes any channel that has outstayed
// CloseOkTimeout in the closing table (§4.9), by tearing down the whole
// connection — a peer that never answers Channel.Close-Ok is no longer
// trustworthy to keep framing with.
func (e *Engine) sweepClosingChannels(now time.Time) error {
	timedOut := e.channels.TimedOutClosing(CloseOkTimeout)
	if len(timedOut) == 0 {
		return nil
	}
	return e.closeConnection(NewTransportError(ReplyInternalError, 0, 0,
		"channel %d did not acknowledge Close within %s", timedOut[0], CloseOkTimeout))
}

var errIdleClose = &protocolError{
	code:   ReplyInternalError,
	scope:  ScopeTransport,
	reason: "idle timeout",
}
