package broker

import (
	"fmt"

	"github.com/pkg/errors"
)

// ReplyCode is an AMQP reply-code carried on Connection.Close/Channel.Close.
type ReplyCode uint16

// Reply codes this engine produces (AMQP 0-9-1 §constants).
const (
	ReplyConnectionForced ReplyCode = 320
	ReplyAccessRefused    ReplyCode = 403
	ReplyNotFound         ReplyCode = 404
	ReplySyntaxError      ReplyCode = 502
	ReplyCommandInvalid   ReplyCode = 503
	ReplyChannelError     ReplyCode = 504
	ReplyResourceError    ReplyCode = 506
	ReplyNotAllowed       ReplyCode = 530
	ReplyInternalError    ReplyCode = 541
)

// Scope classifies where an error terminates: the whole connection, a
// single channel, or neither (a transport-level failure torn down without
// an orderly handshake).
type Scope int

const (
	// ScopeConnection errors end the connection via Connection.Close.
	ScopeConnection Scope = iota
	// ScopeChannel errors end one channel via Channel.Close.
	ScopeChannel
	// ScopeTransport errors drop the network directly, no handshake.
	ScopeTransport
)

// AMQPError is implemented by every error that is connection-fatal or
// channel-fatal, carrying the (code, class, method) triple the close
// method body requires. AsAMQPError recovers one from a chain of wrapped
// errors; errors.Cause does not, since protocolError reports its own wrapped
// cause (nil when there is none).
type AMQPError interface {
	error
	Code() ReplyCode
	Scope() Scope
	ClassID() uint16
	MethodID() uint16
}

// protocolError is the concrete AMQPError implementation. classID/methodID
// are the (current_class_id, current_method_id) recorded at dispatch time,
// per §4.2 — the method in flight when the failure was detected, not
// necessarily the method that is semantically "wrong".
type protocolError struct {
	code     ReplyCode
	scope    Scope
	classID  uint16
	methodID uint16
	reason   string
	cause    error
}

func (e *protocolError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.reason, e.cause)
	}
	return e.reason
}

func (e *protocolError) Cause() error      { return e.cause }
func (e *protocolError) Unwrap() error     { return e.cause }
func (e *protocolError) Code() ReplyCode   { return e.code }
func (e *protocolError) Scope() Scope      { return e.scope }
func (e *protocolError) ClassID() uint16   { return e.classID }
func (e *protocolError) MethodID() uint16  { return e.methodID }

// NewConnectionError builds a connection-fatal AMQPError tagged with the
// (class, method) in flight when it was raised.
func NewConnectionError(code ReplyCode, classID, methodID uint16, reason string, args ...interface{}) AMQPError {
	return &protocolError{
		code:     code,
		scope:    ScopeConnection,
		classID:  classID,
		methodID: methodID,
		reason:   fmt.Sprintf(reason, args...),
	}
}

// NewChannelError builds a channel-fatal AMQPError.
func NewChannelError(code ReplyCode, classID, methodID uint16, reason string, args ...interface{}) AMQPError {
	return &protocolError{
		code:     code,
		scope:    ScopeChannel,
		classID:  classID,
		methodID: methodID,
		reason:   fmt.Sprintf(reason, args...),
	}
}

// WrapConnectionError wraps cause as a connection-fatal AMQPError, keeping
// cause reachable through errors.Unwrap/errors.Cause.
func WrapConnectionError(cause error, code ReplyCode, classID, methodID uint16, reason string) AMQPError {
	return &protocolError{
		code:     code,
		scope:    ScopeConnection,
		classID:  classID,
		methodID: methodID,
		reason:   reason,
		cause:    cause,
	}
}

// NewTransportError builds an AMQPError tagged ScopeTransport: a forced
// teardown with no orderly Close/Close-Ok handshake, logged as
// CONNECTION.DROPPED rather than CONNECTION.CLOSE.
func NewTransportError(code ReplyCode, classID, methodID uint16, reason string, args ...interface{}) AMQPError {
	return &protocolError{
		code:     code,
		scope:    ScopeTransport,
		classID:  classID,
		methodID: methodID,
		reason:   fmt.Sprintf(reason, args...),
	}
}

// ErrUnknownChannel is a sentinel for an unknown channel id. The engine's
// "Unknown channel id: N" closes are built with NewConnectionError and do not
// wrap it.
var ErrUnknownChannel = errors.New("unknown channel")

// AsAMQPError unwraps err looking for an AMQPError, the way callers should
// decide whether a failure from deeper in the stack already carries a
// taxonomy code or needs one assigned at the dispatch boundary.
func AsAMQPError(err error) (AMQPError, bool) {
	var ae AMQPError
	for err != nil {
		if v, ok := err.(AMQPError); ok {
			ae = v
			return ae, true
		}
		type causer interface{ Cause() error }
		if c, ok := err.(causer); ok {
			err = c.Cause()
			continue
		}
		break
	}
	return nil, false
}
