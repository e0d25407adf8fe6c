package broker

import (
	"github.com/sirupsen/logrus"
)

// events wraps logrus with one function per symbolic event-log line this
// engine emits, so call sites at the engine/admission boundary read as the
// symbolic name rather than a raw logrus.WithFields call.

// ConnectionOpen logs CONNECTION.OPEN once a connection reaches the OPEN
// state with an authorized vhost.
func ConnectionOpen(log logrus.FieldLogger, remoteAddr, vhost string) {
	log.WithFields(logrus.Fields{
		"event":  "CONNECTION.OPEN",
		"remote": remoteAddr,
		"vhost":  vhost,
	}).Info("connection opened")
}

// ConnectionClose logs CONNECTION.CLOSE for an orderly close handshake.
func ConnectionClose(log logrus.FieldLogger, remoteAddr string, code ReplyCode, reason string) {
	log.WithFields(logrus.Fields{
		"event":  "CONNECTION.CLOSE",
		"remote": remoteAddr,
		"code":   code,
		"reason": reason,
	}).Info("connection closed")
}

// ConnectionDropped logs CONNECTION.DROPPED for a transport-scoped teardown
// that skipped the close handshake.
func ConnectionDropped(log logrus.FieldLogger, remoteAddr string, cause error) {
	log.WithFields(logrus.Fields{
		"event":  "CONNECTION.DROPPED",
		"remote": remoteAddr,
		"cause":  cause,
	}).Warn("connection dropped")
}

// ConnectionIdleClose logs CONNECTION.IDLE_CLOSE when a read-idle timeout
// forces the network closed.
func ConnectionIdleClose(log logrus.FieldLogger, remoteAddr string, idleFor string) {
	log.WithFields(logrus.Fields{
		"event":    "CONNECTION.IDLE_CLOSE",
		"remote":   remoteAddr,
		"idle_for": idleFor,
	}).Warn("connection idle, closing")
}

// PortConnectionCountWarn logs PORT.CONNECTION_COUNT_WARN when the
// connection-admission hysteresis warning arms.
func PortConnectionCountWarn(log logrus.FieldLogger, current, warnPercent, max int) {
	log.WithFields(logrus.Fields{
		"event":        "PORT.CONNECTION_COUNT_WARN",
		"current":      current,
		"warn_percent": warnPercent,
		"max":          max,
	}).Warn("connection count approaching limit")
}

// PortConnectionRejectedClosed logs PORT.CONNECTION_REJECTED_CLOSED when a
// connection attempt arrives while the port is draining.
func PortConnectionRejectedClosed(log logrus.FieldLogger, remoteAddr string) {
	log.WithFields(logrus.Fields{
		"event":  "PORT.CONNECTION_REJECTED_CLOSED",
		"remote": remoteAddr,
	}).Info("connection rejected, port closing")
}

// PortConnectionRejectedTooMany logs PORT.CONNECTION_REJECTED_TOO_MANY when
// admission refuses a connection because the port is at its bound.
func PortConnectionRejectedTooMany(log logrus.FieldLogger, remoteAddr string, max int) {
	log.WithFields(logrus.Fields{
		"event":  "PORT.CONNECTION_REJECTED_TOO_MANY",
		"remote": remoteAddr,
		"max":    max,
	}).Warn("connection rejected, too many open connections")
}

// BrokerListening logs BROKER.LISTENING when a port's accept loop binds.
func BrokerListening(log logrus.FieldLogger, transport string, port int) {
	log.WithFields(logrus.Fields{
		"event":     "BROKER.LISTENING",
		"transport": transport,
		"port":      port,
	}).Info("listening")
}

// BrokerShuttingDown logs BROKER.SHUTTING_DOWN when a port begins draining.
func BrokerShuttingDown(log logrus.FieldLogger, transport string, port int) {
	log.WithFields(logrus.Fields{
		"event":     "BROKER.SHUTTING_DOWN",
		"transport": transport,
		"port":      port,
	}).Info("shutting down")
}
