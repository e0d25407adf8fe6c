package broker

import (
	"github.com/sirupsen/logrus"

	"github.com/qpid-connengine/broker/internal/admission"
)

// PortAdmission wires internal/admission's counter/hysteresis primitive to
// the port's accept loop and symbolic event log (§4.7, scenario A1). One
// PortAdmission is shared by every connection accepted on a given port.
type PortAdmission struct {
	core        *admission.Admission
	log         logrus.FieldLogger
	max         int
	warnPercent int
}

// NewPortAdmission returns a PortAdmission bounding a port to max open
// connections (0 disables the bound), warning once the count crosses
// warnPercent% of max.
func NewPortAdmission(max, warnPercent int, log logrus.FieldLogger) *PortAdmission {
	return &PortAdmission{
		core:        admission.New(max, warnPercent),
		log:         log,
		max:         max,
		warnPercent: warnPercent,
	}
}

// CanAccept decides whether a newly-dialled connection from remoteAddr may
// proceed to the handshake, logging the rejection reason when it cannot.
func (p *PortAdmission) CanAccept(remoteAddr string) bool {
	if p.core.CanAccept() {
		return true
	}
	if p.core.IsClosing() {
		p.RejectClosing(remoteAddr)
	} else if p.log != nil {
		PortConnectionRejectedTooMany(p.log, remoteAddr, p.max)
	}
	return false
}

// Core returns the underlying per-port counter, for handing to NewEngine so
// the connection's own teardown path can release its slot directly.
func (p *PortAdmission) Core() *admission.Admission {
	return p.core
}

// Accept records an admitted connection, logging the hysteresis warning the
// first time the count crosses its upper threshold.
func (p *PortAdmission) Accept() {
	if p.core.Increment() && p.log != nil {
		PortConnectionCountWarn(p.log, int(p.core.Count()), p.warnPercent, p.max)
	}
}

// Release records a connection's departure, freeing its slot and, if the
// port is draining, signalling drain completion once the count reaches
// zero.
func (p *PortAdmission) Release() {
	p.core.Decrement()
}

// StartClosing begins draining the port: CanAccept refuses every
// subsequent connection, regardless of count.
func (p *PortAdmission) StartClosing() {
	p.core.StartClosing()
}

// Drained signals once every admitted connection has been Released after
// StartClosing, the "no connections remain" handoff the port's shutdown
// sequence waits on.
func (p *PortAdmission) Drained() <-chan struct{} {
	return p.core.Drained()
}

// RejectClosing logs a connection attempt refused because the port is
// already draining, distinct from the too-many-connections rejection.
func (p *PortAdmission) RejectClosing(remoteAddr string) {
	if p.log != nil {
		PortConnectionRejectedClosed(p.log, remoteAddr)
	}
}
