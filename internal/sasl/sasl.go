// Package sasl implements the broker side of SASL authentication: mechanism
// negotiation and the PLAIN mechanism's initial-response decode, plus the
// once-only disposal the connection state machine's AWAIT_START_OK/
// AWAIT_SECURE_OK loop requires.
package sasl

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"
)

// MechanismPlain is the only SASL mechanism this broker offers.
const MechanismPlain = "PLAIN"

// OfferedMechanisms is the space-separated mechanism list advertised in
// Connection.Start.
var OfferedMechanisms = []byte(MechanismPlain)

// Outcome is the result of processing one authentication step.
type Outcome int

const (
	// OutcomeContinue means another Secure/Secure-Ok round trip is needed.
	// The PLAIN mechanism never produces this outcome; it exists for
	// mechanisms that challenge-response.
	OutcomeContinue Outcome = iota
	// OutcomeSuccess means the credentials verified; the caller should
	// transition to AWAIT_TUNE_OK.
	OutcomeSuccess
	// OutcomeFailure means the credentials were rejected; the caller
	// should close the connection with ACCESS_REFUSED.
	OutcomeFailure
)

// ErrUnsupportedMechanism is returned by NewContext when the client names a
// mechanism this broker does not offer.
var ErrUnsupportedMechanism = errors.New("sasl: unsupported mechanism")

// ErrMalformedResponse is returned when a PLAIN initial response does not
// contain the required NUL-separated triple.
var ErrMalformedResponse = errors.New("sasl: malformed PLAIN response")

// Verifier checks a decoded PLAIN identity against the broker's configured
// AuthenticationProvider, returning the authorized subject name on success.
type Verifier func(authzid, authcid, password string) (subject string, ok bool)

// Context is the per-connection SASL authentication state created on
// Connection.Start-Ok and torn down exactly once on terminal outcome.
// Disposal is compare-and-swap guarded (sync.Once), so a repeated Dispose
// for the same context has no further effect.
type Context struct {
	mechanism string

	disposeOnce sync.Once

	mu                sync.Mutex
	authorizedSubject string
}

// NewContext begins authentication for the named mechanism.
func NewContext(mechanism string) (*Context, error) {
	if mechanism != MechanismPlain {
		return nil, errors.Wrapf(ErrUnsupportedMechanism, "%q", mechanism)
	}
	return &Context{mechanism: mechanism}, nil
}

// Authenticate processes one SASL response. For PLAIN, the entire exchange
// completes on the initial response carried by Connection.Start-Ok, so
// Authenticate always returns OutcomeSuccess or OutcomeFailure, never
// OutcomeContinue.
func (c *Context) Authenticate(response []byte, verify Verifier) (Outcome, error) {
	authzid, authcid, password, err := decodePlain(response)
	if err != nil {
		return OutcomeFailure, err
	}

	subject, ok := verify(authzid, authcid, password)
	if !ok {
		return OutcomeFailure, nil
	}

	c.mu.Lock()
	c.authorizedSubject = subject
	c.mu.Unlock()
	return OutcomeSuccess, nil
}

// AuthorizedSubject returns the subject name recorded on successful
// authentication, or "" if authentication has not yet succeeded.
func (c *Context) AuthorizedSubject() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authorizedSubject
}

// Dispose releases the SASL context. Safe to call more than once, from
// more than one goroutine; only the first call has any effect.
func (c *Context) Dispose() {
	c.disposeOnce.Do(func() {})
}

// decodePlain splits a PLAIN initial response of the form
// "\0authzid\0authcid\0passwd" into its three fields.
func decodePlain(response []byte) (authzid, authcid, password string, err error) {
	parts := bytes.SplitN(response, []byte{0}, 3)
	if len(parts) != 3 {
		return "", "", "", ErrMalformedResponse
	}
	return string(parts[0]), string(parts[1]), string(parts[2]), nil
}
