package sasl

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func alwaysAccept(_, authcid, password string) (string, bool) {
	if authcid == "guest" && password == "guest" {
		return authcid, true
	}
	return "", false
}

func TestNewContextRejectsUnsupportedMechanism(t *testing.T) {
	_, err := NewContext("GSSAPI")
	require.ErrorIs(t, err, ErrUnsupportedMechanism)
}

func TestAuthenticateSuccess(t *testing.T) {
	c, err := NewContext(MechanismPlain)
	require.NoError(t, err)

	outcome, err := c.Authenticate([]byte("\x00guest\x00guest"), alwaysAccept)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, outcome)
	require.Equal(t, "guest", c.AuthorizedSubject())
}

func TestAuthenticateFailure(t *testing.T) {
	c, err := NewContext(MechanismPlain)
	require.NoError(t, err)

	outcome, err := c.Authenticate([]byte("\x00guest\x00wrong"), alwaysAccept)
	require.NoError(t, err)
	require.Equal(t, OutcomeFailure, outcome)
	require.Empty(t, c.AuthorizedSubject())
}

func TestAuthenticateMalformedResponse(t *testing.T) {
	c, err := NewContext(MechanismPlain)
	require.NoError(t, err)

	_, err = c.Authenticate([]byte("not-a-plain-response"), alwaysAccept)
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDisposeIsIdempotentAndConcurrencySafe(t *testing.T) {
	c, err := NewContext(MechanismPlain)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Dispose()
		}()
	}
	wg.Wait()
	c.Dispose() // a later call from the teardown path must still be a no-op
}
