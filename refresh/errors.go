package refresh

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRefreshToken is returned when no refresh token is held. It is the normal
	// logged-out condition, not a failure of the session.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrRefreshDenied is returned when the server rejected the refresh token.
	ErrRefreshDenied = errors.New("refresh denied")
	// ErrMalformedResponse is returned when the refresh response is not a credential
	// payload. It matches ErrRefreshDenied.
	ErrMalformedResponse = fmt.Errorf("%w: malformed refresh response", ErrRefreshDenied)
	// ErrTransport wraps network-level failures.
	ErrTransport = errors.New("transport error")
	// ErrSessionChanged is returned when the session was replaced or logged out while
	// the exchange was in flight; the exchanged pair is discarded.
	ErrSessionChanged = errors.New("session changed during refresh")
)
