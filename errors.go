package goAuthClient

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goAuthClient/refresh"
)

var (
	// ErrNoRefreshToken is returned by Refresh when no refresh token is held.
	ErrNoRefreshToken = refresh.ErrNoRefreshToken
	// ErrRefreshDenied is returned when the server rejected the refresh token. The
	// session has been cleared.
	ErrRefreshDenied = refresh.ErrRefreshDenied
	// ErrMalformedResponse is returned when the refresh endpoint answered with something
	// other than a credential payload. It matches ErrRefreshDenied.
	ErrMalformedResponse = refresh.ErrMalformedResponse
	// ErrTransport wraps network failures. The session is kept.
	ErrTransport = refresh.ErrTransport
	// ErrSessionChanged is returned when a refresh finished after the session was
	// replaced or logged out.
	ErrSessionChanged = refresh.ErrSessionChanged
	// ErrClientClosed is returned by every network operation after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrBuilderUsed is returned by a second Build on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status int
	// Detail is the server's detail or message field, or a generic fallback.
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
}
