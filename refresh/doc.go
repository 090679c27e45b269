// Package refresh exchanges the client's refresh token for a new credential pair and
// collapses concurrent renewal attempts into one.
//
// # Single flight
//
// [Coordinator.Refresh] is the only place a renewal is started. While an exchange is in
// flight every further caller joins it and receives the same outcome, so N concurrent
// callers cause exactly one network exchange. The exchange runs on a context detached
// from the first caller: a caller that gives up stops waiting, the exchange does not.
//
// # Failure policy
//
//   - [ErrNoRefreshToken]: nothing to renew with; no network call, no side effects.
//   - [ErrRefreshDenied] / [ErrMalformedResponse]: terminal. The session is cleared and
//     the [Navigator] is asked once to show the login surface. Never retried.
//   - [ErrTransport]: propagated; the session is kept so a transient network failure
//     does not force a logout.
//
// # What this package must NOT do
//
//   - Retry a denied refresh.
//   - Impose its own timeout; the configured http.Client bounds the exchange.
//   - Log token values.
package refresh
