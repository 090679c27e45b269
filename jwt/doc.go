// Package jwt reads expiry metadata out of server-issued access tokens without
// verifying their signature.
//
// # Trust boundary
//
// The server is the sole verifier of access tokens. The client decodes claims only to
// schedule renewal; decoded values must never feed an authorization decision.
//
// # What this package must NOT do
//
//   - Verify signatures or hold signing keys.
//   - Cache decoded claims: the token is the source of truth and may change between checks.
//   - Panic or return errors on malformed input. Malformed tokens decode as absent.
package jwt
