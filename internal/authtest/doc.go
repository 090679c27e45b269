// Package authtest runs an in-process authentication server for tests and load runs.
//
// The server speaks the wire contract the client expects: JSON login, registration and
// refresh endpoints issuing HS256 access tokens with an exp claim and opaque rotating
// refresh tokens, a bearer-protected /auth/me, and bearer-protected /api/ routes that
// echo what they received. Failure modes for the refresh endpoint are switchable at
// runtime, and every exchange is counted.
package authtest
