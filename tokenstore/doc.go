// Package tokenstore holds the client's credential pair (access token + refresh token)
// and mirrors it into durable storage.
//
// # Consistency
//
// The pair is always replaced as a unit. Readers never observe a new access token next
// to a stale refresh token. Writers are serialized, and subscribers registered through
// [Store.Subscribe] are notified synchronously, in mutation order, before the mutating
// call returns.
//
// # Durable storage
//
// [Storage] is a set of named string slots. Writes to it are best-effort: a failing
// backend is logged and counted but never prevents the in-memory pair from changing, so
// authentication keeps working as a session-scoped fallback. Backends: [MemoryStorage],
// [FileStorage] and [RedisStorage].
//
// # What this package must NOT do
//
//   - Decode or validate tokens.
//   - Perform network calls other than through a configured [Storage].
//   - Log token values.
package tokenstore
