// Package gateway sends authenticated requests and recovers from an expired access
// token transparently.
//
// # Request flow
//
//  1. The current access token is attached as a bearer credential.
//  2. The request is dispatched once.
//  3. On 401, when a refresh token is held, the request is replayed exactly once with
//     a renewed access token. Renewal goes through the shared refresher, so a burst of
//     401s produces a single exchange. A caller that finds the token already renewed by
//     someone else replays with it directly.
//  4. A second 401 is returned to the caller unchanged.
//
// # Bodies
//
// A [Payload] declares its own content type ([Multipart], [Raw]) and is never labeled
// JSON. Byte slices, strings and readers are sent verbatim. Any other value is encoded
// with encoding/json. A JSON content type is added only when the body is not a Payload
// and the caller set none.
package gateway
