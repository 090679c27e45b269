// Package goAuthClient keeps a user's access/refresh token pair alive on the client side
// and routes authenticated HTTP calls through it.
//
// The package wires four collaborators around one owned token store:
//
//   - [tokenstore.Store] holds the pair and mirrors it into durable storage.
//   - [refresh.Coordinator] performs renewals, one at a time, for every caller.
//   - [gateway.Gateway] attaches the access token and replays a request once after a 401.
//   - [scheduler.Scheduler] renews ahead of expiry on a one-hour cadence.
//
// Construct a [Client] through [Builder]:
//
//	client, err := goAuthClient.New().
//		WithConfig(cfg).
//		WithStorage(tokenstore.NewFileStorage(path)).
//		Build()
//
// # What this package must NOT do
//
//   - Verify token signatures; expiry is decoded only to time renewals.
//   - Log token values.
//   - Retry a denied refresh.
package goAuthClient
