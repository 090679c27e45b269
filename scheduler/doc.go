// Package scheduler renews the credential pair ahead of access token expiry.
//
// A [Scheduler] is either [Stopped] or [Running]. Start performs one check
// immediately and then one per interval (1h by default). A check asks the shared
// refresher for a renewal when the access token expires within the threshold (24h by
// default) or when its expiry cannot be decoded. Renewals run asynchronously and rely on
// the refresher's single-flight, so overlapping checks never produce a second exchange.
//
// When a tick finds no refresh token the session has ended elsewhere and the scheduler
// stops itself.
package scheduler
