// Package oroauth authenticates users by email or username and password and
// carries the result between requests as a signed, time-bounded session token.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Flow
//
//   - [Engine.Authenticate] trims the identifier, routes it to the
//     [IdentityStore] as an email (contains '@') or a username, verifies the
//     password against the stored hash and issues a [Session].
//   - [Engine.Validate] verifies a token's signature and expiry, and consults
//     the revocation list when enabled. Every failure is the same
//     [ErrSessionInvalid].
//   - [Engine.RequireSession] turns that failure into a [RedirectSignal].
//
// # Architecture boundaries
//
// oroauth is the public surface. It exposes [Engine], [Builder], [Config] and value
// types. Token signing lives in jwt, hashing in password, the revocation list in
// session, and HTTP adaptation in middleware.
//
// # What this package must NOT do
//
//   - Return or log plaintext passwords or stored hashes.
//   - Distinguish validation failures to callers.
//   - Report an identity store outage as an unknown identifier.
package oroauth
