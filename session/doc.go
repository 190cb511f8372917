// Package session keeps the server-side revocation state that lets a signed
// session token be invalidated before its own expiry.
//
// Two kinds of entries live in Redis:
//
//   - a per-token marker keyed by the token id (jti), written on logout and
//     expiring when the token itself would have expired;
//   - a per-user cutoff, written on logout-everywhere. Every token for that
//     user issued at or before the cutoff second is treated as revoked.
//
// # Architecture boundaries
//
// This package does not parse tokens or decide authentication outcomes. The
// Engine supplies token ids, subjects and timestamps and interprets the answer.
//
// # What this package must NOT do
//
//   - Import oroauth, jwt, or password (no upward imports).
//   - Store token strings or any other bearer secret.
package session
