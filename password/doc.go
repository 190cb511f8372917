// Package password implements salted, deliberately slow password hashing and
// constant-time verification.
//
// # Output format
//
// New hashes use bcrypt by default:
//
//	$2a$<cost>$<22-char salt><31-char hash>
//
// or Argon2id in PHC string format when configured:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.Verify] accepts either encoding regardless of which one new hashes
// use, and [Hasher.NeedsUpgrade] flags stored hashes that should be re-hashed
// after the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other oroauth package.
//   - Log plaintext passwords.
package password
