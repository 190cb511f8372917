// Package jwt issues and verifies the signed session tokens that carry an
// authenticated identity between requests.
//
// Tokens carry the user id as "sub", the username as "username", plus "iat",
// "exp" and a random "jti". Expiry is an exclusive bound: a token is rejected
// at exactly its expiry instant.
package jwt
