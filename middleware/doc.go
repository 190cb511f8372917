// Package middleware adapts Engine validation to net/http.
//
// # Guards
//
//   - [RequireSession]: page guard. Reads the session cookie or a bearer
//     header and answers 303 See Other to the login path on failure.
//   - [RequireBearer]: API guard. Reads a bearer header and answers 401.
//
// Both inject the validated session into the request context, where
// [SessionFromContext] finds it.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Tell the client why a session was rejected.
package middleware
