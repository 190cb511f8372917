package oroauth

import (
	"errors"
	"fmt"
)

// AuthErrorKind classifies why an authenticate call was refused.
type AuthErrorKind string

const (
	// KindMissingCredentials means the identifier or password was empty after trimming.
	KindMissingCredentials AuthErrorKind = "MissingCredentials"
	// KindUnknownIdentifier means no account matched the identifier.
	KindUnknownIdentifier AuthErrorKind = "UnknownIdentifier"
	// KindInvalidPassword means the account exists but the password did not verify.
	KindInvalidPassword AuthErrorKind = "InvalidPassword"
)

var (
	// ErrMissingCredentials matches any *AuthError of kind MissingCredentials.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrUnknownIdentifier matches any *AuthError of kind UnknownIdentifier.
	ErrUnknownIdentifier = errors.New("unknown identifier")
	// ErrInvalidPassword matches any *AuthError of kind InvalidPassword.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrSessionInvalid is the single, undifferentiated outcome of a failed validation.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrIdentityStoreUnavailable wraps identity store failures other than absence.
	ErrIdentityStoreUnavailable = errors.New("identity store unavailable")
	// ErrUserNotFound is returned by IdentityStore implementations when no record matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrRevocationDisabled is returned by operations that need the revocation list when it is off.
	ErrRevocationDisabled = errors.New("revocation disabled")
	// ErrRevocationUnavailable wraps revocation backend failures on logout paths.
	ErrRevocationUnavailable = errors.New("revocation backend unavailable")
	// ErrLoginThrottled is returned by Authenticate while the failed-attempt
	// budget for the identifier is spent. It is not an *AuthError.
	ErrLoginThrottled = errors.New("too many failed login attempts")
	// ErrEngineNotReady is returned when an Engine method runs on a nil or partially built engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// User-facing messages. The unknown-identifier text depends on the shape of
// the identifier so the caller can tell which field to correct.
const (
	msgMissingCredentials = "Email/username and password are required"
	msgUnknownEmail       = "No account found with this email address"
	msgUnknownUsername    = "No account found with this username"
	msgInvalidPassword    = "Incorrect password"
	msgUniformFailure     = "Invalid email/username or password"
)

// AuthError is the failure value of [Engine.Authenticate].
//
// Kind is stable and safe to branch on. Message is human-readable and may be
// shown to the end user.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
}

func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is lets errors.Is match an *AuthError against the kind sentinels.
func (e *AuthError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrMissingCredentials:
		return e.Kind == KindMissingCredentials
	case ErrUnknownIdentifier:
		return e.Kind == KindUnknownIdentifier
	case ErrInvalidPassword:
		return e.Kind == KindInvalidPassword
	}
	return false
}

// AsAuthError extracts an *AuthError from err's chain.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// RedirectSignal is returned by [Engine.RequireSession] when the caller must
// be sent elsewhere instead of being served.
type RedirectSignal struct {
	Location string
}

func (r *RedirectSignal) Error() string {
	return "redirect to " + r.Location
}

// Unwrap makes a redirect match ErrSessionInvalid.
func (r *RedirectSignal) Unwrap() error {
	return ErrSessionInvalid
}

// AsRedirect extracts a *RedirectSignal from err's chain.
func AsRedirect(err error) (*RedirectSignal, bool) {
	var rs *RedirectSignal
	if errors.As(err, &rs) {
		return rs, true
	}
	return nil, false
}
