package oroauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	internalaudit "github.com/oroscan/oroauth/internal/audit"
	"github.com/oroscan/oroauth/internal/rate"
	"github.com/oroscan/oroauth/jwt"
	"github.com/oroscan/oroauth/password"
	"github.com/oroscan/oroauth/session"
)

// Engine authenticates credentials, issues session tokens and validates them.
//
// Engine instances are built by [Builder.Build] and are safe for concurrent use.
type Engine struct {
	config     Config
	store      IdentityStore
	hasher     *password.Hasher
	tokens     *jwt.Manager
	revocation *session.Store
	throttle   *rate.Limiter
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
AUTHENTICATE
====================================
*/

// Authenticate checks credentials and, on success, issues a signed session.
//
// Failures are returned as *AuthError with kind MissingCredentials,
// UnknownIdentifier or InvalidPassword. A failing identity store is not an
// AuthError: it is returned wrapped in [ErrIdentityStoreUnavailable]. With the
// throttle enabled, an identifier over its failure budget gets
// [ErrLoginThrottled] before any lookup.
//
// Authenticate does not mutate any stored record unless
// Password.UpgradeOnLogin is on and the store implements [PasswordUpdater].
func (e *Engine) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	if e == nil || e.tokens == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()
	}

	identifier := strings.TrimSpace(creds.Identifier)
	kind := IdentifierKind(identifier)
	if identifier == "" || strings.TrimSpace(creds.Password) == "" {
		return nil, e.loginFailure(ctx, "", kind, KindMissingCredentials, msgMissingCredentials)
	}

	if err := e.checkThrottle(ctx, identifier, kind); err != nil {
		return nil, err
	}

	user, found, err := Resolve(ctx, e.store, identifier)
	if e.config.DebugAttempts() {
		e.logger.DebugContext(ctx, "auth: attempt",
			slog.String("identifier", identifier),
			slog.String("found_user_id", user.ID),
		)
	}
	if err != nil {
		e.metricInc(MetricLoginStoreUnavailable)
		e.logger.ErrorContext(ctx, "identity store lookup failed",
			slog.String("identifier_kind", kind),
			slog.Any("error", err),
		)
		e.emitAudit(ctx, AuditEvent{
			EventType: AuditLoginFailure,
			Reason:    "IdentityStoreUnavailable",
			Metadata:  map[string]string{"identifier_kind": kind},
		})
		return nil, err
	}

	if !found {
		if e.config.Login.EqualizeTiming {
			e.hasher.Equalize(creds.Password)
		}
		msg := msgUnknownUsername
		if kind == "email" {
			msg = msgUnknownEmail
		}
		e.recordThrottleFailure(ctx, identifier)
		return nil, e.loginFailure(ctx, "", kind, KindUnknownIdentifier, msg)
	}

	if ok, verr := e.hasher.Check(creds.Password, user.PasswordHash); !ok {
		if verr != nil {
			e.logger.WarnContext(ctx, "stored password hash could not be checked",
				slog.String("user_id", user.ID),
				slog.Any("error", verr),
			)
		}
		e.recordThrottleFailure(ctx, identifier)
		return nil, e.loginFailure(ctx, user.ID, kind, KindInvalidPassword, msgInvalidPassword)
	}

	token, claims, err := e.tokens.Issue(user.ID, user.Username)
	if err != nil {
		e.logger.ErrorContext(ctx, "session token issue failed",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	e.maybeUpgradeHash(ctx, user, creds.Password)
	e.resetThrottle(ctx, identifier)

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditLoginSuccess,
		UserID:    user.ID,
		TokenID:   claims.ID,
		Success:   true,
		Metadata:  map[string]string{"identifier_kind": kind},
	})

	return sessionFromClaims(token, claims), nil
}

func (e *Engine) loginFailure(ctx context.Context, userID, identifierKind string, kind AuthErrorKind, message string) *AuthError {
	e.metricInc(MetricLoginFailure)
	switch kind {
	case KindMissingCredentials:
		e.metricInc(MetricLoginMissingCredentials)
	case KindUnknownIdentifier:
		e.metricInc(MetricLoginUnknownIdentifier)
	case KindInvalidPassword:
		e.metricInc(MetricLoginInvalidPassword)
	}

	if e.config.Login.UniformFailureMessages && kind != KindMissingCredentials {
		message = msgUniformFailure
	}

	e.emitAudit(ctx, AuditEvent{
		EventType: AuditLoginFailure,
		UserID:    userID,
		Reason:    string(kind),
		Metadata:  map[string]string{"identifier_kind": identifierKind},
	})

	return &AuthError{Kind: kind, Message: message}
}

// checkThrottle refuses the attempt when the failure budget is spent. A
// throttle backend error also refuses it.
func (e *Engine) checkThrottle(ctx context.Context, identifier, kind string) error {
	if e.throttle == nil {
		return nil
	}
	err := e.throttle.Check(ctx, identifier, ClientIPFromContext(ctx))
	if err == nil {
		return nil
	}
	if !errors.Is(err, rate.ErrRateLimited) {
		e.logger.ErrorContext(ctx, "login throttle check failed", slog.Any("error", err))
	}
	e.metricInc(MetricLoginThrottled)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditLoginThrottled,
		Reason:    "LoginThrottled",
		Metadata:  map[string]string{"identifier_kind": kind},
	})
	return ErrLoginThrottled
}

func (e *Engine) recordThrottleFailure(ctx context.Context, identifier string) {
	if e.throttle == nil {
		return
	}
	if err := e.throttle.RecordFailure(ctx, identifier, ClientIPFromContext(ctx)); err != nil {
		e.logger.WarnContext(ctx, "login throttle not updated", slog.Any("error", err))
	}
}

func (e *Engine) resetThrottle(ctx context.Context, identifier string) {
	if e.throttle == nil {
		return
	}
	if err := e.throttle.Reset(ctx, identifier); err != nil {
		e.logger.WarnContext(ctx, "login throttle not reset", slog.Any("error", err))
	}
}

func (e *Engine) maybeUpgradeHash(ctx context.Context, user UserRecord, plain string) {
	if !e.config.Password.UpgradeOnLogin || !e.hasher.NeedsUpgrade(user.PasswordHash) {
		return
	}
	updater, ok := e.store.(PasswordUpdater)
	if !ok {
		return
	}
	hash, err := e.hasher.Hash(plain)
	if err != nil {
		e.logger.WarnContext(ctx, "password rehash failed", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	if err := updater.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		e.logger.WarnContext(ctx, "password rehash not persisted", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	e.metricInc(MetricPasswordUpgraded)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditPasswordRehash,
		UserID:    user.ID,
		Success:   true,
		Metadata:  map[string]string{"algorithm": string(e.hasher.Algorithm())},
	})
}

/*
====================================
VALIDATE / GUARD
====================================
*/

// Validate checks a presented session token.
//
// Every failure, whether an empty token, a malformed token, a bad signature,
// an elapsed expiry or a revoked token, returns (nil, ErrSessionInvalid).
// When revocation is enabled and its backend cannot be reached the token is
// also rejected.
func (e *Engine) Validate(ctx context.Context, token string) (*Session, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrSessionInvalid
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, e.invalidSession(ctx, "", "empty")
	}

	claims, err := e.tokens.Parse(token)
	if err != nil {
		return nil, e.invalidSession(ctx, "", jwt.FailureReason(err))
	}

	if e.revocation != nil {
		revoked, err := e.revocation.IsRevoked(ctx, claims.ID, claims.Subject, claims.IssuedAt.Time)
		if err != nil {
			e.metricInc(MetricRevocationUnavailable)
			e.logger.WarnContext(ctx, "revocation check failed, rejecting session",
				slog.String("token_id", claims.ID),
				slog.Any("error", err),
			)
			return nil, e.invalidSession(ctx, claims.Subject, "revocation_unavailable")
		}
		if revoked {
			e.metricInc(MetricSessionRevoked)
			return nil, e.invalidSession(ctx, claims.Subject, "revoked")
		}
	}

	e.metricInc(MetricSessionValidated)
	return sessionFromClaims(token, claims), nil
}

func (e *Engine) invalidSession(ctx context.Context, userID, reason string) error {
	e.metricInc(MetricSessionInvalid)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditSessionInvalid,
		UserID:    userID,
		Reason:    reason,
	})
	return ErrSessionInvalid
}

// RequireSession is Validate for guarded resources: on any failure it returns
// a *RedirectSignal pointing at the configured login path instead of
// ErrSessionInvalid.
func (e *Engine) RequireSession(ctx context.Context, token string) (*Session, error) {
	sess, err := e.Validate(ctx, token)
	if err != nil {
		e.metricInc(MetricGuardRedirect)
		location := "/"
		if e != nil && e.config.Guard.LoginPath != "" {
			location = e.config.Guard.LoginPath
		}
		return nil, &RedirectSignal{Location: location}
	}
	return sess, nil
}

/*
====================================
LOGOUT
====================================
*/

// Logout revokes the presented token until its own expiry.
//
// An invalid or already expired token needs no revocation and returns nil.
// With revocation disabled Logout only records the event; the caller is
// expected to discard the token.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil
	}

	if e.revocation != nil {
		if err := e.revocation.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			e.logger.ErrorContext(ctx, "logout revocation failed", slog.String("token_id", claims.ID), slog.Any("error", err))
			return fmt.Errorf("%w: %w", ErrRevocationUnavailable, err)
		}
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditLogoutSession,
		UserID:    claims.Subject,
		TokenID:   claims.ID,
		Success:   true,
	})
	return nil
}

// LogoutAll revokes every token for userID issued up to now.
//
// It returns [ErrRevocationDisabled] when the revocation list is off.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if e.revocation == nil {
		return ErrRevocationDisabled
	}
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}

	lifetime := e.tokens.TTL() + e.config.JWT.Leeway
	if err := e.revocation.RevokeUser(ctx, userID, e.now(), lifetime); err != nil {
		e.logger.ErrorContext(ctx, "logout-all revocation failed", slog.String("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrRevocationUnavailable, err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, AuditEvent{
		EventType: AuditLogoutAll,
		UserID:    userID,
		Success:   true,
	})
	return nil
}

/*
====================================
PASSWORDS
====================================
*/

// HashPassword returns a new salted hash using the configured algorithm.
func (e *Engine) HashPassword(plain string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}
	return e.hasher.Hash(plain)
}

// VerifyPassword reports whether plain matches encodedHash. Malformed hashes
// report false.
func (e *Engine) VerifyPassword(plain, encodedHash string) bool {
	if e == nil || e.hasher == nil {
		return false
	}
	return e.hasher.Verify(plain, encodedHash)
}

func sessionFromClaims(token string, claims *jwt.SessionClaims) *Session {
	sess := &Session{
		UserID:   claims.Subject,
		Username: claims.Username,
		IsValid:  true,
		Token:    token,
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess
}
