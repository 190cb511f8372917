package oroauth

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// UserRecord is a stored account as returned by an [IdentityStore].
//
// Email may be empty for accounts that only have a username. PasswordHash is
// an opaque bcrypt or argon2id encoding and never leaves the engine.
type UserRecord struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	DisplayName  string
}

// Credentials is a login submission.
type Credentials struct {
	Identifier string
	Password   string
}

// LogValue keeps the password out of structured logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("identifier", c.Identifier),
		slog.String("password", redacted(c.Password)),
	)
}

func (c Credentials) String() string {
	return "Credentials{Identifier:" + c.Identifier + " Password:" + redacted(c.Password) + "}"
}

func redacted(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// Session is the authenticated identity carried by a valid session token.
type Session struct {
	UserID    string
	Username  string
	IsValid   bool
	Token     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IdentityStore looks up accounts by login identifier.
//
// Both methods return [ErrUserNotFound] (or an error wrapping it) when no
// record matches. Any other error is treated as a store outage and is never
// reported to callers as an unknown identifier.
type IdentityStore interface {
	// FindByEmail matches email case-insensitively against stored emails.
	FindByEmail(ctx context.Context, email string) (UserRecord, error)
	// FindByUsernameOrEmail matches text case-insensitively against usernames
	// and emails, preferring a username match.
	FindByUsernameOrEmail(ctx context.Context, text string) (UserRecord, error)
}

// PasswordUpdater is optionally implemented by an IdentityStore that can
// persist a re-hashed password after a successful login.
type PasswordUpdater interface {
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

// UserWriter is implemented by stores that support provisioning, such as the
// seed command.
type UserWriter interface {
	UpsertUser(ctx context.Context, user UserRecord) (UserRecord, error)
}

// IdentifierKind reports how an identifier is routed: "email" when it
// contains '@', otherwise "username".
func IdentifierKind(identifier string) string {
	if strings.Contains(identifier, "@") {
		return "email"
	}
	return "username"
}
