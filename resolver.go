package oroauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Resolve maps a login identifier to an account.
//
// The identifier is trimmed. One containing '@' is looked up as an email
// only; anything else is looked up as a username first, then as an email.
// Matching is case-insensitive and delegated to the store.
//
// found is false with a nil error when no account matches. A non-nil error
// always means the store itself failed and wraps [ErrIdentityStoreUnavailable].
func Resolve(ctx context.Context, store IdentityStore, identifier string) (user UserRecord, found bool, err error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return UserRecord{}, false, nil
	}
	if store == nil {
		return UserRecord{}, false, fmt.Errorf("%w: no identity store configured", ErrIdentityStoreUnavailable)
	}

	if IdentifierKind(identifier) == "email" {
		user, err = store.FindByEmail(ctx, identifier)
	} else {
		user, err = store.FindByUsernameOrEmail(ctx, identifier)
	}

	switch {
	case err == nil:
		return user, true, nil
	case errors.Is(err, ErrUserNotFound):
		return UserRecord{}, false, nil
	default:
		return UserRecord{}, false, fmt.Errorf("%w: %w", ErrIdentityStoreUnavailable, err)
	}
}
