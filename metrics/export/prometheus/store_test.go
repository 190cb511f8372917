package prometheus

import (
	"context"

	"github.com/oroscan/oroauth"
)

type nopStore struct{}

func (nopStore) FindByEmail(context.Context, string) (oroauth.UserRecord, error) {
	return oroauth.UserRecord{}, oroauth.ErrUserNotFound
}

func (nopStore) FindByUsernameOrEmail(context.Context, string) (oroauth.UserRecord, error) {
	return oroauth.UserRecord{}, oroauth.ErrUserNotFound
}
