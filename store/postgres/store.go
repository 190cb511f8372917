package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"

	"github.com/oroscan/oroauth"
	"github.com/oroscan/oroauth/store/postgres/migrations"
)

// DBTX is the subset of *sql.DB and *sql.Tx the store needs.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a PostgreSQL-backed identity store.
type Store struct {
	db DBTX
}

// New wraps an existing connection.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Open connects with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("database dsn is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, oops.Code("DB_OPEN_FAILED").With("operation", "open database").Wrap(err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping database").Wrap(err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "set dialect").Wrap(err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return oops.Code("MIGRATION_UP_FAILED").With("operation", "run migrations").Wrap(err)
	}
	return nil
}

const selectUser = `SELECT id, COALESCE(email, ''), username, password_hash, display_name FROM users`

// FindByEmail looks up an account by email, ignoring case.
func (s *Store) FindByEmail(ctx context.Context, email string) (oroauth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, selectUser+`
		WHERE LOWER(email) = LOWER($1)
		LIMIT 1`, email)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return oroauth.UserRecord{}, oops.Code("USER_NOT_FOUND").
			With("lookup", "email").
			Wrap(oroauth.ErrUserNotFound)
	}
	if err != nil {
		return oroauth.UserRecord{}, oops.Code("USER_LOOKUP_FAILED").
			With("operation", "find user by email").
			Wrap(err)
	}
	return user, nil
}

// FindByUsernameOrEmail matches text against username or email, ignoring
// case. A username match wins over an email match.
func (s *Store) FindByUsernameOrEmail(ctx context.Context, text string) (oroauth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, selectUser+`
		WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)
		ORDER BY (LOWER(username) = LOWER($1)) DESC
		LIMIT 1`, text)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return oroauth.UserRecord{}, oops.Code("USER_NOT_FOUND").
			With("lookup", "username_or_email").
			Wrap(oroauth.ErrUserNotFound)
	}
	if err != nil {
		return oroauth.UserRecord{}, oops.Code("USER_LOOKUP_FAILED").
			With("operation", "find user by username or email").
			Wrap(err)
	}
	return user, nil
}

// UpsertUser inserts user or, when the username already exists, replaces its
// email, hash and display name. The stored ID is returned in the record.
func (s *Store) UpsertUser(ctx context.Context, user oroauth.UserRecord) (oroauth.UserRecord, error) {
	if strings.TrimSpace(user.Username) == "" {
		return oroauth.UserRecord{}, oops.Code("USER_INVALID").Errorf("username is required")
	}
	if user.PasswordHash == "" {
		return oroauth.UserRecord{}, oops.Code("USER_INVALID").Errorf("password hash is required")
	}

	id := user.ID
	if id == "" {
		id = uuid.NewString()
	}
	var email any
	if user.Email != "" {
		email = user.Email
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, username, password_hash, display_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (LOWER(username)) DO UPDATE
		SET email = EXCLUDED.email,
		    password_hash = EXCLUDED.password_hash,
		    display_name = EXCLUDED.display_name,
		    updated_at = now()
		RETURNING id`,
		id, email, user.Username, user.PasswordHash, user.DisplayName,
	).Scan(&user.ID)
	if err != nil {
		return oroauth.UserRecord{}, oops.Code("USER_UPSERT_FAILED").
			With("operation", "upsert user").
			With("username", user.Username).
			Wrap(err)
	}
	return user, nil
}

// UpdatePasswordHash replaces the stored hash for userID.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now()
		WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return oops.Code("PASSWORD_UPDATE_FAILED").
			With("operation", "update password hash").
			With("user_id", userID).
			Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return oops.Code("PASSWORD_UPDATE_FAILED").
			With("operation", "rows affected").
			Wrap(err)
	}
	if n == 0 {
		return oops.Code("USER_NOT_FOUND").With("user_id", userID).Wrap(oroauth.ErrUserNotFound)
	}
	return nil
}

func scanUser(row *sql.Row) (oroauth.UserRecord, error) {
	var u oroauth.UserRecord
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.DisplayName); err != nil {
		return oroauth.UserRecord{}, err
	}
	return u, nil
}
