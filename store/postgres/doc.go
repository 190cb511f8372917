// Package postgres implements oroauth.IdentityStore on PostgreSQL through
// database/sql and the pgx stdlib driver.
//
// Email and username lookups are case-insensitive and backed by unique
// LOWER() indexes. Schema changes ship as embedded goose migrations; run
// [Store.Migrate] (or `oroauth migrate`) before serving.
//
// Errors carry samber/oops codes. A missing row surfaces as
// oroauth.ErrUserNotFound so the resolver can tell "no such account" from
// "database down".
package postgres
