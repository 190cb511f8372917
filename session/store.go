package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport or server failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrInvalidTokenID is returned when a revocation call is made without a token id.
var ErrInvalidTokenID = errors.New("token id is required")

// ErrInvalidUserID is returned when a user-wide revocation is made without a user id.
var ErrInvalidUserID = errors.New("user id is required")

// raiseCutoffScript stores ARGV[1] in KEYS[1] only if it is greater than the
// current value, then extends the key's TTL to ARGV[2] milliseconds.
const raiseCutoffScript = `
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local proposed = tonumber(ARGV[1])
if proposed > current then
  redis.call("SET", KEYS[1], ARGV[1])
  current = proposed
end
local ttl = tonumber(ARGV[2])
local remaining = redis.call("PTTL", KEYS[1])
if remaining < ttl then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
return current
`

var raiseCutoffLua = redis.NewScript(raiseCutoffScript)

// Store is a Redis-backed revocation list for session tokens.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a revocation [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{redis: client, prefix: prefix, now: time.Now}
}

// WithClock replaces the clock used to compute marker TTLs.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) tokenKey(tokenID string) string {
	return s.prefix + ":rv:t:" + tokenID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":rv:u:" + userID
}

// Revoke marks tokenID as revoked until expiresAt. Revoking an already
// expired or already revoked token is a no-op that returns nil.
//
//	Performance: 1 Redis SET.
func (s *Store) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrInvalidTokenID
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.tokenKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeUser invalidates every token for userID issued at or before cutoff.
// A later cutoff always wins; an earlier one never lowers it. The entry is
// kept for at least maxTokenLifetime so no token it covers can outlive it.
//
//	Performance: 1 Redis EVALSHA.
func (s *Store) RevokeUser(ctx context.Context, userID string, cutoff time.Time, maxTokenLifetime time.Duration) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	if maxTokenLifetime < time.Second {
		maxTokenLifetime = time.Second
	}
	err := raiseCutoffLua.Run(ctx, s.redis,
		[]string{s.userKey(userID)},
		cutoff.Unix(),
		maxTokenLifetime.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether the token identified by tokenID, belonging to
// userID and issued at issuedAt, has been revoked individually or by a
// user-wide cutoff.
//
//	Performance: 1 pipelined round trip (2 GETs).
func (s *Store) IsRevoked(ctx context.Context, tokenID, userID string, issuedAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, ErrInvalidTokenID
	}

	var tokenCmd, userCmd *redis.StringCmd
	_, err := s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		tokenCmd = pipe.Get(ctx, s.tokenKey(tokenID))
		userCmd = pipe.Get(ctx, s.userKey(userID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if err := tokenCmd.Err(); err == nil {
		return true, nil
	} else if !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	raw, err := userCmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	cutoff, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// A corrupt cutoff cannot be trusted in either direction.
		return true, nil
	}
	return issuedAt.Unix() <= cutoff, nil
}

// UserCutoff returns the current user-wide cutoff and whether one is set.
func (s *Store) UserCutoff(ctx context.Context, userID string) (time.Time, bool, error) {
	raw, err := s.redis.Get(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	cutoff, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt revocation cutoff for user %q", userID)
	}
	return time.Unix(cutoff, 0), true, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
