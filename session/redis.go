package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/upb/paper-archive/access"
	"go.uber.org/zap"
)

// SessionCookieName holds the opaque session id for RedisStore.
const SessionCookieName = "sid"

const keyPrefix = "session:"

// NewRedisClient connects to Redis at url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// RedisStore keeps the identity keys server-side in a Redis hash addressed by
// the session id cookie.
type RedisStore struct {
	client *redis.Client
	cookie CookieOptions
	logger *zap.Logger
}

// NewRedisStore creates a Redis backed store
func NewRedisStore(client *redis.Client, cookie CookieOptions, logger *zap.Logger) *RedisStore {
	if cookie.TTL == 0 {
		cookie.TTL = 8 * time.Hour
	}
	return &RedisStore{
		client: client,
		cookie: cookie,
		logger: logger,
	}
}

// Snapshot reads the whole hash with a single HGETALL.
func (s *RedisStore) Snapshot(ctx context.Context, r *http.Request) (access.Identity, error) {
	sid := cookieValue(r, SessionCookieName)
	if sid == "" {
		return access.Identity{}, nil
	}

	values, err := s.client.HGetAll(ctx, sessionKey(sid)).Result()
	if err != nil {
		return access.Identity{}, fmt.Errorf("redis hgetall failed: %w", err)
	}

	return access.DecodeIdentity(access.RecordFromMap(values)), nil
}

// Save writes the record under a fresh session id and drops the previous one.
func (s *RedisStore) Save(ctx context.Context, w http.ResponseWriter, r *http.Request, rec access.Record) error {
	previous := cookieValue(r, SessionCookieName)
	sid := uuid.NewString()
	key := sessionKey(sid)

	fields := rec.Map()
	pairs := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		pairs = append(pairs, k, v)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if previous != "" {
			pipe.Del(ctx, sessionKey(previous))
		}
		if len(pairs) > 0 {
			pipe.HSet(ctx, key, pairs...)
			pipe.Expire(ctx, key, s.cookie.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save session failed: %w", err)
	}

	s.cookie.set(w, SessionCookieName, sid)

	s.logger.Debug("session saved",
		zap.String("role", rec.UserRole),
	)
	return nil
}

// Clear deletes the session hash and expires the cookie.
func (s *RedisStore) Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	s.cookie.expire(w, SessionCookieName)

	sid := cookieValue(r, SessionCookieName)
	if sid == "" {
		return nil
	}

	if err := s.client.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("redis delete session failed: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func sessionKey(sid string) string {
	return keyPrefix + sid
}
