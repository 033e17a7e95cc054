// Package snapshot caches committed session state in Redis so readers can
// fetch the latest state without touching the solver.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/intents/internal/canon"
	"github.com/roach88/intents/internal/world"
)

// ErrNotFound is returned when no state is cached for a session.
var ErrNotFound = errors.New("snapshot not found")

const (
	keyPrefix   = "intents:state:"
	sessionsKey = "intents:sessions"
)

// DefaultEndedTTL is how long the state of an ended session stays cached.
const DefaultEndedTTL = 24 * time.Hour

// RedisStore implements engine.StateStore on Redis.
//
// Each session is one string key holding canonical JSON of the state and
// its digest. A sorted set indexes session ids by their last saved tick.
type RedisStore struct {
	client   *redis.Client
	logger   *slog.Logger
	endedTTL time.Duration
}

type record struct {
	Digest string       `json:"digest"`
	State  *world.State `json:"state"`
}

// Option configures a RedisStore.
type Option func(*RedisStore)

// WithEndedTTL sets the expiry applied once a session has ended. Zero keeps
// ended sessions forever.
func WithEndedTTL(d time.Duration) Option {
	return func(s *RedisStore) { s.endedTTL = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *RedisStore) { s.logger = l }
}

// New wraps an existing client.
func New(client *redis.Client, opts ...Option) *RedisStore {
	s := &RedisStore{client: client, logger: slog.Default(), endedTTL: DefaultEndedTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to addr, which is either host:port or a redis:// URL, and
// pings the server.
func Dial(ctx context.Context, addr string, opts ...Option) (*RedisStore, error) {
	opt := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opt = parsed
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	s := New(client, opts...)
	s.logger.Info("connected to redis snapshot cache", "addr", opt.Addr)
	return s, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

// Save caches st. Ended sessions get the ended TTL.
func (s *RedisStore) Save(ctx context.Context, st *world.State) error {
	digest, err := st.Digest()
	if err != nil {
		return fmt.Errorf("redis save %s: %w", st.SessionID, err)
	}
	data, err := canon.Marshal(record{Digest: digest, State: st})
	if err != nil {
		return fmt.Errorf("redis save %s: %w", st.SessionID, err)
	}

	var ttl time.Duration
	if st.Ended() {
		ttl = s.endedTTL
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key(st.SessionID), data, ttl)
		if st.Ended() {
			pipe.ZRem(ctx, sessionsKey, st.SessionID)
		} else {
			pipe.ZAdd(ctx, sessionsKey, redis.Z{Score: float64(st.Tick), Member: st.SessionID})
		}
		return nil
	})
	if err != nil {
		s.logger.Error("redis SET failed", "session", st.SessionID, "error", err)
		return fmt.Errorf("redis save %s: %w", st.SessionID, err)
	}
	s.logger.Debug("snapshot cached", "session", st.SessionID, "tick", st.Tick, "digest", digest)
	return nil
}

// Load returns the cached state of a session, or ErrNotFound.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*world.State, error) {
	st, _, err := s.Snapshot(ctx, sessionID)
	return st, err
}

// Snapshot returns the cached state together with its recorded digest.
func (s *RedisStore) Snapshot(ctx context.Context, sessionID string) (*world.State, string, error) {
	data, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, "", fmt.Errorf("redis load %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("redis load %s: %w", sessionID, err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, "", fmt.Errorf("redis load %s: %w", sessionID, err)
	}
	if rec.State == nil {
		return nil, "", fmt.Errorf("redis load %s: empty record", sessionID)
	}
	return rec.State, rec.Digest, nil
}

// Active returns the ids of cached sessions that have not ended, ordered
// by their last saved tick.
func (s *RedisStore) Active(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRange(ctx, sessionsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis active sessions: %w", err)
	}
	return ids, nil
}

// Delete drops a session from the cache.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key(sessionID))
		pipe.ZRem(ctx, sessionsKey, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete %s: %w", sessionID, err)
	}
	return nil
}
