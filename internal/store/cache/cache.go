// Package cache implements C6: the hot profile cache, namespace-bump
// invalidation, short-term memory TTL keys, and the daily activity set —
// every keyspace named in spec.md §6's "Persisted state layout".
//
// go-redis is present across the example pack (sahmaragaev-lunaria's
// go.mod, and exercised directly via redis.NewClient/redis.Options in
// CenterfireDigital-centerfire-intelligence's agent); that direct-client
// shape is what this package follows.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ankitaa186/agentic-memories-sub002/internal/apperr"
)

// Store wraps a redis client for the C6 keyspaces.
type Store struct {
	rdb             *redis.Client
	shortTermTTL    time.Duration
	profileCacheTTL time.Duration
}

// New returns a Store connected to addr.
func New(addr string, shortTermTTL, profileCacheTTL time.Duration) *Store {
	return &Store{
		rdb:             redis.NewClient(&redis.Options{Addr: addr}),
		shortTermTTL:    shortTermTTL,
		profileCacheTTL: profileCacheTTL,
	}
}

// Ping verifies connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: cache ping: %v", apperr.ErrStorage, err)
	}
	return nil
}

func namespaceKey(userID string) string { return fmt.Sprintf("mem:ns:%s", userID) }

// namespace reads the current bump counter for userID, defaulting to 0.
func (s *Store) namespace(ctx context.Context, userID string) (int64, error) {
	n, err := s.rdb.Get(ctx, namespaceKey(userID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read namespace: %v", apperr.ErrStorage, err)
	}
	return n, nil
}

func profileKey(userID string, ns int64) string {
	return fmt.Sprintf("profile:%s:v%d", userID, ns)
}

// GetProfile returns the cached complete profile JSON, or apperr.ErrNotFound
// on a cache miss.
func (s *Store) GetProfile(ctx context.Context, userID string, dest interface{}) error {
	ns, err := s.namespace(ctx, userID)
	if err != nil {
		return err
	}
	raw, err := s.rdb.Get(ctx, profileKey(userID, ns)).Bytes()
	if err == redis.Nil {
		return apperr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: get profile cache: %v", apperr.ErrStorage, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%w: decode cached profile: %v", apperr.ErrStorage, err)
	}
	return nil
}

// SetProfile caches the complete profile JSON for the configured
// profile-cache TTL (300s by default) under the current namespace
// (spec.md §4.5).
func (s *Store) SetProfile(ctx context.Context, userID string, profile interface{}) error {
	ns, err := s.namespace(ctx, userID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("%w: encode profile for cache: %v", apperr.ErrStorage, err)
	}
	if err := s.rdb.Set(ctx, profileKey(userID, ns), raw, s.profileCacheTTL).Err(); err != nil {
		return fmt.Errorf("%w: set profile cache: %v", apperr.ErrStorage, err)
	}
	return nil
}

// InvalidateProfile bumps the namespace counter, leaving old keys to
// expire naturally rather than deleting them synchronously.
func (s *Store) InvalidateProfile(ctx context.Context, userID string) error {
	if err := s.rdb.Incr(ctx, namespaceKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: bump namespace: %v", apperr.ErrStorage, err)
	}
	return nil
}

func shortTermKey(userID, memID string) string {
	return fmt.Sprintf("memory:short-term:%s:%s", userID, memID)
}

// SetShortTermMemory caches a short-term-layer memory's content under
// its TTL window.
func (s *Store) SetShortTermMemory(ctx context.Context, userID, memID string, content []byte) error {
	if err := s.rdb.Set(ctx, shortTermKey(userID, memID), content, s.shortTermTTL).Err(); err != nil {
		return fmt.Errorf("%w: set short-term memory: %v", apperr.ErrStorage, err)
	}
	return nil
}

// GetShortTermMemory returns a cached short-term memory, or apperr.ErrNotFound.
func (s *Store) GetShortTermMemory(ctx context.Context, userID, memID string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, shortTermKey(userID, memID)).Bytes()
	if err == redis.Nil {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get short-term memory: %v", apperr.ErrStorage, err)
	}
	return raw, nil
}

// DeleteShortTermMemory removes a cached short-term memory ahead of its TTL.
func (s *Store) DeleteShortTermMemory(ctx context.Context, userID, memID string) error {
	if err := s.rdb.Del(ctx, shortTermKey(userID, memID)).Err(); err != nil {
		return fmt.Errorf("%w: delete short-term memory: %v", apperr.ErrStorage, err)
	}
	return nil
}

func activityKey(day time.Time) string {
	return fmt.Sprintf("recent_users:%s", day.UTC().Format("20060102"))
}

// RecordActivity adds userID to today's activity set, used by the
// compaction/intents schedulers to scope their daily sweeps.
func (s *Store) RecordActivity(ctx context.Context, userID string, at time.Time) error {
	key := activityKey(at)
	if err := s.rdb.SAdd(ctx, key, userID).Err(); err != nil {
		return fmt.Errorf("%w: record activity: %v", apperr.ErrStorage, err)
	}
	if err := s.rdb.Expire(ctx, key, 48*time.Hour).Err(); err != nil {
		return fmt.Errorf("%w: set activity ttl: %v", apperr.ErrStorage, err)
	}
	return nil
}

// ActiveUsers returns every user recorded active on day.
func (s *Store) ActiveUsers(ctx context.Context, day time.Time) ([]string, error) {
	users, err := s.rdb.SMembers(ctx, activityKey(day)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list active users: %v", apperr.ErrStorage, err)
	}
	return users, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}
