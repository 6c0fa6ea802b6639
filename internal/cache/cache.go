// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores aggregate search results in Redis, keyed by the
// normalized question. Every operation fails open: a store that is down,
// slow or holding garbage behaves like an empty cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/pkg/types"
)

// KeyPrefix namespaces aggregate entries.
const KeyPrefix = "search:"

// DefaultTTL is how long an aggregate stays cached.
const DefaultTTL = time.Hour

const defaultOpTimeout = 2 * time.Second

// Lookup outcomes reported to an Observer.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Observer receives one outcome per cache lookup.
type Observer interface {
	ObserveCache(outcome string)
}

// Store is the Redis-backed cache adapter.
type Store struct {
	client    redis.UniversalClient
	ttl       time.Duration
	opTimeout time.Duration
	disabled  bool
	logger    *zap.Logger
	observer  Observer
	now       func() time.Time
}

// Stats describes the cache for health endpoints.
type Stats struct {
	Connected bool   `json:"connected"`
	Keys      int64  `json:"keys"`
	Error     string `json:"error,omitempty"`
}

// New connects to the Redis instance described by cfg. An unreachable
// server is logged, not returned: the store keeps working as a miss.
func New(cfg types.CacheConfig, logger *zap.Logger) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	s := NewWithClient(client, cfg, logger)
	if !cfg.Disabled {
		if err := s.Ping(context.Background()); err != nil {
			s.logger.Warn("redis unreachable, cache will miss until it recovers",
				zap.String("addr", cfg.Addr), zap.Error(err))
		} else {
			s.logger.Info("cache connected", zap.String("addr", cfg.Addr))
		}
	}
	return s
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, cfg types.CacheConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &Store{
		client:    client,
		ttl:       ttl,
		opTimeout: opTimeout,
		disabled:  cfg.Disabled,
		logger:    logger.With(zap.String("component", "cache")),
		now:       time.Now,
	}
}

// SetObserver attaches an Observer for lookup outcomes.
func (s *Store) SetObserver(o Observer) { s.observer = o }

// Client exposes the underlying Redis client so other stores can share
// the connection pool.
func (s *Store) Client() redis.UniversalClient { return s.client }

// TTL returns the default entry lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Key returns the cache key for query. Queries that differ only in case,
// surrounding whitespace, or runs of inner whitespace share a key.
func Key(query string) string {
	sum := sha256.Sum256([]byte(Normalize(query)))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

// Normalize lower-cases query, trims it, and collapses whitespace runs.
func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Get returns the cached aggregate for query. The boolean is false on a
// miss, an expired or undecodable entry, or an unavailable store.
func (s *Store) Get(ctx context.Context, query string) (types.AggregateResult, bool) {
	if s.disabled {
		return types.AggregateResult{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	key := Key(query)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.observe(OutcomeMiss)
		return types.AggregateResult{}, false
	}
	if err != nil {
		s.observe(OutcomeError)
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return types.AggregateResult{}, false
	}

	var entry types.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.observe(OutcomeError)
		s.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return types.AggregateResult{}, false
	}

	age := s.now().UnixMilli() - entry.CachedAtMillis
	if age < 0 {
		age = 0
	}
	res := entry.Result
	res.FromCache = true
	res.CacheAgeMillis = age
	s.observe(OutcomeHit)
	s.logger.Debug("cache hit", zap.String("key", key), zap.Int64("age_ms", age))
	return res, true
}

// Set stores value for query with the given ttl (the store default when
// ttl is zero). Failures are logged and swallowed.
func (s *Store) Set(ctx context.Context, query string, value types.AggregateResult, ttl time.Duration) {
	if s.disabled {
		return
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	value.FromCache = false
	value.CacheAgeMillis = 0

	data, err := json.Marshal(types.CacheEntry{
		Result:         value,
		CachedAtMillis: s.now().UnixMilli(),
		Query:          Normalize(query),
	})
	if err != nil {
		s.logger.Warn("cache encode failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	key := Key(query)
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes the entry for query.
func (s *Store) Invalidate(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.client.Del(ctx, Key(query)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Clear deletes every aggregate entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	keys, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	s.logger.Info("cache cleared", zap.Int64("keys", n))
	return int(n), nil
}

// Stats reports connectivity and the number of aggregate entries.
func (s *Store) Stats(ctx context.Context) Stats {
	if err := s.Ping(ctx); err != nil {
		return Stats{Error: err.Error()}
	}
	keys, err := s.scan(ctx)
	if err != nil {
		return Stats{Connected: true, Error: err.Error()}
	}
	return Stats{Connected: true, Keys: int64(len(keys))}
}

// Ping checks that Redis answers within the per-call timeout.
func (s *Store) Ping(ctx context.Context) error {
	if s.disabled {
		return errors.New("cache disabled")
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) scan(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*s.opTimeout)
	defer cancel()

	var keys []string
	iter := s.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("cache scan: %w", err)
	}
	return keys, nil
}

func (s *Store) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveCache(outcome)
	}
}
