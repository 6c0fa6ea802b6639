// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pdiddy/reality-check/pkg/types"
)

// ErrConversationNotFound is returned for an unknown conversation id.
var ErrConversationNotFound = errors.New("conversation not found")

// SessionStore holds conversations between questions.
type SessionStore interface {
	Get(ctx context.Context, id string) (*types.Conversation, error)
	Put(ctx context.Context, conv *types.Conversation) error
	Delete(ctx context.Context, id string) error

	// Evict removes conversations idle for longer than olderThan and
	// returns how many were removed.
	Evict(ctx context.Context, olderThan time.Duration) (int, error)
}

// MemoryStore keeps conversations in a map. Get returns copies, so
// callers never share message slices with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*types.Conversation
	now   func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*types.Conversation), now: time.Now}
}

// Get returns a copy of the conversation.
func (s *MemoryStore) Get(_ context.Context, id string) (*types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return cloneConversation(c), nil
}

// Put stores a copy of conv.
func (s *MemoryStore) Put(_ context.Context, conv *types.Conversation) error {
	if conv == nil || conv.ID == "" {
		return errors.New("conversation has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conv.ID] = cloneConversation(conv)
	return nil
}

// Delete removes the conversation. Unknown ids are not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, id)
	return nil
}

// Evict removes conversations whose LastUpdated is older than olderThan.
func (s *MemoryStore) Evict(_ context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.convs {
		if c.LastUpdated.Before(cutoff) {
			delete(s.convs, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored conversations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}

func cloneConversation(c *types.Conversation) *types.Conversation {
	out := *c
	out.Messages = append([]types.Message(nil), c.Messages...)
	return &out
}

// conversationPrefix namespaces conversations in Redis.
const conversationPrefix = "conversation:"

// DefaultConversationTTL is how long Redis keeps an untouched conversation.
const DefaultConversationTTL = 24 * time.Hour

// RedisStore keeps conversations in Redis as JSON under conversation:<id>.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisStore returns a RedisStore. ttl <= 0 uses 24h.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultConversationTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "sessions")),
		now:    time.Now,
	}
}

// Get loads the conversation.
func (s *RedisStore) Get(ctx context.Context, id string) (*types.Conversation, error) {
	raw, err := s.client.Get(ctx, conversationPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", id, err)
	}
	var c types.Conversation
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decoding conversation %s: %w", id, err)
	}
	return &c, nil
}

// Put saves conv and refreshes its TTL.
func (s *RedisStore) Put(ctx context.Context, conv *types.Conversation) error {
	if conv == nil || conv.ID == "" {
		return errors.New("conversation has no id")
	}
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encoding conversation %s: %w", conv.ID, err)
	}
	if err := s.client.Set(ctx, conversationPrefix+conv.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving conversation %s: %w", conv.ID, err)
	}
	return nil
}

// Delete removes the conversation.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, conversationPrefix+id).Err(); err != nil {
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}
	return nil
}

// Evict removes conversations idle for longer than olderThan. Redis TTLs
// bound the worst case; this applies the shorter idle policy.
func (s *RedisStore) Evict(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	n := 0
	iter := s.client.Scan(ctx, 0, conversationPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		c, err := s.Get(ctx, key[len(conversationPrefix):])
		if err != nil {
			s.logger.Warn("skipping unreadable conversation", zap.String("key", key), zap.Error(err))
			continue
		}
		if !c.LastUpdated.Before(cutoff) {
			continue
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return n, fmt.Errorf("evicting %s: %w", key, err)
		}
		n++
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("scanning conversations: %w", err)
	}
	return n, nil
}
