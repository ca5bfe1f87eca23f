package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-based implementation of Store.
// Suitable for distributed production deployments where multiple host
// instances serve the same conversations.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore creates a new Redis-based session store
func NewRedisStore(config StoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Redis.Host, config.Redis.Port),
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := config.Redis.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "skillhost:"
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "session:",
		ttl:       config.Redis.TTL,
	}, nil
}

// sessionKey returns the Redis key for a conversation's session
func (s *RedisStore) sessionKey(conversationID string) string {
	return s.keyPrefix + conversationID
}

// LoadSession retrieves the session for a conversation
func (s *RedisStore) LoadSession(ctx context.Context, conversationID string) (*Session, error) {
	if conversationID == "" {
		return nil, ErrInvalidInput
	}

	data, err := s.client.Get(ctx, s.sessionKey(conversationID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// SaveSession persists the session
func (s *RedisStore) SaveSession(ctx context.Context, session *Session) error {
	if session == nil || session.ConversationID == "" {
		return ErrInvalidInput
	}

	cp := session.Clone()
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return s.client.Set(ctx, s.sessionKey(session.ConversationID), data, s.ttl).Err()
}

// DeleteSession removes the session for a conversation
func (s *RedisStore) DeleteSession(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidInput
	}
	return s.client.Del(ctx, s.sessionKey(conversationID)).Err()
}

// Ping checks if the store is healthy
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the store
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
