// Package state provides persistent conversation state for the skill host.
//
// Each conversation carries a small session record whose main payload is
// the active skill marker: which skill bot, if any, currently owns the
// conversation. The Manager in this package layers caching and explicit
// save semantics on top of a pluggable Store backend.
//
// Supported backends:
// - Memory: For development and testing (default)
// - File: For single-node production deployments
// - Redis: For distributed production deployments
// - SQLite: For single-node deployments that want queryable state
package state

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound     = errors.New("state: session not found")
	ErrStoreClosed  = errors.New("state: store is closed")
	ErrInvalidInput = errors.New("state: invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQLite StoreType = "sqlite"
)

// Session is the per-conversation state record. ActiveSkillID is empty
// when the root bot handles the conversation itself.
type Session struct {
	// ConversationID identifies the conversation this session belongs to.
	ConversationID string `json:"conversation_id" gorm:"primaryKey;column:conversation_id"`

	// ActiveSkillID is the ID of the skill the conversation is routed to,
	// or empty when no skill is active.
	ActiveSkillID string `json:"active_skill_id" gorm:"column:active_skill_id"`

	// UpdatedAt is the time of the last write.
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Clone returns a copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// StoreConfig is the base configuration for all store implementations
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the base directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// Redis configuration (only used when Type is "redis")
	Redis RedisStoreConfig `json:"redis" yaml:"redis"`

	// SQLite configuration (only used when Type is "sqlite")
	SQLite SQLiteStoreConfig `json:"sqlite" yaml:"sqlite"`
}

// RedisStoreConfig contains Redis-specific configuration
type RedisStoreConfig struct {
	// Host is the Redis server host
	Host string `json:"host" yaml:"host"`

	// Port is the Redis server port
	Port int `json:"port" yaml:"port"`

	// Password is the Redis password (optional)
	Password string `json:"password" yaml:"password"`

	// DB is the Redis database number
	DB int `json:"db" yaml:"db"`

	// PoolSize is the connection pool size
	PoolSize int `json:"pool_size" yaml:"pool_size"`

	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`

	// TTL is the expiry for session keys. Zero means no expiry.
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// SQLiteStoreConfig contains SQLite-specific configuration
type SQLiteStoreConfig struct {
	// Path is the database file path. ":memory:" opens an in-memory database.
	Path string `json:"path" yaml:"path"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:    StoreTypeMemory,
		BaseDir: "./data/state",
		Redis: RedisStoreConfig{
			Host:      "localhost",
			Port:      6379,
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "skillhost:",
		},
		SQLite: SQLiteStoreConfig{
			Path: "./data/state/sessions.db",
		},
	}
}

// Store is the interface all session store backends implement.
type Store interface {
	// LoadSession retrieves the session for a conversation.
	// Returns ErrNotFound if no session exists.
	LoadSession(ctx context.Context, conversationID string) (*Session, error)

	// SaveSession persists the session, creating or overwriting it.
	SaveSession(ctx context.Context, session *Session) error

	// DeleteSession removes the session for a conversation. Deleting a
	// session that does not exist is not an error.
	DeleteSession(ctx context.Context, conversationID string) error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error

	// Close closes the store and releases resources
	Close() error
}
