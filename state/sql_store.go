package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLStore is a SQLite-backed implementation of Store.
// Suitable for single-node deployments that want state to survive
// restarts and be queryable with ordinary SQL tools.
type SQLStore struct {
	db *gorm.DB
}

// TableName maps Session onto the sessions table.
func (Session) TableName() string { return "sessions" }

// NewSQLStore creates a new SQLite-based session store and migrates the
// sessions table.
func NewSQLStore(config StoreConfig) (*SQLStore, error) {
	path := config.SQLite.Path
	if path == "" {
		path = DefaultStoreConfig().SQLite.Path
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.AutoMigrate(&Session{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sessions table: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// LoadSession retrieves the session for a conversation
func (s *SQLStore) LoadSession(ctx context.Context, conversationID string) (*Session, error) {
	if conversationID == "" {
		return nil, ErrInvalidInput
	}

	var session Session
	err := s.db.WithContext(ctx).First(&session, "conversation_id = ?", conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SaveSession persists the session
func (s *SQLStore) SaveSession(ctx context.Context, session *Session) error {
	if session == nil || session.ConversationID == "" {
		return ErrInvalidInput
	}

	cp := session.Clone()
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Save(cp).Error
}

// DeleteSession removes the session for a conversation
func (s *SQLStore) DeleteSession(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidInput
	}
	return s.db.WithContext(ctx).Delete(&Session{}, "conversation_id = ?", conversationID).Error
}

// Ping checks if the store is healthy
func (s *SQLStore) Ping(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close closes the store
func (s *SQLStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// Ensure SQLStore implements Store
var _ Store = (*SQLStore)(nil)
