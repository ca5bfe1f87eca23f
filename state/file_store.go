package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore is a file-based implementation of Store.
// Suitable for single-node production deployments. Sessions are held in
// an in-memory cache and persisted to a single JSON index on every write.
type FileStore struct {
	baseDir  string
	sessions map[string]*Session // in-memory cache
	mu       sync.RWMutex
	closed   bool
}

// NewFileStore creates a new file-based session store
func NewFileStore(config StoreConfig) (*FileStore, error) {
	baseDir := filepath.Join(config.BaseDir, "sessions")
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session store directory: %w", err)
	}

	store := &FileStore{
		baseDir:  baseDir,
		sessions: make(map[string]*Session),
	}

	// Load existing sessions
	if err := store.loadFromDisk(); err != nil {
		return nil, fmt.Errorf("failed to load sessions from disk: %w", err)
	}

	return store, nil
}

// loadFromDisk loads all sessions from disk into memory
func (s *FileStore) loadFromDisk() error {
	indexPath := filepath.Join(s.baseDir, "index.json")
	data, err := os.ReadFile(indexPath)
	if os.IsNotExist(err) {
		return nil // No existing data
	}
	if err != nil {
		return err
	}

	var index struct {
		Sessions map[string]*Session `json:"sessions"`
	}

	if err := json.Unmarshal(data, &index); err != nil {
		return err
	}

	s.sessions = index.Sessions
	if s.sessions == nil {
		s.sessions = make(map[string]*Session)
	}

	return nil
}

// saveToDisk persists all sessions to disk. Caller must hold the lock.
func (s *FileStore) saveToDisk() error {
	index := struct {
		Sessions map[string]*Session `json:"sessions"`
	}{
		Sessions: s.sessions,
	}

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: write to temp file then rename
	indexPath := filepath.Join(s.baseDir, "index.json")
	tempPath := indexPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tempPath, indexPath)
}

// LoadSession retrieves the session for a conversation
func (s *FileStore) LoadSession(ctx context.Context, conversationID string) (*Session, error) {
	if conversationID == "" {
		return nil, ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	session, ok := s.sessions[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	return session.Clone(), nil
}

// SaveSession persists the session
func (s *FileStore) SaveSession(ctx context.Context, session *Session) error {
	if session == nil || session.ConversationID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	cp := session.Clone()
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	s.sessions[session.ConversationID] = cp

	return s.saveToDisk()
}

// DeleteSession removes the session for a conversation
func (s *FileStore) DeleteSession(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, ok := s.sessions[conversationID]; !ok {
		return nil
	}
	delete(s.sessions, conversationID)

	return s.saveToDisk()
}

// Ping checks if the store is healthy
func (s *FileStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}
	_, err := os.Stat(s.baseDir)
	return err
}

// Close closes the store
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	err := s.saveToDisk()
	s.closed = true
	return err
}

// Ensure FileStore implements Store
var _ Store = (*FileStore)(nil)
