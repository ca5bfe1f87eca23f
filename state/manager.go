package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager is a write-behind accessor over a Store. Reads hit an
// in-process cache that is filled from the store on first access;
// mutations only mark the cached session dirty. Nothing reaches the
// backend until SaveChanges runs, which lets a turn handler batch all
// of its state writes into one store round-trip.
type Manager struct {
	store  Store
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]*cachedSession
}

type cachedSession struct {
	session *Session
	dirty   bool
}

// NewManager creates a state manager on top of the given store.
func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		logger: logger.With(zap.String("component", "state_manager")),
		cache:  make(map[string]*cachedSession),
	}
}

// load returns the cached entry for a conversation, filling the cache
// from the store on first access. A conversation with no stored session
// gets a fresh empty one. Caller must hold the lock.
func (m *Manager) load(ctx context.Context, conversationID string) (*cachedSession, error) {
	if conversationID == "" {
		return nil, ErrInvalidInput
	}

	if entry, ok := m.cache[conversationID]; ok {
		return entry, nil
	}

	session, err := m.store.LoadSession(ctx, conversationID)
	if errors.Is(err, ErrNotFound) {
		session = &Session{ConversationID: conversationID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	entry := &cachedSession{session: session}
	m.cache[conversationID] = entry
	return entry, nil
}

// ActiveSkill returns the ID of the skill the conversation is routed
// to, or empty when the root bot owns the conversation.
func (m *Manager) ActiveSkill(ctx context.Context, conversationID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.load(ctx, conversationID)
	if err != nil {
		return "", err
	}
	return entry.session.ActiveSkillID, nil
}

// SetActiveSkill marks the conversation as routed to the given skill.
// The change stays in the cache until SaveChanges.
func (m *Manager) SetActiveSkill(ctx context.Context, conversationID, skillID string) error {
	if skillID == "" {
		return fmt.Errorf("%w: empty skill id", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.load(ctx, conversationID)
	if err != nil {
		return err
	}

	if entry.session.ActiveSkillID == skillID {
		return nil
	}
	entry.session.ActiveSkillID = skillID
	entry.dirty = true
	return nil
}

// ClearActiveSkill returns the conversation to the root bot.
// The change stays in the cache until SaveChanges.
func (m *Manager) ClearActiveSkill(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.load(ctx, conversationID)
	if err != nil {
		return err
	}

	if entry.session.ActiveSkillID == "" {
		return nil
	}
	entry.session.ActiveSkillID = ""
	entry.dirty = true
	return nil
}

// SaveChanges flushes the conversation's cached session to the store.
// Clean sessions are skipped unless force is set.
func (m *Manager) SaveChanges(ctx context.Context, conversationID string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.cache[conversationID]
	if !ok {
		return nil
	}
	if !entry.dirty && !force {
		return nil
	}

	if err := m.store.SaveSession(ctx, entry.session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	entry.dirty = false

	m.logger.Debug("session saved",
		zap.String("conversation_id", conversationID),
		zap.String("active_skill_id", entry.session.ActiveSkillID),
		zap.Bool("forced", force))
	return nil
}

// Evict drops the conversation's session from the cache without
// touching the store. Unsaved changes are lost.
func (m *Manager) Evict(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, conversationID)
}

// Delete removes the conversation's session from both the cache and
// the store.
func (m *Manager) Delete(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cache, conversationID)
	return m.store.DeleteSession(ctx, conversationID)
}

// Ping reports the health of the underlying store.
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}
