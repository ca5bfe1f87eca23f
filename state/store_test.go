package state

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeUnderTest runs the shared Store contract against a backend.
func storeUnderTest(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing session", func(t *testing.T) {
		_, err := store.LoadSession(ctx, "no-such-conversation")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		err := store.SaveSession(ctx, &Session{
			ConversationID: "conv-1",
			ActiveSkillID:  "EchoSkillBot",
		})
		require.NoError(t, err)

		session, err := store.LoadSession(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, "conv-1", session.ConversationID)
		assert.Equal(t, "EchoSkillBot", session.ActiveSkillID)
		assert.False(t, session.UpdatedAt.IsZero())
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.SaveSession(ctx, &Session{ConversationID: "conv-1"}))

		session, err := store.LoadSession(ctx, "conv-1")
		require.NoError(t, err)
		assert.Empty(t, session.ActiveSkillID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteSession(ctx, "conv-1"))

		_, err := store.LoadSession(ctx, "conv-1")
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting again is not an error.
		assert.NoError(t, store.DeleteSession(ctx, "conv-1"))
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := store.LoadSession(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.ErrorIs(t, store.SaveSession(ctx, nil), ErrInvalidInput)
		assert.ErrorIs(t, store.SaveSession(ctx, &Session{}), ErrInvalidInput)
		assert.ErrorIs(t, store.DeleteSession(ctx, ""), ErrInvalidInput)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	storeUnderTest(t, store)
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	ctx := context.Background()
	_, err := store.LoadSession(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.SaveSession(ctx, &Session{ConversationID: "conv-1"}), ErrStoreClosed)
	assert.ErrorIs(t, store.Ping(ctx), ErrStoreClosed)
}

func TestFileStore(t *testing.T) {
	config := DefaultStoreConfig()
	config.Type = StoreTypeFile
	config.BaseDir = t.TempDir()

	store, err := NewFileStore(config)
	require.NoError(t, err)
	defer store.Close()

	storeUnderTest(t, store)
}

func TestFileStore_Reload(t *testing.T) {
	config := DefaultStoreConfig()
	config.Type = StoreTypeFile
	config.BaseDir = t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(config)
	require.NoError(t, err)
	require.NoError(t, store.SaveSession(ctx, &Session{
		ConversationID: "conv-1",
		ActiveSkillID:  "EchoSkillBot",
	}))
	require.NoError(t, store.Close())

	// A new store over the same directory sees the saved session.
	reopened, err := NewFileStore(config)
	require.NoError(t, err)
	defer reopened.Close()

	session, err := reopened.LoadSession(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "EchoSkillBot", session.ActiveSkillID)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	config := DefaultStoreConfig()
	config.Type = StoreTypeRedis
	config.Redis.Host = mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	config.Redis.Port = port

	store, err := NewRedisStore(config)
	require.NoError(t, err)
	defer store.Close()

	storeUnderTest(t, store)
}

func TestSQLStore(t *testing.T) {
	config := DefaultStoreConfig()
	config.Type = StoreTypeSQLite
	config.SQLite.Path = ":memory:"

	store, err := NewSQLStore(config)
	require.NoError(t, err)
	defer store.Close()

	storeUnderTest(t, store)
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		storeType StoreType
		wantErr   bool
	}{
		{StoreTypeMemory, false},
		{StoreTypeFile, false},
		{StoreTypeSQLite, false},
		{StoreType("cassandra"), true},
	}

	for _, tt := range tests {
		t.Run(string(tt.storeType), func(t *testing.T) {
			config := DefaultStoreConfig()
			config.Type = tt.storeType
			config.BaseDir = t.TempDir()
			config.SQLite.Path = ":memory:"

			store, err := NewStore(config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, store.Close())
		})
	}

	t.Run("empty type defaults to memory", func(t *testing.T) {
		store, err := NewStore(StoreConfig{})
		require.NoError(t, err)
		_, ok := store.(*MemoryStore)
		assert.True(t, ok, fmt.Sprintf("expected *MemoryStore, got %T", store))
		store.Close()
	})
}
