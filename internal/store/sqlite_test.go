package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestSQLiteStore_SetAndGetThread(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Set(ctx, "user-42", "thread-T")
	require.NoError(t, err)

	threadID, err := store.GetThread(ctx, "user-42")
	require.NoError(t, err)
	assert.Equal(t, "thread-T", threadID)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "user-42", "thread-T"))

	userID, err := store.GetUser(ctx, "thread-T")
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)

	threadID, err := store.GetThread(ctx, "user-42")
	require.NoError(t, err)
	assert.Equal(t, "thread-T", threadID)
}

func TestSQLiteStore_GetThread_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetThread(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_GetUser_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetUser(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Set_Overwrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "user-42", "thread-old"))
	require.NoError(t, store.Set(ctx, "user-42", "thread-new"))

	threadID, err := store.GetThread(ctx, "user-42")
	require.NoError(t, err)
	assert.Equal(t, "thread-new", threadID)

	// The old thread no longer resolves
	_, err = store.GetUser(ctx, "thread-old")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SetIfAbsent_New(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	winner, err := store.SetIfAbsent(ctx, "user-42", "thread-T")
	require.NoError(t, err)
	assert.Equal(t, "thread-T", winner)
}

func TestSQLiteStore_SetIfAbsent_Existing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "user-42", "thread-first"))

	winner, err := store.SetIfAbsent(ctx, "user-42", "thread-second")
	require.NoError(t, err)
	assert.Equal(t, "thread-first", winner, "existing correlation must win")

	// The losing thread was never stored
	threadID, err := store.GetThread(ctx, "user-42")
	require.NoError(t, err)
	assert.Equal(t, "thread-first", threadID)
}

func TestSQLiteStore_SetIfAbsent_Concurrent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	const writers = 10
	winners := make([]string, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			winner, err := store.SetIfAbsent(ctx, "user-42", fmt.Sprintf("thread-%d", n))
			assert.NoError(t, err)
			winners[n] = winner
		}(i)
	}
	wg.Wait()

	// Every writer must observe the same winning thread
	threadID, err := store.GetThread(ctx, "user-42")
	require.NoError(t, err)
	for i := 0; i < writers; i++ {
		assert.Equal(t, threadID, winners[i])
	}
}

func TestSQLiteStore_Durability(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "user-42", "thread-T"))
	require.NoError(t, store.Close())

	// Reopen and verify the correlation survived
	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	threadID, err := reopened.GetThread(ctx, "user-42")
	require.NoError(t, err)
	assert.Equal(t, "thread-T", threadID)
}

func TestSQLiteStore_ListCorrelations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("user-%d", i), fmt.Sprintf("thread-%d", i)))
	}

	correlations, err := store.ListCorrelations(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, correlations, 3)

	limited, err := store.ListCorrelations(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStore_RelayEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := &RelayEvent{
		ID:        "evt-1",
		Direction: DirectionUserToOperator,
		UserID:    "user-42",
		ThreadID:  "thread-T",
		Outcome:   OutcomeDelivered,
		CreatedAt: time.Now().UTC().Add(-time.Minute),
	}
	second := &RelayEvent{
		ID:        "evt-2",
		Direction: DirectionOperatorToUser,
		UserID:    "user-42",
		ThreadID:  "thread-T",
		Outcome:   OutcomeFailed,
		Detail:    "the user is unreachable",
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, store.SaveRelayEvent(ctx, first))
	require.NoError(t, store.SaveRelayEvent(ctx, second))

	events, err := store.ListRelayEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first
	assert.Equal(t, "evt-2", events[0].ID)
	assert.Equal(t, OutcomeFailed, events[0].Outcome)
	assert.Equal(t, "the user is unreachable", events[0].Detail)
	assert.Equal(t, "evt-1", events[1].ID)
}
