package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "user-42", "thread-T"))

	threadID, err := store.GetThread(ctx, "user-42")
	require.NoError(t, err)
	assert.Equal(t, "thread-T", threadID)

	userID, err := store.GetUser(ctx, "thread-T")
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestMemoryStore_NotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetThread(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetUser(ctx, "no-thread")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SetIfAbsent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	winner, err := store.SetIfAbsent(ctx, "user-42", "thread-first")
	require.NoError(t, err)
	assert.Equal(t, "thread-first", winner)

	winner, err = store.SetIfAbsent(ctx, "user-42", "thread-second")
	require.NoError(t, err)
	assert.Equal(t, "thread-first", winner)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", n)
			_, err := store.SetIfAbsent(ctx, user, fmt.Sprintf("thread-%d", n))
			assert.NoError(t, err)
			_, err = store.GetThread(ctx, user)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	correlations, err := store.ListCorrelations(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, correlations, 20)
}

func TestMemoryStore_RelayEvents(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveRelayEvent(ctx, &RelayEvent{
			ID:        fmt.Sprintf("evt-%d", i),
			Direction: DirectionUserToOperator,
			UserID:    "user-42",
			Outcome:   OutcomeDelivered,
			CreatedAt: time.Now().UTC(),
		}))
	}

	events, err := store.ListRelayEvents(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "evt-4", events[0].ID, "newest entry first")
}
