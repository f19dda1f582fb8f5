// ABOUTME: In-memory implementation of the Store interface for tests and degraded mode
// ABOUTME: Loses all correlations on restart; the SQLite store is the real source of truth

package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements the Store interface with process-local maps.
// It is a degraded mode: every correlation is lost on restart. Use it for
// tests, or when explicitly configured with the understanding that threads
// in the log channel become unresolvable after the process exits.
type MemoryStore struct {
	mu           sync.RWMutex
	correlations map[string]*Correlation // keyed by user ID
	events       []*RelayEvent
	logger       *slog.Logger
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	logger := slog.Default().With("component", "store")
	logger.Warn("using in-memory store: correlations will not survive a restart")

	return &MemoryStore{
		correlations: make(map[string]*Correlation),
		logger:       logger,
	}
}

// GetThread returns the thread correlated with userID
func (s *MemoryStore) GetThread(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.correlations[userID]
	if !ok {
		return "", ErrNotFound
	}
	return c.ThreadID, nil
}

// GetUser returns the user correlated with threadID. The reverse lookup is
// a scan; correlation counts are small enough that an index would not pay
// for itself here.
func (s *MemoryStore) GetUser(ctx context.Context, threadID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for userID, c := range s.correlations {
		if c.ThreadID == threadID {
			return userID, nil
		}
	}
	return "", ErrNotFound
}

// Set creates or overwrites the correlation for userID
func (s *MemoryStore) Set(ctx context.Context, userID, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if c, ok := s.correlations[userID]; ok {
		c.ThreadID = threadID
		c.UpdatedAt = now
		return nil
	}

	s.correlations[userID] = &Correlation{
		UserID:    userID,
		ThreadID:  threadID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// SetIfAbsent creates the correlation only if the user has none, returning
// the thread that won
func (s *MemoryStore) SetIfAbsent(ctx context.Context, userID, threadID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.correlations[userID]; ok {
		return c.ThreadID, nil
	}

	now := time.Now().UTC()
	s.correlations[userID] = &Correlation{
		UserID:    userID,
		ThreadID:  threadID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return threadID, nil
}

// ListCorrelations returns correlations ordered by most recent update
func (s *MemoryStore) ListCorrelations(ctx context.Context, limit int) ([]*Correlation, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	correlations := make([]*Correlation, 0, len(s.correlations))
	for _, c := range s.correlations {
		copied := *c
		correlations = append(correlations, &copied)
	}

	// Newest update first, matching the SQLite store
	sort.Slice(correlations, func(i, j int) bool {
		return correlations[i].UpdatedAt.After(correlations[j].UpdatedAt)
	})

	if len(correlations) > limit {
		correlations = correlations[:limit]
	}
	return correlations, nil
}

// SaveRelayEvent appends a ledger entry
func (s *MemoryStore) SaveRelayEvent(ctx context.Context, event *RelayEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *event
	s.events = append(s.events, &copied)
	return nil
}

// ListRelayEvents returns ledger entries, newest first
func (s *MemoryStore) ListRelayEvents(ctx context.Context, limit int) ([]*RelayEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*RelayEvent
	for i := len(s.events) - 1; i >= 0 && len(events) < limit; i-- {
		copied := *s.events[i]
		events = append(events, &copied)
	}
	return events, nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}
