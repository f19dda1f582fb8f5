// ABOUTME: Store interface and data types for coven-relay persistence
// ABOUTME: Defines the Correlation entity and the error taxonomy for the mapping store

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no correlation exists for the requested key
var ErrNotFound = errors.New("not found")

// ErrUnavailable is returned when the storage medium cannot be reached.
// It is distinct from ErrNotFound so callers can tell "no correlation"
// apart from "the store is down".
var ErrUnavailable = errors.New("storage unavailable")

// Correlation pairs one end-user identity with the conversation thread that
// carries their inquiry inside the log channel. There is at most one
// correlation per user.
type Correlation struct {
	UserID    string
	ThreadID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store defines the interface for correlation and relay-ledger persistence
type Store interface {
	// GetThread returns the thread correlated with userID.
	// Returns ErrNotFound if the user has no correlation.
	GetThread(ctx context.Context, userID string) (string, error)

	// GetUser returns the user correlated with threadID.
	// Returns ErrNotFound if the thread is not correlated with any user.
	GetUser(ctx context.Context, threadID string) (string, error)

	// Set creates the correlation for userID, or overwrites its thread if
	// one already exists. The overwrite path exists for out-of-band
	// remapping (e.g. an operator recreated a thread by hand); the relay
	// engine itself never overwrites.
	Set(ctx context.Context, userID, threadID string) error

	// SetIfAbsent creates the correlation only if the user has none, and
	// returns the thread that won: threadID when the insert took effect,
	// or the previously stored thread when a concurrent writer got there
	// first.
	SetIfAbsent(ctx context.Context, userID, threadID string) (string, error)

	// ListCorrelations returns correlations ordered by most recent update.
	ListCorrelations(ctx context.Context, limit int) ([]*Correlation, error)

	// Relay ledger (delivery attempts and outcomes)
	SaveRelayEvent(ctx context.Context, event *RelayEvent) error
	ListRelayEvents(ctx context.Context, limit int) ([]*RelayEvent, error)

	// Close releases any resources held by the store
	Close() error
}
