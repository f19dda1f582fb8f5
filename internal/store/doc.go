// Package store provides persistent storage for the relay using SQLite.
//
// The single durable entity is the Correlation: one row per end-user,
// mapping the user to the log-channel thread that carries their inquiry.
// Lookups go both ways (user to thread for forwarding, thread to user for
// operator replies), and creation uses an atomic insert-if-absent so two
// concurrent first-contact messages from the same user cannot both win.
//
// A second table, relay_events, is a best-effort ledger of delivery
// attempts and their outcomes; it is inspection data, never consulted by
// the relay path.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
//   - ErrNotFound: no correlation for the requested key
//   - ErrUnavailable: the storage medium cannot be reached; wrapped into
//     every failure that is not a missing row
//
// All methods accept context.Context for cancellation support.
//
// # Degraded Mode
//
// MemoryStore implements the same interface with process-local maps. It is
// intended for tests and for explicitly configured throwaway deployments;
// every correlation is lost on restart, leaving existing log-channel
// threads unresolvable.
package store
