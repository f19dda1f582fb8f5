// ABOUTME: Relay ledger types recording each delivery attempt and its outcome
// ABOUTME: Provides Direction/Outcome constants and the RelayEvent struct

package store

import "time"

// Direction indicates which way a relay attempt travelled
type Direction string

const (
	DirectionUserToOperator Direction = "user_to_operator"
	DirectionOperatorToUser Direction = "operator_to_user"
)

// Outcome records whether a relay attempt reached its destination
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
)

// RelayEvent is one entry in the relay ledger. Every forward and every
// operator reply produces exactly one entry, delivered or failed. Ledger
// writes are best-effort: a failed write is logged by the caller and never
// fails the relay itself.
type RelayEvent struct {
	ID        string
	Direction Direction
	UserID    string
	ThreadID  string
	Outcome   Outcome
	Detail    string // failure reason for failed attempts, empty otherwise
	CreatedAt time.Time
}
