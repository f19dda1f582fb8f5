// ABOUTME: Gateway capability interface consumed by the relay engine
// ABOUTME: Defines transport operations and the GatewayError taxonomy

package relay

import (
	"context"
	"errors"
	"fmt"
)

// ErrorReason classifies why a gateway operation failed. The engine does
// not branch on reasons; they exist so failure notices can tell the
// participant why delivery failed.
type ErrorReason string

const (
	// ReasonRecipientUnreachable means the destination user cannot be
	// reached, typically because they blocked or left the relay.
	ReasonRecipientUnreachable ErrorReason = "recipient_unreachable"

	// ReasonThreadCreateFailed means a new log-channel thread could not
	// be created.
	ReasonThreadCreateFailed ErrorReason = "thread_create_failed"

	// ReasonTransient covers temporary transport failures worth retrying.
	ReasonTransient ErrorReason = "transient"
)

// GatewayError describes a failed transport operation.
type GatewayError struct {
	Reason ErrorReason
	Op     string // the gateway operation that failed, e.g. "send_direct"
	Err    error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Reason, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// DescribeFailure returns a short human-readable explanation of a delivery
// failure, suitable for a user- or operator-visible notice.
func DescribeFailure(err error) string {
	var ge *GatewayError
	if errors.As(err, &ge) {
		switch ge.Reason {
		case ReasonRecipientUnreachable:
			return "the user is unreachable (they may have blocked the relay)"
		case ReasonThreadCreateFailed:
			return "the conversation thread could not be created"
		case ReasonTransient:
			return "a temporary delivery failure, please try again"
		}
	}
	return "delivery failed"
}

// Gateway is the transport capability surface consumed by the engine. All
// calls are expected to carry platform-level timeouts owned by the
// implementation; the engine issues no cancellation of its own.
type Gateway interface {
	// SendDirect delivers content straight to a user. Text content is sent
	// verbatim; non-text content is copied from its reference, preserving
	// its type.
	SendDirect(ctx context.Context, userID string, content Content) (MessageRef, error)

	// Forward copies the referenced message into a log-channel thread.
	Forward(ctx context.Context, ref MessageRef, threadID string) error

	// CreateThread opens a new thread in the given channel and returns its
	// identifier.
	CreateThread(ctx context.Context, channelID, title string) (string, error)

	// SendToThread posts plain text into an existing thread.
	SendToThread(ctx context.Context, channelID, threadID, text string) error
}
