// ABOUTME: Inbound event types delivered to the relay engine by an event source
// ABOUTME: Defines the tagged union of UserMessage, OperatorReply and Other

package relay

// MessageRef identifies a message on the transport so it can be forwarded
// or copied without re-typing its content. Forward-by-reference is what
// preserves media, formatting and reply chains across the relay.
type MessageRef struct {
	// ChannelID is the room/channel the message lives in
	ChannelID string

	// MessageID is the platform-specific message identifier
	MessageID string
}

// Content carries what a sender wrote. Text is set for plain text messages;
// Ref always points at the original message so non-text content can be
// copied with its type intact.
type Content struct {
	Text string
	Ref  MessageRef
}

// Event is an inbound chat event. Event sources produce a stream of these;
// the engine acts on UserMessage and OperatorReply and ignores the rest.
type Event interface {
	isEvent()
}

// UserMessage is a message sent directly to the relay by an end-user.
type UserMessage struct {
	// UserID is the opaque stable identity of the sender
	UserID string

	// SenderName is the human-readable display name, used for thread titles
	SenderName string

	Content Content
}

// OperatorReply is a message sent by the operator inside the log channel.
type OperatorReply struct {
	// ThreadID is the thread the message was posted in, empty if none
	ThreadID string

	// IsReply is true when the message is itself a reply within a thread.
	// Operator chatter in the log channel outside any thread is not relay
	// traffic and carries IsReply false.
	IsReply bool

	Content Content
}

// Other is any event the relay does not act on.
type Other struct{}

func (*UserMessage) isEvent()   {}
func (*OperatorReply) isEvent() {}
func (*Other) isEvent()         {}
