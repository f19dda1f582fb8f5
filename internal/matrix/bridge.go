// ABOUTME: Matrix event source for the relay engine
// ABOUTME: Syncs the homeserver, classifies inbound events and dispatches them to the engine

package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-relay/internal/dedupe"
	"github.com/2389/coven-relay/internal/relay"
)

// Duplicate sync deliveries of the same event are dropped within this window.
const dedupeTTL = 10 * time.Minute

// dedupeSize bounds the seen-set; at relay volumes this covers far more
// than the TTL window.
const dedupeSize = 4096

// Bridge is the event source: it syncs a Matrix homeserver, classifies each
// inbound message as a user message or an operator reply, and hands it to
// the relay engine.
type Bridge struct {
	client     *mautrix.Client
	gateway    *Gateway
	engine     *relay.Engine
	operatorID id.UserID
	logRoom    id.RoomID
	seen       *dedupe.Guard
	logger     *slog.Logger

	// names caches display-name lookups per user
	names sync.Map // user ID string -> display name

	// ctx is the parent context for event processing goroutines
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBridge creates a bridge wiring the Matrix client to the relay engine.
func NewBridge(client *mautrix.Client, gateway *Gateway, engine *relay.Engine, operatorID id.UserID, logRoom id.RoomID, logger *slog.Logger) *Bridge {
	return &Bridge{
		client:     client,
		gateway:    gateway,
		engine:     engine,
		operatorID: operatorID,
		logRoom:    logRoom,
		seen:       dedupe.New(dedupeTTL, dedupeSize),
		logger:     logger.With("component", "matrix-bridge"),
	}
}

// Run starts syncing and blocks until the context is cancelled or the sync
// loop fails.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("starting matrix bridge",
		"user_id", b.client.UserID,
		"log_room", b.logRoom,
		"operator", b.operatorID,
	)

	b.ctx, b.cancel = context.WithCancel(ctx)
	defer b.cancel()

	syncer, ok := b.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", b.client.Syncer)
	}

	// Skip everything delivered before this process started
	syncer.OnSync(b.client.DontProcessOldEvents)

	syncer.OnEventType(event.EventMessage, b.handleMessageEvent)
	syncer.OnEventType(event.StateMember, b.handleMemberEvent)

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- b.client.SyncWithContext(b.ctx)
	}()

	b.logger.Info("matrix bridge running")

	select {
	case <-ctx.Done():
		b.logger.Info("shutting down matrix bridge")
		b.cancel()
		return nil
	case err := <-syncErr:
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

// handleMemberEvent accepts invites so end-users can open a direct room
// with the relay.
func (b *Bridge) handleMemberEvent(ctx context.Context, evt *event.Event) {
	member := evt.Content.AsMember()
	if member == nil || member.Membership != event.MembershipInvite {
		return
	}
	if evt.GetStateKey() != b.client.UserID.String() {
		return
	}

	b.logger.Info("accepting room invite", "room", evt.RoomID, "inviter", evt.Sender)
	if _, err := b.client.JoinRoomByID(ctx, evt.RoomID); err != nil {
		b.logger.Error("joining room failed", "room", evt.RoomID, "error", err)
	}
}

// handleMessageEvent classifies an inbound message and dispatches it to the
// engine. Processing runs in a goroutine so the sync loop is never blocked
// by gateway calls.
func (b *Bridge) handleMessageEvent(ctx context.Context, evt *event.Event) {
	// Ignore our own messages
	if evt.Sender == b.client.UserID {
		return
	}

	msg, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return
	}

	if b.seen.Seen(evt.ID.String()) {
		b.logger.Debug("duplicate event ignored", "event_id", evt.ID)
		return
	}

	relayEvent := b.classify(ctx, evt, msg)
	if relayEvent == nil {
		return
	}

	go func() {
		if err := b.engine.HandleEvent(b.ctx, relayEvent); err != nil {
			b.logger.Error("relay event failed", "event_id", evt.ID, "error", err)
		}
	}()
}

// classify maps a Matrix message event onto the relay event union. Messages
// in the log room are operator traffic; everything else is a direct inquiry.
func (b *Bridge) classify(ctx context.Context, evt *event.Event, msg *event.MessageEventContent) relay.Event {
	if evt.RoomID == b.logRoom {
		if evt.Sender != b.operatorID {
			// Other participants' chatter in the log room is not relay
			// traffic.
			return nil
		}

		threadID := ""
		isReply := false
		if rel := msg.RelatesTo; rel != nil {
			if root := rel.GetThreadParent(); root != "" {
				threadID = root.String()
				isReply = true
			} else if rel.GetReplyTo() != "" {
				isReply = true
			}
		}

		return &relay.OperatorReply{
			ThreadID: threadID,
			IsReply:  isReply,
			Content:  messageContent(evt, msg),
		}
	}

	// A message outside the log room is a direct inquiry. Remember the
	// room so replies to this user land in the conversation they opened.
	b.gateway.RememberDirectRoom(evt.Sender, evt.RoomID)

	return &relay.UserMessage{
		UserID:     evt.Sender.String(),
		SenderName: b.displayName(ctx, evt.Sender),
		Content:    messageContent(evt, msg),
	}
}

// messageContent builds relay content: text for plain text messages, and
// always a reference to the original event for copy-forwarding.
func messageContent(evt *event.Event, msg *event.MessageEventContent) relay.Content {
	content := relay.Content{
		Ref: relay.MessageRef{
			ChannelID: evt.RoomID.String(),
			MessageID: evt.ID.String(),
		},
	}
	if msg.MsgType == event.MsgText {
		content.Text = msg.Body
	}
	return content
}

// displayName resolves a user's display name, falling back to the localpart
// of their Matrix ID.
func (b *Bridge) displayName(ctx context.Context, user id.UserID) string {
	if v, ok := b.names.Load(user.String()); ok {
		return v.(string)
	}

	name := strings.TrimPrefix(user.String(), "@")
	if localpart, _, err := user.Parse(); err == nil && localpart != "" {
		name = localpart
	}

	lookupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if resp, err := b.client.GetDisplayName(lookupCtx, user); err == nil && resp.DisplayName != "" {
		name = resp.DisplayName
	} else if err != nil {
		b.logger.Debug("display name lookup failed", "user_id", user, "error", err)
	}

	b.names.Store(user.String(), name)
	return name
}
