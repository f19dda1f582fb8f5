// ABOUTME: Matrix implementation of the relay Gateway capability
// ABOUTME: Threads are m.thread relations in the log room; direct sends resolve per-user DM rooms

package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-relay/internal/relay"
)

// Gateway implements relay.Gateway on top of a Matrix homeserver. A
// "thread" is an m.thread relation rooted at the thread's opening message
// in the log room, so thread identifiers are Matrix event IDs.
type Gateway struct {
	client  *mautrix.Client
	logRoom id.RoomID
	logger  *slog.Logger

	// dmRooms caches the direct room per user. Populated from inbound
	// direct messages by the bridge and from rooms this gateway creates.
	// The cache is process-local; after a restart a direct send falls back
	// to creating a fresh DM room with the user invited.
	dmRooms sync.Map // user ID string -> id.RoomID
}

// NewGateway creates a Matrix gateway sending into the given log room.
func NewGateway(client *mautrix.Client, logRoom id.RoomID, logger *slog.Logger) *Gateway {
	return &Gateway{
		client:  client,
		logRoom: logRoom,
		logger:  logger.With("component", "matrix-gateway"),
	}
}

// RememberDirectRoom records the room a user's direct messages arrive in,
// so replies to that user reuse it instead of opening a new room.
func (g *Gateway) RememberDirectRoom(user id.UserID, room id.RoomID) {
	g.dmRooms.Store(user.String(), room)
}

// SendDirect delivers content straight to a user. Text is sent verbatim;
// anything else is copied from its reference so the content type survives.
func (g *Gateway) SendDirect(ctx context.Context, userID string, content relay.Content) (relay.MessageRef, error) {
	room, err := g.directRoom(ctx, id.UserID(userID))
	if err != nil {
		return relay.MessageRef{}, classify("send_direct", err)
	}

	if content.Text != "" {
		resp, err := g.client.SendText(ctx, room, content.Text)
		if err != nil {
			return relay.MessageRef{}, classify("send_direct", err)
		}
		return relay.MessageRef{ChannelID: room.String(), MessageID: resp.EventID.String()}, nil
	}

	return g.copyMessage(ctx, content.Ref, room, "")
}

// Forward copies the referenced message into a log-room thread.
func (g *Gateway) Forward(ctx context.Context, ref relay.MessageRef, threadID string) error {
	_, err := g.copyMessage(ctx, ref, g.logRoom, id.EventID(threadID))
	return err
}

// CreateThread opens a new thread in the channel by posting its title as
// the thread root message. The root's event ID is the thread identifier.
func (g *Gateway) CreateThread(ctx context.Context, channelID, title string) (string, error) {
	resp, err := g.client.SendText(ctx, id.RoomID(channelID), title)
	if err != nil {
		return "", &relay.GatewayError{Reason: relay.ReasonThreadCreateFailed, Op: "create_thread", Err: err}
	}

	g.logger.Debug("created thread", "room", channelID, "thread_id", resp.EventID)
	return resp.EventID.String(), nil
}

// SendToThread posts plain text into an existing thread.
func (g *Gateway) SendToThread(ctx context.Context, channelID, threadID, text string) error {
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
		RelatesTo: &event.RelatesTo{
			Type:    event.RelThread,
			EventID: id.EventID(threadID),
		},
	}

	if _, err := g.client.SendMessageEvent(ctx, id.RoomID(channelID), event.EventMessage, content); err != nil {
		return classify("send_to_thread", err)
	}
	return nil
}

// copyMessage re-sends the referenced message's content into dest,
// optionally inside a thread, preserving its msgtype and formatting.
func (g *Gateway) copyMessage(ctx context.Context, ref relay.MessageRef, dest id.RoomID, threadRoot id.EventID) (relay.MessageRef, error) {
	src, err := g.client.GetEvent(ctx, id.RoomID(ref.ChannelID), id.EventID(ref.MessageID))
	if err != nil {
		return relay.MessageRef{}, classify("forward", err)
	}

	if src.Content.Parsed == nil {
		if err := src.Content.ParseRaw(event.EventMessage); err != nil {
			return relay.MessageRef{}, classify("forward", fmt.Errorf("parsing source event: %w", err))
		}
	}

	msg, ok := src.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return relay.MessageRef{}, classify("forward", fmt.Errorf("source event %s is not a message", ref.MessageID))
	}

	// Copy the content, replacing any relations the original carried with
	// the destination thread.
	copied := *msg
	copied.RelatesTo = nil
	if threadRoot != "" {
		copied.RelatesTo = &event.RelatesTo{
			Type:    event.RelThread,
			EventID: threadRoot,
		}
	}

	resp, err := g.client.SendMessageEvent(ctx, dest, event.EventMessage, &copied)
	if err != nil {
		return relay.MessageRef{}, classify("forward", err)
	}

	return relay.MessageRef{ChannelID: dest.String(), MessageID: resp.EventID.String()}, nil
}

// directRoom returns the DM room for a user, creating one if none is known.
func (g *Gateway) directRoom(ctx context.Context, user id.UserID) (id.RoomID, error) {
	if v, ok := g.dmRooms.Load(user.String()); ok {
		return v.(id.RoomID), nil
	}

	resp, err := g.client.CreateRoom(ctx, &mautrix.ReqCreateRoom{
		Invite:   []id.UserID{user},
		IsDirect: true,
		Preset:   "trusted_private_chat",
	})
	if err != nil {
		return "", err
	}

	g.logger.Info("created direct room", "user_id", user, "room", resp.RoomID)
	g.dmRooms.Store(user.String(), resp.RoomID)
	return resp.RoomID, nil
}

// classify maps a Matrix error to the gateway error taxonomy. M_FORBIDDEN
// on a direct path means the user blocked or left the relay.
func classify(op string, err error) error {
	reason := relay.ReasonTransient
	if errors.Is(err, mautrix.MForbidden) {
		reason = relay.ReasonRecipientUnreachable
	}
	return &relay.GatewayError{Reason: reason, Op: op, Err: err}
}
