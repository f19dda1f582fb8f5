// ABOUTME: Relay engine translating inbound events into gateway side effects
// ABOUTME: Owns first-contact thread creation, forwarding and operator reply resolution

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-relay/internal/store"
)

// Default notice texts, used when the config leaves them empty.
const (
	defaultWelcomeText         = "Hi! This relay connects you with the operator. Just type your question here."
	defaultOperatorHintText    = "You are the operator. Reply inside the log channel threads to answer users."
	defaultDeliveryFailureText = "Your message could not be delivered. Please try again later."
	defaultUnknownThreadText   = "Cannot work out which user this thread belongs to."
)

// Config holds the identities and notice texts the engine needs. Operator
// and log-channel identities are process-lifetime constants supplied at
// startup.
type Config struct {
	// OperatorID is the single privileged identity that reads all threads
	OperatorID string

	// LogChannelID is the channel that holds one thread per user
	LogChannelID string

	// StartCommand, when non-empty, makes a user message consisting of
	// exactly this text answer with WelcomeText instead of being relayed.
	StartCommand string

	WelcomeText         string
	OperatorHintText    string
	DeliveryFailureText string
	UnknownThreadText   string
}

// Engine consumes inbound events and drives the store and gateway to
// produce at most one relay side effect per event. It holds no state of its
// own between events and is safe for concurrent invocation.
type Engine struct {
	store  store.Store
	gw     Gateway
	cfg    Config
	logger *slog.Logger

	// firstContact serializes thread creation per user so two concurrent
	// first messages from the same user produce exactly one thread.
	// Entries are tiny and never removed; the map is bounded by the number
	// of distinct users seen by this process.
	firstContact sync.Map // user ID -> *sync.Mutex
}

// New creates a relay engine. Empty notice texts in cfg fall back to the
// package defaults.
func New(st store.Store, gw Gateway, cfg Config, logger *slog.Logger) *Engine {
	if cfg.WelcomeText == "" {
		cfg.WelcomeText = defaultWelcomeText
	}
	if cfg.OperatorHintText == "" {
		cfg.OperatorHintText = defaultOperatorHintText
	}
	if cfg.DeliveryFailureText == "" {
		cfg.DeliveryFailureText = defaultDeliveryFailureText
	}
	if cfg.UnknownThreadText == "" {
		cfg.UnknownThreadText = defaultUnknownThreadText
	}

	return &Engine{
		store:  st,
		gw:     gw,
		cfg:    cfg,
		logger: logger.With("component", "relay"),
	}
}

// HandleEvent runs one inbound event to completion. Failures are converted
// into participant-visible notices at the point they occur; the returned
// error exists for the caller's log and is never fatal to the process.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) error {
	switch ev := ev.(type) {
	case *UserMessage:
		return e.handleUserMessage(ctx, ev)
	case *OperatorReply:
		return e.handleOperatorReply(ctx, ev)
	default:
		return nil
	}
}

func (e *Engine) handleUserMessage(ctx context.Context, msg *UserMessage) error {
	if msg.UserID == e.cfg.OperatorID {
		e.notifyUser(ctx, msg.UserID, e.cfg.OperatorHintText)
		return nil
	}

	if e.cfg.StartCommand != "" && strings.TrimSpace(msg.Content.Text) == e.cfg.StartCommand {
		e.notifyUser(ctx, msg.UserID, e.cfg.WelcomeText)
		return nil
	}

	threadID, err := e.resolveThread(ctx, msg)
	if err != nil {
		e.logger.Error("resolving thread failed", "user_id", msg.UserID, "error", err)
		e.notifyUser(ctx, msg.UserID, e.failureNotice(err))
		e.record(ctx, store.DirectionUserToOperator, msg.UserID, "", store.OutcomeFailed, DescribeFailure(err))
		return err
	}

	if err := e.gw.Forward(ctx, msg.Content.Ref, threadID); err != nil {
		// The correlation stays intact; it is still valid for the user's
		// next attempt.
		e.logger.Error("forwarding failed", "user_id", msg.UserID, "thread_id", threadID, "error", err)
		e.notifyUser(ctx, msg.UserID, e.failureNotice(err))
		e.record(ctx, store.DirectionUserToOperator, msg.UserID, threadID, store.OutcomeFailed, DescribeFailure(err))
		return err
	}

	e.logger.Info("forwarded user message", "user_id", msg.UserID, "thread_id", threadID)
	e.record(ctx, store.DirectionUserToOperator, msg.UserID, threadID, store.OutcomeDelivered, "")
	return nil
}

// resolveThread returns the thread correlated with the sender, creating it
// on first contact. Nothing is persisted unless thread creation succeeded,
// so a failed first contact is retried simply by the user sending another
// message.
func (e *Engine) resolveThread(ctx context.Context, msg *UserMessage) (string, error) {
	threadID, err := e.store.GetThread(ctx, msg.UserID)
	if err == nil {
		return threadID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	unlock := e.lockUser(msg.UserID)
	defer unlock()

	// Re-check under the lock; a concurrent first message may have won.
	threadID, err = e.store.GetThread(ctx, msg.UserID)
	if err == nil {
		return threadID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	title := fmt.Sprintf("Inquiry from %s (ID: %s)", msg.SenderName, msg.UserID)
	created, err := e.gw.CreateThread(ctx, e.cfg.LogChannelID, title)
	if err != nil {
		return "", err
	}

	winner, err := e.store.SetIfAbsent(ctx, msg.UserID, created)
	if err != nil {
		return "", err
	}
	if winner != created {
		// A writer in another process got there first. Adopt its thread;
		// the one just created stays empty in the log channel.
		e.logger.Warn("lost first-contact race, adopting existing thread",
			"user_id", msg.UserID,
			"thread_id", winner,
			"orphaned_thread", created,
		)
		return winner, nil
	}

	e.logger.Info("created thread for first contact", "user_id", msg.UserID, "thread_id", created)

	notice := fmt.Sprintf("New inquiry\nFrom: %s\nUser ID: %s", msg.SenderName, msg.UserID)
	if err := e.gw.SendToThread(ctx, e.cfg.LogChannelID, created, notice); err != nil {
		// The correlation is already durable; the missing notice is
		// cosmetic.
		e.logger.Warn("sending new-inquiry notice failed", "thread_id", created, "error", err)
	}

	return created, nil
}

func (e *Engine) handleOperatorReply(ctx context.Context, reply *OperatorReply) error {
	// Not every message in the log channel is relay traffic; only replies
	// inside a thread are actionable.
	if !reply.IsReply || reply.ThreadID == "" {
		return nil
	}

	userID, err := e.store.GetUser(ctx, reply.ThreadID)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("no correlation for thread", "thread_id", reply.ThreadID)
		e.notifyThread(ctx, reply.ThreadID, e.cfg.UnknownThreadText)
		return nil
	}
	if err != nil {
		e.logger.Error("resolving recipient failed", "thread_id", reply.ThreadID, "error", err)
		e.notifyThread(ctx, reply.ThreadID, e.cfg.UnknownThreadText)
		return err
	}

	if _, err := e.gw.SendDirect(ctx, userID, reply.Content); err != nil {
		e.logger.Error("delivering reply failed", "user_id", userID, "thread_id", reply.ThreadID, "error", err)
		e.notifyThread(ctx, reply.ThreadID,
			fmt.Sprintf("Could not deliver the reply to user %s: %s.", userID, DescribeFailure(err)))
		e.record(ctx, store.DirectionOperatorToUser, userID, reply.ThreadID, store.OutcomeFailed, DescribeFailure(err))
		return err
	}

	e.logger.Info("delivered operator reply", "user_id", userID, "thread_id", reply.ThreadID)
	e.record(ctx, store.DirectionOperatorToUser, userID, reply.ThreadID, store.OutcomeDelivered, "")
	return nil
}

// lockUser takes the per-user first-contact lock and returns the unlock func.
func (e *Engine) lockUser(userID string) func() {
	v, _ := e.firstContact.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) failureNotice(err error) string {
	return fmt.Sprintf("%s (%s)", e.cfg.DeliveryFailureText, DescribeFailure(err))
}

// notifyUser sends a best-effort informational message to a user. Notice
// failures are logged and swallowed; there is nobody left to notify.
func (e *Engine) notifyUser(ctx context.Context, userID, text string) {
	if _, err := e.gw.SendDirect(ctx, userID, Content{Text: text}); err != nil {
		e.logger.Warn("sending user notice failed", "user_id", userID, "error", err)
	}
}

// notifyThread sends a best-effort informational message into a thread.
func (e *Engine) notifyThread(ctx context.Context, threadID, text string) {
	if err := e.gw.SendToThread(ctx, e.cfg.LogChannelID, threadID, text); err != nil {
		e.logger.Warn("sending thread notice failed", "thread_id", threadID, "error", err)
	}
}

// record writes a relay ledger entry. Best-effort: the ledger never fails
// the relay.
func (e *Engine) record(ctx context.Context, dir store.Direction, userID, threadID string, outcome store.Outcome, detail string) {
	event := &store.RelayEvent{
		ID:        uuid.NewString(),
		Direction: dir,
		UserID:    userID,
		ThreadID:  threadID,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.SaveRelayEvent(ctx, event); err != nil {
		e.logger.Warn("recording relay event failed", "error", err)
	}
}
