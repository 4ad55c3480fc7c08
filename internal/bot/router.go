// Package bot routes inbound transport events to the admin-setup,
// payment-selection, payment-confirmation, and membership-management flows.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/subkeeper/subkeeper/internal/dedup"
	"github.com/subkeeper/subkeeper/internal/metrics"
	"github.com/subkeeper/subkeeper/internal/models"
	"github.com/subkeeper/subkeeper/internal/session"
	"github.com/subkeeper/subkeeper/internal/setup"
	"github.com/subkeeper/subkeeper/internal/storage"
	"github.com/subkeeper/subkeeper/internal/subscription"
	"github.com/subkeeper/subkeeper/internal/transport"
)

// Deps are the collaborators the router drives. All are constructor-injected
// so tests can swap in fakes.
type Deps struct {
	Store    storage.Store
	Tp       transport.Transport
	Subs     *subscription.Service
	Setup    *setup.Service
	Sessions *session.Manager
	Filter   *dedup.Filter
	Metrics  *metrics.Metrics

	// SubscriptionLabel is the human-readable duration ("30-day").
	SubscriptionLabel string

	// BotUsername is used in the fallback hint when the admin DM fails.
	BotUsername string
}

// Bot is the inbound event router.
type Bot struct {
	deps Deps
}

// New creates the router.
func New(deps Deps) *Bot {
	return &Bot{deps: deps}
}

// Dispatch handles one inbound event end to end. Duplicate deliveries of the
// same event are dropped; all errors resolve to a generic user-facing reply
// and a log line, never a crash.
func (b *Bot) Dispatch(ctx context.Context, ev transport.Event) {
	b.deps.Metrics.UpdatesReceived.Inc()

	key := eventKey(ev)
	if key != "" {
		if b.deps.Filter.Seen(key) {
			b.deps.Metrics.DuplicatesDropped.Inc()
			slog.Debug("duplicate event dropped", "key", key)
			return
		}
		b.deps.Filter.Mark(key)
	}

	switch e := ev.(type) {
	case transport.Message:
		if err := b.handleMessage(ctx, e); err != nil {
			slog.Error("message handling failed", "user_id", e.From.ID, "error", err)
			b.apologize(ctx, e.From.ID)
		}
	case transport.ButtonPress:
		if err := b.handleCallback(ctx, e); err != nil {
			slog.Error("callback handling failed", "user_id", e.From.ID, "data", e.Data, "error", err)
			b.ack(ctx, e.CallbackID, "Error processing request")
		}
	case transport.MembershipChange:
		if err := b.handleMembershipChange(ctx, e); err != nil {
			slog.Error("membership change handling failed", "chat_id", e.ChatID, "error", err)
		}
	default:
		slog.Warn("unhandled event type", "event", fmt.Sprintf("%T", ev))
	}
}

func eventKey(ev transport.Event) string {
	switch e := ev.(type) {
	case transport.Message:
		return dedup.MessageKey(e.ID, e.Date)
	case transport.ButtonPress:
		return dedup.CallbackKey(e.CallbackID)
	case transport.MembershipChange:
		return dedup.MessageKey(e.ID, e.Date)
	}
	return ""
}

func (b *Bot) handleMessage(ctx context.Context, msg transport.Message) error {
	if msg.From.ID == 0 {
		slog.Warn("message received without user id")
		return nil
	}
	if !msg.Private {
		// Group chatter is none of our business; joins and leaves arrive as
		// membership-change events.
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(msg.Text)) {
	case "/setup":
		if b.isAdmin(ctx, msg.From.ID) {
			return b.handleSetupCommand(ctx, msg.From.ID)
		}
		return b.deps.Tp.SendMessage(ctx, msg.From.ID, msgInvalidCommand, nil)
	case "/groups":
		if b.isAdmin(ctx, msg.From.ID) {
			return b.handleGroupsCommand(ctx, msg.From.ID)
		}
		return b.deps.Tp.SendMessage(ctx, msg.From.ID, msgInvalidCommand, nil)
	case "/start":
		return b.handleStart(ctx, msg.From.ID)
	default:
		return b.handleFreeText(ctx, msg)
	}
}

// handleFreeText deals with everything that is not a command: pending setup
// answers, receipt uploads, and subscription-intent keywords.
func (b *Bot) handleFreeText(ctx context.Context, msg transport.Message) error {
	if b.isAdmin(ctx, msg.From.ID) {
		if _, err := b.deps.Setup.Pending(ctx, msg.From.ID); err == nil {
			return b.handleSetupAnswer(ctx, msg.From.ID, strings.TrimSpace(msg.Text))
		}
	}

	if msg.PhotoFileID != "" || msg.DocumentFileID != "" {
		return b.handleReceiptUpload(ctx, msg)
	}

	text := strings.ToLower(msg.Text)
	if strings.Contains(text, "subscribe") || strings.Contains(text, "payment") || strings.Contains(text, "join") {
		return b.showSubscriptionOptions(ctx, msg.From.ID)
	}

	return b.deps.Tp.SendMessage(ctx, msg.From.ID, msgDefaultHelp, nil)
}

func (b *Bot) handleStart(ctx context.Context, userID int64) error {
	if b.isAdmin(ctx, userID) {
		return b.deps.Tp.SendMessage(ctx, userID, msgAdminWelcome, nil)
	}
	return b.showSubscriptionOptions(ctx, userID)
}

// handleMembershipChange reacts to the bot itself being added to or removed
// from a group.
func (b *Bot) handleMembershipChange(ctx context.Context, ev transport.MembershipChange) error {
	selfID := b.deps.Tp.SelfID()

	for _, joined := range ev.Joined {
		if joined.ID != selfID {
			continue
		}
		if ev.Actor.ID == 0 {
			slog.Warn("bot added but adder unknown", "chat_id", ev.ChatID)
			return nil
		}
		return b.handleBotAdded(ctx, ev)
	}

	if ev.Left != nil && ev.Left.ID == selfID {
		err := b.deps.Store.DeleteGroup(ctx, ev.ChatID)
		if err != nil && err != storage.ErrGroupNotFound {
			return fmt.Errorf("clean up removed group: %w", err)
		}
		slog.Info("bot removed from group, record deleted", "chat_id", ev.ChatID)
	}
	return nil
}

func (b *Bot) handleBotAdded(ctx context.Context, ev transport.MembershipChange) error {
	group := &models.Group{
		ID:        ev.ChatID,
		AdminID:   ev.Actor.ID,
		Name:      ev.ChatTitle,
		Users:     map[int64]*models.Membership{},
		CreatedAt: time.Now().UTC(),
	}
	if err := b.deps.Store.CreateGroup(ctx, group); err != nil {
		return fmt.Errorf("create group record: %w", err)
	}
	slog.Info("bot added to group", "chat_id", ev.ChatID, "admin_id", ev.Actor.ID, "title", ev.ChatTitle)

	if err := b.deps.Tp.SendMessage(ctx, ev.ChatID, msgGroupWelcome, nil); err != nil {
		slog.Warn("could not greet group", "chat_id", ev.ChatID, "error", err)
	}

	// DM the admin; if their privacy settings block it, hint in the group.
	if err := b.deps.Tp.SendMessage(ctx, ev.Actor.ID, msgAdminWelcome, nil); err != nil {
		slog.Warn("could not reach admin privately", "admin_id", ev.Actor.ID, "error", err)
		hint := fmt.Sprintf("⚠️ I couldn't send you a private message. Please start a chat with me first (@%s) and then send /setup", b.deps.BotUsername)
		if err := b.deps.Tp.SendMessage(ctx, ev.ChatID, hint, nil); err != nil {
			slog.Warn("could not send fallback hint", "chat_id", ev.ChatID, "error", err)
		}
	}
	return nil
}

// isAdmin derives admin status from group ownership: a user is an admin iff
// they administer at least one stored group. Nothing is flagged explicitly.
func (b *Bot) isAdmin(ctx context.Context, userID int64) bool {
	groups, err := b.deps.Store.ListGroupsByAdmin(ctx, userID)
	if err != nil {
		slog.Error("admin check failed", "user_id", userID, "error", err)
		return false
	}
	return len(groups) > 0
}

func (b *Bot) apologize(ctx context.Context, userID int64) {
	if err := b.deps.Tp.SendMessage(ctx, userID, msgGenericError, nil); err != nil {
		slog.Warn("could not send error reply", "user_id", userID, "error", err)
	}
}

func (b *Bot) ack(ctx context.Context, callbackID, text string) {
	if err := b.deps.Tp.AnswerCallback(ctx, callbackID, text); err != nil {
		slog.Warn("could not answer callback", "callback_id", callbackID, "error", err)
	}
}
