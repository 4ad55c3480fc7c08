package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/subkeeper/subkeeper/internal/transport"
)

// RegisterWebhook points Telegram's update delivery at baseURL + "/webhook".
func (c *Client) RegisterWebhook(baseURL string) error {
	wh, err := tgbotapi.NewWebhook(baseURL + "/webhook")
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := c.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := c.bot.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("verify webhook: %w", err)
	}
	slog.Info("webhook registered",
		"url", info.URL,
		"pending_updates", info.PendingUpdateCount,
	)
	return nil
}

// WebhookInfo returns the platform's view of the registered webhook, for the
// debug endpoint.
func (c *Client) WebhookInfo() (tgbotapi.WebhookInfo, error) {
	return c.bot.GetWebhookInfo()
}

// DecodeUpdate parses a webhook payload into an inbound event. Updates with
// no routable content (edits, channel posts) decode to (nil, nil).
func (c *Client) DecodeUpdate(body []byte) (transport.Event, error) {
	var upd tgbotapi.Update
	if err := json.Unmarshal(body, &upd); err != nil {
		return nil, fmt.Errorf("decode update: %w", err)
	}
	return c.toEvent(upd), nil
}

// Poll runs a long-polling loop, feeding each decoded update to handle.
// Used as the development fallback when webhook registration fails.
func (c *Client) Poll(ctx context.Context, handle func(transport.Event)) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := c.bot.GetUpdatesChan(cfg)
	defer c.bot.StopReceivingUpdates()

	slog.Info("long polling started")
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			if ev := c.toEvent(upd); ev != nil {
				handle(ev)
			}
		}
	}
}

func (c *Client) toEvent(upd tgbotapi.Update) transport.Event {
	if q := upd.CallbackQuery; q != nil {
		press := transport.ButtonPress{
			CallbackID: q.ID,
			From:       toUser(q.From),
			Data:       q.Data,
		}
		if q.Message != nil {
			press.ChatID = q.Message.Chat.ID
			press.MessageID = q.Message.MessageID
		}
		return press
	}

	msg := upd.Message
	if msg == nil || msg.From == nil {
		return nil
	}

	if len(msg.NewChatMembers) > 0 || msg.LeftChatMember != nil {
		change := transport.MembershipChange{
			ID:        msg.MessageID,
			Date:      msg.Date,
			ChatID:    msg.Chat.ID,
			ChatTitle: msg.Chat.Title,
			Actor:     toUser(msg.From),
		}
		for _, u := range msg.NewChatMembers {
			change.Joined = append(change.Joined, toUser(&u))
		}
		if msg.LeftChatMember != nil {
			change.Left = ptr(toUser(msg.LeftChatMember))
		}
		return change
	}

	out := transport.Message{
		ID:        msg.MessageID,
		Date:      msg.Date,
		ChatID:    msg.Chat.ID,
		Private:   msg.Chat.IsPrivate(),
		ChatTitle: msg.Chat.Title,
		From:      toUser(msg.From),
		Text:      msg.Text,
	}
	if len(msg.Photo) > 0 {
		// Telegram sends multiple resolutions; the last is the largest.
		out.PhotoFileID = msg.Photo[len(msg.Photo)-1].FileID
	}
	if msg.Document != nil {
		out.DocumentFileID = msg.Document.FileID
	}
	return out
}

func toUser(u *tgbotapi.User) transport.User {
	if u == nil {
		return transport.User{}
	}
	return transport.User{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func ptr[T any](v T) *T { return &v }
