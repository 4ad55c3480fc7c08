// Package telegram implements the transport interfaces against the Telegram
// Bot API.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/subkeeper/subkeeper/internal/transport"
)

// Ensure Client implements transport.Transport
var _ transport.Transport = (*Client)(nil)

// Client wraps a Telegram bot connection.
//
// The underlying library does not take contexts; calls are bounded by the
// HTTP client timeout instead, so a stuck call fails the single event being
// processed rather than hanging the process.
type Client struct {
	bot *tgbotapi.BotAPI
}

// New authenticates against the Bot API with the given token.
func New(token string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{
		Timeout: 40 * time.Second, // above the long-poll timeout
	})
	if err != nil {
		return nil, fmt.Errorf("connect to bot api: %w", err)
	}
	return &Client{bot: bot}, nil
}

// SelfID returns the bot's own user id.
func (c *Client) SelfID() int64 {
	return c.bot.Self.ID
}

// Username returns the bot's handle, for user-facing hints.
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// SendMessage delivers markdown text, optionally with an inline keyboard.
func (c *Client) SendMessage(_ context.Context, chatID int64, text string, kb transport.Keyboard) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if kb != nil {
		msg.ReplyMarkup = toMarkup(kb)
	}
	if _, err := c.bot.Send(msg); err != nil {
		return classify(fmt.Errorf("send message: %w", err))
	}
	return nil
}

// EditMessage replaces a previously sent message's text and keyboard.
func (c *Client) EditMessage(_ context.Context, chatID int64, messageID int, text string, kb transport.Keyboard) error {
	var edit tgbotapi.EditMessageTextConfig
	if kb != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, toMarkup(kb))
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := c.bot.Send(edit); err != nil {
		return classify(fmt.Errorf("edit message: %w", err))
	}
	return nil
}

// SendPhoto sends a photo by file id with a caption.
func (c *Client) SendPhoto(_ context.Context, chatID int64, fileID, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeMarkdown
	if _, err := c.bot.Send(photo); err != nil {
		return classify(fmt.Errorf("send photo: %w", err))
	}
	return nil
}

// SendDocument sends a document by file id with a caption.
func (c *Client) SendDocument(_ context.Context, chatID int64, fileID, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
	doc.Caption = caption
	doc.ParseMode = tgbotapi.ModeMarkdown
	if _, err := c.bot.Send(doc); err != nil {
		return classify(fmt.Errorf("send document: %w", err))
	}
	return nil
}

// UserDisplayName fetches a display label for a user.
func (c *Client) UserDisplayName(_ context.Context, userID int64) (string, error) {
	chat, err := c.bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: userID},
	})
	if err != nil {
		return "", classify(fmt.Errorf("get chat: %w", err))
	}
	u := transport.User{ID: userID, Username: chat.UserName, FirstName: chat.FirstName}
	return u.DisplayName(), nil
}

// CanRestrictMembers reports whether the bot can remove members from chatID.
func (c *Client) CanRestrictMembers(_ context.Context, chatID int64) (bool, error) {
	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: c.bot.Self.ID},
	})
	if err != nil {
		return false, classify(fmt.Errorf("get own chat member: %w", err))
	}
	if member.Status == "creator" {
		return true, nil
	}
	return member.Status == "administrator" && member.CanRestrictMembers, nil
}

// BanMember bans a chat member.
func (c *Client) BanMember(_ context.Context, chatID, userID int64) error {
	_, err := c.bot.Request(tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return classify(fmt.Errorf("ban member: %w", err))
	}
	return nil
}

// UnbanMember lifts a ban so the user may rejoin later.
func (c *Client) UnbanMember(_ context.Context, chatID, userID int64) error {
	_, err := c.bot.Request(tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return classify(fmt.Errorf("unban member: %w", err))
	}
	return nil
}

// AnswerCallback acknowledges a button press with an optional toast.
func (c *Client) AnswerCallback(_ context.Context, callbackID, text string) error {
	_, err := c.bot.Request(tgbotapi.CallbackConfig{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		return classify(fmt.Errorf("answer callback: %w", err))
	}
	return nil
}

func toMarkup(kb transport.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// classify maps Bot API error strings onto the transport sentinel errors so
// callers can branch without string matching.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user not found"),
		strings.Contains(msg, "chat not found"),
		strings.Contains(msg, "user is not a member"),
		strings.Contains(msg, "participant_id_invalid"):
		return fmt.Errorf("%w: %v", transport.ErrNotMember, err)
	case strings.Contains(msg, "not enough rights"),
		strings.Contains(msg, "need administrator rights"),
		strings.Contains(msg, "chat_admin_required"),
		strings.Contains(msg, "can't remove chat owner"):
		return fmt.Errorf("%w: %v", transport.ErrForbidden, err)
	}
	return err
}
