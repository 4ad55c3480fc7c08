// Package transport defines the narrow messaging-transport capability set the
// subscription engine consumes, independent of any concrete chat platform.
// The telegram subpackage provides the production implementation; tests use
// in-memory fakes.
package transport

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotMember indicates the target user is not a member of the chat
	// (already left or was removed out of band).
	ErrNotMember = errors.New("user is not a member of the chat")

	// ErrForbidden indicates the bot lacks the privilege for the operation.
	ErrForbidden = errors.New("insufficient permissions")
)

// Button is one inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline button grid, outer slice per row.
type Keyboard [][]Button

// Row is a convenience constructor for a single keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

// Transport is the outbound capability set.
type Transport interface {
	// SelfID is the bot's own user id on the platform.
	SelfID() int64

	// SendMessage delivers markdown text to a user or chat, optionally with
	// an inline keyboard (nil for none).
	SendMessage(ctx context.Context, chatID int64, text string, kb Keyboard) error

	// EditMessage replaces a previously sent message's text and keyboard.
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error

	// SendPhoto sends a photo by platform file id with a caption.
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string) error

	// SendDocument sends a document by platform file id with a caption.
	SendDocument(ctx context.Context, chatID int64, fileID, caption string) error

	// UserDisplayName fetches a best-effort display label for a user.
	UserDisplayName(ctx context.Context, userID int64) (string, error)

	// CanRestrictMembers reports whether the bot currently holds enough
	// privilege in the chat to remove members.
	CanRestrictMembers(ctx context.Context, chatID int64) (bool, error)

	// BanMember bans a chat member. Errors are classified: errors.Is
	// ErrNotMember when the user already left, ErrForbidden on missing
	// privilege.
	BanMember(ctx context.Context, chatID, userID int64) error

	// UnbanMember lifts a ban so the user may rejoin after re-subscribing.
	UnbanMember(ctx context.Context, chatID, userID int64) error

	// AnswerCallback acknowledges a button press, optionally with a toast.
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// User identifies the sender of an inbound event.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName returns "@handle" when the platform handle is known, otherwise
// a label synthesized from the user id.
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("User %d", u.ID)
}

// Event is an inbound event, decided into exactly one variant at the
// transport boundary so routing is an exhaustive type switch.
type Event interface {
	isEvent()
}

// Message is an inbound text or media message.
type Message struct {
	ID        int
	Date      int
	ChatID    int64
	Private   bool
	ChatTitle string
	From      User
	Text      string

	// PhotoFileID / DocumentFileID are set when the message carries a
	// receipt-looking attachment.
	PhotoFileID    string
	DocumentFileID string
}

// ButtonPress is an inbound interactive button press.
type ButtonPress struct {
	CallbackID string
	From       User
	Data       string

	// ChatID and MessageID locate the message the button was attached to,
	// for in-place edits.
	ChatID    int64
	MessageID int
}

// MembershipChange reports members joining or leaving a chat, including the
// bot itself. ID and Date come from the service message announcing the
// change, so duplicates dedup the same way messages do.
type MembershipChange struct {
	ID        int
	Date      int
	ChatID    int64
	ChatTitle string

	// Actor is the user whose action produced the change (for a bot being
	// added, the admin who added it).
	Actor  User
	Joined []User
	Left   *User
}

func (Message) isEvent()          {}
func (ButtonPress) isEvent()      {}
func (MembershipChange) isEvent() {}
