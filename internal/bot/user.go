package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/subkeeper/subkeeper/internal/session"
	"github.com/subkeeper/subkeeper/internal/transport"
)

// showSubscriptionOptions sends the configured-group picker.
func (b *Bot) showSubscriptionOptions(ctx context.Context, userID int64) error {
	groups, err := b.deps.Store.ListConfiguredGroups(ctx)
	if err != nil {
		return fmt.Errorf("list configured groups: %w", err)
	}
	if len(groups) == 0 {
		return b.deps.Tp.SendMessage(ctx, userID, msgNoGroupsAvailable, nil)
	}
	return b.deps.Tp.SendMessage(ctx, userID, msgUserWelcome, kbGroupSelection(groups))
}

// handleGroupSelection pins the chosen group in the user's session and swaps
// the picker for that group's payment details.
func (b *Bot) handleGroupSelection(ctx context.Context, press transport.ButtonPress) error {
	groupID, err := parseGroupData(press.Data, cbSelectGroup)
	if err != nil {
		b.ack(ctx, press.CallbackID, "Invalid request")
		return nil
	}

	group, err := b.deps.Store.GetGroup(ctx, groupID)
	if err != nil || !group.Configured() {
		b.ack(ctx, press.CallbackID, "This group is not available")
		return nil
	}

	b.deps.Sessions.Select(press.From.ID, groupID)

	if err := b.deps.Tp.EditMessage(ctx, press.ChatID, press.MessageID,
		msgPaymentDetails(group), kbPaymentConfirm(groupID)); err != nil {
		return err
	}
	b.ack(ctx, press.CallbackID, "")
	return nil
}

// handleReceiptUpload stores an uploaded receipt on the session so it can be
// relayed to the admin on confirmation.
func (b *Bot) handleReceiptUpload(ctx context.Context, msg transport.Message) error {
	fileID, kind := msg.PhotoFileID, session.ReceiptPhoto
	if fileID == "" {
		fileID, kind = msg.DocumentFileID, session.ReceiptDocument
	}

	if !b.deps.Sessions.AttachReceipt(msg.From.ID, fileID, kind) {
		return b.deps.Tp.SendMessage(ctx, msg.From.ID,
			"Please select a group first using /start", nil)
	}

	s, _ := b.deps.Sessions.Get(msg.From.ID)
	group, err := b.deps.Store.GetGroup(ctx, s.SelectedGroupID)
	if err != nil {
		b.deps.Sessions.Clear(msg.From.ID)
		return b.deps.Tp.SendMessage(ctx, msg.From.ID,
			"Please select a group first using /start", nil)
	}

	return b.deps.Tp.SendMessage(ctx, msg.From.ID,
		msgReceiptReceived(group.DisplayName()), kbPaymentConfirm(group.ID))
}

// handlePaymentConfirmation notifies the admin of a claimed payment. No
// membership is created here; that happens only when the admin confirms.
func (b *Bot) handlePaymentConfirmation(ctx context.Context, press transport.ButtonPress) error {
	groupID, err := parseGroupData(press.Data, cbConfirmPayment)
	if err != nil {
		b.ack(ctx, press.CallbackID, "Invalid request")
		return nil
	}
	return b.confirmPayment(ctx, press, groupID)
}

// handleLegacyPaymentConfirmation serves the suffix-less legacy button by
// resolving the group from the session.
func (b *Bot) handleLegacyPaymentConfirmation(ctx context.Context, press transport.ButtonPress) error {
	s, ok := b.deps.Sessions.Get(press.From.ID)
	if !ok {
		b.ack(ctx, press.CallbackID, "Please select a group first")
		return nil
	}
	return b.confirmPayment(ctx, press, s.SelectedGroupID)
}

func (b *Bot) confirmPayment(ctx context.Context, press transport.ButtonPress, groupID int64) error {
	group, err := b.deps.Store.GetGroup(ctx, groupID)
	if err != nil {
		b.ack(ctx, press.CallbackID, "Group not found")
		return nil
	}

	// Notify the admin with the approve/reject buttons, then relay the
	// receipt (or its absence).
	if err := b.deps.Tp.SendMessage(ctx, group.AdminID,
		msgPaymentNotification(press.From, group),
		kbUserManagement(press.From.ID, group.ID)); err != nil {
		return fmt.Errorf("notify admin of payment: %w", err)
	}

	s, _ := b.deps.Sessions.Get(press.From.ID)
	b.forwardReceipt(ctx, group.AdminID, s, press.From.DisplayName(), group.DisplayName())

	if err := b.deps.Tp.EditMessage(ctx, press.ChatID, press.MessageID,
		msgPaymentConfirmed, kbBackToGroups()); err != nil {
		return err
	}
	b.ack(ctx, press.CallbackID, "Payment confirmed!")

	b.deps.Sessions.Clear(press.From.ID)
	slog.Info("payment confirmation received",
		"user_id", press.From.ID,
		"username", press.From.DisplayName(),
		"group_id", group.ID,
	)
	return nil
}

// handleBackToGroups abandons the current selection and re-renders the picker.
func (b *Bot) handleBackToGroups(ctx context.Context, press transport.ButtonPress) error {
	b.deps.Sessions.Clear(press.From.ID)

	groups, err := b.deps.Store.ListConfiguredGroups(ctx)
	if err != nil {
		return fmt.Errorf("list configured groups: %w", err)
	}

	if len(groups) == 0 {
		if err := b.deps.Tp.EditMessage(ctx, press.ChatID, press.MessageID, msgNoGroupsAvailable, nil); err != nil {
			return err
		}
	} else if err := b.deps.Tp.EditMessage(ctx, press.ChatID, press.MessageID,
		msgUserWelcome, kbGroupSelection(groups)); err != nil {
		return err
	}

	b.ack(ctx, press.CallbackID, "")
	return nil
}
