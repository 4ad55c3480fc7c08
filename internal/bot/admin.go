package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/subkeeper/subkeeper/internal/models"
	"github.com/subkeeper/subkeeper/internal/session"
	"github.com/subkeeper/subkeeper/internal/setup"
	"github.com/subkeeper/subkeeper/internal/transport"
)

// handleSetupCommand shows the admin a picker of their groups to configure.
func (b *Bot) handleSetupCommand(ctx context.Context, adminID int64) error {
	groups, err := b.deps.Store.ListGroupsByAdmin(ctx, adminID)
	if err != nil {
		return fmt.Errorf("list admin groups: %w", err)
	}
	if len(groups) == 0 {
		return b.deps.Tp.SendMessage(ctx, adminID, msgNoGroupsFound, nil)
	}

	return b.deps.Tp.SendMessage(ctx, adminID,
		"🛠 *Setup*\n\nWhich group do you want to configure?",
		kbSetupGroupSelection(groups))
}

// handleGroupsCommand shows the admin's group dashboard.
func (b *Bot) handleGroupsCommand(ctx context.Context, adminID int64) error {
	groups, err := b.deps.Store.ListGroupsByAdmin(ctx, adminID)
	if err != nil {
		return fmt.Errorf("list admin groups: %w", err)
	}
	if len(groups) == 0 {
		return b.deps.Tp.SendMessage(ctx, adminID, msgNoGroupsFound, nil)
	}

	return b.deps.Tp.SendMessage(ctx, adminID, msgGroupList(groups), kbAdminGroupList(groups))
}

// handleSetupAnswer feeds a free-text reply into the setup state machine and
// shows either the next prompt or the completed configuration.
func (b *Bot) handleSetupAnswer(ctx context.Context, adminID int64, text string) error {
	if text == "" {
		return nil
	}

	res, err := b.deps.Setup.HandleAnswer(ctx, adminID, text)
	if errors.Is(err, setup.ErrNotInSetup) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply setup answer: %w", err)
	}

	if !res.Done {
		return b.deps.Tp.SendMessage(ctx, adminID, setupPrompt(res.NextStep), nil)
	}

	if err := b.deps.Tp.SendMessage(ctx, adminID, msgSetupComplete, nil); err != nil {
		return err
	}
	return b.deps.Tp.SendMessage(ctx, adminID, msgCurrentConfig(res.Group), kbAdminGroupActions(res.Group.ID))
}

// ownedGroup resolves the callback's group and enforces the admin gate.
// Denials are generic: no hint whether the group exists or who owns it.
func (b *Bot) ownedGroup(ctx context.Context, press transport.ButtonPress, prefix string) (*models.Group, bool) {
	groupID, err := parseGroupData(press.Data, prefix)
	if err != nil {
		b.ack(ctx, press.CallbackID, "Invalid request")
		return nil, false
	}
	group, err := b.deps.Store.GetGroup(ctx, groupID)
	if err != nil || group.AdminID != press.From.ID {
		b.ack(ctx, press.CallbackID, "Access denied")
		return nil, false
	}
	return group, true
}

// handleSetupGroupCallback enters setup for a group, or shows the current
// configuration when setup already completed.
func (b *Bot) handleSetupGroupCallback(ctx context.Context, press transport.ButtonPress) error {
	group, ok := b.ownedGroup(ctx, press, cbSetupGroup)
	if !ok {
		return nil
	}

	if group.IsSetupComplete {
		if err := b.deps.Tp.EditMessage(ctx, press.ChatID, press.MessageID,
			msgCurrentConfig(group), kbAdminGroupActions(group.ID)); err != nil {
			return err
		}
		b.ack(ctx, press.CallbackID, "")
		return nil
	}

	if err := b.deps.Setup.Start(ctx, press.From.ID, group.ID); err != nil {
		if errors.Is(err, setup.ErrSetupPending) {
			b.ack(ctx, press.CallbackID, "Finish your current setup first")
			return b.deps.Tp.SendMessage(ctx, press.From.ID, msgSetupPendingOther, nil)
		}
		return fmt.Errorf("start setup: %w", err)
	}

	if err := b.deps.Tp.EditMessage(ctx, press.ChatID, press.MessageID,
		msgSetupStarted(group.DisplayName()), nil); err != nil {
		return err
	}
	if err := b.deps.Tp.SendMessage(ctx, press.From.ID, setupPrompt(models.StepBankName), nil); err != nil {
		return err
	}
	b.ack(ctx, press.CallbackID, "")
	return nil
}

// handleViewGroupCallback shows a group's configuration with its action
// buttons; shared by the admin_group_ and view_config_ prefixes.
func (b *Bot) handleViewGroupCallback(ctx context.Context, press transport.ButtonPress, prefix string) error {
	group, ok := b.ownedGroup(ctx, press, prefix)
	if !ok {
		return nil
	}

	if err := b.deps.Tp.EditMessage(ctx, press.ChatID, press.MessageID,
		msgCurrentConfig(group), kbAdminGroupActions(group.ID)); err != nil {
		return err
	}
	b.ack(ctx, press.CallbackID, "")
	return nil
}

func (b *Bot) handleEditConfigCallback(ctx context.Context, press transport.ButtonPress) error {
	group, ok := b.ownedGroup(ctx, press, cbEditConfig)
	if !ok {
		return nil
	}

	if err := b.deps.Tp.EditMessage(ctx, press.ChatID, press.MessageID,
		msgEditConfigStart(group.DisplayName()), kbEditConfigConfirm(group.ID)); err != nil {
		return err
	}
	b.ack(ctx, press.CallbackID, "")
	return nil
}

// handleConfirmEditCallback re-enters the wizard for a configured group,
// keeping members and prior config.
func (b *Bot) handleConfirmEditCallback(ctx context.Context, press transport.ButtonPress) error {
	group, ok := b.ownedGroup(ctx, press, cbConfirmEdit)
	if !ok {
		return nil
	}

	if err := b.deps.Setup.Restart(ctx, press.From.ID, group.ID); err != nil {
		if errors.Is(err, setup.ErrSetupPending) {
			b.ack(ctx, press.CallbackID, "Finish your current setup first")
			return b.deps.Tp.SendMessage(ctx, press.From.ID, msgSetupPendingOther, nil)
		}
		return fmt.Errorf("restart setup: %w", err)
	}

	if err := b.deps.Tp.EditMessage(ctx, press.ChatID, press.MessageID,
		msgSetupStarted(group.DisplayName()), nil); err != nil {
		return err
	}
	if err := b.deps.Tp.SendMessage(ctx, press.From.ID, setupPrompt(models.StepBankName), nil); err != nil {
		return err
	}
	b.ack(ctx, press.CallbackID, "Configuration update started")
	return nil
}

func (b *Bot) handleCancelSetupCallback(ctx context.Context, press transport.ButtonPress) error {
	_, err := b.deps.Setup.Cancel(ctx, press.From.ID)
	if err != nil && !errors.Is(err, setup.ErrNotInSetup) {
		return fmt.Errorf("cancel setup: %w", err)
	}

	if err := b.deps.Tp.EditMessage(ctx, press.ChatID, press.MessageID, "Setup cancelled.", nil); err != nil {
		return err
	}
	b.ack(ctx, press.CallbackID, "")
	return nil
}

// handleAdminGroupListCallback re-renders the group dashboard in place.
func (b *Bot) handleAdminGroupListCallback(ctx context.Context, press transport.ButtonPress) error {
	groups, err := b.deps.Store.ListGroupsByAdmin(ctx, press.From.ID)
	if err != nil {
		return fmt.Errorf("list admin groups: %w", err)
	}
	if len(groups) == 0 {
		if err := b.deps.Tp.EditMessage(ctx, press.ChatID, press.MessageID, msgNoGroupsFound, nil); err != nil {
			return err
		}
		b.ack(ctx, press.CallbackID, "No groups found")
		return nil
	}

	if err := b.deps.Tp.EditMessage(ctx, press.ChatID, press.MessageID,
		msgGroupList(groups), kbAdminGroupList(groups)); err != nil {
		return err
	}
	b.ack(ctx, press.CallbackID, "")
	return nil
}

// handleUserAddedCallback is the confirmation step of the payment flow: the
// admin has added the user to the group, so grant the timed membership.
// The store write happens before any notification attempt.
func (b *Bot) handleUserAddedCallback(ctx context.Context, press transport.ButtonPress) error {
	userID, groupID, err := parseUserGroupData(press.Data, cbUserAdded)
	if err != nil {
		b.ack(ctx, press.CallbackID, "Invalid callback data")
		return nil
	}

	group, err := b.deps.Store.GetGroup(ctx, groupID)
	if err != nil || group.AdminID != press.From.ID {
		b.ack(ctx, press.CallbackID, "Access denied")
		return nil
	}

	username, err := b.deps.Tp.UserDisplayName(ctx, userID)
	if err != nil {
		slog.Warn("could not fetch user info", "user_id", userID, "error", err)
		username = ""
	}

	m, err := b.deps.Subs.Grant(ctx, groupID, userID, username)
	if err != nil {
		return fmt.Errorf("grant membership: %w", err)
	}

	if err := b.deps.Tp.SendMessage(ctx, userID, msgUserAddedSuccess(b.deps.SubscriptionLabel), nil); err != nil {
		slog.Warn("could not notify user of grant", "user_id", userID, "error", err)
	}

	confirmation := fmt.Sprintf("✅ *User Added Successfully*\n\n👤 %s has been added to %s and their %s subscription is now active.",
		m.Username, group.DisplayName(), b.deps.SubscriptionLabel)
	if err := b.deps.Tp.EditMessage(ctx, press.ChatID, press.MessageID, confirmation, nil); err != nil {
		return err
	}
	b.ack(ctx, press.CallbackID, "User added successfully")
	return nil
}

// handleUserRejectedCallback tells the user their payment was not verified.
func (b *Bot) handleUserRejectedCallback(ctx context.Context, press transport.ButtonPress) error {
	userID, groupID, err := parseUserGroupData(press.Data, cbUserRejected)
	if err != nil {
		b.ack(ctx, press.CallbackID, "Invalid callback data")
		return nil
	}

	group, err := b.deps.Store.GetGroup(ctx, groupID)
	if err != nil || group.AdminID != press.From.ID {
		b.ack(ctx, press.CallbackID, "Access denied")
		return nil
	}

	if err := b.deps.Tp.SendMessage(ctx, userID, msgPaymentRejected(group.DisplayName()), nil); err != nil {
		slog.Warn("could not notify user of rejection", "user_id", userID, "error", err)
	}

	if err := b.deps.Tp.EditMessage(ctx, press.ChatID, press.MessageID,
		"❌ *Payment Rejected*\n\nThe user has been notified.", nil); err != nil {
		return err
	}
	b.ack(ctx, press.CallbackID, "Payment rejected")
	return nil
}

// forwardReceipt relays the user's uploaded receipt to the admin, with a
// text fallback when the file cannot be re-sent.
func (b *Bot) forwardReceipt(ctx context.Context, adminID int64, s session.Session, username, groupName string) {
	caption := msgReceiptCaption(username, groupName)

	var err error
	switch s.ReceiptType {
	case session.ReceiptPhoto:
		err = b.deps.Tp.SendPhoto(ctx, adminID, s.ReceiptFileID, caption)
	case session.ReceiptDocument:
		err = b.deps.Tp.SendDocument(ctx, adminID, s.ReceiptFileID, caption)
	default:
		err = b.deps.Tp.SendMessage(ctx, adminID, msgNoReceiptUploaded, nil)
	}
	if err != nil {
		slog.Warn("could not forward receipt", "admin_id", adminID, "error", err)
		if err := b.deps.Tp.SendMessage(ctx, adminID,
			"⚠️ Could not forward the receipt file, but the user did upload one.", nil); err != nil {
			slog.Warn("could not send receipt fallback", "admin_id", adminID, "error", err)
		}
	}
}
