package bot

import (
	"context"
	"strings"

	"github.com/subkeeper/subkeeper/internal/transport"
)

// handleCallback classifies a button press into exactly one handler family.
// Unrecognized data gets an "Unknown action" acknowledgment, never silence.
func (b *Bot) handleCallback(ctx context.Context, press transport.ButtonPress) error {
	if press.From.ID == 0 || press.Data == "" {
		b.ack(ctx, press.CallbackID, "Invalid request")
		return nil
	}

	data := press.Data
	switch {
	// Admin-setup and membership-management flows.
	case strings.HasPrefix(data, cbSetupGroup):
		return b.handleSetupGroupCallback(ctx, press)
	case strings.HasPrefix(data, cbAdminGroup):
		return b.handleViewGroupCallback(ctx, press, cbAdminGroup)
	case strings.HasPrefix(data, cbEditConfig):
		return b.handleEditConfigCallback(ctx, press)
	case strings.HasPrefix(data, cbConfirmEdit):
		return b.handleConfirmEditCallback(ctx, press)
	case strings.HasPrefix(data, cbViewConfig):
		return b.handleViewGroupCallback(ctx, press, cbViewConfig)
	case strings.HasPrefix(data, cbUserAdded):
		return b.handleUserAddedCallback(ctx, press)
	case strings.HasPrefix(data, cbUserRejected):
		return b.handleUserRejectedCallback(ctx, press)
	case data == cbRefreshGroups, data == cbBackToAdminGroups:
		return b.handleAdminGroupListCallback(ctx, press)
	case data == cbCancelSetup:
		return b.handleCancelSetupCallback(ctx, press)

	// Payment-selection and payment-confirmation flows.
	case strings.HasPrefix(data, cbSelectGroup):
		return b.handleGroupSelection(ctx, press)
	case strings.HasPrefix(data, cbConfirmPayment):
		return b.handlePaymentConfirmation(ctx, press)
	case data == cbBackToGroups:
		return b.handleBackToGroups(ctx, press)
	case data == cbLegacyConfirmPayment:
		// Pre-group-selection clients sent no group suffix; resolve it from
		// the session.
		return b.handleLegacyPaymentConfirmation(ctx, press)

	default:
		b.ack(ctx, press.CallbackID, "Unknown action")
		return nil
	}
}
