package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/subkeeper/subkeeper/internal/models"
	"github.com/subkeeper/subkeeper/internal/transport"
)

// User-facing message texts. Failures always resolve to one of the short
// generic texts below, never a raw error.
const (
	msgGroupWelcome = `🤖 Bot added successfully!

📝 *Setup Required*
The admin needs to configure payment details before users can subscribe.

👤 Please send me a private message to complete the setup.`

	msgAdminWelcome = `👋 Welcome Admin!

Let's set up your subscription service. I'll need the following information:

1️⃣ Bank Name
2️⃣ Account Name
3️⃣ Account Number
4️⃣ Subscription Price

Send /setup to begin configuration.`

	msgUserWelcome = `💰 *Subscription Payment Details*

Select the group you want to join. Make payment to its account details, then upload your receipt and confirm payment.`

	msgNoGroupsAvailable = `😔 No groups are accepting subscriptions right now. Please check back later.`

	msgNoGroupsFound = `You don't manage any groups yet. Add me to a group to get started.`

	msgPaymentConfirmed = `✅ *Payment Confirmation Received*

Your payment has been submitted for verification. The admin will add you to the group shortly.

Please wait for confirmation.`

	msgSetupComplete = `✅ *Setup Complete!*

Your bot is now configured and ready to accept subscriptions.

Users can now interact with the bot to subscribe to your group.`

	msgUserExpired = `⏰ *Subscription Expired*

Your subscription has ended. You have been removed from the group.

Contact the admin to renew your subscription.`

	msgInvalidCommand = `❌ Invalid command. Please use the available buttons or commands.`

	msgGenericError = `⚠️ Something went wrong. Please try again later.`

	msgDefaultHelp = `👋 Hi! Send /start to see subscription options or upload your payment receipt.`

	msgSetupPendingOther = `⚠️ You already have a setup in progress for another group. Finish it or cancel it first.`

	msgNoReceiptUploaded = `⚠️ *No receipt was uploaded by the user.*

Please verify the payment through other means before approving.`
)

// UserExpiredText is the expiry notification the sweeper sends.
const UserExpiredText = msgUserExpired

// setupPrompt returns the question shown for a pending setup step.
func setupPrompt(step models.SetupStep) string {
	switch step {
	case models.StepBankName:
		return "🏦 *Step 1 of 4*\n\nWhat is your *bank name*?"
	case models.StepAccountName:
		return "👤 *Step 2 of 4*\n\nWhat is the *account name*?"
	case models.StepAccountNumber:
		return "🔢 *Step 3 of 4*\n\nWhat is the *account number*?"
	case models.StepPrice:
		return "💵 *Step 4 of 4*\n\nWhat is the *subscription price*?"
	default:
		return msgGenericError
	}
}

func msgUserAddedSuccess(label string) string {
	return fmt.Sprintf(`🎉 *Welcome to the group!*

Your %s subscription is now active. You will be automatically removed when it ends.

Enjoy your access!`, label)
}

func msgSetupStarted(groupName string) string {
	return fmt.Sprintf("🚀 *Setting up %s*\n\nAnswer the next four questions to configure payments.", groupName)
}

func msgEditConfigStart(groupName string) string {
	return fmt.Sprintf("✏️ *Edit configuration for %s*\n\nThis re-runs the four setup questions. Existing members are kept. Continue?", groupName)
}

func msgCurrentConfig(g *models.Group) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚙️ *Configuration — %s*\n\n", g.DisplayName())
	fmt.Fprintf(&b, "🏦 Bank: %s\n", orDash(g.Config.BankName))
	fmt.Fprintf(&b, "👤 Account Name: %s\n", orDash(g.Config.AccountName))
	fmt.Fprintf(&b, "🔢 Account Number: %s\n", orDash(g.Config.AccountNumber))
	fmt.Fprintf(&b, "💵 Price: %s\n", orDash(g.Config.Price))
	fmt.Fprintf(&b, "👥 Members: %d", len(g.Users))
	return b.String()
}

func msgPaymentDetails(g *models.Group) string {
	return fmt.Sprintf(`💰 *Payment Details — %s*

🏦 Bank: %s
👤 Account Name: %s
🔢 Account Number: %s
💵 Price: %s

Make the payment, upload your receipt here, then press the button below.`,
		g.DisplayName(), g.Config.BankName, g.Config.AccountName, g.Config.AccountNumber, g.Config.Price)
}

func msgGroupList(groups []*models.Group) string {
	var b strings.Builder
	b.WriteString("📋 *Your Groups*\n")
	for _, g := range groups {
		status := "⚠️ setup incomplete"
		if g.Configured() {
			status = "✅ configured"
		}
		fmt.Fprintf(&b, "\n*%s* — %s, %d member(s)", g.DisplayName(), status, len(g.Users))
	}
	return b.String()
}

func msgPaymentNotification(user transport.User, g *models.Group) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	return fmt.Sprintf(`💳 *New Payment Received — %s*

A user has confirmed payment and is waiting to be added to the group.

👤 *User Details:*
• Username: %s
• User ID: %d
• Name: %s

Please add the user to the group manually, then confirm below.`,
		g.DisplayName(), user.DisplayName(), user.ID, orDash(name))
}

func msgReceiptCaption(username, groupName string) string {
	return fmt.Sprintf("📄 *Payment Receipt*\nFrom: %s\nGroup: %s", username, groupName)
}

func msgReceiptReceived(groupName string) string {
	return fmt.Sprintf("📄 *Receipt received for %s!*\n\nPlease press the \"I have made payment\" button to confirm your payment.", groupName)
}

func msgPaymentRejected(groupName string) string {
	return fmt.Sprintf("❌ *Payment Rejected — %s*\n\nYour payment could not be verified. Please contact the admin for assistance.", groupName)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// Callback data prefixes. The router classifies presses with this table;
// "confirm_payment" (no suffix) survives as a legacy alias from before group
// selection existed.
const (
	cbSetupGroup        = "setup_group_"
	cbAdminGroup        = "admin_group_"
	cbEditConfig        = "edit_config_"
	cbConfirmEdit       = "confirm_edit_"
	cbViewConfig        = "view_config_"
	cbUserAdded         = "user_added_"
	cbUserRejected      = "user_rejected_"
	cbRefreshGroups     = "refresh_groups"
	cbBackToAdminGroups = "back_to_admin_groups"
	cbCancelSetup       = "cancel_setup"

	cbSelectGroup          = "select_group_"
	cbConfirmPayment       = "confirm_payment_"
	cbBackToGroups         = "back_to_groups"
	cbLegacyConfirmPayment = "confirm_payment"
)

func groupData(prefix string, groupID int64) string {
	return prefix + strconv.FormatInt(groupID, 10)
}

func userGroupData(prefix string, userID, groupID int64) string {
	return fmt.Sprintf("%s%d_%d", prefix, userID, groupID)
}

// parseGroupData extracts the group id from "<prefix><groupID>".
func parseGroupData(data, prefix string) (int64, error) {
	return strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
}

// parseUserGroupData extracts ids from "<prefix><userID>_<groupID>".
// Group ids may be negative, so only the first underscore separates.
func parseUserGroupData(data, prefix string) (userID, groupID int64, err error) {
	rest := strings.TrimPrefix(data, prefix)
	user, group, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, 0, fmt.Errorf("malformed callback data %q", data)
	}
	if userID, err = strconv.ParseInt(user, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("malformed callback data %q", data)
	}
	if groupID, err = strconv.ParseInt(group, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("malformed callback data %q", data)
	}
	return userID, groupID, nil
}

// Keyboards.

func kbGroupSelection(groups []*models.Group) transport.Keyboard {
	var kb transport.Keyboard
	for _, g := range groups {
		label := g.DisplayName()
		if g.Config.Price != "" {
			label = fmt.Sprintf("%s — %s", label, g.Config.Price)
		}
		kb = append(kb, transport.Row(transport.Button{Text: label, Data: groupData(cbSelectGroup, g.ID)}))
	}
	return kb
}

func kbPaymentConfirm(groupID int64) transport.Keyboard {
	return transport.Keyboard{
		transport.Row(transport.Button{Text: "✅ I have made payment", Data: groupData(cbConfirmPayment, groupID)}),
		transport.Row(transport.Button{Text: "↩️ Back to groups", Data: cbBackToGroups}),
	}
}

func kbBackToGroups() transport.Keyboard {
	return transport.Keyboard{
		transport.Row(transport.Button{Text: "↩️ Back to groups", Data: cbBackToGroups}),
	}
}

func kbAdminGroupList(groups []*models.Group) transport.Keyboard {
	var kb transport.Keyboard
	for _, g := range groups {
		kb = append(kb, transport.Row(transport.Button{Text: g.DisplayName(), Data: groupData(cbAdminGroup, g.ID)}))
	}
	kb = append(kb, transport.Row(transport.Button{Text: "🔄 Refresh", Data: cbRefreshGroups}))
	return kb
}

func kbSetupGroupSelection(groups []*models.Group) transport.Keyboard {
	var kb transport.Keyboard
	for _, g := range groups {
		kb = append(kb, transport.Row(transport.Button{Text: g.DisplayName(), Data: groupData(cbSetupGroup, g.ID)}))
	}
	kb = append(kb, transport.Row(transport.Button{Text: "✖️ Cancel", Data: cbCancelSetup}))
	return kb
}

func kbAdminGroupActions(groupID int64) transport.Keyboard {
	return transport.Keyboard{
		transport.Row(
			transport.Button{Text: "👁 View", Data: groupData(cbViewConfig, groupID)},
			transport.Button{Text: "✏️ Edit", Data: groupData(cbEditConfig, groupID)},
		),
		transport.Row(transport.Button{Text: "↩️ Back", Data: cbBackToAdminGroups}),
	}
}

func kbEditConfigConfirm(groupID int64) transport.Keyboard {
	return transport.Keyboard{
		transport.Row(transport.Button{Text: "✅ Yes, re-run setup", Data: groupData(cbConfirmEdit, groupID)}),
		transport.Row(transport.Button{Text: "↩️ Back", Data: groupData(cbAdminGroup, groupID)}),
	}
}

func kbUserManagement(userID, groupID int64) transport.Keyboard {
	return transport.Keyboard{
		transport.Row(transport.Button{Text: "✅ User Added to Group", Data: userGroupData(cbUserAdded, userID, groupID)}),
		transport.Row(transport.Button{Text: "❌ Reject Payment", Data: userGroupData(cbUserRejected, userID, groupID)}),
	}
}
