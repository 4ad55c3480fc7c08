package models

import (
	"fmt"
	"time"
)

// SetupStep identifies which configuration prompt a group is waiting on.
// The zero value means the group is not mid-setup.
type SetupStep string

const (
	StepNone          SetupStep = ""
	StepBankName      SetupStep = "bank_name"
	StepAccountName   SetupStep = "account_name"
	StepAccountNumber SetupStep = "account_number"
	StepPrice         SetupStep = "price"
)

// ParseSetupStep decodes a persisted step value. Unknown values are returned
// as an error so callers can log and treat the group as not-in-setup instead
// of crashing on a stale document.
func ParseSetupStep(s string) (SetupStep, error) {
	switch step := SetupStep(s); step {
	case StepNone, StepBankName, StepAccountName, StepAccountNumber, StepPrice:
		return step, nil
	default:
		return StepNone, fmt.Errorf("unknown setup step %q", s)
	}
}

// Group represents one managed chat group.
type Group struct {
	// ID is the chat identifier assigned by the messaging platform.
	// Telegram group ids are negative int64s.
	ID int64 `json:"-"`

	// AdminID is the user who administers this group. It is set once when
	// the group record is created and never changes afterwards.
	AdminID int64 `json:"adminId"`

	// Name is the chat's display title at the time the bot joined.
	// May be empty; use DisplayName for user-facing text.
	Name string `json:"groupName,omitempty"`

	// Config holds the payment details collected during setup.
	Config GroupConfig `json:"config"`

	// IsSetupComplete is true once all four setup answers have been given.
	IsSetupComplete bool `json:"isSetupComplete"`

	// SetupStep is non-none only while IsSetupComplete is false.
	SetupStep SetupStep `json:"setupStep,omitempty"`

	// Users maps user id to the user's current membership. Absence of a key
	// means no access; revocation deletes the entry outright.
	Users map[int64]*Membership `json:"users"`

	// CreatedAt is when the group record was created.
	CreatedAt time.Time `json:"createdAt"`
}

// GroupConfig is the payment information shown to subscribing users.
// All fields are free text supplied by the admin.
type GroupConfig struct {
	BankName      string `json:"bankName"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	Price         string `json:"price"`
}

// Complete reports whether every config field has been supplied.
func (c GroupConfig) Complete() bool {
	return c.BankName != "" && c.AccountName != "" && c.AccountNumber != "" && c.Price != ""
}

// ConfigPatch is a partial update to a group's payment configuration.
// Nil fields are left untouched.
type ConfigPatch struct {
	BankName      *string
	AccountName   *string
	AccountNumber *string
	Price         *string
}

// Apply overwrites the non-nil fields of the patch onto cfg.
func (p ConfigPatch) Apply(cfg *GroupConfig) {
	if p.BankName != nil {
		cfg.BankName = *p.BankName
	}
	if p.AccountName != nil {
		cfg.AccountName = *p.AccountName
	}
	if p.AccountNumber != nil {
		cfg.AccountNumber = *p.AccountNumber
	}
	if p.Price != nil {
		cfg.Price = *p.Price
	}
}

// Configured reports whether the group is visible to paying users: setup has
// completed and every payment field is present.
func (g *Group) Configured() bool {
	return g.IsSetupComplete && g.Config.Complete()
}

// DisplayName returns the group title, or a synthesized placeholder when the
// platform never told us one.
func (g *Group) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	return fmt.Sprintf("Group %d", g.ID)
}

// Clone returns a deep copy, so stores can hand out groups without exposing
// their internal document to mutation.
func (g *Group) Clone() *Group {
	cp := *g
	cp.Users = make(map[int64]*Membership, len(g.Users))
	for id, m := range g.Users {
		mc := *m
		cp.Users[id] = &mc
	}
	return &cp
}
