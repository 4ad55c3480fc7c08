// Package setup drives an admin through the ordered configuration wizard:
// bank name, account name, account number, price. Partial progress persists
// after every answer, so a restart resumes at the pending prompt.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/subkeeper/subkeeper/internal/models"
	"github.com/subkeeper/subkeeper/internal/storage"
)

var (
	// ErrSetupPending is returned when an admin tries to start setup for a
	// second group while another of their groups is still mid-setup. At most
	// one setup may be pending per admin, otherwise free-text answers could
	// not be routed unambiguously.
	ErrSetupPending = errors.New("another group setup is already in progress")

	// ErrNotInSetup is returned when no group of the admin is mid-setup.
	ErrNotInSetup = errors.New("no group setup in progress")
)

// Result reports the outcome of one setup answer.
type Result struct {
	// GroupID is the group the answer was applied to.
	GroupID int64

	// NextStep is the prompt to show next; StepNone when setup finished.
	NextStep models.SetupStep

	// Done is true once the final answer completed the configuration.
	Done bool

	// Group is the freshly assembled group record, populated when Done.
	Group *models.Group
}

// Service is the setup state machine over the persistent store.
type Service struct {
	store storage.Store
}

// New creates a setup Service.
func New(store storage.Store) *Service {
	return &Service{store: store}
}

// Pending returns the admin's group currently mid-setup, or ErrNotInSetup.
func (s *Service) Pending(ctx context.Context, adminID int64) (*models.Group, error) {
	groups, err := s.store.ListGroupsByAdmin(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("list admin groups: %w", err)
	}
	for _, g := range groups {
		if !g.IsSetupComplete && g.SetupStep != models.StepNone {
			return g, nil
		}
	}
	return nil, ErrNotInSetup
}

// Start enters the wizard for groupID at the first prompt. It refuses with
// ErrSetupPending if any other group of the admin is already mid-setup.
func (s *Service) Start(ctx context.Context, adminID, groupID int64) error {
	if pending, err := s.Pending(ctx, adminID); err == nil && pending.ID != groupID {
		return ErrSetupPending
	} else if err != nil && !errors.Is(err, ErrNotInSetup) {
		return err
	}

	if err := s.store.SetSetupStep(ctx, groupID, models.StepBankName); err != nil {
		return fmt.Errorf("start setup: %w", err)
	}

	slog.Info("setup started", "group_id", groupID, "admin_id", adminID)
	return nil
}

// Restart re-enters the wizard for an already configured group. The existing
// memberships and prior config are kept; each field is overwritten as its
// step is re-answered.
func (s *Service) Restart(ctx context.Context, adminID, groupID int64) error {
	if pending, err := s.Pending(ctx, adminID); err == nil && pending.ID != groupID {
		return ErrSetupPending
	} else if err != nil && !errors.Is(err, ErrNotInSetup) {
		return err
	}

	if err := s.store.ResetSetup(ctx, groupID); err != nil {
		return fmt.Errorf("reset setup: %w", err)
	}
	if err := s.store.SetSetupStep(ctx, groupID, models.StepBankName); err != nil {
		return fmt.Errorf("restart setup: %w", err)
	}

	slog.Info("setup restarted", "group_id", groupID, "admin_id", adminID)
	return nil
}

// Cancel abandons the admin's pending setup, leaving whatever config fields
// were already persisted. Returns the group that was mid-setup.
func (s *Service) Cancel(ctx context.Context, adminID int64) (*models.Group, error) {
	pending, err := s.Pending(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetSetupStep(ctx, pending.ID, models.StepNone); err != nil {
		return nil, fmt.Errorf("cancel setup: %w", err)
	}

	slog.Info("setup cancelled", "group_id", pending.ID, "admin_id", adminID)
	return pending, nil
}

// HandleAnswer applies a free-text reply to the admin's pending setup step
// and advances the machine. The Nth prompt is only reachable after the
// (N-1)th answer has been persisted.
func (s *Service) HandleAnswer(ctx context.Context, adminID int64, text string) (*Result, error) {
	pending, err := s.Pending(ctx, adminID)
	if err != nil {
		return nil, err
	}
	groupID := pending.ID

	switch pending.SetupStep {
	case models.StepBankName:
		return s.advance(ctx, groupID, models.ConfigPatch{BankName: &text}, models.StepAccountName)
	case models.StepAccountName:
		return s.advance(ctx, groupID, models.ConfigPatch{AccountName: &text}, models.StepAccountNumber)
	case models.StepAccountNumber:
		return s.advance(ctx, groupID, models.ConfigPatch{AccountNumber: &text}, models.StepPrice)
	case models.StepPrice:
		if err := s.store.UpdateGroupConfig(ctx, groupID, models.ConfigPatch{Price: &text}); err != nil {
			return nil, fmt.Errorf("persist setup answer: %w", err)
		}
		if err := s.store.CompleteSetup(ctx, groupID); err != nil {
			return nil, fmt.Errorf("complete setup: %w", err)
		}
		group, err := s.store.GetGroup(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("load completed group: %w", err)
		}
		slog.Info("setup complete", "group_id", groupID, "admin_id", adminID)
		return &Result{GroupID: groupID, NextStep: models.StepNone, Done: true, Group: group}, nil
	default:
		// Store normalization should prevent this; ignore rather than crash.
		slog.Warn("unknown setup step", "group_id", groupID, "step", pending.SetupStep)
		return nil, ErrNotInSetup
	}
}

func (s *Service) advance(ctx context.Context, groupID int64, patch models.ConfigPatch, next models.SetupStep) (*Result, error) {
	if err := s.store.UpdateGroupConfig(ctx, groupID, patch); err != nil {
		return nil, fmt.Errorf("persist setup answer: %w", err)
	}
	if err := s.store.SetSetupStep(ctx, groupID, next); err != nil {
		return nil, fmt.Errorf("advance setup step: %w", err)
	}
	return &Result{GroupID: groupID, NextStep: next}, nil
}
