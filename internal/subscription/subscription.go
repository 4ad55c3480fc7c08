// Package subscription manages the membership lifecycle: granting
// time-limited access, revoking it, and finding memberships past expiry.
//
// The service only ever touches the store. Kicking users and notifying them
// is the sweeper's job, so membership data stays correct even when the
// messaging transport is unreachable.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/subkeeper/subkeeper/internal/models"
	"github.com/subkeeper/subkeeper/internal/storage"
)

// Service grants and revokes memberships.
type Service struct {
	store    storage.Store
	duration time.Duration
	now      func() time.Time
}

// New creates a Service granting memberships that last the given duration.
func New(store storage.Store, duration time.Duration) *Service {
	return &Service{store: store, duration: duration, now: time.Now}
}

// WithClock overrides the time source. Tests use this to advance past expiry.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Duration returns the configured membership lifetime.
func (s *Service) Duration() time.Duration {
	return s.duration
}

// Grant inserts a membership for (groupID, userID) expiring after the
// configured duration. An existing membership is overwritten, so
// re-subscribing resets the timer. Fails if the group does not exist.
func (s *Service) Grant(ctx context.Context, groupID, userID int64, username string) (*models.Membership, error) {
	if username == "" {
		username = fmt.Sprintf("User %d", userID)
	}

	now := s.now().UTC()
	m := &models.Membership{
		Username:   username,
		JoinDate:   now,
		ExpiryDate: now.Add(s.duration),
		IsActive:   true,
	}

	if err := s.store.PutMembership(ctx, groupID, userID, m); err != nil {
		return nil, fmt.Errorf("grant membership: %w", err)
	}

	slog.Info("membership granted",
		"group_id", groupID,
		"user_id", userID,
		"username", username,
		"expires_at", m.ExpiryDate,
	)
	return m, nil
}

// Revoke deletes the membership for (groupID, userID). Revoking an absent
// membership is a no-op, so a second revocation is harmless.
func (s *Service) Revoke(ctx context.Context, groupID, userID int64) error {
	err := s.store.DeleteMembership(ctx, groupID, userID)
	if errors.Is(err, storage.ErrMembershipNotFound) || errors.Is(err, storage.ErrGroupNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("revoke membership: %w", err)
	}

	slog.Info("membership revoked", "group_id", groupID, "user_id", userID)
	return nil
}

// ListExpired returns every active membership at or past its expiry.
// Called on every sweep tick; cost is linear in total memberships.
func (s *Service) ListExpired(ctx context.Context) ([]models.ExpiredMembership, error) {
	return s.store.ListExpiredMemberships(ctx, s.now().UTC())
}
