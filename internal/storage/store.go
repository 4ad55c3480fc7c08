// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/subkeeper/subkeeper/internal/models"
)

var (
	// ErrGroupNotFound is returned when a group id has no record.
	ErrGroupNotFound = errors.New("group not found")

	// ErrMembershipNotFound is returned when a (group, user) pair has no
	// membership record.
	ErrMembershipNotFound = errors.New("membership not found")
)

// Store defines the persistence operations the subscription engine needs.
// This abstraction allows swapping backends (single JSON document, SQLite)
// without changing the services, and lets tests use a throwaway store.
//
// Every mutating method is a complete read-modify-persist unit: a concurrent
// reader never observes partial state.
type Store interface {
	// CreateGroup persists a new group record. If a record for group.ID
	// already exists it is left untouched and no error is returned, so the
	// bot being re-added to a known group is harmless.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group by chat id.
	// Returns ErrGroupNotFound if no record exists.
	GetGroup(ctx context.Context, groupID int64) (*models.Group, error)

	// DeleteGroup removes a group and its memberships.
	// Returns ErrGroupNotFound if no record exists.
	DeleteGroup(ctx context.Context, groupID int64) error

	// UpdateGroupConfig applies the non-nil fields of patch to the group's
	// payment configuration.
	UpdateGroupConfig(ctx context.Context, groupID int64, patch models.ConfigPatch) error

	// SetSetupStep records which setup prompt the group is waiting on.
	// Entering any real step implies setup is not complete.
	SetSetupStep(ctx context.Context, groupID int64, step models.SetupStep) error

	// CompleteSetup marks setup finished and clears the pending step.
	CompleteSetup(ctx context.Context, groupID int64) error

	// ResetSetup clears the setup-complete flag so the wizard can be rerun.
	// Existing config fields and memberships are kept.
	ResetSetup(ctx context.Context, groupID int64) error

	// ListGroupsByAdmin returns every group administered by adminID.
	ListGroupsByAdmin(ctx context.Context, adminID int64) ([]*models.Group, error)

	// ListConfiguredGroups returns every group visible to paying users.
	ListConfiguredGroups(ctx context.Context) ([]*models.Group, error)

	// PutMembership inserts or overwrites the membership for (groupID, userID).
	// Returns ErrGroupNotFound if the group does not exist.
	PutMembership(ctx context.Context, groupID, userID int64, m *models.Membership) error

	// GetMembership retrieves the membership for (groupID, userID).
	// Returns ErrMembershipNotFound if absent.
	GetMembership(ctx context.Context, groupID, userID int64) (*models.Membership, error)

	// DeleteMembership removes the membership for (groupID, userID).
	// Returns ErrMembershipNotFound if absent.
	DeleteMembership(ctx context.Context, groupID, userID int64) error

	// ListExpiredMemberships returns every active membership whose expiry is
	// at or before now, across all groups.
	ListExpiredMemberships(ctx context.Context, now time.Time) ([]models.ExpiredMembership, error)

	// Close releases any resources held by the store.
	Close() error
}
