// Package jsonfile provides a storage.Store backed by a single JSON document
// on disk. The whole document is loaded at startup, mutated in memory under a
// mutex, and rewritten via write-temp-then-rename so a crash mid-write can
// never corrupt the file.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/subkeeper/subkeeper/internal/models"
	"github.com/subkeeper/subkeeper/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// document is the on-disk shape: {"groups": {"<groupId>": {...}}}.
type document struct {
	Groups map[string]*models.Group `json:"groups"`
}

// Store implements storage.Store on a single JSON file.
type Store struct {
	mu   sync.Mutex
	path string
	doc  *document
}

// New opens (or creates) the document at path. An unreadable or corrupt file
// is replaced with an empty document; refusing to start would leave a crashed
// deployment permanently down over a file the admin can only delete anyway.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &Store{path: path, doc: &document{Groups: map[string]*models.Group{}}}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := s.save(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read database: %w", err)
	default:
		if err := json.Unmarshal(raw, s.doc); err != nil {
			slog.Warn("database file is corrupt, starting empty", "path", path, "error", err)
			s.doc = &document{Groups: map[string]*models.Group{}}
		}
		s.normalize()
	}

	return s, nil
}

// normalize backfills fields derived from map keys and sanitizes values that
// may be stale in an old document.
func (s *Store) normalize() {
	if s.doc.Groups == nil {
		s.doc.Groups = map[string]*models.Group{}
	}
	for key, g := range s.doc.Groups {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			slog.Warn("dropping group with malformed id", "key", key)
			delete(s.doc.Groups, key)
			continue
		}
		g.ID = id
		if g.Users == nil {
			g.Users = map[int64]*models.Membership{}
		}
		if _, err := models.ParseSetupStep(string(g.SetupStep)); err != nil {
			slog.Warn("ignoring unrecognized setup step", "group_id", id, "error", err)
			g.SetupStep = models.StepNone
		}
	}
}

// save writes the document atomically. Callers must hold s.mu.
func (s *Store) save() error {
	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode database: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write database: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	return nil
}

// Close flushes the document one last time.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func key(groupID int64) string {
	return strconv.FormatInt(groupID, 10)
}

// group looks up a live record. Callers must hold s.mu.
func (s *Store) group(groupID int64) (*models.Group, error) {
	g, ok := s.doc.Groups[key(groupID)]
	if !ok {
		return nil, storage.ErrGroupNotFound
	}
	return g, nil
}

// CreateGroup persists a new group. Existing records are left untouched.
func (s *Store) CreateGroup(_ context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Groups[key(group.ID)]; ok {
		return nil
	}

	cp := group.Clone()
	if cp.Users == nil {
		cp.Users = map[int64]*models.Membership{}
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.doc.Groups[key(group.ID)] = cp
	return s.save()
}

// GetGroup retrieves a group by chat id.
func (s *Store) GetGroup(_ context.Context, groupID int64) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(groupID)
	if err != nil {
		return nil, err
	}
	return g.Clone(), nil
}

// DeleteGroup removes a group and its memberships.
func (s *Store) DeleteGroup(_ context.Context, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.group(groupID); err != nil {
		return err
	}
	delete(s.doc.Groups, key(groupID))
	return s.save()
}

// UpdateGroupConfig applies patch to the group's payment configuration.
func (s *Store) UpdateGroupConfig(_ context.Context, groupID int64, patch models.ConfigPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(groupID)
	if err != nil {
		return err
	}
	patch.Apply(&g.Config)
	return s.save()
}

// SetSetupStep records the pending setup prompt for the group.
func (s *Store) SetSetupStep(_ context.Context, groupID int64, step models.SetupStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(groupID)
	if err != nil {
		return err
	}
	g.SetupStep = step
	if step != models.StepNone {
		g.IsSetupComplete = false
	}
	return s.save()
}

// CompleteSetup marks setup finished and clears the pending step.
func (s *Store) CompleteSetup(_ context.Context, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(groupID)
	if err != nil {
		return err
	}
	g.IsSetupComplete = true
	g.SetupStep = models.StepNone
	return s.save()
}

// ResetSetup clears the setup-complete flag, keeping config and memberships.
func (s *Store) ResetSetup(_ context.Context, groupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(groupID)
	if err != nil {
		return err
	}
	g.IsSetupComplete = false
	g.SetupStep = models.StepNone
	return s.save()
}

// ListGroupsByAdmin returns every group administered by adminID.
func (s *Store) ListGroupsByAdmin(_ context.Context, adminID int64) ([]*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var groups []*models.Group
	for _, g := range s.doc.Groups {
		if g.AdminID == adminID {
			groups = append(groups, g.Clone())
		}
	}
	return groups, nil
}

// ListConfiguredGroups returns every group visible to paying users.
func (s *Store) ListConfiguredGroups(_ context.Context) ([]*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var groups []*models.Group
	for _, g := range s.doc.Groups {
		if g.Configured() {
			groups = append(groups, g.Clone())
		}
	}
	return groups, nil
}

// PutMembership inserts or overwrites the membership for (groupID, userID).
func (s *Store) PutMembership(_ context.Context, groupID, userID int64, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(groupID)
	if err != nil {
		return err
	}
	cp := *m
	g.Users[userID] = &cp
	return s.save()
}

// GetMembership retrieves the membership for (groupID, userID).
func (s *Store) GetMembership(_ context.Context, groupID, userID int64) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(groupID)
	if err != nil {
		return nil, err
	}
	m, ok := g.Users[userID]
	if !ok {
		return nil, storage.ErrMembershipNotFound
	}
	cp := *m
	return &cp, nil
}

// DeleteMembership removes the membership for (groupID, userID).
func (s *Store) DeleteMembership(_ context.Context, groupID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(groupID)
	if err != nil {
		return err
	}
	if _, ok := g.Users[userID]; !ok {
		return storage.ErrMembershipNotFound
	}
	delete(g.Users, userID)
	return s.save()
}

// ListExpiredMemberships scans every group for active memberships at or past
// their expiry.
func (s *Store) ListExpiredMemberships(_ context.Context, now time.Time) ([]models.ExpiredMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []models.ExpiredMembership
	for _, g := range s.doc.Groups {
		for userID, m := range g.Users {
			if m.Expired(now) {
				cp := *m
				expired = append(expired, models.ExpiredMembership{
					GroupID:    g.ID,
					UserID:     userID,
					Membership: &cp,
				})
			}
		}
	}
	return expired, nil
}
