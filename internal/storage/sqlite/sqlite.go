// Package sqlite provides a SQLite-backed implementation of the storage.Store
// interface, for deployments that outgrow the single JSON document.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/subkeeper/subkeeper/internal/models"
	"github.com/subkeeper/subkeeper/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateGroup persists a new group. Existing records are left untouched.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	createdAt := group.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups (id, admin_id, name, bank_name, account_name, account_number, price, is_setup_complete, setup_step, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		group.ID, group.AdminID, group.Name,
		group.Config.BankName, group.Config.AccountName, group.Config.AccountNumber, group.Config.Price,
		boolToInt(group.IsSetupComplete), string(group.SetupStep), createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group and its memberships by chat id.
func (s *Store) GetGroup(ctx context.Context, groupID int64) (*models.Group, error) {
	g, err := s.scanGroup(s.db.QueryRowContext(ctx,
		`SELECT id, admin_id, name, bank_name, account_name, account_number, price, is_setup_complete, setup_step, created_at
		 FROM groups WHERE id = ?`, groupID,
	))
	if err != nil {
		return nil, err
	}

	if err := s.loadMemberships(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteGroup removes a group; memberships cascade.
func (s *Store) DeleteGroup(ctx context.Context, groupID int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return errIfNoRows(res, storage.ErrGroupNotFound)
}

// UpdateGroupConfig applies patch to the group's payment configuration.
func (s *Store) UpdateGroupConfig(ctx context.Context, groupID int64, patch models.ConfigPatch) error {
	g, err := s.scanGroup(s.db.QueryRowContext(ctx,
		`SELECT id, admin_id, name, bank_name, account_name, account_number, price, is_setup_complete, setup_step, created_at
		 FROM groups WHERE id = ?`, groupID,
	))
	if err != nil {
		return err
	}
	patch.Apply(&g.Config)

	_, err = s.db.ExecContext(ctx,
		"UPDATE groups SET bank_name = ?, account_name = ?, account_number = ?, price = ? WHERE id = ?",
		g.Config.BankName, g.Config.AccountName, g.Config.AccountNumber, g.Config.Price, groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group config: %w", err)
	}
	return nil
}

// SetSetupStep records the pending setup prompt for the group.
func (s *Store) SetSetupStep(ctx context.Context, groupID int64, step models.SetupStep) error {
	query := "UPDATE groups SET setup_step = ? WHERE id = ?"
	if step != models.StepNone {
		query = "UPDATE groups SET setup_step = ?, is_setup_complete = 0 WHERE id = ?"
	}
	res, err := s.db.ExecContext(ctx, query, string(step), groupID)
	if err != nil {
		return fmt.Errorf("failed to set setup step: %w", err)
	}
	return errIfNoRows(res, storage.ErrGroupNotFound)
}

// CompleteSetup marks setup finished and clears the pending step.
func (s *Store) CompleteSetup(ctx context.Context, groupID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE groups SET is_setup_complete = 1, setup_step = '' WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to complete setup: %w", err)
	}
	return errIfNoRows(res, storage.ErrGroupNotFound)
}

// ResetSetup clears the setup-complete flag, keeping config and memberships.
func (s *Store) ResetSetup(ctx context.Context, groupID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE groups SET is_setup_complete = 0, setup_step = '' WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to reset setup: %w", err)
	}
	return errIfNoRows(res, storage.ErrGroupNotFound)
}

// ListGroupsByAdmin returns every group administered by adminID.
func (s *Store) ListGroupsByAdmin(ctx context.Context, adminID int64) ([]*models.Group, error) {
	return s.listGroups(ctx,
		`SELECT id, admin_id, name, bank_name, account_name, account_number, price, is_setup_complete, setup_step, created_at
		 FROM groups WHERE admin_id = ?`, adminID)
}

// ListConfiguredGroups returns every group visible to paying users.
func (s *Store) ListConfiguredGroups(ctx context.Context) ([]*models.Group, error) {
	return s.listGroups(ctx,
		`SELECT id, admin_id, name, bank_name, account_name, account_number, price, is_setup_complete, setup_step, created_at
		 FROM groups
		 WHERE is_setup_complete = 1
		   AND bank_name != '' AND account_name != '' AND account_number != '' AND price != ''`)
}

// PutMembership inserts or overwrites the membership for (groupID, userID).
func (s *Store) PutMembership(ctx context.Context, groupID, userID int64, m *models.Membership) error {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ?", groupID).Scan(&exists)
	if err == sql.ErrNoRows {
		return storage.ErrGroupNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check group: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memberships (group_id, user_id, username, join_date, expiry_date, is_active)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(group_id, user_id) DO UPDATE SET
		   username = excluded.username,
		   join_date = excluded.join_date,
		   expiry_date = excluded.expiry_date,
		   is_active = excluded.is_active`,
		groupID, userID, m.Username, m.JoinDate.Unix(), m.ExpiryDate.Unix(), boolToInt(m.IsActive),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert membership: %w", err)
	}
	return nil
}

// GetMembership retrieves the membership for (groupID, userID).
func (s *Store) GetMembership(ctx context.Context, groupID, userID int64) (*models.Membership, error) {
	var (
		m                    models.Membership
		join, expiry, active int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT username, join_date, expiry_date, is_active FROM memberships WHERE group_id = ? AND user_id = ?",
		groupID, userID,
	).Scan(&m.Username, &join, &expiry, &active)
	if err == sql.ErrNoRows {
		return nil, storage.ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	m.JoinDate = time.Unix(join, 0).UTC()
	m.ExpiryDate = time.Unix(expiry, 0).UTC()
	m.IsActive = active != 0
	return &m, nil
}

// DeleteMembership removes the membership for (groupID, userID).
func (s *Store) DeleteMembership(ctx context.Context, groupID, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM memberships WHERE group_id = ? AND user_id = ?", groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	return errIfNoRows(res, storage.ErrMembershipNotFound)
}

// ListExpiredMemberships returns every active membership at or past expiry.
func (s *Store) ListExpiredMemberships(ctx context.Context, now time.Time) ([]models.ExpiredMembership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_id, user_id, username, join_date, expiry_date, is_active
		 FROM memberships WHERE is_active = 1 AND expiry_date <= ?`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list expired memberships: %w", err)
	}
	defer rows.Close()

	var expired []models.ExpiredMembership
	for rows.Next() {
		var (
			e                    models.ExpiredMembership
			m                    models.Membership
			join, expiry, active int64
		)
		if err := rows.Scan(&e.GroupID, &e.UserID, &m.Username, &join, &expiry, &active); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		m.JoinDate = time.Unix(join, 0).UTC()
		m.ExpiryDate = time.Unix(expiry, 0).UTC()
		m.IsActive = active != 0
		e.Membership = &m
		expired = append(expired, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}
	return expired, nil
}

func (s *Store) listGroups(ctx context.Context, query string, args ...any) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		g, err := s.scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	for _, g := range groups {
		if err := s.loadMemberships(ctx, g); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanGroup(row scanner) (*models.Group, error) {
	var (
		g                 models.Group
		complete, created int64
		step              string
	)
	err := row.Scan(&g.ID, &g.AdminID, &g.Name,
		&g.Config.BankName, &g.Config.AccountName, &g.Config.AccountNumber, &g.Config.Price,
		&complete, &step, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}

	g.IsSetupComplete = complete != 0
	g.CreatedAt = time.Unix(created, 0).UTC()
	g.Users = map[int64]*models.Membership{}

	g.SetupStep, err = models.ParseSetupStep(step)
	if err != nil {
		// Stale value from an older schema: treat as not-in-setup.
		g.SetupStep = models.StepNone
	}
	return &g, nil
}

func (s *Store) loadMemberships(ctx context.Context, g *models.Group) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, username, join_date, expiry_date, is_active FROM memberships WHERE group_id = ?", g.ID)
	if err != nil {
		return fmt.Errorf("failed to load memberships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID               int64
			m                    models.Membership
			join, expiry, active int64
		)
		if err := rows.Scan(&userID, &m.Username, &join, &expiry, &active); err != nil {
			return fmt.Errorf("failed to scan membership: %w", err)
		}
		m.JoinDate = time.Unix(join, 0).UTC()
		m.ExpiryDate = time.Unix(expiry, 0).UTC()
		m.IsActive = active != 0
		g.Users[userID] = &m
	}
	return rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func errIfNoRows(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
