package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/subkeeper/subkeeper/internal/models"
	"github.com/subkeeper/subkeeper/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("group lifecycle", func(t *testing.T) {
		store := newTestStore(t)

		g := &models.Group{ID: -100, AdminID: 7, Name: "Premium Signals"}
		if err := store.CreateGroup(ctx, g); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		// Re-creating must not clobber the stored record.
		if err := store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 999}); err != nil {
			t.Fatalf("second CreateGroup failed: %v", err)
		}

		got, err := store.GetGroup(ctx, -100)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if got.AdminID != 7 || got.Name != "Premium Signals" {
			t.Errorf("got %+v, want admin 7 name Premium Signals", got)
		}

		if err := store.DeleteGroup(ctx, -100); err != nil {
			t.Fatalf("DeleteGroup failed: %v", err)
		}
		if _, err := store.GetGroup(ctx, -100); !errors.Is(err, storage.ErrGroupNotFound) {
			t.Errorf("GetGroup after delete error = %v, want ErrGroupNotFound", err)
		}
		if err := store.DeleteGroup(ctx, -100); !errors.Is(err, storage.ErrGroupNotFound) {
			t.Errorf("second DeleteGroup error = %v, want ErrGroupNotFound", err)
		}
	})

	t.Run("setup step transitions", func(t *testing.T) {
		store := newTestStore(t)
		store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 7})

		if err := store.SetSetupStep(ctx, -100, models.StepBankName); err != nil {
			t.Fatalf("SetSetupStep failed: %v", err)
		}
		g, _ := store.GetGroup(ctx, -100)
		if g.SetupStep != models.StepBankName || g.IsSetupComplete {
			t.Errorf("group = step %q complete %v, want bank_name and incomplete", g.SetupStep, g.IsSetupComplete)
		}

		if err := store.CompleteSetup(ctx, -100); err != nil {
			t.Fatalf("CompleteSetup failed: %v", err)
		}
		g, _ = store.GetGroup(ctx, -100)
		if g.SetupStep != models.StepNone || !g.IsSetupComplete {
			t.Errorf("group = step %q complete %v, want none and complete", g.SetupStep, g.IsSetupComplete)
		}

		if err := store.ResetSetup(ctx, -100); err != nil {
			t.Fatalf("ResetSetup failed: %v", err)
		}
		g, _ = store.GetGroup(ctx, -100)
		if g.IsSetupComplete {
			t.Error("IsSetupComplete should be false after reset")
		}
	})

	t.Run("config patch preserves other fields", func(t *testing.T) {
		store := newTestStore(t)
		store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 7, Config: models.GroupConfig{BankName: "Old Bank"}})

		name := "Jane Doe"
		if err := store.UpdateGroupConfig(ctx, -100, models.ConfigPatch{AccountName: &name}); err != nil {
			t.Fatalf("UpdateGroupConfig failed: %v", err)
		}

		g, _ := store.GetGroup(ctx, -100)
		if g.Config.BankName != "Old Bank" || g.Config.AccountName != "Jane Doe" {
			t.Errorf("config = %+v", g.Config)
		}
	})

	t.Run("memberships load with the group and cascade on delete", func(t *testing.T) {
		store := newTestStore(t)
		store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 7})

		now := time.Now().UTC().Truncate(time.Second)
		m := &models.Membership{Username: "@jane", JoinDate: now, ExpiryDate: now.Add(time.Hour), IsActive: true}
		if err := store.PutMembership(ctx, -100, 42, m); err != nil {
			t.Fatalf("PutMembership failed: %v", err)
		}

		g, err := store.GetGroup(ctx, -100)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if got, ok := g.Users[42]; !ok || got.Username != "@jane" {
			t.Errorf("Users[42] = %+v, want @jane", g.Users[42])
		}

		if err := store.DeleteGroup(ctx, -100); err != nil {
			t.Fatalf("DeleteGroup failed: %v", err)
		}
		if _, err := store.GetMembership(ctx, -100, 42); !errors.Is(err, storage.ErrMembershipNotFound) {
			t.Errorf("membership survived group delete: %v", err)
		}
	})

	t.Run("PutMembership upserts", func(t *testing.T) {
		store := newTestStore(t)
		store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 7})

		now := time.Now().UTC().Truncate(time.Second)
		store.PutMembership(ctx, -100, 42, &models.Membership{
			Username: "@jane", JoinDate: now, ExpiryDate: now.Add(time.Hour), IsActive: true,
		})
		later := now.Add(48 * time.Hour)
		if err := store.PutMembership(ctx, -100, 42, &models.Membership{
			Username: "@jane", JoinDate: now, ExpiryDate: later, IsActive: true,
		}); err != nil {
			t.Fatalf("second PutMembership failed: %v", err)
		}

		m, err := store.GetMembership(ctx, -100, 42)
		if err != nil {
			t.Fatalf("GetMembership failed: %v", err)
		}
		if !m.ExpiryDate.Equal(later) {
			t.Errorf("ExpiryDate = %v, want %v", m.ExpiryDate, later)
		}
	})

	t.Run("ListExpiredMemberships skips inactive and unexpired", func(t *testing.T) {
		store := newTestStore(t)
		store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 7})

		now := time.Now().UTC().Truncate(time.Second)
		store.PutMembership(ctx, -100, 1, &models.Membership{
			JoinDate: now.Add(-2 * time.Hour), ExpiryDate: now.Add(-time.Hour), IsActive: true,
		})
		store.PutMembership(ctx, -100, 2, &models.Membership{
			JoinDate: now, ExpiryDate: now.Add(time.Hour), IsActive: true,
		})
		store.PutMembership(ctx, -100, 3, &models.Membership{
			JoinDate: now.Add(-2 * time.Hour), ExpiryDate: now.Add(-time.Hour), IsActive: false,
		})

		expired, err := store.ListExpiredMemberships(ctx, now)
		if err != nil {
			t.Fatalf("ListExpiredMemberships failed: %v", err)
		}
		if len(expired) != 1 || expired[0].UserID != 1 {
			t.Errorf("expired = %+v, want only user 1", expired)
		}
	})

	t.Run("ListConfiguredGroups requires every field", func(t *testing.T) {
		store := newTestStore(t)
		store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 7, Config: models.GroupConfig{
			BankName: "B", AccountName: "A", AccountNumber: "1", Price: "$5",
		}})
		store.CompleteSetup(ctx, -100)
		// Complete flag set but price missing: must not be listed.
		store.CreateGroup(ctx, &models.Group{ID: -200, AdminID: 7, Config: models.GroupConfig{
			BankName: "B", AccountName: "A", AccountNumber: "1",
		}})
		store.CompleteSetup(ctx, -200)

		groups, err := store.ListConfiguredGroups(ctx)
		if err != nil {
			t.Fatalf("ListConfiguredGroups failed: %v", err)
		}
		if len(groups) != 1 || groups[0].ID != -100 {
			t.Errorf("configured = %+v, want only -100", groups)
		}
	})
}

func TestSQLitePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	store, err := New(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 7, Name: "Premium"})
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	g, err := reopened.GetGroup(ctx, -100)
	if err != nil {
		t.Fatalf("GetGroup after reopen failed: %v", err)
	}
	if g.Name != "Premium" {
		t.Errorf("Name = %q, want Premium", g.Name)
	}
}
