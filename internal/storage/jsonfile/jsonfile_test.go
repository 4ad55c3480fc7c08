package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/subkeeper/subkeeper/internal/models"
	"github.com/subkeeper/subkeeper/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "database.json"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestJSONFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("GetGroup returns ErrGroupNotFound for unknown id", func(t *testing.T) {
		store := newTestStore(t)
		if _, err := store.GetGroup(ctx, -100); !errors.Is(err, storage.ErrGroupNotFound) {
			t.Errorf("GetGroup error = %v, want ErrGroupNotFound", err)
		}
	})

	t.Run("CreateGroup then GetGroup round-trips", func(t *testing.T) {
		store := newTestStore(t)
		g := &models.Group{ID: -100, AdminID: 7, Name: "Premium Signals"}
		if err := store.CreateGroup(ctx, g); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}

		got, err := store.GetGroup(ctx, -100)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if got.AdminID != 7 || got.Name != "Premium Signals" {
			t.Errorf("got %+v, want admin 7 name Premium Signals", got)
		}
		if got.IsSetupComplete {
			t.Error("new group should not be setup complete")
		}
		if got.CreatedAt.IsZero() {
			t.Error("CreatedAt should be backfilled")
		}
	})

	t.Run("CreateGroup is a no-op when the group exists", func(t *testing.T) {
		store := newTestStore(t)
		if err := store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 7}); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		if err := store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 999}); err != nil {
			t.Fatalf("second CreateGroup failed: %v", err)
		}

		got, err := store.GetGroup(ctx, -100)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if got.AdminID != 7 {
			t.Errorf("AdminID = %d, want original admin 7", got.AdminID)
		}
	})

	t.Run("config patch only touches supplied fields", func(t *testing.T) {
		store := newTestStore(t)
		store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 7})

		bank := "Test Bank"
		if err := store.UpdateGroupConfig(ctx, -100, models.ConfigPatch{BankName: &bank}); err != nil {
			t.Fatalf("UpdateGroupConfig failed: %v", err)
		}
		price := "$10"
		if err := store.UpdateGroupConfig(ctx, -100, models.ConfigPatch{Price: &price}); err != nil {
			t.Fatalf("UpdateGroupConfig failed: %v", err)
		}

		got, _ := store.GetGroup(ctx, -100)
		if got.Config.BankName != "Test Bank" || got.Config.Price != "$10" {
			t.Errorf("config = %+v", got.Config)
		}
		if got.Config.AccountName != "" {
			t.Errorf("AccountName = %q, want untouched", got.Config.AccountName)
		}
	})

	t.Run("entering a setup step clears the complete flag", func(t *testing.T) {
		store := newTestStore(t)
		store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 7})
		if err := store.CompleteSetup(ctx, -100); err != nil {
			t.Fatalf("CompleteSetup failed: %v", err)
		}
		if err := store.SetSetupStep(ctx, -100, models.StepBankName); err != nil {
			t.Fatalf("SetSetupStep failed: %v", err)
		}

		got, _ := store.GetGroup(ctx, -100)
		if got.IsSetupComplete {
			t.Error("IsSetupComplete should be false while mid-setup")
		}
		if got.SetupStep != models.StepBankName {
			t.Errorf("SetupStep = %q, want bank_name", got.SetupStep)
		}
	})

	t.Run("memberships round-trip and delete", func(t *testing.T) {
		store := newTestStore(t)
		store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 7})

		now := time.Now().UTC().Truncate(time.Second)
		m := &models.Membership{Username: "@jane", JoinDate: now, ExpiryDate: now.Add(time.Hour), IsActive: true}
		if err := store.PutMembership(ctx, -100, 42, m); err != nil {
			t.Fatalf("PutMembership failed: %v", err)
		}

		got, err := store.GetMembership(ctx, -100, 42)
		if err != nil {
			t.Fatalf("GetMembership failed: %v", err)
		}
		if got.Username != "@jane" || !got.IsActive {
			t.Errorf("membership = %+v", got)
		}

		if err := store.DeleteMembership(ctx, -100, 42); err != nil {
			t.Fatalf("DeleteMembership failed: %v", err)
		}
		if err := store.DeleteMembership(ctx, -100, 42); !errors.Is(err, storage.ErrMembershipNotFound) {
			t.Errorf("second delete error = %v, want ErrMembershipNotFound", err)
		}
	})

	t.Run("PutMembership on missing group fails", func(t *testing.T) {
		store := newTestStore(t)
		m := &models.Membership{JoinDate: time.Now(), ExpiryDate: time.Now().Add(time.Hour), IsActive: true}
		if err := store.PutMembership(ctx, -1, 42, m); !errors.Is(err, storage.ErrGroupNotFound) {
			t.Errorf("PutMembership error = %v, want ErrGroupNotFound", err)
		}
	})

	t.Run("ListExpiredMemberships honors the expiry boundary", func(t *testing.T) {
		store := newTestStore(t)
		store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 7})
		store.CreateGroup(ctx, &models.Group{ID: -200, AdminID: 8})

		now := time.Now().UTC()
		put := func(groupID, userID int64, expiry time.Time) {
			t.Helper()
			m := &models.Membership{JoinDate: expiry.Add(-time.Hour), ExpiryDate: expiry, IsActive: true}
			if err := store.PutMembership(ctx, groupID, userID, m); err != nil {
				t.Fatalf("PutMembership failed: %v", err)
			}
		}
		put(-100, 1, now.Add(-time.Minute)) // expired
		put(-100, 2, now.Add(time.Hour))    // current
		put(-200, 3, now)                   // expires exactly now

		expired, err := store.ListExpiredMemberships(ctx, now)
		if err != nil {
			t.Fatalf("ListExpiredMemberships failed: %v", err)
		}
		if len(expired) != 2 {
			t.Fatalf("got %d expired, want 2: %+v", len(expired), expired)
		}
		for _, e := range expired {
			if e.UserID == 2 {
				t.Error("unexpired membership returned")
			}
		}
	})

	t.Run("listings filter by admin and configuration", func(t *testing.T) {
		store := newTestStore(t)
		store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 7})
		store.CreateGroup(ctx, &models.Group{ID: -200, AdminID: 7, Config: models.GroupConfig{
			BankName: "B", AccountName: "A", AccountNumber: "1", Price: "$5",
		}})
		store.CompleteSetup(ctx, -200)

		mine, err := store.ListGroupsByAdmin(ctx, 7)
		if err != nil {
			t.Fatalf("ListGroupsByAdmin failed: %v", err)
		}
		if len(mine) != 2 {
			t.Errorf("admin owns %d groups, want 2", len(mine))
		}

		configured, err := store.ListConfiguredGroups(ctx)
		if err != nil {
			t.Fatalf("ListConfiguredGroups failed: %v", err)
		}
		if len(configured) != 1 || configured[0].ID != -200 {
			t.Errorf("configured = %+v, want only -200", configured)
		}
	})
}

func TestJSONFilePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "database.json")

	store, err := New(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	store.CreateGroup(ctx, &models.Group{ID: -100, AdminID: 7, Name: "Premium"})
	store.SetSetupStep(ctx, -100, models.StepAccountName)
	now := time.Now().UTC().Truncate(time.Second)
	store.PutMembership(ctx, -100, 42, &models.Membership{
		Username: "@jane", JoinDate: now, ExpiryDate: now.Add(time.Hour), IsActive: true,
	})
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
	if g.Name != "Premium" || g.SetupStep != models.StepAccountName {
		t.Errorf("reloaded group = %+v", g)
	}
	m, err := reopened.GetMembership(ctx, -100, 42)
	if err != nil {
		t.Fatalf("GetMembership after reopen failed: %v", err)
	}
	if m.Username != "@jane" || !m.ExpiryDate.Equal(now.Add(time.Hour)) {
		t.Errorf("reloaded membership = %+v", m)
	}

	// No stray temp file should linger after atomic writes.
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestJSONFileCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	store, err := New(path)
	if err != nil {
		t.Fatalf("New should recover from corrupt file, got: %v", err)
	}
	defer store.Close()

	groups, err := store.ListConfiguredGroups(context.Background())
	if err != nil {
		t.Fatalf("ListConfiguredGroups failed: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected empty store after corrupt recovery, got %d groups", len(groups))
	}
}

func TestJSONFileUnknownSetupStep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.json")
	doc := `{"groups": {"-100": {"adminId": 7, "setupStep": "shoe_size", "users": {}}}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("seed document: %v", err)
	}

	store, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer store.Close()

	g, err := store.GetGroup(context.Background(), -100)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if g.SetupStep != models.StepNone {
		t.Errorf("SetupStep = %q, want none for unknown persisted value", g.SetupStep)
	}
}
