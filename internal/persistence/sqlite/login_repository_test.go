package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/example/schoolsoft-sync/internal/persistence"
)

func TestSaveLogin_UpsertsAndActivates(t *testing.T) {
	repo := NewLoginRepository(newTestPool(t))
	ctx := context.Background()

	first, err := repo.SaveLogin(ctx, persistence.Login{
		Username: "22linmic",
		AppKey:   []byte("sealed-1"),
		UserID:   7,
		UserType: 1,
		URL:      "https://sms.schoolsoft.se/mock/",
		OrgID:    1,
		OrgName:  "Mock School",
	})
	if err != nil {
		t.Fatalf("SaveLogin failed: %v", err)
	}
	if !first.Active {
		t.Fatal("saved login is not active")
	}
	if first.UserID != 7 || first.OrgID != 1 || first.OrgName != "Mock School" {
		t.Fatalf("identity fields lost on save: %+v", first)
	}

	second, err := repo.SaveLogin(ctx, persistence.Login{
		Username: "other",
		AppKey:   []byte("sealed-2"),
		UserType: 2,
		URL:      "https://sms.schoolsoft.se/mock/",
	})
	if err != nil {
		t.Fatalf("second SaveLogin failed: %v", err)
	}

	active, err := repo.ActiveLogin(ctx)
	if err != nil {
		t.Fatalf("ActiveLogin failed: %v", err)
	}
	if active.ID != second.ID {
		t.Fatalf("active login = %d, want %d", active.ID, second.ID)
	}

	// Saving the same username+url again replaces the row in place.
	updated, err := repo.SaveLogin(ctx, persistence.Login{
		Username: "22linmic",
		AppKey:   []byte("sealed-3"),
		UserID:   8,
		UserType: 1,
		URL:      "https://sms.schoolsoft.se/mock/",
		OrgID:    2,
		OrgName:  "Mock Annex",
	})
	if err != nil {
		t.Fatalf("re-save failed: %v", err)
	}
	if updated.ID != first.ID {
		t.Fatalf("re-save created a new row: %d != %d", updated.ID, first.ID)
	}
	if string(updated.AppKey) != "sealed-3" {
		t.Errorf("app key not replaced: %q", updated.AppKey)
	}
	if updated.UserID != 8 || updated.OrgID != 2 || updated.OrgName != "Mock Annex" {
		t.Errorf("identity fields not replaced: %+v", updated)
	}
}

func TestSetActiveLogin(t *testing.T) {
	repo := NewLoginRepository(newTestPool(t))
	ctx := context.Background()

	a, err := repo.SaveLogin(ctx, persistence.Login{Username: "a", AppKey: []byte("k"), UserType: 1, URL: "https://a.example"})
	if err != nil {
		t.Fatalf("SaveLogin failed: %v", err)
	}
	if _, err = repo.SaveLogin(ctx, persistence.Login{Username: "b", AppKey: []byte("k"), UserType: 1, URL: "https://b.example"}); err != nil {
		t.Fatalf("SaveLogin failed: %v", err)
	}

	if err := repo.SetActiveLogin(ctx, a.ID); err != nil {
		t.Fatalf("SetActiveLogin failed: %v", err)
	}
	active, err := repo.ActiveLogin(ctx)
	if err != nil {
		t.Fatalf("ActiveLogin failed: %v", err)
	}
	if active.ID != a.ID {
		t.Fatalf("active login = %d, want %d", active.ID, a.ID)
	}

	if err := repo.SetActiveLogin(ctx, 9999); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("SetActiveLogin(9999) = %v, want ErrNotFound", err)
	}
}

func TestDeleteLogin(t *testing.T) {
	repo := NewLoginRepository(newTestPool(t))
	ctx := context.Background()

	saved, err := repo.SaveLogin(ctx, persistence.Login{Username: "a", AppKey: []byte("k"), UserType: 1, URL: "https://a.example"})
	if err != nil {
		t.Fatalf("SaveLogin failed: %v", err)
	}
	if err := repo.DeleteLogin(ctx, saved.ID); err != nil {
		t.Fatalf("DeleteLogin failed: %v", err)
	}
	if _, err := repo.ActiveLogin(ctx); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("ActiveLogin after delete = %v, want ErrNotFound", err)
	}
}
