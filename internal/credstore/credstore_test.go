package credstore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/schoolsoft-sync/internal/persistence"
	"github.com/example/schoolsoft-sync/internal/persistence/sqlite"
)

func newTestSealer(t *testing.T) (*Sealer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	sealer, err := LoadSealer(path)
	if err != nil {
		t.Fatalf("LoadSealer failed: %v", err)
	}
	return sealer, path
}

func TestSealer_RoundTrip(t *testing.T) {
	sealer, path := newTestSealer(t)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("secret file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secret file mode = %o, want 600", perm)
	}

	sealed, err := sealer.Seal([]byte("key-123"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if bytes.Contains(sealed, []byte("key-123")) {
		t.Fatal("sealed value leaks the plaintext")
	}

	plain, err := sealer.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if string(plain) != "key-123" {
		t.Errorf("round trip = %q", plain)
	}

	// Reloading the same file yields a sealer that opens old values.
	reloaded, err := LoadSealer(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if _, err := reloaded.Open(sealed); err != nil {
		t.Errorf("reloaded sealer cannot open: %v", err)
	}
}

func TestSealer_RejectsForeignSecret(t *testing.T) {
	sealer, _ := newTestSealer(t)
	other, _ := newTestSealer(t)

	sealed, err := sealer.Seal([]byte("key-123"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := other.Open(sealed); !errors.Is(err, ErrSealBroken) {
		t.Fatalf("Open with the wrong secret = %v, want ErrSealBroken", err)
	}
	if _, err := sealer.Open(sealed[:10]); !errors.Is(err, ErrSealBroken) {
		t.Fatalf("Open on truncated input = %v, want ErrSealBroken", err)
	}
}

func TestStore_SealsAtRest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	pool, err := sqlite.NewConnectionPool(filepath.Join(dir, "schoolsync.db"))
	if err != nil {
		t.Fatalf("failed to open pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	if err := sqlite.Migrate(ctx, pool); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	logins := sqlite.NewLoginRepository(pool)

	sealer, err := LoadSealer(filepath.Join(dir, "secret"))
	if err != nil {
		t.Fatalf("LoadSealer failed: %v", err)
	}
	store := NewStore(logins, sealer)

	saved, err := store.Save(ctx, Credential{
		Username: "22linmic",
		AppKey:   "key-123",
		UserID:   7,
		UserType: 1,
		URL:      "https://sms.schoolsoft.se/mock/",
		OrgID:    1,
		OrgName:  "Mock School",
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !saved.Active {
		t.Error("saved credential is not active")
	}

	// The repository row must not contain the plaintext key.
	raw, err := logins.ActiveLogin(ctx)
	if err != nil {
		t.Fatalf("ActiveLogin failed: %v", err)
	}
	if bytes.Contains(raw.AppKey, []byte("key-123")) {
		t.Fatal("app key stored in the clear")
	}

	active, err := store.Active(ctx)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if active.AppKey != "key-123" {
		t.Errorf("unsealed app key = %q", active.AppKey)
	}
	if active.Username != "22linmic" || active.URL != "https://sms.schoolsoft.se/mock/" {
		t.Errorf("credential fields lost: %#v", active)
	}
	if active.UserID != 7 || active.OrgID != 1 || active.OrgName != "Mock School" {
		t.Errorf("identity fields lost: %#v", active)
	}

	if err := store.Delete(ctx, active.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Active(ctx); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Active after delete = %v, want ErrNotFound", err)
	}
}
