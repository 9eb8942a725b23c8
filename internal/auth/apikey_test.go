package auth

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/jredmond/openhouse/internal/db"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "openhouse.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close test db: %v", err)
		}
	})
	return d
}

func TestAPIKeyCreateAndValidate(t *testing.T) {
	store := NewAPIKeyStore(testDB(t))

	raw, key, err := store.Create("ci-bot")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(raw) != apiKeyBytes*2 {
		t.Errorf("raw key length = %d, want %d", len(raw), apiKeyBytes*2)
	}
	if key.KeyPrefix != raw[:8] {
		t.Errorf("prefix = %q, want %q", key.KeyPrefix, raw[:8])
	}

	got, err := store.Validate(raw)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.Name != "ci-bot" {
		t.Errorf("name = %q, want ci-bot", got.Name)
	}
}

func TestAPIKeyValidateInvalid(t *testing.T) {
	store := NewAPIKeyStore(testDB(t))

	if _, err := store.Validate("nope"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestAPIKeyListAndDelete(t *testing.T) {
	store := NewAPIKeyStore(testDB(t))

	_, k1, err := store.Create("one")
	if err != nil {
		t.Fatalf("create one: %v", err)
	}
	if _, _, err := store.Create("two"); err != nil {
		t.Fatalf("create two: %v", err)
	}

	keys, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}

	if err := store.Delete(k1.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(k1.ID); err == nil {
		t.Error("expected error deleting twice")
	}
}
