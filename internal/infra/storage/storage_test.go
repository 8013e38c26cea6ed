package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/port"
	"github.com/fibernet/central-cliente-bfa-go/internal/session"

	"github.com/zalando/go-keyring"
)

// exerciseKV runs the same contract against every backend.
func exerciseKV(t *testing.T, kv port.KVStore) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := kv.Set(ctx, "p1:authToken", "tok-1", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set(ctx, "p1:authToken", "tok-2", 0); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := kv.Get(ctx, "p1:authToken")
	if err != nil || !ok || v != "tok-2" {
		t.Fatalf("expected last write to win, got %q ok=%v err=%v", v, ok, err)
	}

	if err := kv.Delete(ctx, "p1:authToken"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "p1:authToken"); ok {
		t.Fatal("expected key to be deleted")
	}
	if err := kv.Delete(ctx, "never-existed"); err != nil {
		t.Fatalf("deleting a missing key should not fail: %v", err)
	}
	if err := kv.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMemory_Contract(t *testing.T) {
	exerciseKV(t, NewMemory())
}

func TestMemory_TTL(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_ = m.Set(ctx, "status", "cached", 20*time.Minute)
	if _, ok, _ := m.Get(ctx, "status"); !ok {
		t.Fatal("expected fresh entry")
	}

	now = now.Add(21 * time.Minute)
	if _, ok, _ := m.Get(ctx, "status"); ok {
		t.Fatal("expected expired entry")
	}
}

func TestMemory_ProfileStateExpiresWithSession(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	store := session.NewManager(m, session.NewBus(), session.WithTTL(time.Hour)).Profile("anon-1")
	if err := store.SetToken(ctx, "tok"); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveFor(ctx, "fiber_segunda_via_v1", `{"boletos":[]}`, 10*time.Minute); err != nil {
		t.Fatal(err)
	}

	now = now.Add(11 * time.Minute)
	if _, ok, _ := store.Load(ctx, "fiber_segunda_via_v1"); ok {
		t.Error("expected the lookup to expire before the profile")
	}
	if tok, _ := store.Token(ctx); tok != "tok" {
		t.Errorf("expected token to still be there, got %q", tok)
	}

	now = now.Add(time.Hour)
	if tok, _ := store.Token(ctx); tok != "" {
		t.Errorf("expected token to expire with the profile, got %q", tok)
	}

	n, err := m.Purge(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 || len(m.items) != 0 {
		t.Errorf("expected both keys purged, got n=%d left=%d", n, len(m.items))
	}
}

func TestSQLite_Contract(t *testing.T) {
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "kv", "central.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	exerciseKV(t, db)
}

func TestSQLite_TTLAndPurge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "central.db")
	db, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }
	ctx := context.Background()

	_ = db.Set(ctx, "short", "x", time.Minute)
	_ = db.Set(ctx, "forever", "y", 0)

	now = now.Add(2 * time.Minute)
	if _, ok, _ := db.Get(ctx, "short"); ok {
		t.Error("expected expired row to be hidden")
	}
	if _, ok, _ := db.Get(ctx, "forever"); !ok {
		t.Error("expected row without ttl to survive")
	}

	n, err := db.Purge(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged row, got %d", n)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "central.db")
	ctx := context.Background()

	db, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = db.Set(ctx, "fiber_saved_email", "ana@example.com", 0)
	db.Close()

	db, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	v, ok, _ := db.Get(ctx, "fiber_saved_email")
	if !ok || v != "ana@example.com" {
		t.Fatalf("expected persisted value, got %q ok=%v", v, ok)
	}
}

func TestRedis_Contract(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	r, err := NewRedis(context.Background(), addr, "", 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer r.Close()

	exerciseKV(t, r)
}

func TestKeyring_RoundTrip(t *testing.T) {
	items := map[string]string{}
	origGet, origSet, origDel := keyringGet, keyringSet, keyringDelete
	t.Cleanup(func() { keyringGet, keyringSet, keyringDelete = origGet, origSet, origDel })

	keyringGet = func(service, user string) (string, error) {
		v, ok := items[service+"/"+user]
		if !ok {
			return "", keyring.ErrNotFound
		}
		return v, nil
	}
	keyringSet = func(service, user, password string) error {
		items[service+"/"+user] = password
		return nil
	}
	keyringDelete = func(service, user string) error {
		if _, ok := items[service+"/"+user]; !ok {
			return keyring.ErrNotFound
		}
		delete(items, service+"/"+user)
		return nil
	}

	k := NewKeyring("fiberctl")

	if v, err := k.GetSecret("authToken"); err != nil || v != "" {
		t.Fatalf("expected empty secret without error, got %q %v", v, err)
	}
	if err := k.SetSecret("authToken", " tok \n"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := k.GetSecret("authToken"); v != "tok" {
		t.Errorf("expected trimmed secret, got %q", v)
	}
	if err := k.DeleteSecret("authToken"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := k.DeleteSecret("authToken"); err != nil {
		t.Fatalf("deleting twice should be a no-op: %v", err)
	}
}

func TestKeyring_PropagatesBackendErrors(t *testing.T) {
	origGet := keyringGet
	t.Cleanup(func() { keyringGet = origGet })
	keyringGet = func(string, string) (string, error) { return "", errors.New("dbus unavailable") }

	if _, err := NewKeyring("fiberctl").GetSecret("authToken"); err == nil {
		t.Fatal("expected error")
	}
}
