package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/infra/storage"
)

type mapVault struct {
	mu    sync.Mutex
	items map[string]string
}

func (v *mapVault) GetSecret(name string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.items[name], nil
}

func (v *mapVault) SetSecret(name, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items[name] = value
	return nil
}

func (v *mapVault) DeleteSecret(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.items, name)
	return nil
}

func TestBus_SubscribeAndUnsubscribe(t *testing.T) {
	bus := NewBus()

	var got []AuthEvent
	unsub := bus.Subscribe(func(ev AuthEvent) { got = append(got, ev) })

	bus.Publish(AuthEvent{ProfileID: "p1", Authenticated: true})
	unsub()
	unsub() // idempotente
	bus.Publish(AuthEvent{ProfileID: "p1", Authenticated: false})

	if len(got) != 1 {
		t.Fatalf("expected 1 event after unsubscribe, got %d", len(got))
	}
	if !got[0].Authenticated {
		t.Error("expected login event")
	}
}

func TestStore_TokenLifecyclePublishes(t *testing.T) {
	bus := NewBus()
	mgr := NewManager(storage.NewMemory(), bus)
	ctx := context.Background()

	var events []AuthEvent
	bus.Subscribe(func(ev AuthEvent) { events = append(events, ev) })

	s := mgr.Profile("p1")
	if tok, err := s.Token(ctx); err != nil || tok != "" {
		t.Fatalf("expected no token, got %q %v", tok, err)
	}

	if err := s.SetToken(ctx, "abc"); err != nil {
		t.Fatal(err)
	}
	if tok, _ := s.Token(ctx); tok != "abc" {
		t.Fatalf("expected token abc, got %q", tok)
	}

	if err := s.Clear(ctx, "401"); err != nil {
		t.Fatal(err)
	}
	if tok, _ := s.Token(ctx); tok != "" {
		t.Fatalf("expected token cleared, got %q", tok)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Authenticated || events[1].Reason != "401" || events[1].ProfileID != "p1" {
		t.Errorf("unexpected logout event: %+v", events[1])
	}
}

func TestStore_ProfilesAreIsolated(t *testing.T) {
	mgr := NewManager(storage.NewMemory(), NewBus())
	ctx := context.Background()

	_ = mgr.Profile("a").SetToken(ctx, "tok-a")
	_ = mgr.Profile("a").Save(ctx, KeySavedEmail, "a@example.com")

	if tok, _ := mgr.Profile("b").Token(ctx); tok != "" {
		t.Errorf("profile b should not see profile a token, got %q", tok)
	}
	if email, _ := mgr.Profile("b").SavedEmail(ctx); email != "" {
		t.Errorf("profile b should not see profile a email, got %q", email)
	}
	if email, _ := mgr.Profile("a").SavedEmail(ctx); email != "a@example.com" {
		t.Errorf("unexpected saved email %q", email)
	}
}

func TestStore_TokenVault(t *testing.T) {
	kv := storage.NewMemory()
	vault := &mapVault{items: map[string]string{}}
	mgr := NewManager(kv, NewBus(), WithTokenVault(vault))
	ctx := context.Background()

	s := mgr.Profile("local")
	_ = s.SetToken(ctx, "secret-token")

	if _, ok, _ := kv.Get(ctx, "profile:local:authToken"); ok {
		t.Error("token must not be written to the kv store when a vault is configured")
	}
	if tok, _ := s.Token(ctx); tok != "secret-token" {
		t.Errorf("expected token from vault, got %q", tok)
	}
	_ = s.Clear(ctx, "logout")
	if len(vault.items) != 0 {
		t.Error("expected vault to be emptied")
	}
}

func TestCookieCodec_RoundTrip(t *testing.T) {
	codec := NewCookieCodec("test-secret", time.Hour)
	id := NewProfileID()

	value, err := codec.Issue(id)
	if err != nil {
		t.Fatal(err)
	}
	got, err := codec.Parse(value)
	if err != nil {
		t.Fatalf("expected valid cookie, got %v", err)
	}
	if got != id {
		t.Errorf("expected %s, got %s", id, got)
	}
}

func TestCookieCodec_Rejects(t *testing.T) {
	codec := NewCookieCodec("test-secret", time.Hour)
	value, _ := codec.Issue(NewProfileID())

	other := NewCookieCodec("other-secret", time.Hour)
	if _, err := other.Parse(value); err == nil {
		t.Error("expected signature mismatch")
	}

	if _, err := codec.Parse(value[:len(value)-2] + "xx"); err == nil {
		t.Error("expected tampered cookie to fail")
	}

	expired := NewCookieCodec("test-secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _ := expired.Issue(NewProfileID())
	if _, err := codec.Parse(old); err == nil || !strings.Contains(err.Error(), "invalid session cookie") {
		t.Errorf("expected expired cookie to fail, got %v", err)
	}

	notUUID, _ := codec.Issue("not-a-uuid")
	if _, err := codec.Parse(notUUID); err == nil {
		t.Error("expected non-uuid subject to fail")
	}
}

type ttlRecorder struct {
	*storage.Memory
	ttls map[string]time.Duration
}

func (r *ttlRecorder) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	r.ttls[key] = ttl
	return r.Memory.Set(ctx, key, value, ttl)
}

func TestStore_WritesCarryProfileTTL(t *testing.T) {
	kv := &ttlRecorder{Memory: storage.NewMemory(), ttls: map[string]time.Duration{}}
	store := NewManager(kv, NewBus(), WithTTL(time.Hour)).Profile("p1")
	ctx := context.Background()

	_ = store.SetToken(ctx, "tok")
	_ = store.Save(ctx, KeySavedEmail, "ana@example.com")
	_ = store.SaveFor(ctx, "short", "x", 5*time.Minute)
	_ = store.SaveFor(ctx, "long", "x", 48*time.Hour)
	_ = store.SaveFor(ctx, "default", "x", 0)

	want := map[string]time.Duration{
		"profile:p1:authToken":         time.Hour,
		"profile:p1:fiber_saved_email": time.Hour,
		"profile:p1:short":             5 * time.Minute,
		"profile:p1:long":              time.Hour,
		"profile:p1:default":           time.Hour,
	}
	for key, ttl := range want {
		if kv.ttls[key] != ttl {
			t.Errorf("%s: expected ttl %s, got %s", key, ttl, kv.ttls[key])
		}
	}
}
