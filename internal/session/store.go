package session

import (
	"context"
	"fmt"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/port"
)

// Storage keys, kept identical to the ones the browser portal used.
const (
	KeyToken      = "authToken"
	KeySavedEmail = "fiber_saved_email"
)

// Manager hands out per-profile stores over one KV backend.
type Manager struct {
	kv    port.KVStore
	bus   *Bus
	vault port.SecretStore
	ttl   time.Duration
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTokenVault keeps tokens in a SecretStore instead of the KV backend.
// Used by the CLI so the bearer token lands in the OS keyring.
func WithTokenVault(vault port.SecretStore) Option {
	return func(m *Manager) { m.vault = vault }
}

// WithTTL expires every key a profile writes after ttl, so abandoned
// profiles do not outlive their cookie. Each write restarts the clock.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

func NewManager(kv port.KVStore, bus *Bus, opts ...Option) *Manager {
	m := &Manager{kv: kv, bus: bus}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bus returns the bus every store publishes to.
func (m *Manager) Bus() *Bus { return m.bus }

// Profile returns the store for one profile. Stores are cheap; do not cache them.
func (m *Manager) Profile(id string) *Store {
	return &Store{id: id, m: m}
}

// Store is the local state of one profile. It implements port.ProfileStore.
// Reads and writes go straight to the backend without locking: the last
// writer wins, which matches a single browser tab being the only writer.
type Store struct {
	id string
	m  *Manager
}

var _ port.ProfileStore = (*Store)(nil)

func (s *Store) ProfileID() string { return s.id }

func (s *Store) key(name string) string {
	return fmt.Sprintf("profile:%s:%s", s.id, name)
}

func (s *Store) Token(ctx context.Context) (string, error) {
	if s.m.vault != nil {
		return s.m.vault.GetSecret(s.key(KeyToken))
	}
	v, _, err := s.m.kv.Get(ctx, s.key(KeyToken))
	return v, err
}

// SetToken stores the bearer token and announces the login.
func (s *Store) SetToken(ctx context.Context, token string) error {
	var err error
	if s.m.vault != nil {
		err = s.m.vault.SetSecret(s.key(KeyToken), token)
	} else {
		err = s.m.kv.Set(ctx, s.key(KeyToken), token, s.m.ttl)
	}
	if err != nil {
		return err
	}
	s.m.bus.Publish(AuthEvent{ProfileID: s.id, Authenticated: true, Reason: "login"})
	return nil
}

// Clear removes the token and announces the logout, even when nothing was stored.
func (s *Store) Clear(ctx context.Context, reason string) error {
	var err error
	if s.m.vault != nil {
		err = s.m.vault.DeleteSecret(s.key(KeyToken))
	} else {
		err = s.m.kv.Delete(ctx, s.key(KeyToken))
	}
	s.m.bus.Publish(AuthEvent{ProfileID: s.id, Authenticated: false, Reason: reason})
	return err
}

func (s *Store) Load(ctx context.Context, name string) (string, bool, error) {
	return s.m.kv.Get(ctx, s.key(name))
}

func (s *Store) Save(ctx context.Context, name, value string) error {
	return s.m.kv.Set(ctx, s.key(name), value, s.m.ttl)
}

// SaveFor is Save with a shorter lifetime. ttl is capped by the profile TTL;
// zero means the profile TTL.
func (s *Store) SaveFor(ctx context.Context, name, value string, ttl time.Duration) error {
	if ttl <= 0 || (s.m.ttl > 0 && ttl > s.m.ttl) {
		ttl = s.m.ttl
	}
	return s.m.kv.Set(ctx, s.key(name), value, ttl)
}

func (s *Store) Remove(ctx context.Context, name string) error {
	return s.m.kv.Delete(ctx, s.key(name))
}

// SavedEmail returns the remembered e-mail, "" when remember-me is off.
func (s *Store) SavedEmail(ctx context.Context) (string, error) {
	v, _, err := s.Load(ctx, KeySavedEmail)
	return v, err
}
