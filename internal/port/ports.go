// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
)

// Session is the auth state of one browser profile.
// Clear must notify subscribers that the profile logged out.
type Session interface {
	ProfileID() string
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	Clear(ctx context.Context, reason string) error
}

// ProfileStore is a Session plus the profile's namespaced local state.
type ProfileStore interface {
	Session
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
	SaveFor(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// KVStore is the persisted key/value backend (memory, sqlite, redis).
// A zero ttl means no expiration.
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// SecretStore keeps a single secret per name (OS keyring for the CLI).
type SecretStore interface {
	GetSecret(name string) (string, error)
	SetSecret(name, value string) error
	DeleteSecret(name string) error
}

// PortalAPI is the ISP backend. A nil session means an anonymous call.
type PortalAPI interface {
	Login(ctx context.Context, sess Session, email, password string) (*domain.LoginResponse, error)
	Logout(ctx context.Context, sess Session) error
	GetDashboard(ctx context.Context, sess Session) (*domain.Dashboard, error)
	GetPixCode(ctx context.Context, sess Session, id string) (*domain.PixPayload, error)
	GetBoletoPix(ctx context.Context, sess Session, id string) (*domain.PixPayload, error)
	GetSegundaVia(ctx context.Context, sess Session, id string) (*domain.DocumentResponse, error)
	GetNotaFiscal(ctx context.Context, sess Session, id string) (*domain.DocumentResponse, error)
	PerformLoginAction(ctx context.Context, sess Session, loginID, action string) (*domain.LoginActionResult, error)
	ChangePassword(ctx context.Context, sess Session, newPassword string) (*domain.MessageResponse, error)
	RecoverPassword(ctx context.Context, sess Session, email string) (*domain.MessageResponse, error)
	SearchBoletos(ctx context.Context, cpfCnpj string) (*domain.BoletoSearch, error)
}

// PixFetcher is the slice of PortalAPI the PIX flow needs.
type PixFetcher interface {
	GetPixCode(ctx context.Context, sess Session, id string) (*domain.PixPayload, error)
}

// PixFetcherFunc adapts a function to PixFetcher.
type PixFetcherFunc func(ctx context.Context, sess Session, id string) (*domain.PixPayload, error)

func (f PixFetcherFunc) GetPixCode(ctx context.Context, sess Session, id string) (*domain.PixPayload, error) {
	return f(ctx, sess, id)
}

// Completer calls the generative AI backend.
type Completer interface {
	Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.Completion, error)
}

// Prober checks whether the outside internet is reachable.
type Prober interface {
	Reachable(ctx context.Context) bool
}

// Cache provides generic in-process caching with TTL.
// Update is an atomic read-modify-write of one key.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Update(key string, fn func(current T, found bool) T) T
	Delete(key string)
}
