// Package port define as dependências do chat. O ChatService depende
// dessas interfaces e não dos serviços concretos.
package port

import (
	"context"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	mainport "github.com/fibernet/central-cliente-bfa-go/internal/port"
)

// TokenSource supplies the bearer token at connect time. port.Session satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// SnapshotProvider returns the profile's dashboard (ClientAreaService).
type SnapshotProvider interface {
	Snapshot(ctx context.Context, sess mainport.ProfileStore) (*domain.Dashboard, error)
}

// StatusProvider returns the popular services outage report (StatusService).
type StatusProvider interface {
	Current(ctx context.Context, force bool) (*domain.StatusReport, error)
}
