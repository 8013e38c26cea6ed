package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/service"
	"github.com/fibernet/central-cliente-bfa-go/internal/session"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const refreshTimeout = 30 * time.Second

type loginBody struct {
	domain.LoginRequest
	Remember bool `json:"remember"`
}

// clientArea serves login, logout and the dashboard view. Background
// refreshes of the same profile are collapsed into one.
type clientArea struct {
	svc       *service.ClientAreaService
	refreshes singleflight.Group
	logger    *zap.Logger
}

func newClientArea(svc *service.ClientAreaService, logger *zap.Logger) *clientArea {
	return &clientArea{svc: svc, logger: logger}
}

// refresh runs Refresh once per profile at a time. The shared call is
// detached from ctx: callers waiting on it must not inherit the first
// caller's disconnect.
func (h *clientArea) refresh(ctx context.Context, store *session.Store) (*domain.ClientAreaView, error) {
	v, err, _ := h.refreshes.Do(store.ProfileID(), func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return h.svc.Refresh(rctx, store)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.ClientAreaView), nil
}

// GET /v1/client-area
//
// Sem snapshot válido o refresh roda antes da resposta. Com snapshot a
// resposta sai na hora e o refresh continua em background.
func (h *clientArea) get(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "GET /v1/client-area")
	defer span.End()

	store, ok := profileStore(w, r)
	if !ok {
		return
	}

	view, err := h.svc.Bootstrap(ctx, store)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	span.SetAttributes(
		attribute.Bool("client_area.authenticated", view.Authenticated),
		attribute.Bool("client_area.loading", view.Loading),
	)

	switch {
	case view.Loading:
		view, err = h.refresh(ctx, store)
		if err != nil {
			handleServiceError(w, err, h.logger)
			return
		}
	case view.Authenticated:
		go func() {
			if _, err := h.refresh(ctx, store); err != nil {
				h.logger.Warn("background refresh failed", zap.String("profile", store.ProfileID()), zap.Error(err))
			}
		}()
	}

	writeJSON(w, http.StatusOK, view)
}

// POST /v1/client-area/refresh
func (h *clientArea) forceRefresh(w http.ResponseWriter, r *http.Request) {
	store, ok := profileStore(w, r)
	if !ok {
		return
	}
	view, err := h.refresh(r.Context(), store)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /v1/auth/login
//
// Request: {"email": "...", "password": "...", "remember": true}
// Falhas respondem com o status do erro e a view deslogada no corpo.
func (h *clientArea) login(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
	defer span.End()

	store, ok := profileStore(w, r)
	if !ok {
		return
	}
	var body loginBody
	if !decodeJSON(w, r, &body) {
		return
	}

	view, err := h.svc.Login(ctx, store, body.Email, body.Password, body.Remember)
	if err != nil {
		if view == nil {
			handleServiceError(w, err, h.logger)
			return
		}
		writeJSON(w, statusFor(err), view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /v1/auth/logout
func (h *clientArea) logout(w http.ResponseWriter, r *http.Request) {
	store, ok := profileStore(w, r)
	if !ok {
		return
	}
	view, err := h.svc.Logout(r.Context(), store)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
