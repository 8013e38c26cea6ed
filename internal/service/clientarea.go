package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/cache"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/client"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/observability"
	"github.com/fibernet/central-cliente-bfa-go/internal/port"
	"github.com/fibernet/central-cliente-bfa-go/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

// DefaultDashboardCacheKey is the versioned snapshot key. Bumping the name
// invalidates every snapshot written by older releases.
const DefaultDashboardCacheKey = "fiber_dashboard_cache_v5_forced"

// ClientAreaPortal is the slice of PortalAPI the client area needs.
type ClientAreaPortal interface {
	Login(ctx context.Context, sess port.Session, email, password string) (*domain.LoginResponse, error)
	Logout(ctx context.Context, sess port.Session) error
	GetDashboard(ctx context.Context, sess port.Session) (*domain.Dashboard, error)
}

// ClientAreaService owns the session/snapshot lifecycle of a profile:
// optimistic bootstrap, background refresh, login and logout.
type ClientAreaService struct {
	portal   ClientAreaPortal
	cacheKey string
	gens     port.Cache[uint64]
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewClientAreaService wires the service. When bus is not nil every logout
// published on it (including 401/403 from any call) invalidates in-flight refreshes.
func NewClientAreaService(
	portal ClientAreaPortal,
	cacheKey string,
	bus *session.Bus,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ClientAreaService {
	if cacheKey == "" {
		cacheKey = DefaultDashboardCacheKey
	}
	s := &ClientAreaService{
		portal:   portal,
		cacheKey: cacheKey,
		gens:     cache.New[uint64](24 * time.Hour),
		metrics:  metrics,
		logger:   logger,
	}
	if bus != nil {
		bus.Subscribe(func(ev session.AuthEvent) {
			if !ev.Authenticated {
				s.bump(ev.ProfileID)
			}
		})
	}
	return s
}

// ============================================================
// Geração de requisições
// ============================================================
//
// Cada perfil tem um contador monotônico. Login, logout e qualquer
// 401/403 incrementam o contador; um refresh que termina com uma
// geração antiga é descartado em vez de sobrescrever estado mais novo.

func (s *ClientAreaService) bump(profileID string) uint64 {
	return s.gens.Update(profileID, func(cur uint64, _ bool) uint64 { return cur + 1 })
}

func (s *ClientAreaService) generation(profileID string) uint64 {
	g, _ := s.gens.Get(profileID)
	return g
}

// ============================================================
// Bootstrap / Refresh
// ============================================================

// Bootstrap builds the initial view from local state only, without network calls.
// A token means authenticated (optimistically); a valid snapshot skips the loading state.
func (s *ClientAreaService) Bootstrap(ctx context.Context, sess port.ProfileStore) (*domain.ClientAreaView, error) {
	ctx, span := tracer.Start(ctx, "ClientAreaService.Bootstrap")
	defer span.End()

	token, err := sess.Token(ctx)
	if err != nil {
		return nil, err
	}

	view := s.loggedOutView(ctx, sess)
	if token == "" {
		return view, nil
	}

	view.Authenticated = true
	if dash, ok := s.LoadSnapshot(ctx, sess); ok {
		view.Dashboard = dash
	} else {
		view.Loading = true
	}
	span.SetAttributes(attribute.Bool("client_area.warm", !view.Loading))
	return view, nil
}

// Refresh fetches a fresh dashboard. Without a snapshot a failure logs the
// profile out; with one the failure is swallowed and the stale snapshot is served.
// A cancelled ctx returns its error and leaves the session untouched.
func (s *ClientAreaService) Refresh(ctx context.Context, sess port.ProfileStore) (*domain.ClientAreaView, error) {
	ctx, span := tracer.Start(ctx, "ClientAreaService.Refresh")
	defer span.End()

	token, err := sess.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return s.loggedOutView(ctx, sess), nil
	}

	gen := s.generation(sess.ProfileID())
	cached, hasCache := s.LoadSnapshot(ctx, sess)

	start := time.Now()
	dash, err := s.portal.GetDashboard(ctx, sess)
	s.metrics.RecordRequestDuration("dashboard", time.Since(start))

	var unauth *domain.ErrUnauthorized
	if errors.As(err, &unauth) {
		// o client já limpou o token
		_ = sess.Remove(ctx, s.cacheKey)
		view := s.loggedOutView(ctx, sess)
		view.Error = domain.UserMessage(err)
		return view, nil
	}

	// quem chamou desistiu; isso não é falha do backend
	if err != nil && aborted(ctx, err) {
		s.logger.Debug("dashboard refresh aborted by caller", zap.String("profile", sess.ProfileID()), zap.Error(err))
		return nil, callerErr(ctx, err)
	}

	if gen != s.generation(sess.ProfileID()) {
		s.logger.Debug("discarding stale dashboard refresh", zap.String("profile", sess.ProfileID()))
		return s.Bootstrap(ctx, sess)
	}

	if err != nil {
		s.metrics.IncrExternalError("portal_dashboard")
		if hasCache {
			s.logger.Warn("dashboard refresh failed, serving snapshot",
				zap.String("profile", sess.ProfileID()),
				zap.Error(err),
			)
			view := s.loggedOutView(ctx, sess)
			view.Authenticated = true
			view.Dashboard = cached
			view.Stale = true
			return view, nil
		}

		s.logger.Warn("dashboard refresh failed without snapshot, logging out",
			zap.String("profile", sess.ProfileID()),
			zap.Error(err),
		)
		s.dropSession(ctx, sess, "refresh failed")
		view := s.loggedOutView(ctx, sess)
		view.Error = domain.UserMessage(err)
		return view, nil
	}

	dash.AiAnalysis = SanitizeInsights(dash.AiAnalysis)
	if err := s.SaveSnapshot(ctx, sess, dash); err != nil {
		s.logger.Warn("failed to persist dashboard snapshot", zap.Error(err))
	}

	view := s.loggedOutView(ctx, sess)
	view.Authenticated = true
	view.Dashboard = dash
	return view, nil
}

// ============================================================
// Login / Logout
// ============================================================

// Login authenticates, loads the dashboard and caches it. Any portal failure
// leaves the profile logged out; the view carries the message and the error is
// returned. If ctx is cancelled midway the session is left as it is.
func (s *ClientAreaService) Login(ctx context.Context, sess port.ProfileStore, email, password string, remember bool) (*domain.ClientAreaView, error) {
	ctx, span := tracer.Start(ctx, "ClientAreaService.Login")
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		err := &domain.ErrValidation{Field: "email", Message: "Informe e-mail e senha."}
		view := s.loggedOutView(ctx, sess)
		view.Error = err.Message
		return view, err
	}

	gen := s.bump(sess.ProfileID())

	resp, err := s.portal.Login(ctx, sess, email, password)
	if err == nil && resp.Token == "" {
		err = &domain.ErrUnauthorized{Status: 401, Message: "Credenciais inválidas."}
	}
	if err != nil {
		return s.failLogin(ctx, sess, err)
	}

	dash, err := s.portal.GetDashboard(ctx, sess)
	if err != nil {
		return s.failLogin(ctx, sess, err)
	}

	if gen != s.generation(sess.ProfileID()) {
		s.logger.Debug("login superseded", zap.String("profile", sess.ProfileID()))
		return s.Bootstrap(ctx, sess)
	}

	dash.AiAnalysis = SanitizeInsights(dash.AiAnalysis)
	if err := s.SaveSnapshot(ctx, sess, dash); err != nil {
		s.logger.Warn("failed to persist dashboard snapshot", zap.Error(err))
	}

	if remember {
		err = sess.Save(ctx, session.KeySavedEmail, email)
	} else {
		err = sess.Remove(ctx, session.KeySavedEmail)
	}
	if err != nil {
		s.logger.Warn("failed to update remembered e-mail", zap.Error(err))
	}

	s.logger.Info("profile logged in", zap.String("profile", sess.ProfileID()))

	view := s.loggedOutView(ctx, sess)
	view.Authenticated = true
	view.Dashboard = dash
	return view, nil
}

func (s *ClientAreaService) failLogin(ctx context.Context, sess port.ProfileStore, err error) (*domain.ClientAreaView, error) {
	if aborted(ctx, err) {
		s.logger.Debug("login aborted by caller", zap.String("profile", sess.ProfileID()), zap.Error(err))
		return nil, callerErr(ctx, err)
	}
	s.logger.Warn("login failed", zap.String("profile", sess.ProfileID()), zap.Error(err))
	s.dropSession(ctx, sess, "login failed")

	view := s.loggedOutView(ctx, sess)
	view.Error = domain.UserMessage(err)
	return view, err
}

// Logout clears the token and drops the snapshot.
func (s *ClientAreaService) Logout(ctx context.Context, sess port.ProfileStore) (*domain.ClientAreaView, error) {
	ctx, span := tracer.Start(ctx, "ClientAreaService.Logout")
	defer span.End()

	if err := s.portal.Logout(ctx, sess); err != nil {
		return nil, err
	}
	if err := sess.Remove(ctx, s.cacheKey); err != nil {
		s.logger.Warn("failed to drop dashboard snapshot", zap.Error(err))
	}
	s.bump(sess.ProfileID())

	return s.loggedOutView(ctx, sess), nil
}

// aborted reports whether err comes from the caller giving up (client
// disconnect or its own deadline) rather than from the portal.
func aborted(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || ctx.Err() != nil
}

func callerErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (s *ClientAreaService) dropSession(ctx context.Context, sess port.ProfileStore, reason string) {
	ctx = context.WithoutCancel(ctx)
	if err := sess.Clear(ctx, reason); err != nil {
		s.logger.Warn("failed to clear session", zap.Error(err))
	}
	if err := sess.Remove(ctx, s.cacheKey); err != nil {
		s.logger.Warn("failed to drop dashboard snapshot", zap.Error(err))
	}
	s.bump(sess.ProfileID())
}

func (s *ClientAreaService) loggedOutView(ctx context.Context, sess port.ProfileStore) *domain.ClientAreaView {
	email, _, err := sess.Load(ctx, session.KeySavedEmail)
	if err != nil {
		s.logger.Warn("failed to read remembered e-mail", zap.Error(err))
	}
	return &domain.ClientAreaView{SavedEmail: email, RememberMe: email != ""}
}

// ============================================================
// Snapshot
// ============================================================

// LoadSnapshot returns the cached dashboard when it is structurally valid:
// the stored JSON must carry both "contratos" and "clientes".
func (s *ClientAreaService) LoadSnapshot(ctx context.Context, sess port.ProfileStore) (*domain.Dashboard, bool) {
	raw, found, err := sess.Load(ctx, s.cacheKey)
	if err != nil || !found {
		s.metrics.IncrCacheMiss("dashboard")
		return nil, false
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		s.metrics.IncrCacheMiss("dashboard")
		return nil, false
	}
	_, hasContratos := keys["contratos"]
	_, hasClientes := keys["clientes"]
	if !hasContratos || !hasClientes {
		s.metrics.IncrCacheMiss("dashboard")
		return nil, false
	}

	var snapshot domain.RawDashboard
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		s.metrics.IncrCacheMiss("dashboard")
		return nil, false
	}
	s.metrics.IncrCacheHit("dashboard")
	return client.NormalizeDashboard(&snapshot), true
}

// SaveSnapshot replaces the cached dashboard as a whole.
func (s *ClientAreaService) SaveSnapshot(ctx context.Context, sess port.ProfileStore, dash *domain.Dashboard) error {
	data, err := json.Marshal(dash)
	if err != nil {
		return err
	}
	return sess.Save(ctx, s.cacheKey, string(data))
}

// Snapshot returns the cached dashboard, refreshing it when there is none.
func (s *ClientAreaService) Snapshot(ctx context.Context, sess port.ProfileStore) (*domain.Dashboard, error) {
	if dash, ok := s.LoadSnapshot(ctx, sess); ok {
		return dash, nil
	}
	view, err := s.Refresh(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !view.Authenticated || view.Dashboard == nil {
		msg := view.Error
		if msg == "" {
			msg = "Sessão expirada. Faça login novamente."
		}
		return nil, &domain.ErrUnauthorized{Status: 401, Message: msg}
	}
	return view.Dashboard, nil
}
