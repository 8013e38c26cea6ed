// Package handler expõe o chat da Central do Cliente:
//
//	POST /v1/chat          → chat com IA (contexto do dashboard do perfil)
//	GET  /v1/chat/alerts   → saudação + alertas proativos
//	GET  /v1/chat/ws       → relay do widget em tempo real para o push server
//
// O perfil vem do contexto da requisição (session.WithStore, aplicado pelo
// middleware do router principal).
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/chat/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/chat/infra"
	"github.com/fibernet/central-cliente-bfa-go/internal/chat/service"
	maindomain "github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/observability"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/resilience"
	"github.com/fibernet/central-cliente-bfa-go/internal/session"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("chat/handler")

const relayWriteTimeout = 5 * time.Second

// ============================================================
// ChatHandler: POST /v1/chat
// ============================================================

// ChatHandler answers {"message": "..."} with the assistant reply.
// A failing AI backend still answers 200 with fallback=true.
func ChatHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chat")
		defer span.End()

		store, ok := session.FromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, "sessão não encontrada")
			return
		}
		span.SetAttributes(attribute.String("profile.id", store.ProfileID()))

		var req domain.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: expected {\"message\": \"...\"}")
			return
		}

		resp, err := chatSvc.ProcessMessage(ctx, store, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// AlertsHandler returns the greeting and the proactive alerts of the profile.
func AlertsHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := session.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "sessão não encontrada")
			return
		}
		welcome, err := chatSvc.Welcome(r.Context(), store)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, welcome)
	}
}

// ============================================================
// RelayHandler: GET /v1/chat/ws
// ============================================================
//
// navegador <-> relay <-> Transport (reconecta sozinho) <-> push server
//
// Cada socket do navegador ganha um Transport próprio com o token do perfil.
// O relay termina quando o navegador fecha ou quando o perfil faz logout.

// RelayConfig configures the websocket relay.
type RelayConfig struct {
	WSURL          string // push server; empty disables the relay
	Backoff        resilience.Backoff
	AllowedOrigins []string
}

// RelayHandler upgrades the browser socket and bridges it to the push server.
func RelayHandler(
	cfg RelayConfig,
	bus *session.Bus,
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(cfg.AllowedOrigins, "*") || slices.Contains(cfg.AllowedOrigins, origin)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.WSURL == "" {
			writeError(w, http.StatusServiceUnavailable, "Chat em tempo real indisponível.")
			return
		}
		store, ok := session.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "sessão não encontrada")
			return
		}
		if !bulkhead.TryAcquire() {
			writeError(w, http.StatusServiceUnavailable, "Muitas conexões de chat abertas. Tente novamente em instantes.")
			return
		}
		defer bulkhead.Release()

		browser, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("chat relay upgrade failed", zap.Error(err))
			return
		}
		metrics.RelayOpened()
		defer metrics.RelayClosed()

		profileID := store.ProfileID()
		log := logger.With(zap.String("profile", profileID))
		log.Info("chat relay opened")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		unsubscribe := bus.Subscribe(func(ev session.AuthEvent) {
			if ev.ProfileID == profileID && !ev.Authenticated {
				log.Info("closing chat relay after logout", zap.String("reason", ev.Reason))
				cancel()
			}
		})
		defer unsubscribe()

		var writeMu sync.Mutex
		forward := func(f domain.Frame) {
			writeMu.Lock()
			defer writeMu.Unlock()
			_ = browser.SetWriteDeadline(time.Now().Add(relayWriteTimeout))
			if err := browser.WriteJSON(f); err != nil {
				log.Debug("chat relay write failed", zap.Error(err))
			}
		}

		transport := infra.NewTransport(cfg.WSURL, store, cfg.Backoff, infra.Handlers{
			OnMessage: func(m domain.Message) {
				forward(domain.Frame{Type: domain.FrameMessage, Message: &m})
			},
			OnProactiveAlert: func(a domain.ProactiveAlert) {
				forward(domain.Frame{Type: domain.FrameProactiveAlert, Alert: &a})
			},
			OnTyping: func(isTyping bool) {
				forward(domain.Frame{Type: domain.FrameTyping, IsTyping: &isTyping})
			},
			OnState: func(sc domain.StateChange) {
				forward(domain.Frame{Type: domain.FrameConnection, State: &sc})
			},
		}, metrics, log)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = transport.Run(ctx)
		}()

		// logout ou shutdown: derruba o socket do navegador para soltar o ReadJSON
		go func() {
			<-ctx.Done()
			writeMu.Lock()
			_ = browser.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "sessão encerrada"),
				time.Now().Add(time.Second))
			writeMu.Unlock()
			browser.Close()
		}()

		for {
			var in domain.Frame
			if err := browser.ReadJSON(&in); err != nil {
				var syntaxErr *json.SyntaxError
				if errors.As(err, &syntaxErr) {
					forward(domain.Frame{Type: domain.FrameError, Error: "frame inválido"})
					continue
				}
				break
			}
			if in.Type != domain.FrameChat {
				log.Debug("ignoring browser frame", zap.String("type", in.Type))
				continue
			}
			if in.Context == nil {
				in.Context = &domain.FrameContext{SessionID: profileID}
			}
			if err := transport.Send(in); err != nil {
				forward(domain.Frame{Type: domain.FrameError, Error: err.Error()})
			}
		}

		cancel()
		<-done
		log.Info("chat relay closed")
	}
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleServiceError maps domain errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var validation *maindomain.ErrValidation
	var unauthorized *maindomain.ErrUnauthorized
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		logger.Error("unexpected error in chat handler", zap.Error(err))
		writeError(w, http.StatusInternalServerError, maindomain.UserMessage(err))
	}
}
