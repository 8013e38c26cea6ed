package handler

import (
	"net/http"

	"github.com/fibernet/central-cliente-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Ações de conexão e senha
// ============================================================

// POST /v1/logins/{id}/{action}
//
// action: limpar-mac | desconectar | diagnostico
func loginActionHandler(svc *service.AccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := profileStore(w, r)
		if !ok {
			return
		}
		result, err := svc.PerformLoginAction(r.Context(), store, chi.URLParam(r, "id"), chi.URLParam(r, "action"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

type changePasswordBody struct {
	NewPassword string `json:"newPassword"`
}

// POST /v1/senha/trocar
func changePasswordHandler(svc *service.AccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := profileStore(w, r)
		if !ok {
			return
		}
		var body changePasswordBody
		if !decodeJSON(w, r, &body) {
			return
		}
		resp, err := svc.ChangePassword(r.Context(), store, body.NewPassword)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type recoverPasswordBody struct {
	Email string `json:"email"`
}

// POST /v1/senha/recuperar
func recoverPasswordHandler(svc *service.AccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := profileStore(w, r)
		if !ok {
			return
		}
		var body recoverPasswordBody
		if !decodeJSON(w, r, &body) {
			return
		}
		resp, err := svc.RecoverPassword(r.Context(), store, body.Email)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
