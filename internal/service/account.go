package service

import (
	"context"
	"strings"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Ações de conexão e configurações da conta
// ============================================================

// AccountPortal is the slice of PortalAPI used by account settings.
type AccountPortal interface {
	PerformLoginAction(ctx context.Context, sess port.Session, loginID, action string) (*domain.LoginActionResult, error)
	ChangePassword(ctx context.Context, sess port.Session, newPassword string) (*domain.MessageResponse, error)
	RecoverPassword(ctx context.Context, sess port.Session, email string) (*domain.MessageResponse, error)
}

// AccountService runs connection actions and password operations.
type AccountService struct {
	portal AccountPortal
	logger *zap.Logger
}

func NewAccountService(portal AccountPortal, logger *zap.Logger) *AccountService {
	return &AccountService{portal: portal, logger: logger}
}

var loginActionMessages = map[string]string{
	domain.ActionLimparMAC:   "MAC liberado com sucesso.",
	domain.ActionDesconectar: "Conexão reiniciada com sucesso.",
	domain.ActionDiagnostico: "Diagnóstico concluído.",
}

// IsLoginAction reports whether action is accepted by POST /logins/:id/:action.
func IsLoginAction(action string) bool {
	_, ok := loginActionMessages[action]
	return ok
}

// PerformLoginAction validates and runs a connection action.
// A backend answer without message gets a default one.
func (s *AccountService) PerformLoginAction(ctx context.Context, sess port.Session, loginID, action string) (*domain.LoginActionResult, error) {
	ctx, span := tracer.Start(ctx, "AccountService.PerformLoginAction")
	defer span.End()
	span.SetAttributes(attribute.String("login.action", action))

	if strings.TrimSpace(loginID) == "" {
		return nil, &domain.ErrValidation{Field: "loginId", Message: "Conexão não informada."}
	}
	if !IsLoginAction(action) {
		return nil, &domain.ErrValidation{Field: "action", Message: "Ação inválida: " + action}
	}

	result, err := s.portal.PerformLoginAction(ctx, sess, loginID, action)
	if err != nil {
		s.logger.Warn("login action failed",
			zap.String("login_id", loginID),
			zap.String("action", action),
			zap.Error(err),
		)
		return nil, err
	}
	if result.Message == "" {
		result.Message = loginActionMessages[action]
	}

	s.logger.Info("login action performed", zap.String("login_id", loginID), zap.String("action", action))
	return result, nil
}

// ChangePassword changes the portal password of the logged in customer.
func (s *AccountService) ChangePassword(ctx context.Context, sess port.Session, newPassword string) (*domain.MessageResponse, error) {
	ctx, span := tracer.Start(ctx, "AccountService.ChangePassword")
	defer span.End()

	if strings.TrimSpace(newPassword) == "" {
		return nil, &domain.ErrValidation{Field: "newPassword", Message: "Informe a nova senha."}
	}
	resp, err := s.portal.ChangePassword(ctx, sess, newPassword)
	if err != nil {
		return nil, err
	}
	if resp.Message == "" {
		resp.Message = "Senha alterada com sucesso."
	}
	return resp, nil
}

// RecoverPassword asks the backend to send a recovery e-mail.
func (s *AccountService) RecoverPassword(ctx context.Context, sess port.Session, email string) (*domain.MessageResponse, error) {
	ctx, span := tracer.Start(ctx, "AccountService.RecoverPassword")
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "Informe um e-mail válido."}
	}
	resp, err := s.portal.RecoverPassword(ctx, sess, email)
	if err != nil {
		return nil, err
	}
	if resp.Message == "" {
		resp.Message = "Se o e-mail estiver cadastrado, você receberá as instruções de recuperação."
	}
	return resp, nil
}
