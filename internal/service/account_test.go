package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/port"
	"github.com/fibernet/central-cliente-bfa-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockAccountPortal struct {
	message string
	err     error
	calls   int
}

func (m *mockAccountPortal) PerformLoginAction(_ context.Context, _ port.Session, _, _ string) (*domain.LoginActionResult, error) {
	m.calls++
	return &domain.LoginActionResult{Message: m.message}, m.err
}

func (m *mockAccountPortal) ChangePassword(_ context.Context, _ port.Session, _ string) (*domain.MessageResponse, error) {
	m.calls++
	return &domain.MessageResponse{Message: m.message}, m.err
}

func (m *mockAccountPortal) RecoverPassword(_ context.Context, _ port.Session, _ string) (*domain.MessageResponse, error) {
	m.calls++
	return &domain.MessageResponse{Message: m.message}, m.err
}

// --- Tests ---

func TestPerformLoginAction_Validation(t *testing.T) {
	portal := &mockAccountPortal{}
	svc := service.NewAccountService(portal, zap.NewNop())

	_, err := svc.PerformLoginAction(context.Background(), nil, "", domain.ActionLimparMAC)
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Errorf("expected ErrValidation for empty login, got %v", err)
	}

	_, err = svc.PerformLoginAction(context.Background(), nil, "12", "formatar")
	if !errors.As(err, &verr) || verr.Message != "Ação inválida: formatar" {
		t.Errorf("expected invalid action error, got %v", err)
	}
	if portal.calls != 0 {
		t.Error("invalid input must not reach the backend")
	}
}

func TestPerformLoginAction_DefaultMessage(t *testing.T) {
	svc := service.NewAccountService(&mockAccountPortal{}, zap.NewNop())

	res, err := svc.PerformLoginAction(context.Background(), nil, "12", domain.ActionDesconectar)
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != "Conexão reiniciada com sucesso." {
		t.Errorf("unexpected message %q", res.Message)
	}

	svc = service.NewAccountService(&mockAccountPortal{message: "MAC limpo"}, zap.NewNop())
	res, _ = svc.PerformLoginAction(context.Background(), nil, "12", domain.ActionLimparMAC)
	if res.Message != "MAC limpo" {
		t.Errorf("backend message must win, got %q", res.Message)
	}
}

func TestPerformLoginAction_PropagatesBackendError(t *testing.T) {
	svc := service.NewAccountService(&mockAccountPortal{err: &domain.ErrAPI{Status: 409, Message: "Login ocupado"}}, zap.NewNop())

	_, err := svc.PerformLoginAction(context.Background(), nil, "12", domain.ActionDiagnostico)
	if err == nil || err.Error() != "Login ocupado" {
		t.Errorf("expected backend error, got %v", err)
	}
}

func TestPasswordOperations(t *testing.T) {
	portal := &mockAccountPortal{}
	svc := service.NewAccountService(portal, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.ChangePassword(ctx, nil, "  "); err == nil {
		t.Error("expected validation error for blank password")
	}
	if _, err := svc.RecoverPassword(ctx, nil, "sem-arroba"); err == nil {
		t.Error("expected validation error for invalid e-mail")
	}
	if portal.calls != 0 {
		t.Error("invalid input must not reach the backend")
	}

	resp, err := svc.ChangePassword(ctx, nil, "nova-senha")
	if err != nil || resp.Message != "Senha alterada com sucesso." {
		t.Errorf("unexpected change password answer %+v / %v", resp, err)
	}
	resp, err = svc.RecoverPassword(ctx, nil, "ana@example.com")
	if err != nil || resp.Message == "" {
		t.Errorf("unexpected recover answer %+v / %v", resp, err)
	}
}

func TestIsLoginAction(t *testing.T) {
	for _, a := range []string{domain.ActionLimparMAC, domain.ActionDesconectar, domain.ActionDiagnostico} {
		if !service.IsLoginAction(a) {
			t.Errorf("%q should be accepted", a)
		}
	}
	if service.IsLoginAction("reboot") {
		t.Error("unknown action accepted")
	}
}
