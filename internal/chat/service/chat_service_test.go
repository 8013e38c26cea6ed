package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/chat/domain"
	chatport "github.com/fibernet/central-cliente-bfa-go/internal/chat/port"
	"github.com/fibernet/central-cliente-bfa-go/internal/chat/service"
	maindomain "github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/observability"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/storage"
	mainport "github.com/fibernet/central-cliente-bfa-go/internal/port"
	"github.com/fibernet/central-cliente-bfa-go/internal/session"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockCompleter struct {
	mu       sync.Mutex
	answer   string
	err      error
	requests []*maindomain.CompletionRequest
}

func (m *mockCompleter) Complete(_ context.Context, req *maindomain.CompletionRequest) (*maindomain.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &maindomain.Completion{Text: m.answer, PromptTokens: 10, CompletionTokens: 5}, nil
}

func (m *mockCompleter) last() *maindomain.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

type mockSnapshots struct {
	dash *maindomain.Dashboard
	err  error
}

func (m *mockSnapshots) Snapshot(context.Context, mainport.ProfileStore) (*maindomain.Dashboard, error) {
	return m.dash, m.err
}

type mockStatus struct {
	report *maindomain.StatusReport
	calls  int
	mu     sync.Mutex
}

func (m *mockStatus) Current(context.Context, bool) (*maindomain.StatusReport, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.report, nil
}

// --- Helpers ---

func chatDashboard() *maindomain.Dashboard {
	return &maindomain.Dashboard{
		Clientes:  []maindomain.Cliente{{ID: "1", Nome: "Maria Oliveira"}},
		Contratos: []maindomain.Contrato{{ID: "10", Status: "A"}, {ID: "11", Status: "C"}},
		Faturas: []maindomain.Fatura{
			{ID: "200", DataVencimento: "2020-01-10", Valor: 100, Status: maindomain.StatusAberto},
			{ID: "201", DataVencimento: "2020-02-10", Valor: 50, Status: maindomain.StatusAberto},
			{ID: "199", DataVencimento: "2019-12-10", Valor: 100, Status: maindomain.StatusPago},
		},
		Logins: []maindomain.Login{
			{ID: "5", Login: "maria.fibra", Online: "N", TempoConectado: "Recente", ONTModelo: "HG8245"},
		},
	}
}

type chatFixture struct {
	store *session.Store
	bus   *session.Bus
	ai    *mockCompleter
	svc   *service.ChatService
}

func newChatFixture(t *testing.T, token string, dash *maindomain.Dashboard, status *mockStatus) *chatFixture {
	t.Helper()
	bus := session.NewBus()
	store := session.NewManager(storage.NewMemory(), bus).Profile("profile-1")
	if token != "" {
		if err := store.SetToken(context.Background(), token); err != nil {
			t.Fatalf("set token: %v", err)
		}
	}
	ai := &mockCompleter{answer: "Claro, posso ajudar."}
	var sp chatport.StatusProvider
	if status != nil {
		sp = status
	}
	strategies := []service.ChatStrategy{service.NewBillingStrategy(), service.NewSupportStrategy()}
	svc := service.NewChatService(ai, &mockSnapshots{dash: dash}, sp, strategies, bus, observability.NewMetrics(), zap.NewNop())
	return &chatFixture{store: store, bus: bus, ai: ai, svc: svc}
}

// --- Tests ---

func TestProcessMessage_RejectsEmptyMessage(t *testing.T) {
	f := newChatFixture(t, "tok", chatDashboard(), nil)

	_, err := f.svc.ProcessMessage(context.Background(), f.store, &domain.ChatRequest{Message: "   "})
	var verr *maindomain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProcessMessage_BillingPromptCarriesInvoices(t *testing.T) {
	f := newChatFixture(t, "tok", chatDashboard(), nil)

	resp, err := f.svc.ProcessMessage(context.Background(), f.store, &domain.ChatRequest{Message: "Quero pagar minha fatura"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Fallback || resp.Message.Content != "Claro, posso ajudar." {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Message.Role != maindomain.RoleAssistant || resp.Message.ID == "" {
		t.Errorf("expected assistant message with id, got %+v", resp.Message)
	}

	system := f.ai.last().System
	for _, want := range []string{"Maria Oliveira", "Contratos Ativos: 1", "Faturas em Aberto: 2", "R$ 150,00", "OFFLINE", "FATURAS EM ABERTO", "Fatura 200"} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q:\n%s", want, system)
		}
	}
	if strings.Contains(system, "Fatura 199") {
		t.Error("paid invoice must not be listed")
	}
}

func TestProcessMessage_SupportQueriesStatus(t *testing.T) {
	status := &mockStatus{report: &maindomain.StatusReport{Data: []maindomain.ServiceIssue{
		{Service: "WhatsApp", Status: maindomain.ServiceCritical, Description: "Fora do ar"},
		{Service: "Netflix", Status: maindomain.ServiceOperational, Description: "Serviço estável."},
	}}}
	f := newChatFixture(t, "tok", chatDashboard(), status)

	if _, err := f.svc.ProcessMessage(context.Background(), f.store, &domain.ChatRequest{Message: "o WhatsApp não funciona"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.calls != 1 {
		t.Errorf("expected status lookup for support, got %d", status.calls)
	}
	system := f.ai.last().System
	if !strings.Contains(system, "WhatsApp (CRITICAL): Fora do ar") {
		t.Errorf("expected outage in prompt:\n%s", system)
	}
	if strings.Contains(system, "Netflix (") {
		t.Error("operational services must not be listed as outages")
	}
	if !strings.Contains(system, "maria.fibra: OFFLINE") {
		t.Errorf("expected login line in prompt:\n%s", system)
	}
}

func TestProcessMessage_GeneralSkipsStatus(t *testing.T) {
	status := &mockStatus{report: &maindomain.StatusReport{}}
	f := newChatFixture(t, "tok", chatDashboard(), status)

	if _, err := f.svc.ProcessMessage(context.Background(), f.store, &domain.ChatRequest{Message: "bom dia"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.calls != 0 {
		t.Errorf("expected no status lookup, got %d", status.calls)
	}
}

func TestProcessMessage_LoggedOutPrompt(t *testing.T) {
	f := newChatFixture(t, "", chatDashboard(), nil)

	if _, err := f.svc.ProcessMessage(context.Background(), f.store, &domain.ChatRequest{Message: "oi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	system := f.ai.last().System
	if !strings.Contains(system, "Cliente não autenticado") || strings.Contains(system, "Maria") {
		t.Errorf("logged out prompt must not carry customer data:\n%s", system)
	}
}

func TestProcessMessage_FallbackWhenAIFails(t *testing.T) {
	f := newChatFixture(t, "tok", chatDashboard(), nil)
	f.ai.err = errors.New("upstream 500")

	resp, err := f.svc.ProcessMessage(context.Background(), f.store, &domain.ChatRequest{Message: "oi"})
	if err != nil {
		t.Fatalf("AI failure must not surface as error: %v", err)
	}
	if !resp.Fallback || resp.Message.Content != service.MsgFallback {
		t.Errorf("expected fallback answer, got %+v", resp)
	}
	if len(f.svc.History("profile-1")) != 0 {
		t.Error("failed turns must not enter the history")
	}
}

func TestProcessMessage_EmptyAnswer(t *testing.T) {
	f := newChatFixture(t, "tok", chatDashboard(), nil)
	f.ai.answer = "  "

	resp, err := f.svc.ProcessMessage(context.Background(), f.store, &domain.ChatRequest{Message: "oi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message.Content != service.MsgNoAnswer {
		t.Errorf("expected no-answer message, got %q", resp.Message.Content)
	}
}

func TestProcessMessage_HistoryIsReplayedAndCapped(t *testing.T) {
	f := newChatFixture(t, "tok", chatDashboard(), nil)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if _, err := f.svc.ProcessMessage(ctx, f.store, &domain.ChatRequest{Message: fmt.Sprintf("pergunta %d", i)}); err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
	}

	history := f.svc.History("profile-1")
	if len(history) != 20 {
		t.Fatalf("expected history capped at 20 turns, got %d", len(history))
	}
	if history[len(history)-2].Content != "pergunta 14" {
		t.Errorf("expected latest question kept, got %q", history[len(history)-2].Content)
	}

	// a requisição leva o histórico anterior mais a pergunta atual
	last := f.ai.last()
	if len(last.Messages) != 21 || last.Messages[20].Content != "pergunta 14" {
		t.Errorf("expected 20 replayed turns plus the question, got %d", len(last.Messages))
	}
}

func TestProcessMessage_LogoutForgetsHistory(t *testing.T) {
	f := newChatFixture(t, "tok", chatDashboard(), nil)
	ctx := context.Background()

	if _, err := f.svc.ProcessMessage(ctx, f.store, &domain.ChatRequest{Message: "oi"}); err != nil {
		t.Fatal(err)
	}
	if len(f.svc.History("profile-1")) != 2 {
		t.Fatal("expected one exchange in history")
	}

	if err := f.store.Clear(ctx, "logout"); err != nil {
		t.Fatal(err)
	}
	if len(f.svc.History("profile-1")) != 0 {
		t.Error("expected history to be dropped on logout")
	}
}

func TestWelcome(t *testing.T) {
	f := newChatFixture(t, "tok", chatDashboard(), nil)

	w, err := f.svc.Welcome(context.Background(), f.store)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(w.Greeting.Content, "Olá Maria!") {
		t.Errorf("unexpected greeting %q", w.Greeting.Content)
	}
	if len(w.Alerts) != 2 {
		t.Fatalf("expected offline and bill alerts, got %+v", w.Alerts)
	}
}

func TestWelcome_LoggedOut(t *testing.T) {
	f := newChatFixture(t, "", chatDashboard(), nil)

	w, err := f.svc.Welcome(context.Background(), f.store)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(w.Greeting.Content, "Olá! Sou a IA") {
		t.Errorf("unexpected greeting %q", w.Greeting.Content)
	}
	if w.Alerts == nil || len(w.Alerts) != 0 {
		t.Errorf("expected empty alerts, got %+v", w.Alerts)
	}
}

func TestProactiveAlerts(t *testing.T) {
	now := time.Date(2020, 2, 20, 10, 0, 0, 0, time.UTC)

	alerts := service.ProactiveAlerts(chatDashboard(), now)
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	if alerts[0].ID != "alert-offline" || alerts[0].Priority != domain.PriorityHigh || alerts[0].Type != domain.AlertNetworkIssue {
		t.Errorf("unexpected offline alert %+v", alerts[0])
	}
	if alerts[1].ID != "alert-bill" || !strings.Contains(alerts[1].Message, "2 fatura(s) vencida(s)") {
		t.Errorf("unexpected bill alert %+v", alerts[1])
	}

	online := chatDashboard()
	online.Logins[0].Online = "S"

	// antes do primeiro vencimento
	early := time.Date(2020, 1, 5, 10, 0, 0, 0, time.UTC)
	if got := service.ProactiveAlerts(online, early); len(got) != 0 {
		t.Errorf("expected no alerts before due date, got %+v", got)
	}
	if got := service.ProactiveAlerts(online, now); len(got) != 1 || got[0].ID != "alert-bill" {
		t.Errorf("expected only the bill alert, got %+v", got)
	}
}

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"Quero a segunda via do boleto", service.IntentBilling},
		{"Minha internet está bloqueada", service.IntentBilling},
		{"A CONEXÃO caiu de novo", service.IntentSupport},
		{"o wi-fi está lento", service.IntentSupport},
		{"Netflix travando", service.IntentSupport},
		{"qual o horário de atendimento?", service.IntentGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := service.DetectIntent(tt.query); got != tt.want {
				t.Errorf("DetectIntent(%q) = %s, want %s", tt.query, got, tt.want)
			}
		})
	}
}

func TestBillingStrategy_EstimatesLateFee(t *testing.T) {
	s := service.NewBillingStrategy()
	if !s.CanHandle(service.IntentBilling) || s.CanHandle(service.IntentSupport) {
		t.Fatal("billing strategy must only handle billing")
	}

	dash := chatDashboard()
	dash.Faturas = []maindomain.Fatura{{ID: "300", DataVencimento: "2020-01-10", Valor: 100, Status: maindomain.StatusAberto}}
	out := s.Instructions(&domain.ChatContext{Dashboard: dash, Now: time.Date(2020, 1, 20, 9, 0, 0, 0, time.UTC)})

	if !strings.Contains(out, "vencida há 10 dias, total estimado R$ 102,33") {
		t.Errorf("expected fee estimate in instructions:\n%s", out)
	}
}

func TestBuildSystemPrompt_StableConnection(t *testing.T) {
	dash := chatDashboard()
	dash.Logins[0].Online = "S"
	dash.Faturas = nil

	prompt := service.BuildSystemPrompt(dash)
	if !strings.Contains(prompt, "Conexão estável/Online") {
		t.Errorf("expected stable connection line:\n%s", prompt)
	}
	if strings.Contains(prompt, "ATENÇÃO") {
		t.Error("no billing warning expected without open invoices")
	}
}
