// Package service implementa o chat com IA da Central do Cliente.
//
// ============================================================
// ARQUITETURA: Strategy Pattern para o contexto do prompt
// ============================================================
//
// Fluxo de POST /v1/chat:
//  1. Detecta a intenção da mensagem (faturas? suporte técnico? geral?)
//  2. Carrega em paralelo o dashboard do perfil e, para suporte, o
//     status dos serviços populares
//  3. Monta o system prompt com os dados do cliente
//  4. A strategy da intenção acrescenta instruções específicas
//  5. Chama o backend de IA com o histórico da conversa
//  6. Falha da IA vira uma resposta padrão, nunca um erro
package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/chat/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/chat/port"
	maindomain "github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/cache"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/observability"
	mainport "github.com/fibernet/central-cliente-bfa-go/internal/port"
	mainservice "github.com/fibernet/central-cliente-bfa-go/internal/service"
	"github.com/fibernet/central-cliente-bfa-go/internal/session"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var chatTracer = otel.Tracer("chat/service")

// Respostas padrão do assistente.
const (
	MsgFallback = "Desculpe, tive um problema de conexão. Tente novamente em instantes."
	MsgNoAnswer = "Desculpe, não consegui obter uma resposta."
)

const contratoAtivo = "A"

// maxHistoryTurns caps the turns replayed to the model (user + assistant).
const maxHistoryTurns = 20

// Intents.
const (
	IntentBilling = "billing"
	IntentSupport = "support"
	IntentGeneral = "general"
)

// ChatStrategy adds intent specific instructions to the system prompt.
type ChatStrategy interface {
	CanHandle(intent string) bool
	Instructions(chatCtx *domain.ChatContext) string
}

// ChatService answers the AI chat of a profile.
type ChatService struct {
	ai         mainport.Completer
	snapshots  port.SnapshotProvider
	status     port.StatusProvider
	strategies []ChatStrategy
	history    mainport.Cache[[]maindomain.ChatTurn]
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewChatService wires the chat. The first strategy accepting the intent wins.
// When bus is not nil a logout forgets the profile's conversation.
func NewChatService(
	ai mainport.Completer,
	snapshots port.SnapshotProvider,
	status port.StatusProvider,
	strategies []ChatStrategy,
	bus *session.Bus,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ChatService {
	s := &ChatService{
		ai:         ai,
		snapshots:  snapshots,
		status:     status,
		strategies: strategies,
		history:    cache.New[[]maindomain.ChatTurn](2 * time.Hour),
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
	if bus != nil {
		bus.Subscribe(func(ev session.AuthEvent) {
			if !ev.Authenticated {
				s.history.Delete(ev.ProfileID)
			}
		})
	}
	return s
}

// ProcessMessage answers one customer message.
func (s *ChatService) ProcessMessage(ctx context.Context, sess mainport.ProfileStore, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.ProcessMessage")
	defer span.End()

	query := strings.TrimSpace(req.Message)
	if query == "" {
		return nil, &maindomain.ErrValidation{Field: "message", Message: "Digite uma mensagem."}
	}

	chatCtx := s.buildContext(ctx, sess, query)
	span.SetAttributes(attribute.String("chat.intent", chatCtx.DetectedIntent))

	s.logger.Info("chat message received",
		zap.String("profile", chatCtx.ProfileID),
		zap.String("intent", chatCtx.DetectedIntent),
		zap.Int("query_length", len(query)),
	)

	system := BuildSystemPrompt(chatCtx.Dashboard)
	for _, strategy := range s.strategies {
		if strategy.CanHandle(chatCtx.DetectedIntent) {
			if extra := strategy.Instructions(chatCtx); extra != "" {
				system += "\n\n" + extra
			}
			break
		}
	}

	history, _ := s.history.Get(chatCtx.ProfileID)
	userTurn := maindomain.ChatTurn{Role: maindomain.RoleUser, Content: query}
	turns := append(slices.Clone(history), userTurn)

	completion, err := s.ai.Complete(ctx, &maindomain.CompletionRequest{
		System:      system,
		Messages:    turns,
		Temperature: 0.4,
	})
	if err != nil {
		s.metrics.IncrChat("error")
		s.logger.Error("chat completion failed", zap.String("profile", chatCtx.ProfileID), zap.Error(err))
		return &domain.ChatResponse{Message: s.assistantMessage(MsgFallback), Fallback: true}, nil
	}
	s.metrics.RecordTokens(completion.PromptTokens, completion.CompletionTokens)

	answer := strings.TrimSpace(completion.Text)
	if answer == "" {
		s.metrics.IncrChat("fallback")
		return &domain.ChatResponse{Message: s.assistantMessage(MsgNoAnswer), Fallback: true}, nil
	}
	s.metrics.IncrChat("success")

	s.history.Update(chatCtx.ProfileID, func(cur []maindomain.ChatTurn, _ bool) []maindomain.ChatTurn {
		next := append(slices.Clone(cur), userTurn, maindomain.ChatTurn{Role: maindomain.RoleAssistant, Content: answer})
		if len(next) > maxHistoryTurns {
			next = next[len(next)-maxHistoryTurns:]
		}
		return next
	})

	return &domain.ChatResponse{Message: s.assistantMessage(answer)}, nil
}

// Welcome returns the greeting and the proactive alerts of the profile.
// A logged out profile gets a generic greeting and no alerts.
func (s *ChatService) Welcome(ctx context.Context, sess mainport.ProfileStore) (*domain.ChatWelcome, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.Welcome")
	defer span.End()

	dash := s.loadDashboard(ctx, sess)
	welcome := &domain.ChatWelcome{
		Greeting: s.assistantMessage(Greeting(dash)),
		Alerts:   []domain.ProactiveAlert{},
	}
	if dash != nil {
		welcome.Alerts = ProactiveAlerts(dash, s.now())
	}
	return welcome, nil
}

// History returns the conversation kept for a profile.
func (s *ChatService) History(profileID string) []maindomain.ChatTurn {
	h, _ := s.history.Get(profileID)
	return slices.Clone(h)
}

func (s *ChatService) buildContext(ctx context.Context, sess mainport.ProfileStore, query string) *domain.ChatContext {
	chatCtx := &domain.ChatContext{
		ProfileID:      sess.ProfileID(),
		Query:          query,
		DetectedIntent: DetectIntent(query),
		Now:            s.now(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		chatCtx.Dashboard = s.loadDashboard(gctx, sess)
		return nil
	})
	if chatCtx.DetectedIntent == IntentSupport && s.status != nil {
		g.Go(func() error {
			report, err := s.status.Current(gctx, false)
			if err != nil {
				s.logger.Debug("status unavailable for chat context", zap.Error(err))
				return nil
			}
			chatCtx.Status = report
			return nil
		})
	}
	_ = g.Wait()
	return chatCtx
}

func (s *ChatService) loadDashboard(ctx context.Context, sess mainport.ProfileStore) *maindomain.Dashboard {
	token, err := sess.Token(ctx)
	if err != nil || token == "" {
		return nil
	}
	dash, err := s.snapshots.Snapshot(ctx, sess)
	if err != nil {
		s.logger.Debug("dashboard unavailable for chat context", zap.Error(err))
		return nil
	}
	return dash
}

func (s *ChatService) assistantMessage(text string) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		Role:      maindomain.RoleAssistant,
		Content:   text,
		Timestamp: s.now(),
	}
}

// ============================================================
// Prompt e alertas
// ============================================================

// BuildSystemPrompt describes the assistant and the customer's live data.
func BuildSystemPrompt(dash *maindomain.Dashboard) string {
	name := "Cliente"
	if dash != nil && dash.ClienteNome() != "" {
		name = dash.ClienteNome()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Você é o assistente virtual da Fiber.Net Telecom. Seu nome é Fiber.IA.\n")
	fmt.Fprintf(&b, "O cliente se chama %s.\n", name)
	b.WriteString("Seja educado, técnico mas acessível. Responda em Português do Brasil.\n\n")
	b.WriteString("DADOS DO CLIENTE EM TEMPO REAL:")

	if dash == nil {
		b.WriteString("\n- Cliente não autenticado. Para dúvidas de fatura, oriente a entrar na Área do Cliente ou usar a Segunda Via por CPF/CNPJ.")
		return b.String()
	}

	ativos := 0
	for _, c := range dash.Contratos {
		if c.Status == contratoAtivo {
			ativos++
		}
	}
	var abertas int
	var total float64
	for _, f := range dash.Faturas {
		if f.Status == maindomain.StatusAberto {
			abertas++
			total += float64(f.Valor)
		}
	}

	fmt.Fprintf(&b, "\n- Contratos Ativos: %d", ativos)
	fmt.Fprintf(&b, "\n- Faturas em Aberto: %d (Valor total aprox: %s)", abertas, mainservice.FormatBRL(total))
	if hasOfflineLogin(dash) {
		b.WriteString("\n- Status da Conexão: ALERTA: Cliente possui equipamentos OFFLINE.")
	} else {
		b.WriteString("\n- Status da Conexão: Conexão estável/Online.")
	}

	if abertas > 0 {
		b.WriteString("\n\nATENÇÃO: O cliente possui faturas vencidas ou a vencer. Se ele perguntar sobre bloqueio ou internet lenta, verifique se é por falta de pagamento. Oriente a usar o botão 'PIX' na aba Faturas.")
	}
	return b.String()
}

// Greeting is the first assistant bubble.
func Greeting(dash *maindomain.Dashboard) string {
	if dash == nil || dash.ClienteNome() == "" {
		return "Olá! Sou a IA da Fiber.Net. Como posso ajudar com sua conexão hoje?"
	}
	first := strings.Fields(dash.ClienteNome())[0]
	return fmt.Sprintf("Olá %s! Sou a IA da Fiber.Net. Como posso ajudar com sua conexão hoje?", first)
}

// ProactiveAlerts derives the alerts of a dashboard: offline equipment first,
// then overdue invoices.
func ProactiveAlerts(dash *maindomain.Dashboard, now time.Time) []domain.ProactiveAlert {
	alerts := []domain.ProactiveAlert{}
	if hasOfflineLogin(dash) {
		alerts = append(alerts, domain.ProactiveAlert{
			ID:       "alert-offline",
			Type:     domain.AlertNetworkIssue,
			Priority: domain.PriorityHigh,
			Message:  "⚠️ Notei que seu equipamento parece estar OFFLINE. Gostaria de ajuda para realizar um diagnóstico?",
			Actions:  []domain.Action{{Type: "open_ticket", Label: "Abrir chamado"}},
		})
	}
	if vencidas := mainservice.OverdueInvoices(dash.Faturas, now); len(vencidas) > 0 {
		alerts = append(alerts, domain.ProactiveAlert{
			ID:       "alert-bill",
			Type:     domain.AlertBillReminder,
			Priority: domain.PriorityMedium,
			Message:  fmt.Sprintf("📄 Você possui %d fatura(s) vencida(s). Posso gerar o código PIX para você agora?", len(vencidas)),
			Actions:  []domain.Action{{Type: "view_bill", Label: "Ver faturas"}},
		})
	}
	return alerts
}

func hasOfflineLogin(dash *maindomain.Dashboard) bool {
	for _, l := range dash.Logins {
		if l.Online == "N" {
			return true
		}
	}
	return false
}

// ============================================================
// DetectIntent: detecção simples por palavras-chave
// ============================================================

var (
	billingKeywords = []string{
		"fatura", "boleto", "pix", "pagar", "pagamento", "vencid", "vencimento",
		"segunda via", "multa", "juros", "bloque", "debito", "cobranca",
	}
	supportKeywords = []string{
		"internet", "lenta", "lento", "caiu", "sem conexao", "conexao", "sinal",
		"wifi", "wi-fi", "offline", "roteador", "onu", "modem", "instabilidade",
		"whatsapp", "netflix", "instagram", "velocidade",
	}
)

// DetectIntent classifies a message by keywords, ignoring accents and case.
// Billing wins over support ("internet bloqueada por fatura").
func DetectIntent(query string) string {
	folded := mainservice.FoldText(query)
	for _, kw := range billingKeywords {
		if strings.Contains(folded, kw) {
			return IntentBilling
		}
	}
	for _, kw := range supportKeywords {
		if strings.Contains(folded, kw) {
			return IntentSupport
		}
	}
	return IntentGeneral
}
