package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/observability"
	"github.com/fibernet/central-cliente-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Monitor de status de serviços populares
// ============================================================

// StatusCacheKey is shared by every profile.
const StatusCacheKey = "fiber_status_cache_v1"

const statusPrompt = `Verifique instabilidades reais em serviços populares no Brasil hoje (WhatsApp, Instagram, Netflix, Bancos, Jogos). Liste apenas problemas confirmados nas últimas 2 horas.
Responda somente com JSON no formato {"services":[{"service":"","status":"OPERATIONAL|WARNING|CRITICAL","description":"","category":"","time":""}],"sources":["url"]}.`

// DefaultServiceStatus is served when the model answer cannot be used.
func DefaultServiceStatus() []domain.ServiceIssue {
	return []domain.ServiceIssue{
		{Service: "WhatsApp", Status: domain.ServiceOperational, Description: "Serviço estável.", Category: "Social", Time: "Agora"},
		{Service: "Instagram", Status: domain.ServiceOperational, Description: "Serviço estável.", Category: "Social", Time: "Agora"},
		{Service: "Netflix", Status: domain.ServiceOperational, Description: "Streaming funcionando normalmente.", Category: "Entretenimento", Time: "Agora"},
		{Service: "Nubank", Status: domain.ServiceOperational, Description: "App operando normalmente.", Category: "Finanças", Time: "Agora"},
	}
}

// StatusService reports outages of popular services, summarized by the AI backend.
type StatusService struct {
	kv      port.KVStore
	ai      port.Completer
	prober  port.Prober
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewStatusService(kv port.KVStore, ai port.Completer, prober port.Prober, ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *StatusService {
	if ttl <= 0 {
		ttl = 20 * time.Minute
	}
	return &StatusService{kv: kv, ai: ai, prober: prober, ttl: ttl, metrics: metrics, logger: logger, now: time.Now}
}

// Current returns the cached report while it is fresh, unless force is set.
// When the AI backend fails a stale report is preferred over an error.
func (s *StatusService) Current(ctx context.Context, force bool) (*domain.StatusReport, error) {
	ctx, span := tracer.Start(ctx, "StatusService.Current")
	defer span.End()
	span.SetAttributes(attribute.Bool("status.force", force))

	cached := s.load(ctx)
	if cached != nil && !force && s.fresh(cached) {
		s.metrics.IncrCacheHit("status")
		cached.Cached = true
		cached.Online = s.prober.Reachable(ctx)
		return cached, nil
	}
	s.metrics.IncrCacheMiss("status")

	var (
		online     bool
		completion *domain.Completion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		online = s.prober.Reachable(gctx)
		return nil
	})
	g.Go(func() error {
		var err error
		completion, err = s.ai.Complete(gctx, &domain.CompletionRequest{
			Messages:    []domain.ChatTurn{{Role: domain.RoleUser, Content: statusPrompt}},
			Temperature: 0.2,
		})
		return err
	})

	if err := g.Wait(); err != nil {
		s.metrics.IncrExternalError("genai_status")
		s.logger.Warn("status monitor: ai unavailable", zap.Error(err))
		if cached != nil {
			cached.Cached = true
			cached.Online = s.prober.Reachable(ctx)
			return cached, nil
		}
		return nil, err
	}
	s.metrics.RecordTokens(completion.PromptTokens, completion.CompletionTokens)

	services, sources := ParseStatusAnswer(completion.Text)
	report := &domain.StatusReport{
		Data:      services,
		Sources:   sources,
		Timestamp: s.now().UnixMilli(),
	}
	if data, err := json.Marshal(report); err == nil {
		if err := s.kv.Set(ctx, StatusCacheKey, string(data), 0); err != nil {
			s.logger.Warn("status monitor: cache write failed", zap.Error(err))
		}
	}

	report.Online = online
	return report, nil
}

func (s *StatusService) fresh(r *domain.StatusReport) bool {
	return s.now().Sub(time.UnixMilli(r.Timestamp)) < s.ttl
}

func (s *StatusService) load(ctx context.Context) *domain.StatusReport {
	raw, ok, err := s.kv.Get(ctx, StatusCacheKey)
	if err != nil || !ok {
		return nil
	}
	var r domain.StatusReport
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil
	}
	return &r
}

// ParseStatusAnswer reads the model answer. Markdown fences are stripped and
// both a bare array and the {"services", "sources"} object are accepted.
// Anything unusable yields the default all-operational list.
func ParseStatusAnswer(text string) ([]domain.ServiceIssue, []string) {
	text = stripFences(text)

	var envelope struct {
		Services []domain.ServiceIssue `json:"services"`
		Sources  []string              `json:"sources"`
	}
	var services []domain.ServiceIssue
	var sources []string

	if start := strings.Index(text, "{"); start >= 0 && (strings.Index(text, "[") < 0 || start < strings.Index(text, "[")) {
		end := strings.LastIndex(text, "}")
		if end > start && json.Unmarshal([]byte(text[start:end+1]), &envelope) == nil {
			services, sources = envelope.Services, envelope.Sources
		}
	} else if start := strings.Index(text, "["); start >= 0 {
		end := strings.LastIndex(text, "]")
		if end > start {
			_ = json.Unmarshal([]byte(text[start:end+1]), &services)
		}
	}

	cleaned := make([]domain.ServiceIssue, 0, len(services))
	for _, svc := range services {
		if strings.TrimSpace(svc.Service) == "" {
			continue
		}
		svc.Status = normalizeServiceStatus(svc.Status)
		if svc.Time == "" {
			svc.Time = "Agora"
		}
		cleaned = append(cleaned, svc)
	}
	if len(cleaned) == 0 {
		cleaned = DefaultServiceStatus()
	}
	if sources == nil {
		sources = []string{}
	}
	return cleaned, sources
}

func normalizeServiceStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case domain.ServiceWarning:
		return domain.ServiceWarning
	case domain.ServiceCritical:
		return domain.ServiceCritical
	default:
		return domain.ServiceOperational
	}
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
