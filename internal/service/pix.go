package service

import (
	"context"
	"strings"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/observability"
	"github.com/fibernet/central-cliente-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Mensagens exibidas quando o código PIX ainda não está disponível.
const (
	MsgPixNotReady = "O sistema financeiro ainda não gerou o QR Code para esta fatura. Tente novamente em alguns instantes."
	MsgPixError    = "Erro ao conectar servidor para gerar Pix."
)

// PixHolder is a record that can carry a PIX payload (Fatura, Boleto).
type PixHolder interface {
	PixID() string
	CachedPix() *domain.PixPayload
	AttachPix(p domain.PixPayload)
}

// PixService retrieves PIX codes and memoizes them on the record they belong to.
type PixService struct {
	fetcher port.PixFetcher
	group   singleflight.Group
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewPixService(fetcher port.PixFetcher, metrics *observability.Metrics, logger *zap.Logger) *PixService {
	return &PixService{fetcher: fetcher, metrics: metrics, logger: logger}
}

// PayWithPix returns the record's PIX payload, fetching it only when the record has none.
// A fetched code is attached to the record; persisting the record is up to the caller.
// Failures never surface as errors: the result carries a message instead.
func (s *PixService) PayWithPix(ctx context.Context, sess port.Session, rec PixHolder) domain.PixResult {
	ctx, span := tracer.Start(ctx, "PixService.PayWithPix")
	defer span.End()
	span.SetAttributes(attribute.String("pix.record", rec.PixID()))

	if cached := rec.CachedPix(); cached != nil {
		s.metrics.IncrCacheHit("pix")
		return domain.PixResult{Ready: true, Cached: true, Pix: cached}
	}
	s.metrics.IncrCacheMiss("pix")

	key := sessionKey(sess) + ":" + rec.PixID()
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.fetcher.GetPixCode(ctx, sess, rec.PixID())
	})
	if err != nil {
		s.logger.Warn("pix fetch failed", zap.String("record", rec.PixID()), zap.Error(err))
		s.metrics.IncrExternalError("portal_pix")
		return domain.PixResult{Message: MsgPixError}
	}

	payload := v.(*domain.PixPayload)
	if strings.TrimSpace(payload.QRCode) == "" {
		return domain.PixResult{Message: MsgPixNotReady}
	}

	rec.AttachPix(*payload)
	return domain.PixResult{Ready: true, Pix: &domain.PixPayload{QRCode: payload.QRCode, Imagem: payload.Imagem}}
}

func sessionKey(sess port.Session) string {
	if sess == nil {
		return "anonymous"
	}
	return sess.ProfileID()
}
