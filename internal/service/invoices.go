package service

import (
	"context"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// InvoiceView is one invoice as the client area lists it.
type InvoiceView struct {
	domain.Fatura
	DiasParaVencimento *int                `json:"diasParaVencimento,omitempty"`
	Estimativa         *domain.FeeEstimate `json:"estimativa,omitempty"`
}

// InvoiceList groups the highlighted open invoices and the full history.
type InvoiceList struct {
	Abertas       []InvoiceView   `json:"abertas"`
	Historico     []domain.Fatura `json:"historico"`
	TotalEmAberto float64         `json:"totalEmAberto"`
	TotalFormat   string          `json:"totalEmAbertoFormatado"`
}

// InvoiceService serves the invoices of the logged in profile from its snapshot.
type InvoiceService struct {
	area   *ClientAreaService
	pix    *PixService
	logger *zap.Logger
	now    func() time.Time
}

func NewInvoiceService(area *ClientAreaService, pix *PixService, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{area: area, pix: pix, logger: logger, now: time.Now}
}

// List returns open invoices (overdue or due this month) with their estimates,
// plus every invoice for the history tab.
func (s *InvoiceService) List(ctx context.Context, sess port.ProfileStore) (*InvoiceList, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.List")
	defer span.End()

	dash, err := s.area.Snapshot(ctx, sess)
	if err != nil {
		return nil, err
	}

	now := s.now()
	list := &InvoiceList{Abertas: []InvoiceView{}, Historico: dash.Faturas}
	for _, f := range VisibleOpenInvoices(dash.Faturas, now) {
		v := InvoiceView{Fatura: f, Estimativa: EstimateOverdueFee(float64(f.Valor), f.DataVencimento, now)}
		if days, ok := DaysUntilDue(f.DataVencimento, now); ok {
			v.DiasParaVencimento = &days
		}
		list.Abertas = append(list.Abertas, v)
		list.TotalEmAberto += float64(f.Valor)
	}
	list.TotalFormat = FormatBRL(list.TotalEmAberto)

	span.SetAttributes(attribute.Int("faturas.abertas", len(list.Abertas)))
	return list, nil
}

// Estimate returns the late fee estimate of invoice id; nil when it is not overdue.
func (s *InvoiceService) Estimate(ctx context.Context, sess port.ProfileStore, id string) (*domain.FeeEstimate, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.Estimate")
	defer span.End()

	dash, err := s.area.Snapshot(ctx, sess)
	if err != nil {
		return nil, err
	}
	f := dash.FindFatura(id)
	if f == nil {
		return nil, &domain.ErrNotFound{Resource: "fatura", ID: id, Message: "Fatura não encontrada."}
	}
	if f.Status != domain.StatusAberto {
		return nil, nil
	}
	return EstimateOverdueFee(float64(f.Valor), f.DataVencimento, s.now()), nil
}

// Pix returns the PIX code of invoice id. A freshly fetched code is written
// back into the snapshot so reopening the invoice costs no network call.
func (s *InvoiceService) Pix(ctx context.Context, sess port.ProfileStore, id string) (*domain.PixResult, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.Pix")
	defer span.End()

	dash, err := s.area.Snapshot(ctx, sess)
	if err != nil {
		return nil, err
	}
	f := dash.FindFatura(id)
	if f == nil {
		return nil, &domain.ErrNotFound{Resource: "fatura", ID: id, Message: "Fatura não encontrada."}
	}

	result := s.pix.PayWithPix(ctx, sess, f)
	if result.Ready && !result.Cached {
		if err := s.area.SaveSnapshot(ctx, sess, dash); err != nil {
			s.logger.Warn("failed to persist pix code", zap.String("fatura", id), zap.Error(err))
		}
	}
	return &result, nil
}
