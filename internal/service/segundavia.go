package service

import (
	"context"
	"encoding/json"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/observability"
	"github.com/fibernet/central-cliente-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Segunda via por CPF/CNPJ
// ============================================================

// SegundaViaCacheKey keeps the last lookup of a profile, PIX codes included.
const SegundaViaCacheKey = "fiber_segunda_via_v1"

const (
	msgDocumentoInvalido = "Por favor, digite um CPF (11 dígitos) ou CNPJ (14 dígitos) válido."
	msgNenhumPendente    = "Nenhuma fatura pendente encontrada para este CPF/CNPJ."
	msgNenhumEmAberto    = "Nenhuma fatura em aberto encontrada para este CPF/CNPJ."
)

var (
	nonDigits = regexp.MustCompile(`\D`)

	cpfGroup = regexp.MustCompile(`(\d{3})(\d)`)
	cpfTail  = regexp.MustCompile(`(\d{3})(\d{1,2})$`)

	cnpjHead  = regexp.MustCompile(`(\d{2})(\d)`)
	cnpjGroup = regexp.MustCompile(`(\d{3})(\d)`)
	cnpjTail  = regexp.MustCompile(`(\d{4})(\d{1,2})$`)
)

// OnlyDigits strips everything that is not a digit.
func OnlyDigits(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// FormatCPFCNPJ applies the CPF mask (000.000.000-00) up to 11 digits and the
// CNPJ mask (00.000.000/0000-00) above that. Partial input gets a partial mask,
// so it can be applied on every keystroke.
func FormatCPFCNPJ(input string) string {
	d := OnlyDigits(input)
	if len(d) > 14 {
		d = d[:14]
	}

	if len(d) <= 11 {
		d = replaceFirst(cpfGroup, d, "${1}.${2}")
		d = replaceFirst(cpfGroup, d, "${1}.${2}")
		return replaceFirst(cpfTail, d, "${1}-${2}")
	}
	d = replaceFirst(cnpjHead, d, "${1}.${2}")
	d = replaceFirst(cnpjGroup, d, "${1}.${2}")
	d = replaceFirst(cnpjGroup, d, "${1}/${2}")
	return replaceFirst(cnpjTail, d, "${1}-${2}")
}

// replaceFirst replaces only the leftmost match of re.
func replaceFirst(re *regexp.Regexp, s, template string) string {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}
	expanded := re.ExpandString(nil, template, s, loc)
	return s[:loc[0]] + string(expanded) + s[loc[1]:]
}

// BoletoSearcher is the slice of PortalAPI the lookup needs.
type BoletoSearcher interface {
	SearchBoletos(ctx context.Context, cpfCnpj string) (*domain.BoletoSearch, error)
}

// SegundaViaService is the public invoice lookup. It works without login.
// The last lookup is kept for lookupTTL (0 = as long as the profile).
type SegundaViaService struct {
	portal    BoletoSearcher
	pix       *PixService
	lookupTTL time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger
}

func NewSegundaViaService(portal BoletoSearcher, pix *PixService, lookupTTL time.Duration, metrics *observability.Metrics, logger *zap.Logger) *SegundaViaService {
	return &SegundaViaService{portal: portal, pix: pix, lookupTTL: lookupTTL, metrics: metrics, logger: logger}
}

// Search looks up the pending slips of a CPF/CNPJ. Paid and cancelled slips are
// dropped, the summary is recomputed over what is left and overdue open slips
// carry a fee estimate. The result is remembered for the profile.
func (s *SegundaViaService) Search(ctx context.Context, sess port.ProfileStore, input string) (*domain.BoletoSearch, error) {
	ctx, span := tracer.Start(ctx, "SegundaViaService.Search")
	defer span.End()

	doc := OnlyDigits(input)
	if len(doc) != 11 && len(doc) != 14 {
		return nil, &domain.ErrValidation{Field: "cpfCnpj", Message: msgDocumentoInvalido}
	}
	span.SetAttributes(attribute.Int("documento.len", len(doc)))

	result, err := s.portal.SearchBoletos(ctx, doc)
	if err != nil {
		s.metrics.IncrExternalError("portal_boletos")
		return nil, err
	}
	if len(result.Boletos) == 0 {
		return nil, &domain.ErrNotFound{Resource: "boleto", ID: doc, Message: msgNenhumEmAberto}
	}

	pending := make([]domain.Boleto, 0, len(result.Boletos))
	for _, b := range result.Boletos {
		if b.Status == domain.StatusAberto || b.Status == domain.StatusPago {
			pending = append(pending, b)
		}
	}
	if len(pending) == 0 {
		return nil, &domain.ErrNotFound{Resource: "boleto", ID: doc, Message: msgNenhumPendente}
	}

	slices.SortStableFunc(pending, func(a, b domain.Boleto) int { return a.DiasVencimento - b.DiasVencimento })

	var resumo domain.BoletoResumo
	for i := range pending {
		b := &pending[i]
		resumo.TotalEmAberto += float64(b.Valor)
		if b.DiasVencimento < 0 {
			resumo.BoletosVencidos++
		} else {
			resumo.BoletosAVencer++
		}
		if b.DiasVencimento < 0 && b.Status == domain.StatusAberto {
			b.Estimativa = estimateForDays(float64(b.Valor), -b.DiasVencimento)
		}
	}
	resumo.TotalBoletos = len(pending)
	resumo.TotalEmAbertoFormatado = FormatBRL(resumo.TotalEmAberto)

	s.logger.Info("segunda via lookup",
		zap.String("documento", MaskDocument(doc)),
		zap.Int("boletos", len(pending)),
	)

	search := &domain.BoletoSearch{Boletos: pending, Resumo: resumo, Cliente: result.Cliente}
	if search.Cliente == "" {
		search.Cliente = pending[0].ClienteNome
	}

	if sess != nil {
		if err := s.remember(ctx, sess, search); err != nil {
			s.logger.Warn("failed to cache segunda via lookup", zap.Error(err))
		}
	}
	return search, nil
}

// Last returns the profile's previous lookup, if any.
func (s *SegundaViaService) Last(ctx context.Context, sess port.ProfileStore) (*domain.BoletoSearch, bool) {
	raw, found, err := sess.Load(ctx, SegundaViaCacheKey)
	if err != nil || !found {
		return nil, false
	}
	var search domain.BoletoSearch
	if err := json.Unmarshal([]byte(raw), &search); err != nil {
		return nil, false
	}
	return &search, true
}

// FindBoleto returns a slip from the profile's last lookup.
func (s *SegundaViaService) FindBoleto(ctx context.Context, sess port.ProfileStore, id string) (*domain.Boleto, error) {
	search, ok := s.Last(ctx, sess)
	if ok {
		for i := range search.Boletos {
			if search.Boletos[i].ID.String() == id {
				return &search.Boletos[i], nil
			}
		}
	}
	return nil, &domain.ErrNotFound{Resource: "boleto", ID: id, Message: "Boleto não encontrado. Refaça a busca pelo CPF/CNPJ."}
}

// Pix returns the PIX code of a slip from the last lookup and remembers it.
func (s *SegundaViaService) Pix(ctx context.Context, sess port.ProfileStore, id string) (*domain.PixResult, error) {
	ctx, span := tracer.Start(ctx, "SegundaViaService.Pix")
	defer span.End()

	search, ok := s.Last(ctx, sess)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "boleto", ID: id, Message: "Boleto não encontrado. Refaça a busca pelo CPF/CNPJ."}
	}
	idx := slices.IndexFunc(search.Boletos, func(b domain.Boleto) bool { return b.ID.String() == id })
	if idx < 0 {
		return nil, &domain.ErrNotFound{Resource: "boleto", ID: id, Message: "Boleto não encontrado. Refaça a busca pelo CPF/CNPJ."}
	}

	result := s.pix.PayWithPix(ctx, sess, &search.Boletos[idx])
	if result.Ready && !result.Cached {
		if err := s.remember(ctx, sess, search); err != nil {
			s.logger.Warn("failed to cache pix code", zap.String("boleto", id), zap.Error(err))
		}
	}
	return &result, nil
}

func (s *SegundaViaService) remember(ctx context.Context, sess port.ProfileStore, search *domain.BoletoSearch) error {
	data, err := json.Marshal(search)
	if err != nil {
		return err
	}
	return sess.SaveFor(ctx, SegundaViaCacheKey, string(data), s.lookupTTL)
}

// MaskDocument hides the middle digits of a CPF/CNPJ for logs and the CLI.
func MaskDocument(doc string) string {
	d := OnlyDigits(doc)
	if len(d) < 5 {
		return strings.Repeat("*", len(d))
	}
	return d[:3] + strings.Repeat("*", len(d)-5) + d[len(d)-2:]
}
