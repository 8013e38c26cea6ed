package client

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
)

// ============================================================
// Normalização do agregado do dashboard
// ============================================================
//
// Cada regra é independente e idempotente. O resultado nunca tem
// coleções nil, então quem renderiza não precisa checar ausência.

const (
	defaultPlano     = "Plano Fiber"
	defaultONTModelo = "ONU Padrão"
	defaultSinal     = "- dBm"
	defaultIP        = "Automático"
	defaultUptime    = "Recente"
	defaultTraffic   = "0 GB"
	aiInsightsNoteID = "ai-insights"
)

// NormalizeDashboard reshapes the raw backend aggregate into the stable view model.
func NormalizeDashboard(raw *domain.RawDashboard) *domain.Dashboard {
	dash := &domain.Dashboard{
		Clientes:      nonNil(raw.Clientes),
		OrdensServico: nonNil(raw.OrdensServico),
		Tickets:       nonNil(raw.Tickets),
		ONTInfo:       nonNil(raw.ONTInfo),
	}

	dash.Contratos = normalizeContratos(raw.Contratos, dash.Clientes)
	dash.Logins = normalizeLogins(raw.Logins, dash.ONTInfo, dash.Contratos)
	dash.Faturas = normalizeFaturas(raw.Faturas)
	dash.Notas, dash.AiAnalysis = splitNotas(raw.Notas)
	if dash.AiAnalysis == nil && raw.AiAnalysis != nil {
		ai := *raw.AiAnalysis
		dash.AiAnalysis = &ai
	}
	if dash.AiAnalysis != nil && dash.AiAnalysis.Insights == nil {
		dash.AiAnalysis.Insights = []domain.AiInsight{}
	}
	dash.Consumo = normalizeConsumo(raw.Consumo)

	return dash
}

func normalizeContratos(in []domain.Contrato, clientes []domain.Cliente) []domain.Contrato {
	out := make([]domain.Contrato, 0, len(in))
	for _, c := range in {
		c.Plano = firstNonEmpty(c.Plano, c.DescricaoAuxPlanoVenda, defaultPlano)
		if c.Endereco == "" && len(clientes) > 0 {
			c.Endereco = clientes[0].Endereco
		}
		out = append(out, c)
	}
	return out
}

func normalizeLogins(in []domain.Login, onts []domain.ONTInfo, contratos []domain.Contrato) []domain.Login {
	out := make([]domain.Login, 0, len(in))
	for _, l := range in {
		ont := findONT(onts, l.ID.String())

		if l.ContratoID == "" && len(contratos) > 0 {
			l.ContratoID = contratos[0].ID
		}
		if l.Status == "online" || l.Online == "S" {
			l.Online = "S"
		} else {
			l.Online = "N"
		}

		if uptime := strings.TrimSpace(l.Uptime.String()); uptime != "" && uptime != "0" {
			l.TempoConectado = FormatUptime(uptime)
		} else if l.TempoConectado == "" {
			l.TempoConectado = defaultUptime
		}

		if ont != nil {
			l.SinalUltimoAtendimento = firstNonEmpty(ont.SinalRx.String(), l.SinalUltimoAtendimento, defaultSinal)
			l.ONTModelo = firstNonEmpty(ont.OnuTipo, ont.Modelo, defaultONTModelo)
			l.ONTSinalRx = ont.SinalRx
			l.ONTSinalTx = ont.SinalTx
			l.ONTTemperatura = ont.Temperatura
			l.ONTMac = ont.Mac
		} else {
			l.SinalUltimoAtendimento = firstNonEmpty(l.SinalUltimoAtendimento, defaultSinal)
			l.ONTModelo = firstNonEmpty(l.ONTModelo, defaultONTModelo)
		}

		l.IPPublico = firstNonEmpty(l.IPPublico, defaultIP)
		out = append(out, l)
	}
	return out
}

func findONT(onts []domain.ONTInfo, loginID string) *domain.ONTInfo {
	for i := range onts {
		if onts[i].IDLogin.String() == loginID {
			return &onts[i]
		}
	}
	return nil
}

func normalizeFaturas(in []domain.Fatura) []domain.Fatura {
	out := make([]domain.Fatura, 0, len(in))
	for _, f := range in {
		f.DataVencimento = firstNonEmpty(f.Vencimento, f.DataVencimento)
		f.Status = NormalizeInvoiceStatus(f.Status)
		if f.ValorRecebido == 0 {
			f.ValorRecebido = f.ValorPago
		}
		out = append(out, f)
	}
	return out
}

// NormalizeInvoiceStatus maps any backend vocabulary to A, P or C.
// Unknown values are treated as open.
func NormalizeInvoiceStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "r", "p", "pago", "recebido", "liquidado":
		return domain.StatusPago
	case "c", "cancelado":
		return domain.StatusCancelado
	default:
		return domain.StatusAberto
	}
}

// splitNotas separates the "ai-insights" pseudo note from the real ones.
// Notes that cannot be decoded are skipped.
func splitNotas(raw []json.RawMessage) ([]domain.NotaFiscal, *domain.AiAnalysis) {
	notas := make([]domain.NotaFiscal, 0, len(raw))
	var ai *domain.AiAnalysis

	for _, msg := range raw {
		var head struct {
			ID domain.FlexString `json:"id"`
		}
		if err := json.Unmarshal(msg, &head); err != nil {
			continue
		}

		if head.ID == aiInsightsNoteID {
			var a domain.AiAnalysis
			if err := json.Unmarshal(msg, &a); err == nil && ai == nil {
				ai = &a
			}
			continue
		}

		var n domain.NotaFiscal
		if err := json.Unmarshal(msg, &n); err != nil {
			continue
		}
		notas = append(notas, n)
	}
	return notas, ai
}

func normalizeConsumo(in *domain.Consumo) domain.Consumo {
	var c domain.Consumo
	if in != nil {
		c = *in
	}
	c.TotalDownload = firstNonEmpty(c.TotalDownload, defaultTraffic)
	c.TotalUpload = firstNonEmpty(c.TotalUpload, defaultTraffic)
	c.History.Daily = nonNil(c.History.Daily)
	c.History.Weekly = nonNil(c.History.Weekly)
	c.History.Monthly = nonNil(c.History.Monthly)
	return c
}

// FormatUptime renders uptime seconds as "{d}d {h}h" or "{h}h {m}m".
// Input that is not a number is returned unchanged.
func FormatUptime(raw string) string {
	sec, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(sec) || math.IsInf(sec, 0) {
		return raw
	}

	days := math.Floor(sec / 86400)
	hours := math.Floor(math.Mod(sec, 86400) / 3600)
	if days > 0 {
		return fmt.Sprintf("%.0fd %.0fh", days, hours)
	}
	minutes := math.Floor(math.Mod(sec, 3600) / 60)
	return fmt.Sprintf("%.0fh %.0fm", hours, minutes)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
