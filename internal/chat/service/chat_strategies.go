package service

import (
	"fmt"
	"strings"

	"github.com/fibernet/central-cliente-bfa-go/internal/chat/domain"
	maindomain "github.com/fibernet/central-cliente-bfa-go/internal/domain"
	mainservice "github.com/fibernet/central-cliente-bfa-go/internal/service"
)

// ============================================================
// BillingStrategy: faturas, PIX e bloqueio
// ============================================================

// BillingStrategy lists the open invoices with the late fee estimate so the
// model can answer "quanto eu devo" without guessing.
type BillingStrategy struct{}

func NewBillingStrategy() *BillingStrategy { return &BillingStrategy{} }

func (s *BillingStrategy) CanHandle(intent string) bool { return intent == IntentBilling }

func (s *BillingStrategy) Instructions(chatCtx *domain.ChatContext) string {
	var b strings.Builder
	b.WriteString("ASSUNTO: faturas e pagamentos.")
	b.WriteString("\nOriente o pagamento via PIX na aba Faturas ou pela Segunda Via. Nunca invente valores nem códigos PIX.")
	b.WriteString("\nMulta e juros informados são apenas estimativas; o valor oficial é o do boleto.")

	if chatCtx.Dashboard == nil {
		return b.String()
	}

	abertas := 0
	for _, f := range chatCtx.Dashboard.Faturas {
		if f.Status != maindomain.StatusAberto {
			continue
		}
		if abertas == 0 {
			b.WriteString("\n\nFATURAS EM ABERTO:")
		}
		abertas++
		fmt.Fprintf(&b, "\n- Fatura %s: vencimento %s, valor %s", f.ID, f.DataVencimento, mainservice.FormatBRL(float64(f.Valor)))
		if est := mainservice.EstimateOverdueFee(float64(f.Valor), f.DataVencimento, chatCtx.Now); est != nil {
			fmt.Fprintf(&b, " (vencida há %d dias, total estimado %s)", est.DiasAtraso, est.TotalAtualizado)
		}
	}
	if abertas == 0 {
		b.WriteString("\n\nO cliente não possui faturas em aberto.")
	}
	return b.String()
}

// ============================================================
// SupportStrategy: conexão e instabilidades
// ============================================================

// SupportStrategy describes the customer's connections and known outages
// of popular services, so a WhatsApp outage is not blamed on the fiber.
type SupportStrategy struct{}

func NewSupportStrategy() *SupportStrategy { return &SupportStrategy{} }

func (s *SupportStrategy) CanHandle(intent string) bool { return intent == IntentSupport }

func (s *SupportStrategy) Instructions(chatCtx *domain.ChatContext) string {
	var b strings.Builder
	b.WriteString("ASSUNTO: suporte técnico.")
	b.WriteString("\nSe o equipamento estiver offline, oriente reiniciar a ONU e o roteador. Se persistir, ofereça o diagnóstico da conexão na Área do Cliente ou abertura de chamado.")

	if chatCtx.Dashboard != nil && len(chatCtx.Dashboard.Logins) > 0 {
		b.WriteString("\n\nCONEXÕES:")
		for _, l := range chatCtx.Dashboard.Logins {
			status := "online"
			if l.Online != "S" {
				status = "OFFLINE"
			}
			fmt.Fprintf(&b, "\n- %s: %s, conectado há %s, sinal %s, equipamento %s",
				l.Login, status, l.TempoConectado, l.SinalUltimoAtendimento, l.ONTModelo)
		}
	}

	if chatCtx.Status != nil {
		var issues []string
		for _, svc := range chatCtx.Status.Data {
			if svc.Status != maindomain.ServiceOperational {
				issues = append(issues, fmt.Sprintf("%s (%s): %s", svc.Service, svc.Status, svc.Description))
			}
		}
		if len(issues) > 0 {
			b.WriteString("\n\nINSTABILIDADES CONFIRMADAS EM SERVIÇOS EXTERNOS:\n- ")
			b.WriteString(strings.Join(issues, "\n- "))
			b.WriteString("\nSe o problema relatado for nesses serviços, explique que a falha não é da conexão Fiber.Net.")
		}
	}
	return b.String()
}
