package service_test

import (
	"testing"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/service"
)

func TestFoldText(t *testing.T) {
	if got := service.FoldText("Retenção e EVASÃO"); got != "retencao e evasao" {
		t.Errorf("unexpected fold %q", got)
	}
}

func TestSanitizeInsights(t *testing.T) {
	in := &domain.AiAnalysis{
		Summary: "Resumo",
		Insights: []domain.AiInsight{
			{Type: "risk", Title: "Atenção", Message: "Alto risco de saída para concorrente"},
			{Type: "risk", Title: "Fatura vencida", Message: "Você tem uma fatura em atraso"},
			{Type: "neutral", Title: "Cancelamento", Message: "Informativo sobre cancelamento"},
			{Type: "risk", Title: "Ação de Retenção", Message: "Oferecer desconto"},
		},
	}

	out := service.SanitizeInsights(in)
	if len(out.Insights) != 2 {
		t.Fatalf("expected 2 insights, got %+v", out.Insights)
	}
	if out.Insights[0].Title != "Fatura vencida" || out.Insights[1].Type != "neutral" {
		t.Errorf("unexpected insights kept: %+v", out.Insights)
	}
	if len(in.Insights) != 4 {
		t.Error("input must not be mutated")
	}
	if service.SanitizeInsights(nil) != nil {
		t.Error("nil stays nil")
	}
}
