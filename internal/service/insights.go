package service

import (
	"strings"
	"unicode"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Termos de retenção que o resumo da IA às vezes gera e que não devem
// chegar ao cliente. A comparação ignora acentos e caixa.
var retentionTerms = []string{
	"churn",
	"cancelamento",
	"cancelar",
	"retencao",
	"evasao",
	"risco de saida",
	"risco de perda",
	"concorrente",
	"portabilidade",
}

// FoldText lowercases s and strips diacritics ("Retenção" -> "retencao").
func FoldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// SanitizeInsights returns a copy of ai without risk insights that carry
// customer retention language. Other insights are kept in order.
func SanitizeInsights(ai *domain.AiAnalysis) *domain.AiAnalysis {
	if ai == nil {
		return nil
	}
	out := &domain.AiAnalysis{Summary: ai.Summary, Insights: make([]domain.AiInsight, 0, len(ai.Insights))}
	for _, in := range ai.Insights {
		if in.Type == "risk" && mentionsRetention(in.Title+" "+in.Message+" "+in.Action) {
			continue
		}
		out.Insights = append(out.Insights, in)
	}
	return out
}

func mentionsRetention(text string) bool {
	folded := FoldText(text)
	for _, term := range retentionTerms {
		if strings.Contains(folded, term) {
			return true
		}
	}
	return false
}
