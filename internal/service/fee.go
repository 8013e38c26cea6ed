package service

import (
	"strings"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ============================================================
// Estimativa de multa e juros
// ============================================================
//
// Valor apenas ilustrativo: nunca é enviado ao backend, que continua
// sendo a fonte do valor a pagar.

const (
	multaRate      = 0.02
	jurosDailyRate = 0.00033
)

var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders v as pt-BR currency ("R$ 1.234,56").
func FormatBRL(v float64) string {
	return brl.Sprintf("R$ %.2f", v)
}

// ParseDueDate reads the date formats the backend ships. A bare date is read
// as noon so that time zone shifts never move it to another day.
func ParseDueDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), true
	}
	layouts := []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02", "02/01/2006"}
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" || layout == "02/01/2006" {
			t = t.Add(12 * time.Hour)
		}
		return t, true
	}
	return time.Time{}, false
}

// DaysUntilDue counts calendar days from now to the due date.
// Negative means overdue. ok is false when the date cannot be parsed.
func DaysUntilDue(dueDate string, now time.Time) (days int, ok bool) {
	due, ok := ParseDueDate(dueDate, now.Location())
	if !ok {
		return 0, false
	}
	return calendarDays(now, due), true
}

// calendarDays is the whole number of days between the midnights of a and b.
func calendarDays(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}

// EstimateOverdueFee returns the late fee estimate, or nil when the invoice
// is not overdue yet (or the date is unreadable).
func EstimateOverdueFee(valor float64, dueDate string, now time.Time) *domain.FeeEstimate {
	days, ok := DaysUntilDue(dueDate, now)
	if !ok || days >= 0 {
		return nil
	}
	return estimateForDays(valor, -days)
}

func estimateForDays(valor float64, diasAtraso int) *domain.FeeEstimate {
	multa := valor * multaRate
	juros := valor * (jurosDailyRate * float64(diasAtraso))
	total := valor + multa + juros

	return &domain.FeeEstimate{
		DiasAtraso:      diasAtraso,
		Multa:           multa,
		Juros:           juros,
		Total:           total,
		ValorOriginal:   FormatBRL(valor),
		TotalAtualizado: FormatBRL(total),
	}
}

// VisibleOpenInvoices keeps the open invoices the client area highlights:
// overdue ones and those due in the current month.
func VisibleOpenInvoices(faturas []domain.Fatura, now time.Time) []domain.Fatura {
	out := make([]domain.Fatura, 0, len(faturas))
	for _, f := range faturas {
		if f.Status != domain.StatusAberto {
			continue
		}
		due, ok := ParseDueDate(f.DataVencimento, now.Location())
		if !ok {
			continue
		}
		overdue := calendarDays(now, due) < 0
		sameMonth := due.Year() == now.Year() && due.Month() == now.Month()
		if overdue || sameMonth {
			out = append(out, f)
		}
	}
	return out
}

// OverdueInvoices returns the open invoices whose due date has passed.
func OverdueInvoices(faturas []domain.Fatura, now time.Time) []domain.Fatura {
	var out []domain.Fatura
	for _, f := range faturas {
		if f.Status != domain.StatusAberto {
			continue
		}
		if days, ok := DaysUntilDue(f.DataVencimento, now); ok && days < 0 {
			out = append(out, f)
		}
	}
	return out
}
