package client_test

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strconv"
	"testing"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/client"
)

func decodeRaw(t *testing.T, body string) *domain.RawDashboard {
	t.Helper()
	var raw domain.RawDashboard
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("decode raw dashboard: %v", err)
	}
	return &raw
}

func TestNormalizeInvoiceStatus_Total(t *testing.T) {
	known := map[string]string{
		"r": "P", "R": "P", "p": "P", "pago": "P", "Recebido": "P", "LIQUIDADO": "P",
		"c": "C", "cancelado": "C", "Cancelado": "C",
		"a": "A", "aberto": "A", "": "A", "vencido": "A", "qualquer coisa": "A",
	}
	for in, want := range known {
		if got := client.NormalizeInvoiceStatus(in); got != want {
			t.Errorf("NormalizeInvoiceStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatUptime(t *testing.T) {
	shape := regexp.MustCompile(`^\d+d \d+h$|^\d+h \d+m$`)
	for _, sec := range []int{0, 59, 60, 3599, 3600, 86399, 86400, 90061, 1_000_000, 31_536_000} {
		got := client.FormatUptime(strconv.Itoa(sec))
		if !shape.MatchString(got) {
			t.Errorf("FormatUptime(%d) = %q does not match the expected shape", sec, got)
		}
	}

	tests := map[string]string{
		"90061":  "1d 1h",
		"3720":   "1h 2m",
		"86400":  "1d 0h",
		"45":     "0h 0m",
		"abc":    "abc",
		"12h30m": "12h30m",
		"NaN":    "NaN",
	}
	for in, want := range tests {
		if got := client.FormatUptime(in); got != want {
			t.Errorf("FormatUptime(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeDashboard_EmptyAggregate(t *testing.T) {
	dash := client.NormalizeDashboard(decodeRaw(t, `{}`))

	if dash.Clientes == nil || dash.Contratos == nil || dash.Faturas == nil || dash.Logins == nil ||
		dash.Notas == nil || dash.OrdensServico == nil || dash.Tickets == nil || dash.ONTInfo == nil {
		t.Fatal("expected every collection to be non-nil")
	}
	if dash.Consumo.TotalDownload != "0 GB" || dash.Consumo.TotalUpload != "0 GB" {
		t.Errorf("unexpected consumo totals %+v", dash.Consumo)
	}
	h := dash.Consumo.History
	if h.Daily == nil || h.Weekly == nil || h.Monthly == nil {
		t.Error("expected empty history buckets")
	}
	if dash.AiAnalysis != nil {
		t.Error("expected no ai analysis")
	}

	out, _ := json.Marshal(dash)
	var generic map[string]any
	json.Unmarshal(out, &generic)
	for _, key := range []string{"clientes", "contratos", "faturas", "logins", "notas"} {
		if _, ok := generic[key].([]any); !ok {
			t.Errorf("expected %s to serialize as an array, got %v", key, generic[key])
		}
	}
}

func TestNormalizeDashboard_Rules(t *testing.T) {
	raw := decodeRaw(t, `{
		"clientes": [{"id": 1, "nome": "Ana", "endereco": "Rua A, 10"}],
		"contratos": [
			{"id": 100, "plano": ""},
			{"id": 101, "descricao_aux_plano_venda": "Fibra 500"},
			{"id": 102, "plano": "Fibra 1G", "endereco": "Rua B"}
		],
		"logins": [
			{"id": 7, "login": "ana", "status": "online", "uptime": 90061},
			{"id": "8", "login": "ana2", "online": "N", "sinal_ultimo_atendimento": "-20 dBm"}
		],
		"ontInfo": [{"id_login": "7", "sinal_rx": "-18.5", "sinal_tx": "2.1", "onu_tipo": "ZTE F601", "mac": "AA:BB"}],
		"faturas": [
			{"id": 1, "status": "recebido", "vencimento": "2024-01-10", "valor": "89,90", "valor_pago": 89.9},
			{"id": 2, "status": "cancelado", "data_vencimento": "2024-02-10", "valor": 89.9},
			{"id": 3, "status": "X", "data_vencimento": "2024-03-10", "valor": 89.9}
		],
		"notas": [
			{"id": 55, "numero_nota": "123", "valor": "10.00"},
			{"id": "ai-insights", "summary": "Tudo certo", "insights": [{"type": "positive", "title": "Em dia", "message": "ok"}]}
		],
		"consumo": {"total_download": "12 GB", "history": {"daily": [{"data": "2024-01-01", "download_bytes": 10}]}}
	}`)

	dash := client.NormalizeDashboard(raw)

	if dash.Contratos[0].Plano != "Plano Fiber" || dash.Contratos[1].Plano != "Fibra 500" || dash.Contratos[2].Plano != "Fibra 1G" {
		t.Errorf("unexpected plano fallbacks: %+v", dash.Contratos)
	}
	if dash.Contratos[0].Endereco != "Rua A, 10" || dash.Contratos[2].Endereco != "Rua B" {
		t.Errorf("unexpected endereco fallbacks: %+v", dash.Contratos)
	}

	l := dash.Logins[0]
	if l.Online != "S" || l.TempoConectado != "1d 1h" || l.SinalUltimoAtendimento != "-18.5" ||
		l.ONTModelo != "ZTE F601" || l.ONTSinalTx != "2.1" || l.ONTMac != "AA:BB" || l.IPPublico != "Automático" {
		t.Errorf("unexpected joined login: %+v", l)
	}
	if l.ContratoID != "100" {
		t.Errorf("expected contrato fallback 100, got %q", l.ContratoID)
	}
	l2 := dash.Logins[1]
	if l2.Online != "N" || l2.TempoConectado != "Recente" || l2.SinalUltimoAtendimento != "-20 dBm" || l2.ONTModelo != "ONU Padrão" {
		t.Errorf("unexpected unmatched login: %+v", l2)
	}

	f := dash.Faturas
	if f[0].Status != "P" || f[1].Status != "C" || f[2].Status != "A" {
		t.Errorf("unexpected statuses %s %s %s", f[0].Status, f[1].Status, f[2].Status)
	}
	if f[0].DataVencimento != "2024-01-10" || f[0].Valor != 89.90 || f[0].ValorRecebido != 89.9 {
		t.Errorf("unexpected fatura fields %+v", f[0])
	}

	if len(dash.Notas) != 1 || dash.Notas[0].NumeroNota != "123" {
		t.Errorf("expected ai-insights note to be removed, got %+v", dash.Notas)
	}
	if dash.AiAnalysis == nil || dash.AiAnalysis.Summary != "Tudo certo" || len(dash.AiAnalysis.Insights) != 1 {
		t.Errorf("unexpected ai analysis %+v", dash.AiAnalysis)
	}

	if dash.Consumo.TotalDownload != "12 GB" || dash.Consumo.TotalUpload != "0 GB" {
		t.Errorf("unexpected consumo totals %+v", dash.Consumo)
	}
	if len(dash.Consumo.History.Daily) != 1 || dash.Consumo.History.Weekly == nil || dash.Consumo.History.Monthly == nil {
		t.Errorf("unexpected consumo history %+v", dash.Consumo.History)
	}
}

func TestNormalizeDashboard_Idempotent(t *testing.T) {
	raw := decodeRaw(t, `{
		"clientes": [{"id": 1, "nome": "Ana", "endereco": "Rua A"}],
		"contratos": [{"id": 100}],
		"logins": [{"id": 7, "status": "online", "uptime": 3720}],
		"ontInfo": [{"id_login": 7, "sinal_rx": "-19", "modelo": "Huawei"}],
		"faturas": [{"id": 1, "status": "liquidado", "data_vencimento": "2024-01-10", "valor": 10}],
		"ai_analysis": {"summary": "s"}
	}`)

	once := client.NormalizeDashboard(raw)

	encoded, _ := json.Marshal(once)
	twice := client.NormalizeDashboard(decodeRaw(t, string(encoded)))

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("normalizing twice changed the snapshot:\n once  %+v\n twice %+v", once, twice)
	}
}
