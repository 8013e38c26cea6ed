package domain

import "encoding/json"

// ============================================================
// Dashboard: agregado devolvido por GET /dashboard
// ============================================================

// Cliente is the account holder record.
type Cliente struct {
	ID       FlexString `json:"id"`
	Nome     string     `json:"nome"`
	Endereco string     `json:"endereco,omitempty"`
	CpfCnpj  string     `json:"cpf_cnpj,omitempty"`
	Fone     string     `json:"fone,omitempty"`
	Email    string     `json:"email,omitempty"`
}

// Contrato is a service contract. Plano and Endereco are always filled after normalization.
type Contrato struct {
	ID                     FlexString `json:"id"`
	IDCliente              FlexString `json:"id_cliente,omitempty"`
	Login                  string     `json:"login,omitempty"`
	Plano                  string     `json:"plano"`
	Status                 string     `json:"status,omitempty"`
	DescricaoAuxPlanoVenda string     `json:"descricao_aux_plano_venda,omitempty"`
	PDFLink                string     `json:"pdf_link,omitempty"`
	Endereco               string     `json:"endereco"`
	Bairro                 string     `json:"bairro,omitempty"`
	Cidade                 string     `json:"cidade,omitempty"`
}

// Login is a connection (PPPoE login) joined with its ONT telemetry.
type Login struct {
	ID                     FlexString `json:"id"`
	Login                  string     `json:"login"`
	ContratoID             FlexString `json:"contrato_id"`
	Status                 string     `json:"status,omitempty"`
	Online                 string     `json:"online"` // "S" | "N"
	Uptime                 FlexString `json:"uptime,omitempty"`
	TempoConectado         string     `json:"tempo_conectado"`
	SinalUltimoAtendimento string     `json:"sinal_ultimo_atendimento"`
	IPPrivado              string     `json:"ip_privado,omitempty"`
	IPPublico              string     `json:"ip_publico"`
	DownloadAtual          string     `json:"download_atual,omitempty"`
	UploadAtual            string     `json:"upload_atual,omitempty"`

	ONTModelo      string     `json:"ont_modelo"`
	ONTSinalRx     FlexString `json:"ont_sinal_rx,omitempty"`
	ONTSinalTx     FlexString `json:"ont_sinal_tx,omitempty"`
	ONTTemperatura FlexString `json:"ont_temperatura,omitempty"`
	ONTMac         string     `json:"ont_mac,omitempty"`
}

// ONTInfo is the equipment telemetry side-array, matched to logins by id_login.
type ONTInfo struct {
	IDLogin     FlexString `json:"id_login"`
	SinalRx     FlexString `json:"sinal_rx,omitempty"`
	SinalTx     FlexString `json:"sinal_tx,omitempty"`
	Temperatura FlexString `json:"temperatura,omitempty"`
	Mac         string     `json:"mac,omitempty"`
	OnuTipo     string     `json:"onu_tipo,omitempty"`
	Modelo      string     `json:"modelo,omitempty"`
}

// NotaFiscal is an issued service invoice (NF).
type NotaFiscal struct {
	ID          FlexString `json:"id"`
	ContratoID  FlexString `json:"contrato_id,omitempty"`
	NumeroNota  FlexString `json:"numero_nota,omitempty"`
	DataEmissao string     `json:"data_emissao,omitempty"`
	Valor       Amount     `json:"valor"`
	LinkPDF     string     `json:"link_pdf,omitempty"`
}

// ConsumoPoint is one bucket of the traffic history.
type ConsumoPoint struct {
	Data          string  `json:"data,omitempty"`
	MesAno        string  `json:"mes_ano,omitempty"`
	DownloadBytes float64 `json:"download_bytes"`
	UploadBytes   float64 `json:"upload_bytes"`
}

// ConsumoHistory holds the traffic buckets. The slices are never nil after normalization.
type ConsumoHistory struct {
	Daily   []ConsumoPoint `json:"daily"`
	Weekly  []ConsumoPoint `json:"weekly"`
	Monthly []ConsumoPoint `json:"monthly"`
}

// Consumo is the traffic aggregate.
type Consumo struct {
	TotalDownload      string         `json:"total_download"`
	TotalUpload        string         `json:"total_upload"`
	TotalDownloadBytes float64        `json:"total_download_bytes"`
	TotalUploadBytes   float64        `json:"total_upload_bytes"`
	History            ConsumoHistory `json:"history"`
}

// AiInsight is one card of the AI account summary.
type AiInsight struct {
	Type      string `json:"type"` // risk | positive | neutral
	Title     string `json:"title"`
	Message   string `json:"message"`
	Action    string `json:"action,omitempty"`
	ActionURL string `json:"actionUrl,omitempty"`
}

// AiAnalysis is the AI generated account summary shipped inside the dashboard.
type AiAnalysis struct {
	Summary  string      `json:"summary"`
	Insights []AiInsight `json:"insights"`
}

// RawDashboard is the aggregate exactly as the backend sends it.
// Any collection may be missing; notas may carry the "ai-insights" pseudo note.
type RawDashboard struct {
	Clientes      []Cliente         `json:"clientes"`
	Contratos     []Contrato        `json:"contratos"`
	Faturas       []Fatura          `json:"faturas"`
	Logins        []Login           `json:"logins"`
	Notas         []json.RawMessage `json:"notas"`
	OrdensServico []json.RawMessage `json:"ordensServico"`
	Tickets       []json.RawMessage `json:"tickets"`
	ONTInfo       []ONTInfo         `json:"ontInfo"`
	Consumo       *Consumo          `json:"consumo"`
	AiAnalysis    *AiAnalysis       `json:"ai_analysis"`
}

// Dashboard is the normalized snapshot. Every collection is non-nil.
type Dashboard struct {
	Clientes      []Cliente         `json:"clientes"`
	Contratos     []Contrato        `json:"contratos"`
	Faturas       []Fatura          `json:"faturas"`
	Logins        []Login           `json:"logins"`
	Notas         []NotaFiscal      `json:"notas"`
	OrdensServico []json.RawMessage `json:"ordensServico"`
	Tickets       []json.RawMessage `json:"tickets"`
	ONTInfo       []ONTInfo         `json:"ontInfo"`
	Consumo       Consumo           `json:"consumo"`
	AiAnalysis    *AiAnalysis       `json:"ai_analysis,omitempty"`
}

// FindFatura returns the invoice with the given id, or nil.
func (d *Dashboard) FindFatura(id string) *Fatura {
	for i := range d.Faturas {
		if d.Faturas[i].ID.String() == id {
			return &d.Faturas[i]
		}
	}
	return nil
}

// ClienteNome returns the first client's name, or "" if there is none.
func (d *Dashboard) ClienteNome() string {
	if len(d.Clientes) == 0 {
		return ""
	}
	return d.Clientes[0].Nome
}
