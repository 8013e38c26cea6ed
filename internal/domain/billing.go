package domain

// ============================================================
// Faturas, Boletos e PIX
// ============================================================

// Invoice status after normalization.
const (
	StatusAberto    = "A"
	StatusPago      = "P"
	StatusCancelado = "C"
)

// Fatura is an invoice of the logged in customer.
// Status is always one of A, P or C once normalized.
type Fatura struct {
	ID             FlexString `json:"id"`
	IDCliente      FlexString `json:"id_cliente,omitempty"`
	ContratoID     FlexString `json:"contrato_id,omitempty"`
	Vencimento     string     `json:"vencimento,omitempty"`
	DataVencimento string     `json:"data_vencimento"`
	DataPagamento  string     `json:"data_pagamento,omitempty"`
	Valor          Amount     `json:"valor"`
	ValorRecebido  Amount     `json:"valor_recebido"`
	ValorPago      Amount     `json:"valor_pago,omitempty"`
	Status         string     `json:"status"`
	LinhaDigitavel string     `json:"linha_digitavel,omitempty"`
	PixTxID        string     `json:"pix_txid,omitempty"`
	PixCode        string     `json:"pix_code,omitempty"`
	PixQRCode      string     `json:"pix_qrcode,omitempty"`
	Boleto         string     `json:"boleto,omitempty"`
}

func (f *Fatura) PixID() string { return f.ID.String() }

// CachedPix returns the payload already attached to the invoice, if any.
func (f *Fatura) CachedPix() *PixPayload {
	if f.PixCode == "" {
		return nil
	}
	return &PixPayload{QRCode: f.PixCode, Imagem: f.PixQRCode}
}

func (f *Fatura) AttachPix(p PixPayload) {
	f.PixCode = p.QRCode
	f.PixQRCode = p.Imagem
}

// Boleto is a slip returned by the public CPF/CNPJ lookup (camelCase contract).
type Boleto struct {
	ID                  FlexString   `json:"id"`
	ClienteID           FlexString   `json:"clienteId,omitempty"`
	ClienteNome         string       `json:"clienteNome,omitempty"`
	Documento           FlexString   `json:"documento,omitempty"`
	Vencimento          string       `json:"vencimento"`
	VencimentoFormatado string       `json:"vencimentoFormatado,omitempty"`
	Valor               Amount       `json:"valor"`
	ValorFormatado      string       `json:"valorFormatado,omitempty"`
	LinhaDigitavel      string       `json:"linhaDigitavel,omitempty"`
	PixCopiaECola       string       `json:"pixCopiaECola,omitempty"`
	PixImagem           string       `json:"pixImagem,omitempty"`
	PDFLink             string       `json:"boleto_pdf_link,omitempty"`
	Status              string       `json:"status"`
	StatusCor           string       `json:"statusCor,omitempty"`
	DiasVencimento      int          `json:"diasVencimento"`
	Estimativa          *FeeEstimate `json:"estimativa,omitempty"`
}

func (b *Boleto) PixID() string { return b.ID.String() }

func (b *Boleto) CachedPix() *PixPayload {
	if b.PixCopiaECola == "" {
		return nil
	}
	return &PixPayload{QRCode: b.PixCopiaECola, Imagem: b.PixImagem}
}

func (b *Boleto) AttachPix(p PixPayload) {
	b.PixCopiaECola = p.QRCode
	b.PixImagem = p.Imagem
}

// DocumentName is the file name used when the slip is downloaded.
func (b *Boleto) DocumentName() string {
	if b.Documento != "" {
		return "Fatura-" + b.Documento.String() + ".pdf"
	}
	return "Fatura-" + b.ID.String() + ".pdf"
}

// BoletoResumo summarizes a lookup result.
type BoletoResumo struct {
	TotalBoletos           int     `json:"totalBoletos"`
	TotalEmAberto          float64 `json:"totalEmAberto"`
	TotalEmAbertoFormatado string  `json:"totalEmAbertoFormatado"`
	BoletosVencidos        int     `json:"boletosVencidos"`
	BoletosAVencer         int     `json:"boletosAVencer"`
}

// BoletoSearch is the answer of POST /boletos/buscar-cpf.
type BoletoSearch struct {
	Boletos []Boleto     `json:"boletos"`
	Resumo  BoletoResumo `json:"resumo"`
	Cliente string       `json:"cliente,omitempty"`
}

// PixPayload is a copy-and-paste code plus an optional base64 QR image.
type PixPayload struct {
	QRCode string `json:"qrcode"`
	Imagem string `json:"imagem,omitempty"`
}

// PixResult is what the customer sees after asking for a PIX code.
type PixResult struct {
	Ready   bool        `json:"ready"`
	Cached  bool        `json:"cached"`
	Pix     *PixPayload `json:"pix,omitempty"`
	Message string      `json:"message,omitempty"`
}

// FeeEstimate is a display-only late fee estimate for an overdue invoice.
type FeeEstimate struct {
	DiasAtraso      int     `json:"diasAtraso"`
	Multa           float64 `json:"multa"`
	Juros           float64 `json:"juros"`
	Total           float64 `json:"total"`
	ValorOriginal   string  `json:"valorOriginal"`
	TotalAtualizado string  `json:"totalAtualizado"`
}

// DocumentResponse is the backend answer for printable documents.
// Either Base64Document or URL is set.
type DocumentResponse struct {
	Base64Document string `json:"base64_document"`
	URL            string `json:"url,omitempty"`
}

// Document is a decoded binary ready to be streamed or written to disk.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}
