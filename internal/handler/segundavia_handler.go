package handler

import (
	"fmt"
	"net/http"

	"github.com/fibernet/central-cliente-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Segunda via: consulta pública por CPF/CNPJ
// ============================================================

type segundaViaBody struct {
	Documento string `json:"documento"`
}

// POST /v1/segunda-via/buscar
//
// Request: {"documento": "123.456.789-01"}
func segundaViaSearchHandler(svc *service.SegundaViaService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/segunda-via/buscar")
		defer span.End()

		store, ok := profileStore(w, r)
		if !ok {
			return
		}
		var body segundaViaBody
		if !decodeJSON(w, r, &body) {
			return
		}

		search, err := svc.Search(ctx, store, body.Documento)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, search)
	}
}

// GET /v1/segunda-via/formatar?valor=12345678901
func formatDocumentHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"formatado": service.FormatCPFCNPJ(r.URL.Query().Get("valor")),
	})
}

// GET /v1/boletos/{id}/pix
func boletoPixHandler(svc *service.SegundaViaService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := profileStore(w, r)
		if !ok {
			return
		}
		result, err := svc.Pix(r.Context(), store, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// GET /v1/boletos/{id}/pdf
//
// O boleto precisa estar na última consulta do perfil. Um link de PDF
// já informado na consulta vira redirect sem nova chamada ao backend.
func boletoPDFHandler(svc *service.SegundaViaService, docs *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := profileStore(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		boleto, err := svc.FindBoleto(r.Context(), store, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if boleto.PDFLink != "" {
			http.Redirect(w, r, boleto.PDFLink, http.StatusFound)
			return
		}

		dl, err := docs.Boleto(r.Context(), store, id, fmt.Sprintf("Boleto-%s.pdf", id))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeDownload(w, r, dl)
	}
}
