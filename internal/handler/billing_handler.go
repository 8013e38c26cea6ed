package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Faturas da Área do Cliente
// ============================================================

// GET /v1/faturas
func listInvoicesHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := profileStore(w, r)
		if !ok {
			return
		}
		list, err := svc.List(r.Context(), store)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /v1/faturas/{id}/estimativa
//
// Fatura em dia responde {"estimativa": null}.
func invoiceEstimateHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := profileStore(w, r)
		if !ok {
			return
		}
		est, err := svc.Estimate(r.Context(), store, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]*domain.FeeEstimate{"estimativa": est})
	}
}

// GET /v1/faturas/{id}/pix
//
// PIX ainda não gerado não é erro: responde 200 com ready=false e a mensagem.
func invoicePixHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/faturas/{id}/pix")
		defer span.End()

		store, ok := profileStore(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("fatura.id", id))

		result, err := svc.Pix(ctx, store, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// GET /v1/faturas/{id}/pdf
func invoicePDFHandler(docs *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := profileStore(w, r)
		if !ok {
			return
		}
		dl, err := docs.Boleto(r.Context(), store, chi.URLParam(r, "id"), "")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeDownload(w, r, dl)
	}
}

// GET /v1/notas/{id}/pdf
func notaPDFHandler(docs *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := profileStore(w, r)
		if !ok {
			return
		}
		dl, err := docs.NotaFiscal(r.Context(), store, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeDownload(w, r, dl)
	}
}

// writeDownload streams a decoded PDF as an attachment or redirects to the
// URL the backend returned instead.
func writeDownload(w http.ResponseWriter, r *http.Request, dl *service.Download) {
	if dl.RedirectURL != "" {
		http.Redirect(w, r, dl.RedirectURL, http.StatusFound)
		return
	}
	doc := dl.Document
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Data)
}
