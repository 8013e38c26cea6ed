package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
)

const pdfContentType = "application/pdf"

var (
	errPDFUnavailable = &domain.ErrNotFound{Resource: "document", Message: "PDF não disponível."}
	errPDFMalformed   = &domain.ErrValidation{Field: "base64_document", Message: "Erro ao processar o arquivo PDF."}
)

// DecodeBase64PDF turns the backend base64 payload into a downloadable PDF.
// A data URL prefix and embedded whitespace are tolerated.
func DecodeBase64PDF(data, filename string) (*domain.Document, error) {
	data = strings.TrimSpace(data)
	if i := strings.Index(data, ";base64,"); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+len(";base64,"):]
	}
	data = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, data)
	if data == "" {
		return nil, errPDFUnavailable
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		// alguns backends mandam sem padding
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return nil, errPDFMalformed
		}
	}

	return &domain.Document{Filename: filename, ContentType: pdfContentType, Data: raw}, nil
}

// DocumentFetcher is the slice of PortalAPI that serves printable documents.
type DocumentFetcher interface {
	GetSegundaVia(ctx context.Context, sess port.Session, id string) (*domain.DocumentResponse, error)
	GetNotaFiscal(ctx context.Context, sess port.Session, id string) (*domain.DocumentResponse, error)
}

// DocumentService downloads slips and service invoices.
type DocumentService struct {
	portal DocumentFetcher
}

func NewDocumentService(portal DocumentFetcher) *DocumentService {
	return &DocumentService{portal: portal}
}

// Download is either a decoded document or a URL the caller should redirect to.
type Download struct {
	Document    *domain.Document
	RedirectURL string
}

// Boleto fetches the slip of invoice id. filename defaults to Fatura-{id}.pdf.
func (s *DocumentService) Boleto(ctx context.Context, sess port.Session, id, filename string) (*Download, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Boleto")
	defer span.End()
	span.SetAttributes(attribute.String("boleto.id", id))

	if filename == "" {
		filename = fmt.Sprintf("Fatura-%s.pdf", id)
	}
	resp, err := s.portal.GetSegundaVia(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	return toDownload(resp, filename)
}

// NotaFiscal fetches the printable service invoice id.
func (s *DocumentService) NotaFiscal(ctx context.Context, sess port.Session, id string) (*Download, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.NotaFiscal")
	defer span.End()
	span.SetAttributes(attribute.String("nota.id", id))

	resp, err := s.portal.GetNotaFiscal(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	return toDownload(resp, fmt.Sprintf("NotaFiscal-%s.pdf", id))
}

func toDownload(resp *domain.DocumentResponse, filename string) (*Download, error) {
	if resp.Base64Document == "" && resp.URL != "" {
		return &Download{RedirectURL: resp.URL}, nil
	}
	doc, err := DecodeBase64PDF(resp.Base64Document, filename)
	if err != nil {
		return nil, err
	}
	return &Download{Document: doc}, nil
}
