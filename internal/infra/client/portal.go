package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("client")

const portalService = "portal"

// PortalClient is the single point of HTTP access to the ISP backend.
// It never retries: a failed call is reported to the caller as is.
type PortalClient struct {
	httpClient *http.Client
	baseURL    string
	routes     Routes
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

var _ port.PortalAPI = (*PortalClient)(nil)

// NewPortalClient creates a new PortalClient.
func NewPortalClient(httpClient *http.Client, baseURL string, routes Routes, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *PortalClient {
	return &PortalClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		routes:     routes,
		cb:         cb,
		logger:     logger,
	}
}

// CountsAsFailure tells the circuit breaker which errors mean the backend is unhealthy:
// network failures, timeouts and 5xx answers. Auth and validation errors do not count.
func CountsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	var ext *domain.ErrExternalService
	var timeout *domain.ErrTimeout
	var api *domain.ErrAPI
	var comm *domain.ErrCommunication
	switch {
	case errors.As(err, &ext), errors.As(err, &timeout):
		return true
	case errors.As(err, &api):
		return api.Status >= http.StatusInternalServerError
	case errors.As(err, &comm):
		return comm.Status >= http.StatusInternalServerError
	}
	return false
}

// ============================================================
// Auth
// ============================================================

// Login posts the credentials and stores the returned token in the session.
func (c *PortalClient) Login(ctx context.Context, sess port.Session, email, password string) (*domain.LoginResponse, error) {
	ctx, span := tracer.Start(ctx, "PortalClient.Login")
	defer span.End()

	var resp domain.LoginResponse
	body := domain.LoginRequest{Email: email, Password: password}
	if err := c.request(ctx, sess, http.MethodPost, c.routes.Login, body, &resp); err != nil {
		return nil, err
	}

	if resp.Token != "" && sess != nil {
		if err := sess.SetToken(ctx, resp.Token); err != nil {
			return nil, fmt.Errorf("store session token: %w", err)
		}
	}
	return &resp, nil
}

// Logout drops the token locally. The backend keeps no server-side session.
func (c *PortalClient) Logout(ctx context.Context, sess port.Session) error {
	ctx, span := tracer.Start(ctx, "PortalClient.Logout")
	defer span.End()

	if sess == nil {
		return nil
	}
	return sess.Clear(ctx, "logout")
}

// ============================================================
// Dashboard
// ============================================================

// GetDashboard fetches the aggregate and normalizes it.
func (c *PortalClient) GetDashboard(ctx context.Context, sess port.Session) (*domain.Dashboard, error) {
	ctx, span := tracer.Start(ctx, "PortalClient.GetDashboard")
	defer span.End()

	var raw domain.RawDashboard
	if err := c.request(ctx, sess, http.MethodGet, c.routes.Dashboard, nil, &raw); err != nil {
		return nil, err
	}

	dash := NormalizeDashboard(&raw)
	span.SetAttributes(
		attribute.Int("dashboard.faturas", len(dash.Faturas)),
		attribute.Int("dashboard.logins", len(dash.Logins)),
	)
	return dash, nil
}

// ============================================================
// Faturas, boletos e notas
// ============================================================

// pixResponse covers every PIX shape the backend has shipped so far.
type pixResponse struct {
	Pix           json.RawMessage `json:"pix"`
	PixCopiaECola string          `json:"pixCopiaECola"`
	PixImage      string          `json:"pixImage"`
	PixImagem     string          `json:"pixImagem"`
	PixCode       string          `json:"pix_code"`
	PixQRCode     string          `json:"pix_qrcode"`
	QRCode        string          `json:"qrcode"`
	Imagem        string          `json:"imagem"`
}

// payload picks the first shape that carries a code.
// No match yields empty strings so callers can show "code unavailable".
func (r *pixResponse) payload() *domain.PixPayload {
	nestedCode, nestedImage := r.nested()

	image := firstNonEmpty(r.PixImage, r.PixImagem, nestedImage)
	switch {
	case nestedCode != "":
		return &domain.PixPayload{QRCode: firstNonEmpty(r.PixCopiaECola, nestedCode), Imagem: image}
	case r.PixCode != "":
		return &domain.PixPayload{QRCode: r.PixCode, Imagem: r.PixQRCode}
	case r.QRCode != "":
		return &domain.PixPayload{QRCode: r.QRCode, Imagem: firstNonEmpty(r.Imagem, image)}
	case r.PixCopiaECola != "":
		return &domain.PixPayload{QRCode: r.PixCopiaECola, Imagem: image}
	}
	return &domain.PixPayload{}
}

// nested reads pix.qrCode, which is either the code itself or
// an object {qrcode, imagemQrcode}.
func (r *pixResponse) nested() (code, image string) {
	if len(r.Pix) == 0 || r.Pix[0] != '{' {
		return "", ""
	}
	var pix struct {
		QRCode json.RawMessage `json:"qrCode"`
	}
	if err := json.Unmarshal(r.Pix, &pix); err != nil || len(pix.QRCode) == 0 {
		return "", ""
	}
	if pix.QRCode[0] == '{' {
		var obj struct {
			QRCode string `json:"qrcode"`
			Imagem string `json:"imagemQrcode"`
		}
		_ = json.Unmarshal(pix.QRCode, &obj)
		return obj.QRCode, obj.Imagem
	}
	_ = json.Unmarshal(pix.QRCode, &code)
	return code, ""
}

// GetPixCode fetches the PIX copy-and-paste code of an invoice or slip.
func (c *PortalClient) GetPixCode(ctx context.Context, sess port.Session, id string) (*domain.PixPayload, error) {
	ctx, span := tracer.Start(ctx, "PortalClient.GetPixCode")
	defer span.End()
	span.SetAttributes(attribute.String("fatura.id", id))

	var raw pixResponse
	if err := c.request(ctx, sess, http.MethodGet, c.routes.Pix(id), nil, &raw); err != nil {
		return nil, err
	}
	return raw.payload(), nil
}

// GetBoletoPix fetches the PIX code of a slip found by the public lookup.
// Unlike GetPixCode the path does not depend on the route preset.
func (c *PortalClient) GetBoletoPix(ctx context.Context, sess port.Session, id string) (*domain.PixPayload, error) {
	ctx, span := tracer.Start(ctx, "PortalClient.GetBoletoPix")
	defer span.End()
	span.SetAttributes(attribute.String("boleto.id", id))

	var raw pixResponse
	if err := c.request(ctx, sess, http.MethodGet, c.routes.BoletoPix(id), nil, &raw); err != nil {
		return nil, err
	}
	return raw.payload(), nil
}

// GetSegundaVia fetches the printable slip as base64.
func (c *PortalClient) GetSegundaVia(ctx context.Context, sess port.Session, id string) (*domain.DocumentResponse, error) {
	ctx, span := tracer.Start(ctx, "PortalClient.GetSegundaVia")
	defer span.End()
	span.SetAttributes(attribute.String("boleto.id", id))

	var doc domain.DocumentResponse
	if err := c.request(ctx, sess, http.MethodGet, c.routes.SegundaVia(id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetNotaFiscal fetches the printable service invoice as base64.
func (c *PortalClient) GetNotaFiscal(ctx context.Context, sess port.Session, id string) (*domain.DocumentResponse, error) {
	ctx, span := tracer.Start(ctx, "PortalClient.GetNotaFiscal")
	defer span.End()
	span.SetAttributes(attribute.String("nota.id", id))

	var doc domain.DocumentResponse
	if err := c.request(ctx, sess, http.MethodGet, c.routes.NotaFiscal(id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SearchBoletos is the public lookup by CPF/CNPJ. It never sends a token.
func (c *PortalClient) SearchBoletos(ctx context.Context, cpfCnpj string) (*domain.BoletoSearch, error) {
	ctx, span := tracer.Start(ctx, "PortalClient.SearchBoletos")
	defer span.End()

	var result domain.BoletoSearch
	body := map[string]string{"cpfCnpj": cpfCnpj}
	if err := c.request(ctx, nil, http.MethodPost, c.routes.SearchBoletos, body, &result); err != nil {
		return nil, err
	}
	if result.Boletos == nil {
		result.Boletos = []domain.Boleto{}
	}
	return &result, nil
}

// ============================================================
// Conexões e conta
// ============================================================

// PerformLoginAction runs a connection action (limpar-mac, desconectar, diagnostico).
func (c *PortalClient) PerformLoginAction(ctx context.Context, sess port.Session, loginID, action string) (*domain.LoginActionResult, error) {
	ctx, span := tracer.Start(ctx, "PortalClient.PerformLoginAction")
	defer span.End()
	span.SetAttributes(attribute.String("login.id", loginID), attribute.String("login.action", action))

	var result domain.LoginActionResult
	if err := c.request(ctx, sess, http.MethodPost, c.routes.LoginAction(loginID, action), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *PortalClient) ChangePassword(ctx context.Context, sess port.Session, newPassword string) (*domain.MessageResponse, error) {
	ctx, span := tracer.Start(ctx, "PortalClient.ChangePassword")
	defer span.End()

	var resp domain.MessageResponse
	body := map[string]string{"newPassword": newPassword}
	if err := c.request(ctx, sess, http.MethodPost, c.routes.ChangePassword, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *PortalClient) RecoverPassword(ctx context.Context, sess port.Session, email string) (*domain.MessageResponse, error) {
	ctx, span := tracer.Start(ctx, "PortalClient.RecoverPassword")
	defer span.End()

	var resp domain.MessageResponse
	body := map[string]string{"email": email}
	if err := c.request(ctx, sess, http.MethodPost, c.routes.RecoverPass, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ============================================================
// Transporte
// ============================================================

// apiErrorBody is the error envelope; either field may be missing or non-string.
type apiErrorBody struct {
	Error   domain.FlexString `json:"error"`
	Message domain.FlexString `json:"message"`
}

func (c *PortalClient) url(endpoint string) string {
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// request runs one call through the circuit breaker.
func (c *PortalClient) request(ctx context.Context, sess port.Session, method, endpoint string, body, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.do(ctx, sess, method, endpoint, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &domain.ErrCircuitOpen{Service: portalService}
	}
	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
	}
	return err
}

func (c *PortalClient) do(ctx context.Context, sess port.Session, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if sess != nil {
		token, err := sess.Token(ctx)
		if err != nil {
			return fmt.Errorf("read session token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(endpoint, err)
	}

	c.logger.Debug("portal call",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	// 401/403 encerram a sessão mesmo quando o corpo não é JSON.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if sess != nil {
			reason := fmt.Sprintf("http %d", resp.StatusCode)
			if err := sess.Clear(context.WithoutCancel(ctx), reason); err != nil {
				c.logger.Warn("failed to clear session", zap.String("profile", sess.ProfileID()), zap.Error(err))
			}
		}
		return &domain.ErrUnauthorized{Status: resp.StatusCode, Message: errorMessage(data, resp.StatusCode)}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	if !json.Valid(data) {
		c.logger.Warn("portal answered with invalid JSON",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
		)
		return &domain.ErrCommunication{Status: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.ErrAPI{Status: resp.StatusCode, Message: errorMessage(data, resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.ErrCommunication{Status: resp.StatusCode}
	}
	return nil
}

// errorMessage follows the backend precedence: error, message, "Erro N".
func errorMessage(data []byte, status int) string {
	var body apiErrorBody
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error.String()
		}
		if body.Message != "" {
			return body.Message.String()
		}
	}
	return fmt.Sprintf("Erro %d", status)
}

func transportError(endpoint string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.ErrTimeout{Operation: portalService + " " + endpoint}
	}
	return &domain.ErrExternalService{Service: portalService, Err: err}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
