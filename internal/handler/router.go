package handler

import (
	"net/http"
	"time"

	chathandler "github.com/fibernet/central-cliente-bfa-go/internal/chat/handler"
	chatservice "github.com/fibernet/central-cliente-bfa-go/internal/chat/service"
	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/observability"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/resilience"
	"github.com/fibernet/central-cliente-bfa-go/internal/port"
	"github.com/fibernet/central-cliente-bfa-go/internal/service"
	"github.com/fibernet/central-cliente-bfa-go/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Dependencies is everything the router mounts.
type Dependencies struct {
	Sessions       *session.Manager
	Cookies        *session.CookieCodec
	SecureCookie   bool
	AllowedOrigins []string

	KV     port.KVStore
	Prober port.Prober

	ClientArea *service.ClientAreaService
	Invoices   *service.InvoiceService
	Documents  *service.DocumentService
	SegundaVia *service.SegundaViaService
	Accounts   *service.AccountService
	Status     *service.StatusService
	Chat       *chatservice.ChatService

	Relay         chathandler.RelayConfig
	RelayBulkhead *resilience.Bulkhead

	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.KV, deps.Prober))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))

	area := newClientArea(deps.ClientArea, logger)

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/chat", chatMetricsHandler(deps.Metrics))

		r.Group(func(r chi.Router) {
			r.Use(ProfileMiddleware(deps.Sessions, deps.Cookies, deps.SecureCookie, logger))

			// =============================================
			// 1. Sessão e Área do Cliente
			// =============================================
			r.Post("/auth/login", area.login)
			r.Post("/auth/logout", area.logout)
			r.Get("/client-area", area.get)
			r.Post("/client-area/refresh", area.forceRefresh)

			// =============================================
			// 2. Faturas, PIX e documentos
			// =============================================
			r.Get("/faturas", listInvoicesHandler(deps.Invoices, logger))
			r.Get("/faturas/{id}/estimativa", invoiceEstimateHandler(deps.Invoices, logger))
			r.Get("/faturas/{id}/pix", invoicePixHandler(deps.Invoices, logger))
			r.Get("/faturas/{id}/pdf", invoicePDFHandler(deps.Documents, logger))
			r.Get("/notas/{id}/pdf", notaPDFHandler(deps.Documents, logger))

			// =============================================
			// 3. Conexões e conta
			// =============================================
			r.Post("/logins/{id}/{action}", loginActionHandler(deps.Accounts, logger))
			r.Post("/senha/trocar", changePasswordHandler(deps.Accounts, logger))
			r.Post("/senha/recuperar", recoverPasswordHandler(deps.Accounts, logger))

			// =============================================
			// 4. Segunda via (pública)
			// =============================================
			r.Post("/segunda-via/buscar", segundaViaSearchHandler(deps.SegundaVia, logger))
			r.Get("/segunda-via/formatar", formatDocumentHandler)
			r.Get("/boletos/{id}/pix", boletoPixHandler(deps.SegundaVia, logger))
			r.Get("/boletos/{id}/pdf", boletoPDFHandler(deps.SegundaVia, deps.Documents, logger))

			// =============================================
			// 5. Status de serviços e chat
			// =============================================
			r.Get("/status", statusHandler(deps.Status, logger))
			r.Post("/chat", chathandler.ChatHandler(deps.Chat, logger))
			r.Get("/chat/alerts", chathandler.AlertsHandler(deps.Chat, logger))
			r.Get("/chat/ws", chathandler.RelayHandler(deps.Relay, deps.Sessions.Bus(), deps.RelayBulkhead, deps.Metrics, logger))
		})
	})

	return r
}

// GET /v1/status?force=true
func statusHandler(svc *service.StatusService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.Current(r.Context(), r.URL.Query().Get("force") == "true")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// GET /v1/metrics/chat
func chatMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.ChatSnapshot())
	}
}

// healthzHandler reports the local store and the outside connectivity.
// A failing dependency degrades the status but never fails the probe.
func healthzHandler(kv port.KVStore, prober port.Prober) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LastChecked: now},
		}

		if kv != nil {
			start := time.Now()
			status := "healthy"
			if err := kv.Ping(ctx); err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "storage", Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}
		if prober != nil {
			start := time.Now()
			status := "healthy"
			if !prober.Reachable(ctx) {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "internet", Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
