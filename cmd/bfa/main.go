package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chathandler "github.com/fibernet/central-cliente-bfa-go/internal/chat/handler"
	chatservice "github.com/fibernet/central-cliente-bfa-go/internal/chat/service"
	"github.com/fibernet/central-cliente-bfa-go/internal/config"
	"github.com/fibernet/central-cliente-bfa-go/internal/handler"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/client"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/genai"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/observability"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/resilience"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/storage"
	"github.com/fibernet/central-cliente-bfa-go/internal/port"
	"github.com/fibernet/central-cliente-bfa-go/internal/service"
	"github.com/fibernet/central-cliente-bfa-go/internal/session"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("portal_api_url", cfg.PortalAPIURL),
		zap.String("portal_routes", cfg.PortalRoutes),
		zap.Bool("chat_relay", cfg.PortalWSURL != ""),
		zap.String("storage_driver", cfg.StorageDriver),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("status_cache_ttl", cfg.StatusCacheTTL),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Bool("genai_enabled", cfg.GenAIAPIKey != ""),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "central-cliente-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Storage ---
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	kv, closeKV, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer closeKV()

	// --- Sessions ---
	bus := session.NewBus()
	bus.Subscribe(func(ev session.AuthEvent) {
		kind := "logout"
		if ev.Authenticated {
			kind = "login"
		}
		metrics.IncrAuthEvent(kind)
		logger.Debug("auth event",
			zap.String("profile", ev.ProfileID),
			zap.Bool("authenticated", ev.Authenticated),
			zap.String("reason", ev.Reason),
		)
	})
	sessions := session.NewManager(kv, bus, session.WithTTL(cfg.SessionTTL))
	if p, ok := kv.(purger); ok {
		go purgeExpired(ctx, p, purgeInterval, logger)
	}
	cookies := session.NewCookieCodec(cfg.SessionSecret, cfg.SessionTTL)

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	portalCB := resilience.NewCircuitBreaker("portal-api", func(err error) bool {
		return !client.CountsAsFailure(err)
	})
	portal := client.NewPortalClient(httpClient, cfg.PortalAPIURL, client.RoutesFor(cfg.PortalRoutes), portalCB, logger)

	genaiCB := resilience.NewCircuitBreaker("genai", nil)
	ai := genai.NewClient(httpClient, cfg.GenAIAPIKey, cfg.GenAIBaseURL, cfg.GenAIModel, genaiCB, resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	})
	if !ai.Enabled() {
		logger.Warn("genai: GENAI_API_KEY not set, chat answers and status monitor use fallbacks")
	}

	prober := client.NewHTTPProber(&http.Client{Timeout: 5 * time.Second}, cfg.ConnectivityProbeURL)

	// --- Services ---
	clientArea := service.NewClientAreaService(portal, cfg.DashboardCacheKey, bus, metrics, logger)
	invoicePix := service.NewPixService(portal, metrics, logger)
	boletoPix := service.NewPixService(port.PixFetcherFunc(portal.GetBoletoPix), metrics, logger)
	status := service.NewStatusService(kv, ai, prober, cfg.StatusCacheTTL, metrics, logger)

	chat := chatservice.NewChatService(
		ai,
		clientArea,
		status,
		[]chatservice.ChatStrategy{
			chatservice.NewBillingStrategy(),
			chatservice.NewSupportStrategy(),
		},
		bus,
		metrics,
		logger,
	)

	// --- Router ---
	router := handler.NewRouter(handler.Dependencies{
		Sessions:       sessions,
		Cookies:        cookies,
		SecureCookie:   cfg.SecureCookie,
		AllowedOrigins: cfg.AllowedOrigins,
		KV:             kv,
		Prober:         prober,
		ClientArea:     clientArea,
		Invoices:       service.NewInvoiceService(clientArea, invoicePix, logger),
		Documents:      service.NewDocumentService(portal),
		SegundaVia:     service.NewSegundaViaService(portal, boletoPix, cfg.CacheTTL, metrics, logger),
		Accounts:       service.NewAccountService(portal, logger),
		Status:         status,
		Chat:           chat,
		Relay: chathandler.RelayConfig{
			WSURL: cfg.PortalWSURL,
			Backoff: resilience.Backoff{
				Initial: cfg.WSReconnectDelay,
				Max:     cfg.WSReconnectMaxDelay,
			},
			AllowedOrigins: cfg.AllowedOrigins,
		},
		RelayBulkhead: resilience.NewBulkhead(cfg.MaxConcurrency),
		Metrics:       metrics,
		Logger:        logger,
	})

	// --- Server ---
	// WriteTimeout fica zerado: o relay de websocket é uma conexão longa.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// openStorage picks the per-profile KV backend.
func openStorage(ctx context.Context, cfg *config.Config) (port.KVStore, func(), error) {
	switch cfg.StorageDriver {
	case "", "memory":
		return storage.NewMemory(), func() {}, nil
	case "sqlite":
		db, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	case "redis":
		rdb, err := storage.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return rdb, func() { rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

const purgeInterval = 10 * time.Minute

// purger is implemented by backends that keep expired keys until swept
// (memory, sqlite). Redis expires keys by itself.
type purger interface {
	Purge(ctx context.Context) (int64, error)
}

func purgeExpired(ctx context.Context, p purger, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Purge(ctx)
			if err != nil {
				logger.Warn("storage purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("expired profile state purged", zap.Int64("keys", n))
			}
		}
	}
}
