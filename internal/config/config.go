package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port           int
	LogLevel       string
	AllowedOrigins []string

	// Portal backend (API do provedor)
	PortalAPIURL string
	PortalRoutes string // "current" ou "legacy"
	PortalWSURL  string // push server do chat; vazio desliga o relay

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL          time.Duration // última busca de segunda via
	DashboardCacheKey string
	StatusCacheTTL    time.Duration

	// Observability
	OTLPEndpoint string

	// Storage (estado local por perfil)
	StorageDriver string // memory | sqlite | redis
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Session cookie
	SessionSecret string
	SessionTTL    time.Duration // cookie e estado do perfil no storage
	SecureCookie  bool

	// Generative AI (OpenAI compatible)
	GenAIAPIKey  string
	GenAIBaseURL string
	GenAIModel   string

	// Chat websocket
	WSReconnectDelay    time.Duration
	WSReconnectMaxDelay time.Duration

	ConnectivityProbeURL string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:           getEnvInt("PORT", 8080),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		PortalAPIURL: getEnv("PORTAL_API_URL", "https://api.centralfiber.online/api"),
		PortalRoutes: getEnv("PORTAL_ROUTES", "current"),
		PortalWSURL:  getEnv("PORTAL_WS_URL", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 15*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 200*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL:          getEnvDuration("CACHE_TTL", 30*time.Minute),
		DashboardCacheKey: getEnv("DASHBOARD_CACHE_KEY", "fiber_dashboard_cache_v5_forced"),
		StatusCacheTTL:    getEnvDuration("STATUS_CACHE_TTL", 20*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		StorageDriver: getEnv("STORAGE_DRIVER", "memory"),
		SQLitePath:    getEnv("SQLITE_PATH", "central-cliente.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		SessionSecret: getEnv("SESSION_SECRET", "central-cliente-dev-secret-change-me"),
		SessionTTL:    getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		SecureCookie:  getEnvBool("SECURE_COOKIE", false),

		GenAIAPIKey:  getEnv("GENAI_API_KEY", ""),
		GenAIBaseURL: getEnv("GENAI_BASE_URL", ""),
		GenAIModel:   getEnv("GENAI_MODEL", "gpt-4o-mini"),

		WSReconnectDelay:    getEnvDuration("WS_RECONNECT_DELAY", 3*time.Second),
		WSReconnectMaxDelay: getEnvDuration("WS_RECONNECT_MAX_DELAY", time.Minute),

		ConnectivityProbeURL: getEnv("CONNECTIVITY_PROBE_URL", "https://www.google.com/favicon.ico"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
