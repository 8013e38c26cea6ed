package domain

// ============================================================
// Health, métricas e status de serviços externos
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// ChatMetrics is returned by GET /v1/metrics/chat.
type ChatMetrics struct {
	TotalRequests       int64   `json:"totalRequests"`
	ErrorRate           float64 `json:"errorRate"`
	FallbackRate        float64 `json:"fallbackRate"`
	AvgTokensPerRequest float64 `json:"avgTokensPerRequest"`
	CacheHitRate        float64 `json:"cacheHitRate"`
	WSReconnects        int64   `json:"wsReconnects"`
	Period              string  `json:"period"`
}

// Service status levels reported by the status monitor.
const (
	ServiceOperational = "OPERATIONAL"
	ServiceWarning     = "WARNING"
	ServiceCritical    = "CRITICAL"
)

// ServiceIssue is the state of a popular third party service (WhatsApp, bancos...).
type ServiceIssue struct {
	Service     string `json:"service"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Time        string `json:"time"`
}

// StatusReport is the cached result of the status monitor.
// Timestamp is in unix milliseconds.
type StatusReport struct {
	Data      []ServiceIssue `json:"data"`
	Sources   []string       `json:"sources"`
	Timestamp int64          `json:"timestamp"`
	Online    bool           `json:"online"`
	Cached    bool           `json:"cached"`
}
