package observability

import (
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	chatRequests    *prometheus.CounterVec
	wsReconnects    prometheus.Counter
	wsRelays        prometheus.Gauge
	authEvents      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fiber_bfa_request_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiber_bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiber_bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiber_bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiber_bfa_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		chatRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiber_bfa_chat_requests_total",
				Help: "Chat completions by outcome.",
			},
			[]string{"status"},
		),
		wsReconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fiber_bfa_ws_reconnects_total",
				Help: "Reconnect attempts of upstream chat websockets.",
			},
		),
		wsRelays: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fiber_bfa_ws_relays_active",
				Help: "Browser chat sockets currently relayed.",
			},
		),
		authEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fiber_bfa_auth_events_total",
				Help: "Session changes by kind.",
			},
			[]string{"kind"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrChat counts a chat completion: "success", "error" or "fallback".
func (m *Metrics) IncrChat(status string) {
	m.chatRequests.WithLabelValues(status).Inc()
}

// IncrWSReconnect counts one reconnect attempt.
func (m *Metrics) IncrWSReconnect() {
	m.wsReconnects.Inc()
}

// RelayOpened and RelayClosed track live browser sockets.
func (m *Metrics) RelayOpened() { m.wsRelays.Inc() }
func (m *Metrics) RelayClosed() { m.wsRelays.Dec() }

// IncrAuthEvent counts login/logout transitions.
func (m *Metrics) IncrAuthEvent(kind string) {
	m.authEvents.WithLabelValues(kind).Inc()
}

// ChatSnapshot summarizes chat metrics for GET /v1/metrics/chat.
func (m *Metrics) ChatSnapshot() *domain.ChatMetrics {
	success := getCounterValue(m.chatRequests, "success")
	failed := getCounterValue(m.chatRequests, "error")
	fallback := getCounterValue(m.chatRequests, "fallback")
	total := success + failed + fallback

	promptTokens := getCounterValue(m.tokensUsed, "prompt")
	completionTokens := getCounterValue(m.tokensUsed, "completion")
	hits := getCounterValue(m.cacheHits, "dashboard")
	misses := getCounterValue(m.cacheMisses, "dashboard")

	snap := &domain.ChatMetrics{
		TotalRequests: int64(total),
		WSReconnects:  int64(readCounter(m.wsReconnects)),
		Period:        "all_time",
	}
	if total > 0 {
		snap.ErrorRate = failed / total
		snap.FallbackRate = fallback / total
		snap.AvgTokensPerRequest = (promptTokens + completionTokens) / total
	}
	if hits+misses > 0 {
		snap.CacheHitRate = hits / (hits + misses)
	}
	return snap
}

// getCounterValue extracts the current value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return readCounter(cv.WithLabelValues(label))
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
