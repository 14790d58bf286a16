package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the gateway emits. Components receive it
// at construction; nothing registers against a global registry.
type Metrics struct {
	registry *prometheus.Registry

	authAttempts  *prometheus.CounterVec
	authDuration  *prometheus.HistogramVec
	validations   *prometheus.CounterVec
	cacheRequests *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	forwarded     *prometheus.CounterVec
	vaultUp       prometheus.Gauge
}

// New creates a Metrics bundle backed by its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		authAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authentication_attempts_total",
			Help: "Authentication attempts by client, outcome, and degraded flag.",
		}, []string{"client_id", "success", "degraded"}),
		authDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authentication_duration_seconds",
			Help:    "Authentication latency by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"success"}),
		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "token_validation_total",
			Help: "Ingress token validations by result.",
		}, []string{"valid"}),
		cacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "token_cache_requests_total",
			Help: "Token cache lookups by result (hit or miss).",
		}, []string{"result"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rotation_transitions_total",
			Help: "Rotation state transitions by source and target state.",
		}, []string{"from", "to"}),
		forwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forwarded_requests_total",
			Help: "Requests forwarded downstream by status class.",
		}, []string{"status"}),
		vaultUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vault_availability",
			Help: "Whether the credential vault answers health probes (1 or 0).",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AuthAttempt records one authentication attempt.
func (m *Metrics) AuthAttempt(clientID string, success, degraded bool, elapsed time.Duration) {
	m.authAttempts.WithLabelValues(clientID, boolLabel(success), boolLabel(degraded)).Inc()
	m.authDuration.WithLabelValues(boolLabel(success)).Observe(elapsed.Seconds())
}

// TokenValidation records one ingress token validation.
func (m *Metrics) TokenValidation(valid bool) {
	m.validations.WithLabelValues(boolLabel(valid)).Inc()
}

// CacheHit records a token cache lookup that found a live token.
func (m *Metrics) CacheHit() {
	m.cacheRequests.WithLabelValues("hit").Inc()
}

// CacheMiss records a token cache lookup that found nothing.
func (m *Metrics) CacheMiss() {
	m.cacheRequests.WithLabelValues("miss").Inc()
}

// RotationTransition records one rotation state transition.
func (m *Metrics) RotationTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

// Forwarded records a downstream response by status class ("2xx", "4xx", ...).
func (m *Metrics) Forwarded(statusCode int) {
	m.forwarded.WithLabelValues(statusClass(statusCode)).Inc()
}

// VaultAvailable sets the vault availability gauge.
func (m *Metrics) VaultAvailable(up bool) {
	if up {
		m.vaultUp.Set(1)
		return
	}
	m.vaultUp.Set(0)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
