package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes.
const (
	LoginSuccess      = "success"
	LoginRejected     = "rejected"
	LoginMissingKey   = "missing_key"
	LoginInternalFail = "error"
)

// Gateway call results.
const (
	GatewayOK        = "ok"
	GatewayFailed    = "failed"
	GatewayMalformed = "malformed"
	GatewayTimeout   = "timeout"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	Logins          *prometheus.CounterVec
	TokensIssued    prometheus.Counter
	KeysCreated     prometheus.Counter
	GatewayRequests *prometheus.CounterVec
	GatewayLatency  prometheus.Histogram
}

// New creates the metrics on a fresh registry, so that several instances
// (one per test) do not collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trainingpay_login_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		TokensIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "trainingpay_tokens_issued_total",
			Help: "Bearer tokens issued on login",
		}),
		KeysCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "trainingpay_keys_created_total",
			Help: "Per-identity keys generated and stored",
		}),
		GatewayRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trainingpay_gateway_requests_total",
			Help: "Outbound payment gateway calls by result",
		}, []string{"result"}),
		GatewayLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trainingpay_gateway_request_duration_seconds",
			Help:    "Latency of outbound payment gateway calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
	}
}

func (m *Metrics) ObserveLogin(outcome string) {
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementTokensIssued() {
	m.TokensIssued.Inc()
}

func (m *Metrics) IncrementKeysCreated() {
	m.KeysCreated.Inc()
}

func (m *Metrics) ObserveGatewayRequest(result string, started time.Time) {
	m.GatewayRequests.WithLabelValues(result).Inc()
	m.GatewayLatency.Observe(time.Since(started).Seconds())
}

// Handler serves this instance's registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
