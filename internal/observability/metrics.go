package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the bridge.
type Metrics struct {
	ActiveSessions    prometheus.Gauge
	SessionEvents     *prometheus.CounterVec
	WSMessages        *prometheus.CounterVec
	UpstreamErrors    *prometheus.CounterVec
	AuthFailures      *prometheus.CounterVec
	TranscodeErrors   prometheus.Counter
	BridgeSetupMillis prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active voice bridge sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by leg and direction.",
		}, []string{"leg", "direction"}),
		UpstreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Upstream realtime errors by code.",
		}, []string{"code"}),
		AuthFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected requests by failure kind.",
		}, []string{"kind"}),
		TranscodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcode_errors_total",
			Help:      "Dropped audio frames that failed transcoding.",
		}),
		BridgeSetupMillis: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bridge_setup_ms",
			Help:      "Latency from stream start to upstream session configured, in milliseconds.",
			Buckets:   []float64{50, 100, 200, 300, 500, 700, 1000, 2000, 5000},
		}),
	}
}

func (m *Metrics) ObserveBridgeSetup(d time.Duration) {
	m.BridgeSetupMillis.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
