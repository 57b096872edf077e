package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the process-wide instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions prometheus.Gauge
	SessionEvents  *prometheus.CounterVec
	WSMessages     *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec
	TurnLatency    prometheus.Histogram
	TurnsStarted   prometheus.Counter
	TurnsDropped   prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of currently active voice sessions.",
		}),
		SessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by kind.",
		}, []string{"event"}),
		WSMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Websocket messages by direction and type.",
		}, []string{"direction", "type"}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Upstream provider failures by provider.",
		}, []string{"provider"}),
		TurnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_seconds",
			Help:      "Time from final transcript to audio_end.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		TurnsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_started_total",
			Help:      "Conversation turns started.",
		}),
		TurnsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_dropped_total",
			Help:      "Final transcripts dropped because a turn was in flight.",
		}),
	}
	m.registry.MustRegister(
		m.ActiveSessions,
		m.SessionEvents,
		m.WSMessages,
		m.ProviderErrors,
		m.TurnLatency,
		m.TurnsStarted,
		m.TurnsDropped,
	)
	return m
}

// Handler serves the metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
