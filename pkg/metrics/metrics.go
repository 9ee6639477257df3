package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event names counted by the relay and the agent.
const (
	EventReceived       = "received"
	EventRelayed        = "relayed"
	EventTokenMissing   = "token_missing"
	EventAuthFailed     = "auth_failed"
	EventSendFailed     = "send_failed"
	EventDispatched     = "dispatched"
	EventDispatchFailed = "dispatch_failed"
)

// Metrics wraps a private Prometheus registry so several instances can live in
// one process (tests, relay and agent in the same binary).
type Metrics struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	carrier  *prometheus.CounterVec
	duration prometheus.Histogram
}

// New returns a collector whose series are prefixed with namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Relay and dispatch events by outcome.",
		}, []string{"event"}),
		carrier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carrier_results_total",
			Help:      "Carrier-level SMS results observed on result channels.",
		}, []string{"code"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of one relay or dispatch invocation.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
		}),
	}
	m.registry.MustRegister(m.events, m.carrier, m.duration)
	return m
}

// Methods are nil-safe so components can run without a collector.

func (m *Metrics) IncReceived()       { m.inc(EventReceived) }
func (m *Metrics) IncRelayed()        { m.inc(EventRelayed) }
func (m *Metrics) IncTokenMissing()   { m.inc(EventTokenMissing) }
func (m *Metrics) IncAuthFailed()     { m.inc(EventAuthFailed) }
func (m *Metrics) IncSendFailed()     { m.inc(EventSendFailed) }
func (m *Metrics) IncDispatched()     { m.inc(EventDispatched) }
func (m *Metrics) IncDispatchFailed() { m.inc(EventDispatchFailed) }

// IncCarrierResult counts one carrier result code.
func (m *Metrics) IncCarrierResult(code string) {
	if m == nil {
		return
	}
	m.carrier.WithLabelValues(code).Inc()
}

// Timer starts a duration observation; call the returned func when done.
func (m *Metrics) Timer() func() {
	if m == nil {
		return func() {}
	}
	timer := prometheus.NewTimer(m.duration)
	return func() { timer.ObserveDuration() }
}

func (m *Metrics) inc(event string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event).Inc()
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
