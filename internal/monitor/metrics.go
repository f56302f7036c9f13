package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the agent. Each instance owns its
// registry so tests can build as many as they need. All recording methods
// accept a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	OrdersTotal     *prometheus.CounterVec
	OrderRejections *prometheus.CounterVec
	OrderLatency    *prometheus.HistogramVec

	ExchangeFailures *prometheus.CounterVec
	LastPrice        *prometheus.GaugeVec

	StoreOps     *prometheus.CounterVec
	StoreLatency *prometheus.HistogramVec

	Signals    *prometheus.CounterVec
	LoopCycles *prometheus.CounterVec
	LoopFaults prometheus.Counter

	Running prometheus.Gauge
	Killed  prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance with every collector registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trading_agent"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		OrdersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "total",
			Help:      "Order requests by mode and outcome",
		}, []string{"mode", "outcome"}),
		OrderRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "rejections_total",
			Help:      "Rejected order requests by reason",
		}, []string{"reason"}),
		OrderLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "duration_seconds",
			Help:      "Order request handling time",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),

		ExchangeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "failures_total",
			Help:      "Exchange calls that failed or returned no data",
		}, []string{"exchange", "op"}),
		LastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "last_price",
			Help:      "Last observed price per symbol",
		}, []string{"symbol"}),

		StoreOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Persistence operations by result",
		}, []string{"op", "result"}),
		StoreLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "duration_seconds",
			Help:      "Persistence call duration",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op"}),

		Signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "signals_total",
			Help:      "Strategy evaluations by signal",
		}, []string{"signal"}),
		LoopCycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "cycles_total",
			Help:      "Control loop ticks by outcome",
		}, []string{"outcome"}),
		LoopFaults: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "faults_total",
			Help:      "Control loop cycles that failed",
		}),

		Running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "running",
			Help:      "1 when the strategy loop is running",
		}),
		Killed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "killed",
			Help:      "1 once trading has been killed",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveOrder(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.OrdersTotal.WithLabelValues(mode, outcome).Inc()
	m.OrderLatency.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.OrderRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveExchangeFailure(exchange, op string) {
	if m == nil {
		return
	}
	m.ExchangeFailures.WithLabelValues(exchange, op).Inc()
}

func (m *Metrics) SetLastPrice(symbol string, price float64) {
	if m == nil {
		return
	}
	m.LastPrice.WithLabelValues(symbol).Set(price)
}

// ObserveStore records one persistence call; err == nil counts as ok.
func (m *Metrics) ObserveStore(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StoreOps.WithLabelValues(op, result).Inc()
	m.StoreLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) ObserveSignal(signal string) {
	if m == nil {
		return
	}
	m.Signals.WithLabelValues(signal).Inc()
}

// ObserveCycle counts one loop tick: ran, skipped_killed, skipped_paused or fault.
func (m *Metrics) ObserveCycle(outcome string) {
	if m == nil {
		return
	}
	m.LoopCycles.WithLabelValues(outcome).Inc()
	if outcome == "fault" {
		m.LoopFaults.Inc()
	}
}

func (m *Metrics) SetControl(running, killed bool) {
	if m == nil {
		return
	}
	m.Running.Set(boolGauge(running))
	m.Killed.Set(boolGauge(killed))
}

func (m *Metrics) ObserveHTTP(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, statusClass(status)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(d.Seconds())
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
