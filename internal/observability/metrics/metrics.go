package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ProjectAnchor/internal/anchor"
	"ProjectAnchor/internal/bridge"
	"ProjectAnchor/internal/registry"
)

const namespace = "anchor"

// Metrics 汇总 HTTP 请求、注册与桥接回执的指标。
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	anchors  *prometheus.CounterVec
	receipts *prometheus.CounterVec
}

// New 创建指标集合，使用独立的 Registry 以便测试与多实例共存。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by handler, method and status code.",
		}, []string{"handler", "method", "code"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "HTTP requests that ended with a 5xx status.",
		}, []string{"handler", "method"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"handler", "method"}),
		anchors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Successful registrations by anchor type.",
		}, []string{"type"}),
		receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "receipts_total",
			Help:      "Bridge receipts that reached a final status.",
		}, []string{"type", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.errors, m.latency, m.anchors, m.receipts,
	)
	return m
}

// ObserveHTTPRequest 记录一次 HTTP 请求。
func (m *Metrics) ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	m.requests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	if status >= http.StatusInternalServerError {
		m.errors.WithLabelValues(handler, method).Inc()
	}
	m.latency.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// Anchored 实现 registry.Observer。
func (m *Metrics) Anchored(entry anchor.Entry) {
	m.anchors.WithLabelValues(entry.AnchorType.String()).Inc()
}

// ReceiptSettled 实现 bridge.Observer。
func (m *Metrics) ReceiptSettled(receipt *bridge.Receipt, status bridge.Status) {
	typ := "unknown"
	if receipt != nil && receipt.AnchorType.Valid() {
		typ = receipt.AnchorType.String()
	}
	m.receipts.WithLabelValues(typ, string(status)).Inc()
}

// Registry 返回底层 Registry。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 以 Prometheus 文本格式暴露指标。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var (
	_ registry.Observer = (*Metrics)(nil)
	_ bridge.Observer   = (*Metrics)(nil)
)
