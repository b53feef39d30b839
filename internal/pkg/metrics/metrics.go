package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 服务的 Prometheus 指标
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 业务
	QRCodesCreated     prometheus.Counter
	QRCodesDeleted     *prometheus.CounterVec
	SubscriptionEvents *prometheus.CounterVec
	GatewayErrors      *prometheus.CounterVec
	OrphansRemoved     *prometheus.CounterVec
}

// New 创建并注册所有指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrcode_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qrcode_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		QRCodesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrcode_created_total",
			Help: "Total number of generated QR codes",
		}),
		QRCodesDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrcode_deleted_total",
				Help: "Total number of deleted QR codes by reason",
			},
			[]string{"reason"}, // owner, admin, quota, account
		),
		SubscriptionEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrcode_subscription_events_total",
				Help: "Subscription lifecycle transitions",
			},
			[]string{"event"}, // promo, checkout_started, checkout_completed, cancelled, expired
		),
		GatewayErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrcode_gateway_errors_total",
				Help: "Payment gateway call failures",
			},
			[]string{"gateway", "operation"},
		),
		OrphansRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrcode_orphans_removed_total",
				Help: "Records and files removed by the consistency sweep",
			},
			[]string{"kind"}, // record, file
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.QRCodesCreated,
		m.QRCodesDeleted,
		m.SubscriptionEvents,
		m.GatewayErrors,
		m.OrphansRemoved,
	)

	return m
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 用于测试读取指标
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// 以下方法允许 nil 接收者

func (m *Metrics) IncQRCodesCreated() {
	if m == nil {
		return
	}
	m.QRCodesCreated.Inc()
}

func (m *Metrics) AddQRCodesDeleted(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.QRCodesDeleted.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) IncSubscriptionEvent(event string) {
	if m == nil {
		return
	}
	m.SubscriptionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) IncGatewayError(gateway, operation string) {
	if m == nil {
		return
	}
	m.GatewayErrors.WithLabelValues(gateway, operation).Inc()
}

func (m *Metrics) AddOrphansRemoved(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OrphansRemoved.WithLabelValues(kind).Add(float64(n))
}
