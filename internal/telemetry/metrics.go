package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
	"github.com/Crypto-Goatz/jaxrun/internal/webhook"
)

const namespace = "jaxrun"

// Metrics — Prometheus метрики движка.
//
// Реализует orchestrator.Observer; ObserveDelivery подключается
// к webhook.Config.OnDelivery.
type Metrics struct {
	executionsStarted *prometheus.CounterVec
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	nodesTotal        *prometheus.CounterVec
	nodeDuration      *prometheus.HistogramVec
	webhookTotal      *prometheus.CounterVec
	webhookDuration   prometheus.Histogram
	httpRequests      *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg.
// reg == nil означает prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		executionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_started_total",
			Help:      "Workflow executions started, by flow.",
		}, []string{"flow_id"}),
		executionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Workflow executions finished, by status.",
		}, []string{"status"}),
		executionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Workflow execution duration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"status"}),
		nodesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_evaluations_total",
			Help:      "Node evaluations, by node kind and status.",
		}, []string{"kind", "status"}),
		nodeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Node evaluation duration, by node kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		webhookTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Outgoing webhook deliveries, by response code.",
		}, []string{"code"}),
		webhookDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_delivery_duration_seconds",
			Help:      "Outgoing webhook delivery duration.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled, by service and response code.",
		}, []string{"service", "code"}),
	}
}

// RunStarted учитывает начало выполнения.
func (m *Metrics) RunStarted(flowID string) {
	if flowID == "" {
		flowID = "adhoc"
	}
	m.executionsStarted.WithLabelValues(flowID).Inc()
}

// NodeFinished учитывает вычисление узла.
func (m *Metrics) NodeFinished(kind domain.NodeKind, status domain.NodeStatus, d time.Duration) {
	k := string(kind)
	if k == "" {
		k = "unknown"
	}
	m.nodesTotal.WithLabelValues(k, string(status)).Inc()
	m.nodeDuration.WithLabelValues(k).Observe(d.Seconds())
}

// RunFinished учитывает завершение выполнения.
func (m *Metrics) RunFinished(status domain.RunStatus, d time.Duration) {
	m.executionsTotal.WithLabelValues(string(status)).Inc()
	m.executionDuration.WithLabelValues(string(status)).Observe(d.Seconds())
}

// ObserveDelivery учитывает попытку доставки webhook.
// Транспортная ошибка учитывается с кодом "error".
func (m *Metrics) ObserveDelivery(r *webhook.Receipt, err error) {
	code := "error"
	if r != nil && r.StatusCode != 0 {
		code = strconv.Itoa(r.StatusCode)
	}
	m.webhookTotal.WithLabelValues(code).Inc()
	if r != nil && r.Duration > 0 {
		m.webhookDuration.Observe(r.Duration.Seconds())
	}
}

// ObserveRequest учитывает обработанный HTTP запрос.
func (m *Metrics) ObserveRequest(service string, code int) {
	m.httpRequests.WithLabelValues(service, strconv.Itoa(code)).Inc()
}
