// Package metrics 订单机器人的 Prometheus 指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kennteohstorehub/BeepChatBot/internal/business/platform"
)

const namespace = "orderbot"

// breakerStateValue 熔断状态数值：0 closed，1 half-open，2 open
var breakerStateValue = map[string]float64{
	"closed":    0,
	"half-open": 1,
	"open":      2,
}

// Metrics 指标集合，使用独立 registry
type Metrics struct {
	registry *prometheus.Registry

	lookups        *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	cacheHits      prometheus.Counter
	escalations    *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
	breakerChanges *prometheus.CounterVec
	jobs           *prometheus.CounterVec
}

// New 创建并注册指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Order status lookups by platform and outcome.",
		}, []string{"platform", "outcome"}),
		lookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Order status resolution latency.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		}, []string{"outcome"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Lookups served from the status cache.",
		}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Escalations by kind (not_found, exhausted).",
		}, []string{"kind"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state per platform: 0 closed, 1 half-open, 2 open.",
		}, []string{"platform"}),
		breakerChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		}, []string{"platform", "from", "to"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Processed queue jobs by action type and result.",
		}, []string{"action_type", "result"}),
	}
	m.registry.MustRegister(
		m.lookups, m.lookupDuration, m.cacheHits, m.escalations,
		m.breakerState, m.breakerChanges, m.jobs,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 底层 registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveLookup 记录一次查询
func (m *Metrics) ObserveLookup(p, outcome string, elapsed time.Duration, cacheHit bool) {
	m.lookups.WithLabelValues(p, outcome).Inc()
	m.lookupDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if cacheHit {
		m.cacheHits.Inc()
	}
}

// ObserveEscalation 记录一次升级
func (m *Metrics) ObserveEscalation(kind string) {
	m.escalations.WithLabelValues(kind).Inc()
}

// ObserveJob 记录任务处理结果
func (m *Metrics) ObserveJob(actionType, result string) {
	m.jobs.WithLabelValues(actionType, result).Inc()
}

// InitBreaker 初始化平台熔断状态为 closed
func (m *Metrics) InitBreaker(p platform.Platform) {
	m.breakerState.WithLabelValues(string(p)).Set(0)
}

// BreakerListener 熔断状态变化回调
func (m *Metrics) BreakerListener() platform.TransitionListener {
	return func(p platform.Platform, from, to string) {
		m.breakerState.WithLabelValues(string(p)).Set(breakerStateValue[to])
		m.breakerChanges.WithLabelValues(string(p), from, to).Inc()
	}
}
