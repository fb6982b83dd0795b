// Package metrics 定义处理链路的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 事件处理结果
const (
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
	OutcomeMalformed = "malformed"
	OutcomeDuplicate = "duplicate"
	OutcomeFiltered  = "filtered"
)

// Metrics 汇总引擎与传输层的指标。所有方法对 nil 接收者安全。
type Metrics struct {
	events           *prometheus.CounterVec
	processDuration  prometheus.Histogram
	contentDegraded  prometheus.Counter
	inconsistencies  prometheus.Counter
	published        *prometheus.CounterVec
	transportRetries *prometheus.CounterVec
}

// New 在 reg 上注册指标。reg 为 nil 时使用 prometheus.DefaultRegisterer。
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reckit_rt_events_total",
			Help: "Total number of events handled, by outcome",
		}, []string{"event_type", "outcome"}),
		processDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "reckit_rt_event_processing_duration_seconds",
			Help:    "Per-event processing duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}),
		contentDegraded: f.NewCounter(prometheus.CounterOpts{
			Name: "reckit_rt_content_degraded_total",
			Help: "Total number of content lookups replaced by an empty list",
		}),
		inconsistencies: f.NewCounter(prometheus.CounterOpts{
			Name: "reckit_rt_model_inconsistencies_total",
			Help: "Total number of co-occurrence pair updates skipped because of asymmetric counts",
		}),
		published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reckit_rt_lists_published_total",
			Help: "Total number of recommendation lists published, by subject type",
		}, []string{"subject_type"}),
		transportRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reckit_rt_transport_retries_total",
			Help: "Total number of transient failures retried by the transport",
		}, []string{"transport"}),
	}
}

// RegisterModelSize 注册共现模型物品数的 GaugeFunc。
func RegisterModelSize(reg prometheus.Registerer, size func() int) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "reckit_rt_model_items",
		Help: "Number of items with at least one co-occurrence",
	}, func() float64 { return float64(size()) })
}

func (m *Metrics) Event(eventType, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) ObserveProcessing(d time.Duration) {
	if m == nil {
		return
	}
	m.processDuration.Observe(d.Seconds())
}

func (m *Metrics) ContentDegraded() {
	if m == nil {
		return
	}
	m.contentDegraded.Inc()
}

func (m *Metrics) Inconsistency(pairs int) {
	if m == nil {
		return
	}
	m.inconsistencies.Add(float64(pairs))
}

func (m *Metrics) Published(subjectType string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(subjectType).Inc()
}

func (m *Metrics) TransportRetry(transport string) {
	if m == nil {
		return
	}
	m.transportRetries.WithLabelValues(transport).Inc()
}
