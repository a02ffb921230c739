// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 同期キュー・通知エンジン・ワーカーから利用する。
type MetricsCollector interface {
	RecordSyncSuccess(label string)
	RecordSyncFailure(label string)
	RecordSyncRetry(label string)
	RecordQueueEviction()
	SetQueueDepth(depth int)
	RecordNotificationCreated(notificationType string)
	RecordNotificationDeduped(notificationType string)
	RecordOutboundDelivery(success bool)
	RecordOutboundLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncSuccess     *prometheus.CounterVec
	syncFail        *prometheus.CounterVec
	syncRetry       *prometheus.CounterVec
	queueEvictions  prometheus.Counter
	queueDepth      prometheus.Gauge
	notifCreated    *prometheus.CounterVec
	notifDeduped    *prometheus.CounterVec
	outboundTotal   *prometheus.CounterVec
	outboundLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planboard_sync_success_total",
			Help: "同期タスク成功の合計数",
		}, []string{"label"}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planboard_sync_fail_total",
			Help: "同期タスク失敗（キュー投入）の合計数",
		}, []string{"label"}),
		syncRetry: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planboard_sync_retry_total",
			Help: "同期タスク再試行の合計数",
		}, []string{"label"}),
		queueEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planboard_sync_queue_evictions_total",
			Help: "上限超過によりキューから追い出された項目の合計数",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planboard_sync_queue_depth",
			Help: "同期キューの現在の項目数",
		}),
		notifCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planboard_notifications_created_total",
			Help: "作成されたアプリ内通知の合計数",
		}, []string{"type"}),
		notifDeduped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planboard_notifications_deduped_total",
			Help: "キー重複により破棄された通知の合計数",
		}, []string{"type"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planboard_outbound_delivery_total",
			Help: "メール/Webhookベストエフォート配信の試行数",
		}, []string{"result"}),
		outboundLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planboard_outbound_latency_seconds",
			Help:    "アウトバウンド配信のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFail,
		c.syncRetry,
		c.queueEvictions,
		c.queueDepth,
		c.notifCreated,
		c.notifDeduped,
		c.outboundTotal,
		c.outboundLatency,
	)

	return c
}

// RecordSyncSuccess は同期タスクの成功を記録する。
func (c *Collector) RecordSyncSuccess(label string) {
	c.syncSuccess.WithLabelValues(label).Inc()
}

// RecordSyncFailure は同期タスクの失敗（キュー投入）を記録する。
func (c *Collector) RecordSyncFailure(label string) {
	c.syncFail.WithLabelValues(label).Inc()
}

// RecordSyncRetry は同期タスクの再試行を記録する。
func (c *Collector) RecordSyncRetry(label string) {
	c.syncRetry.WithLabelValues(label).Inc()
}

// RecordQueueEviction は上限超過による追い出しを記録する。
func (c *Collector) RecordQueueEviction() {
	c.queueEvictions.Inc()
}

// SetQueueDepth はキューの現在の深さを記録する。
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// RecordNotificationCreated は通知作成を記録する。
func (c *Collector) RecordNotificationCreated(notificationType string) {
	c.notifCreated.WithLabelValues(notificationType).Inc()
}

// RecordNotificationDeduped は重複破棄を記録する。
func (c *Collector) RecordNotificationDeduped(notificationType string) {
	c.notifDeduped.WithLabelValues(notificationType).Inc()
}

// RecordOutboundDelivery はアウトバウンド配信の結果を記録する。
func (c *Collector) RecordOutboundDelivery(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.outboundTotal.WithLabelValues(result).Inc()
}

// RecordOutboundLatency はアウトバウンド配信のレイテンシを記録する。
func (c *Collector) RecordOutboundLatency(duration time.Duration) {
	c.outboundLatency.Observe(duration.Seconds())
}

// NopCollector は何も記録しないMetricsCollector実装。テスト用。
type NopCollector struct{}

func (NopCollector) RecordSyncSuccess(string)            {}
func (NopCollector) RecordSyncFailure(string)            {}
func (NopCollector) RecordSyncRetry(string)              {}
func (NopCollector) RecordQueueEviction()                {}
func (NopCollector) SetQueueDepth(int)                   {}
func (NopCollector) RecordNotificationCreated(string)    {}
func (NopCollector) RecordNotificationDeduped(string)    {}
func (NopCollector) RecordOutboundDelivery(bool)         {}
func (NopCollector) RecordOutboundLatency(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
