package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// 采集周期指标
	cycleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadwatch_cycle_total",
			Help: "Total number of collection cycles by status",
		},
		[]string{"status"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadwatch_cycle_duration_seconds",
			Help:    "Collection cycle duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	watchedTraders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadwatch_watched_traders",
			Help: "Number of watched lead traders in the last cycle",
		},
	)

	lastCycleTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadwatch_last_cycle_bucket_timestamp_ms",
			Help: "Bucket timestamp of the last successful cycle",
		},
	)

	// 异动报警指标
	alertTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadwatch_alert_total",
			Help: "Total number of change alerts by horizon and kind",
		},
		[]string{"horizon", "kind"},
	)

	// 上游 API 指标
	apiCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadwatch_upstream_call_total",
			Help: "Total number of upstream API calls",
		},
		[]string{"endpoint", "status"},
	)

	apiCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadwatch_upstream_call_duration_seconds",
			Help:    "Upstream API call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"endpoint"},
	)

	// 持久化指标
	persistChunkTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadwatch_persist_chunk_total",
			Help: "Total number of persisted batch chunks by status",
		},
		[]string{"status"},
	)

	persistStatementTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadwatch_persist_statement_total",
			Help: "Total number of statements committed",
		},
	)

	// 通知指标
	notifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadwatch_notify_total",
			Help: "Total number of notifications by notifier and status",
		},
		[]string{"notifier", "status"},
	)

	// 分布式锁指标
	lockAcquireTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadwatch_lock_acquire_total",
			Help: "Total number of lock acquire attempts",
		},
		[]string{"key", "status"},
	)

	lockHoldDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadwatch_lock_hold_duration_seconds",
			Help:    "Lock hold duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 240},
		},
		[]string{"key"},
	)

	// 系统指标
	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadwatch_goroutine_count",
			Help: "Number of goroutines",
		},
	)

	memoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadwatch_memory_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)

	processCPUPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadwatch_process_cpu_percent",
			Help: "Process CPU usage percent since the previous sample",
		},
	)

	processRSSBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadwatch_process_rss_bytes",
			Help: "Process resident set size in bytes",
		},
	)

	gcPauseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadwatch_gc_pause_duration_seconds",
			Help:    "Most recent GC pause duration in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		},
	)
)

// PrometheusMetrics Prometheus 指标收集器
type PrometheusMetrics struct{}

// NewPrometheusMetrics 创建 Prometheus 指标收集器
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{}
}

// 采集周期相关指标记录

// RecordCycle 记录一次采集周期
func (pm *PrometheusMetrics) RecordCycle(status string, duration time.Duration) {
	cycleTotal.WithLabelValues(status).Inc()
	cycleDuration.Observe(duration.Seconds())
}

// SetWatchedTraders 设置关注人数
func (pm *PrometheusMetrics) SetWatchedTraders(count int) {
	watchedTraders.Set(float64(count))
}

// SetLastCycleBucket 设置最近一次成功采集的桶时间
func (pm *PrometheusMetrics) SetLastCycleBucket(bucketMs int64) {
	lastCycleTimestamp.Set(float64(bucketMs))
}

// RecordAlert 记录一条异动报警
func (pm *PrometheusMetrics) RecordAlert(horizon, kind string) {
	alertTotal.WithLabelValues(horizon, kind).Inc()
}

// RecordAPICall 记录上游 API 调用
func (pm *PrometheusMetrics) RecordAPICall(endpoint, status string, duration time.Duration) {
	apiCallTotal.WithLabelValues(endpoint, status).Inc()
	apiCallDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordPersistChunk 记录一个写入批次
func (pm *PrometheusMetrics) RecordPersistChunk(success bool, statements int) {
	if !success {
		persistChunkTotal.WithLabelValues("failure").Inc()
		return
	}
	persistChunkTotal.WithLabelValues("success").Inc()
	persistStatementTotal.Add(float64(statements))
}

// RecordNotify 记录一次通知发送
func (pm *PrometheusMetrics) RecordNotify(notifier string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	notifyTotal.WithLabelValues(notifier, status).Inc()
}

// 分布式锁相关指标记录

// RecordLockAcquire 记录锁获取
func (pm *PrometheusMetrics) RecordLockAcquire(key, status string) {
	lockAcquireTotal.WithLabelValues(key, status).Inc()
}

// RecordLockHoldDuration 记录锁持有时长
func (pm *PrometheusMetrics) RecordLockHoldDuration(key string, duration time.Duration) {
	lockHoldDuration.WithLabelValues(key).Observe(duration.Seconds())
}

// 系统相关指标记录

// SetGoroutineCount 设置 Goroutine 数量
func (pm *PrometheusMetrics) SetGoroutineCount(count int) {
	goroutineCount.Set(float64(count))
}

// SetMemoryAlloc 设置内存分配
func (pm *PrometheusMetrics) SetMemoryAlloc(bytes uint64) {
	memoryAllocBytes.Set(float64(bytes))
}

// SetProcessCPUPercent 设置进程 CPU 占用
func (pm *PrometheusMetrics) SetProcessCPUPercent(percent float64) {
	processCPUPercent.Set(percent)
}

// SetProcessRSS 设置进程常驻内存
func (pm *PrometheusMetrics) SetProcessRSS(bytes uint64) {
	processRSSBytes.Set(float64(bytes))
}

// RecordGCPause 记录 GC 停顿时间
func (pm *PrometheusMetrics) RecordGCPause(duration time.Duration) {
	gcPauseDuration.Observe(duration.Seconds())
}

// 全局实例
var globalPrometheusMetrics *PrometheusMetrics

// GetPrometheusMetrics 获取全局 Prometheus 指标收集器
func GetPrometheusMetrics() *PrometheusMetrics {
	once.Do(func() {
		globalPrometheusMetrics = NewPrometheusMetrics()
	})
	return globalPrometheusMetrics
}
