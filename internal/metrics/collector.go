// Package metrics 提供 Prometheus 指标采集与上报的统一封装。
// 该包集中定义采集引擎的关键指标（关联任务、日志拉取、完成报告等），便于在各模块复用并保持标签一致。
//
// 所有辅助方法都允许 nil 接收者，未启用指标时调用方无需判空。
package metrics

import (
	"time"

	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/oriys/lambda-log-ingestor/internal/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 封装采集引擎的指标集合。
//
// 指标分类:
//   - 调用指标: 通知数量、待完成数量、等待时长
//   - 任务指标: 活跃任务数、任务失败数
//   - 拉取指标: 拉取次数、日志流不存在时的重试次数
//   - 报告指标: 报告数量、执行耗时、计费耗时、内存占用
type Metrics struct {
	// ========== 调用相关指标 ==========

	// InvocationsTotal 收到的调用开始通知总数
	InvocationsTotal prometheus.Counter

	// PendingInvocations 当前尚未观测到报告的调用数
	PendingInvocations prometheus.Gauge

	// ResolveLatency 从收到调用通知到观测到报告的时长（单位：秒）
	ResolveLatency prometheus.Histogram

	// UnresolvedTotal 进程退出或任务失败时仍未解析的调用数
	UnresolvedTotal prometheus.Counter

	// ========== 任务相关指标 ==========

	// ActiveJobs 当前运行中的关联任务数
	ActiveJobs prometheus.Gauge

	// JobFailuresTotal 因拉取失败而中止的关联任务数
	JobFailuresTotal prometheus.Counter

	// ========== 拉取相关指标 ==========

	// PollsTotal 日志拉取次数
	// 标签: result (ok/error)
	PollsTotal *prometheus.CounterVec

	// PollRetriesTotal 日志流不存在时的重试次数
	PollRetriesTotal prometheus.Counter

	// ========== 报告相关指标 ==========

	// ReportsTotal 已解析的 REPORT 记录数
	ReportsTotal prometheus.Counter

	// UnmatchedReportsTotal 不属于当前任务待完成集合的 REPORT 记录数
	UnmatchedReportsTotal prometheus.Counter

	// ReportDuration 报告中的执行耗时（单位：毫秒）
	ReportDuration prometheus.Histogram

	// ReportBilledDuration 报告中的计费耗时（单位：毫秒）
	ReportBilledDuration prometheus.Histogram

	// ReportMaxMemoryUsed 报告中的最大内存占用（单位：MB）
	ReportMaxMemoryUsed prometheus.Histogram

	// SinkErrorsTotal 完成记录写入后端失败次数
	// 标签: backend
	SinkErrorsTotal *prometheus.CounterVec
}

// NewMetrics 创建并在默认注册表中注册一组指标。
// namespace 用于作为所有指标名前缀。
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith 在指定注册表中创建指标，测试中使用独立注册表避免重复注册。
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	durationBuckets := []float64{1, 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 60000}

	return &Metrics{
		InvocationsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Total number of invocation start notifications",
		}),
		PendingInvocations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_invocations",
			Help:      "Invocations waiting for a REPORT record",
		}),
		ResolveLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_latency_seconds",
			Help:      "Time from invocation start notification to REPORT observation",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		UnresolvedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unresolved_invocations_total",
			Help:      "Invocations left without a REPORT record",
		}),
		ActiveJobs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Running correlation jobs",
		}),
		JobFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_failures_total",
			Help:      "Correlation jobs aborted by a poll failure",
		}),
		PollsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Log store page fetches",
		}, []string{"result"}),
		PollRetriesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_retries_total",
			Help:      "Page fetch retries while the log stream does not exist yet",
		}),
		ReportsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "REPORT records matched to a pending invocation",
		}),
		UnmatchedReportsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmatched_reports_total",
			Help:      "REPORT records without a matching pending invocation",
		}),
		ReportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_ms",
			Help:      "Reported invocation duration in milliseconds",
			Buckets:   durationBuckets,
		}),
		ReportBilledDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_billed_duration_ms",
			Help:      "Reported billed duration in milliseconds",
			Buckets:   durationBuckets,
		}),
		ReportMaxMemoryUsed: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_max_memory_used_mb",
			Help:      "Reported max memory used in MB",
			Buckets:   []float64{32, 64, 128, 256, 512, 1024, 2048, 4096, 10240},
		}),
		SinkErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed writes of completion observations",
		}, []string{"backend"}),
	}
}

// RecordInvocation 记录一次调用开始通知。
func (m *Metrics) RecordInvocation() {
	if m == nil {
		return
	}
	m.InvocationsTotal.Inc()
	m.PendingInvocations.Inc()
}

// RecordResolved 记录一个待完成调用被报告解析。
func (m *Metrics) RecordResolved(waited time.Duration) {
	if m == nil {
		return
	}
	m.PendingInvocations.Dec()
	m.ResolveLatency.Observe(waited.Seconds())
}

// RecordUnresolved 记录 n 个最终未解析的调用，它们不再计入待完成数。
func (m *Metrics) RecordUnresolved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.UnresolvedTotal.Add(float64(n))
	m.PendingInvocations.Sub(float64(n))
}

// RecordUnmatched 记录一条未匹配的 REPORT 记录。
func (m *Metrics) RecordUnmatched() {
	if m == nil {
		return
	}
	m.UnmatchedReportsTotal.Inc()
}

// JobStarted 记录关联任务启动。
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.ActiveJobs.Inc()
}

// JobFinished 记录关联任务退出，failed 表示因错误中止。
func (m *Metrics) JobFinished(failed bool) {
	if m == nil {
		return
	}
	m.ActiveJobs.Dec()
	if failed {
		m.JobFailuresTotal.Inc()
	}
}

// RecordPoll 记录一次拉取结果。
func (m *Metrics) RecordPoll(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.PollsTotal.WithLabelValues(result).Inc()
}

// RecordPollRetry 记录一次日志流不存在时的重试。
func (m *Metrics) RecordPollRetry() {
	if m == nil {
		return
	}
	m.PollRetriesTotal.Inc()
}

// ObserveReport 记录一条完成报告中的数值指标，无法解析的字段跳过。
func (m *Metrics) ObserveReport(rec domain.ReportRecord) {
	if m == nil {
		return
	}
	m.ReportsTotal.Inc()
	if v, _, ok := report.Quantity(rec.Duration); ok {
		m.ReportDuration.Observe(v)
	}
	if v, _, ok := report.Quantity(rec.BilledDuration); ok {
		m.ReportBilledDuration.Observe(v)
	}
	if v, _, ok := report.Quantity(rec.MaxMemoryUsed); ok {
		m.ReportMaxMemoryUsed.Observe(v)
	}
}

// RecordSinkError 记录一次后端写入失败。
func (m *Metrics) RecordSinkError(backend string) {
	if m == nil {
		return
	}
	m.SinkErrorsTotal.WithLabelValues(backend).Inc()
}
