// Package observer 处理完成观测：输出结构化日志、更新指标，并把记录转发给可选的存储与事件后端。
package observer

import (
	"context"
	"time"

	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/oriys/lambda-log-ingestor/internal/metrics"
	"github.com/sirupsen/logrus"
)

// DefaultBackendTimeout 是单个后端写入的默认超时
const DefaultBackendTimeout = 2 * time.Second

// Backend 是一个具名的完成记录写入端。
type Backend struct {
	Name  string
	Write func(ctx context.Context, rec domain.ReportRecord) error
}

// Observer 实现 correlator.Sink。
type Observer struct {
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	backends []Backend
	timeout  time.Duration
}

// New 创建 Observer。
func New(logger *logrus.Logger, m *metrics.Metrics, backends ...Backend) *Observer {
	return &Observer{
		logger:   logger,
		metrics:  m,
		backends: backends,
		timeout:  DefaultBackendTimeout,
	}
}

// WithTimeout 设置单个后端写入的超时，<=0 表示不限制。
func (o *Observer) WithTimeout(d time.Duration) *Observer {
	o.timeout = d
	return o
}

// Observe 记录一次调用完成。后端写入失败只记录告警，不影响关联任务。
func (o *Observer) Observe(ctx context.Context, rec domain.ReportRecord) {
	o.logger.WithContext(ctx).WithFields(logrus.Fields{
		"request_id":      rec.RequestID,
		"duration":        domain.Value(rec.Duration),
		"billed_duration": domain.Value(rec.BilledDuration),
		"memory_size":     domain.Value(rec.MemorySize),
		"max_memory_used": domain.Value(rec.MaxMemoryUsed),
	}).Info("Request reported finish")

	o.metrics.ObserveReport(rec)

	for _, b := range o.backends {
		if err := o.write(ctx, b, rec); err != nil {
			o.metrics.RecordSinkError(b.Name)
			o.logger.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
				"backend":    b.Name,
				"request_id": rec.RequestID,
			}).Warn("Failed to forward report")
		}
	}
}

func (o *Observer) write(ctx context.Context, b Backend, rec domain.ReportRecord) error {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return b.Write(ctx, rec)
}
