package telemetry

import (
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// LogrusHook 将日志条目上下文中的追踪信息写入 trace_id / span_id 字段。
// 只有通过 entry.WithContext(ctx) 携带上下文的日志才会被关联。
type LogrusHook struct{}

// NewLogrusHook 创建一个新的 LogrusHook 实例。
//
//	logger := logrus.New()
//	logger.AddHook(telemetry.NewLogrusHook())
func NewLogrusHook() *LogrusHook {
	return &LogrusHook{}
}

// Levels 返回 logrus.AllLevels。
func (h *LogrusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire 在日志条目写出前注入追踪字段。
func (h *LogrusHook) Fire(entry *logrus.Entry) error {
	if entry.Context == nil {
		return nil
	}
	spanCtx := trace.SpanFromContext(entry.Context).SpanContext()
	if !spanCtx.IsValid() {
		return nil
	}
	entry.Data["trace_id"] = spanCtx.TraceID().String()
	entry.Data["span_id"] = spanCtx.SpanID().String()
	if spanCtx.IsSampled() {
		entry.Data["trace_sampled"] = true
	}
	return nil
}
