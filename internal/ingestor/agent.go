// Package ingestor 实现扩展的事件循环：注册扩展，把 INVOKE 事件路由到关联任务，
// 收到 SHUTDOWN 后在截止时间内排空所有任务。
package ingestor

import (
	"context"
	"fmt"
	"time"

	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/oriys/lambda-log-ingestor/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EventSource 是扩展 API 的注册与事件拉取接口，由 extension.Client 实现。
type EventSource interface {
	Register(ctx context.Context, events ...domain.EventType) (string, error)
	Next(ctx context.Context) (*domain.NextEvent, error)
}

// LogConfigResolver 解析当前调用的日志目标，由 logconfig.Resolver 实现。
type LogConfigResolver interface {
	Resolve(ctx context.Context) (domain.LogConfig, error)
}

// Router 是调用路由与排空接口，由 correlator.Registry 实现。
type Router interface {
	Route(group, stream, invocationID string)
	DrainAll(ctx context.Context) error
}

// Options 控制 Agent 的行为。
type Options struct {
	// Events 注册时订阅的事件类型
	Events []domain.EventType
	// ShutdownTimeout SHUTDOWN 事件未携带截止时间时的排空超时，0 表示一直等待
	ShutdownTimeout time.Duration
}

// Agent 驱动扩展生命周期。
type Agent struct {
	events   EventSource
	resolver LogConfigResolver
	router   Router
	opts     Options
	logger   *logrus.Logger
}

// NewAgent 创建 Agent。
func NewAgent(events EventSource, resolver LogConfigResolver, router Router, opts Options, logger *logrus.Logger) *Agent {
	if len(opts.Events) == 0 {
		opts.Events = []domain.EventType{domain.EventInvoke, domain.EventShutdown}
	}
	return &Agent{
		events:   events,
		resolver: resolver,
		router:   router,
		opts:     opts,
		logger:   logger,
	}
}

// Run 注册扩展并处理事件，直到 SHUTDOWN 排空完成或出现不可恢复错误。
// 单次 INVOKE 处理失败只记录日志；注册失败、事件拉取失败和未知事件类型直接返回。
func (a *Agent) Run(ctx context.Context) error {
	id, err := a.events.Register(ctx, a.opts.Events...)
	if err != nil {
		return err
	}
	a.logger.WithField("extension_id", id).Info("Extension registered")

	for {
		ev, err := a.events.Next(ctx)
		if err != nil {
			return err
		}

		switch ev.EventType {
		case domain.EventInvoke:
			if err := a.OnInvocationStart(ctx, ev); err != nil {
				a.logger.WithError(err).WithField("request_id", ev.RequestID).
					Error("Failed to track invocation")
			}
		case domain.EventShutdown:
			return a.OnShutdown(ctx, ev)
		default:
			return fmt.Errorf("%w: %q", domain.ErrUnknownEventType, ev.EventType)
		}
	}
}

// OnInvocationStart 解析本次调用的日志目标并登记待完成调用。
func (a *Agent) OnInvocationStart(ctx context.Context, ev *domain.NextEvent) error {
	ctx, span := telemetry.StartSpan(ctx, "ingestor.OnInvocationStart",
		trace.WithAttributes(attribute.String("request_id", ev.RequestID)))
	defer span.End()

	cfg, err := a.resolver.Resolve(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("resolve log destination: %w", err)
	}
	span.SetAttributes(
		attribute.String("log_group", cfg.LogGroupName),
		attribute.String("log_stream", cfg.LogStreamName),
	)

	a.logger.WithContext(ctx).WithFields(logrus.Fields{
		"request_id": ev.RequestID,
		"log_group":  cfg.LogGroupName,
		"log_stream": cfg.LogStreamName,
	}).Debug("Invocation started")

	a.router.Route(cfg.LogGroupName, cfg.LogStreamName, ev.RequestID)
	return nil
}

// OnShutdown 排空所有关联任务。截止时间取自事件的 deadlineMs，缺省时使用 ShutdownTimeout。
func (a *Agent) OnShutdown(ctx context.Context, ev *domain.NextEvent) error {
	fields := logrus.Fields{}
	if ev != nil {
		fields["reason"] = ev.ShutdownReason
	}

	if deadline, ok := ev.Deadline(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
		fields["deadline"] = deadline.Format(time.RFC3339Nano)
	} else if a.opts.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.ShutdownTimeout)
		defer cancel()
		fields["timeout"] = a.opts.ShutdownTimeout.String()
	}

	a.logger.WithFields(fields).Info("Shutdown received, draining")
	start := time.Now()
	if err := a.router.DrainAll(ctx); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	a.logger.WithField("elapsed", time.Since(start).String()).Info("Drain complete")
	return nil
}
