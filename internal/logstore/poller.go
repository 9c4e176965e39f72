package logstore

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oriys/lambda-log-ingestor/internal/config"
	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/oriys/lambda-log-ingestor/internal/metrics"
	"github.com/oriys/lambda-log-ingestor/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Poller 拉取日志流的下一页，并容忍日志流尚未创建的竞态。
//
// 日志流不存在时以固定间隔重试，直到拿到数据或超过调用方给定的时长，
// 此时返回携带最后一次底层错误的 *domain.TimeoutError；其他错误立即返回，不重试。
type Poller struct {
	client   Client
	pageSize int32
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *logrus.Logger
}

// NewPoller 创建 Poller。m 可以为 nil。
func NewPoller(client Client, cfg config.PollerConfig, m *metrics.Metrics, logger *logrus.Logger) *Poller {
	return &Poller{
		client:   client,
		pageSize: cfg.PageSize,
		interval: cfg.RetryBackoff,
		metrics:  m,
		logger:   logger,
	}
}

// Fetch 从 cursor 处拉取一页记录，cursor 为 nil 表示从头读取。
// timeout 只约束日志流不存在时的重试总时长，不会中断正在进行的请求。
func (p *Poller) Fetch(ctx context.Context, group, stream string, cursor *string, timeout time.Duration) (*Page, error) {
	ctx, span := telemetry.StartSpan(ctx, "logstore.Fetch", trace.WithAttributes(
		attribute.String("log.group", group),
		attribute.String("log.stream", stream),
	))
	defer span.End()

	q := &Query{
		LogGroup:      group,
		LogStream:     stream,
		Cursor:        cursor,
		Limit:         p.pageSize,
		StartFromHead: true,
	}

	var (
		page    *Page
		lastErr error
	)
	op := func() error {
		res, err := p.client.GetLogEvents(ctx, q)
		if err != nil {
			if errors.Is(err, domain.ErrStreamNotFound) {
				lastErr = err
				return err
			}
			return backoff.Permanent(err)
		}
		page = res
		return nil
	}
	notify := func(err error, wait time.Duration) {
		p.metrics.RecordPollRetry()
		p.logger.WithFields(logrus.Fields{
			"log_group":  group,
			"log_stream": stream,
			"wait":       wait,
		}).Debug("Log stream not found yet, retrying")
	}

	err := backoff.RetryNotify(op, backoff.WithContext(p.backOff(timeout), ctx), notify)
	if err != nil && errors.Is(err, domain.ErrStreamNotFound) {
		p.logger.WithError(lastErr).WithFields(logrus.Fields{
			"log_group":  group,
			"log_stream": stream,
			"timeout":    timeout,
		}).Warn("Log stream did not appear in time")
		err = &domain.TimeoutError{Op: "GetLogEvents", Timeout: timeout, Last: lastErr}
	}
	p.metrics.RecordPoll(err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("log.events", len(page.Events)))
	return page, nil
}

// backOff 构造固定间隔、总时长不超过 timeout 的退避策略。
// ExponentialBackOff 在 Multiplier 为 1 且无随机因子时即为固定间隔。
func (p *Poller) backOff(timeout time.Duration) backoff.BackOff {
	if timeout <= 0 {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.interval
	b.MaxInterval = p.interval
	b.Multiplier = 1
	b.RandomizationFactor = 0
	b.MaxElapsedTime = timeout
	b.Reset()
	return b
}
