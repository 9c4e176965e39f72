// Package events 将完成观测发布到 NATS JetStream。
// 下游服务订阅 "<prefix>.>" 即可获得每个调用的 REPORT 指标，而不必自己轮询 CloudWatch。
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/sirupsen/logrus"
)

// StreamName 是完成事件所在的 JetStream Stream 名称
const StreamName = "INVOCATION_REPORTS"

// EventBus 封装 NATS/JetStream 连接与发布操作。
type EventBus struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	prefix string
	logger *logrus.Logger
}

// Event 表示一条发布到总线的事件（JSON 格式）。
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Subject   string          `json:"subject"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEventBus 连接 NATS 并确保完成事件的 Stream 存在。
func NewEventBus(natsURL, prefix string, logger *logrus.Logger) (*EventBus, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("lambda-log-ingestor"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(100*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{prefix + ".>"},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
	}
	if _, err := js.AddStream(cfg); err != nil {
		if !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream %s: %w", StreamName, err)
		}
		// Stream 已存在但配置不同时尝试更新
		if _, err := js.UpdateStream(cfg); err != nil {
			logger.WithError(err).Warn("Failed to update JetStream stream")
		}
	}

	return &EventBus{conn: nc, js: js, prefix: prefix, logger: logger}, nil
}

// Close 刷新并关闭底层连接。
func (eb *EventBus) Close() error {
	if err := eb.conn.Drain(); err != nil {
		eb.conn.Close()
		return err
	}
	return nil
}

// Publish 发布事件到指定 subject。
func (eb *EventBus) Publish(ctx context.Context, subject string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := eb.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.WithFields(logrus.Fields{
		"subject":  subject,
		"event_id": event.ID,
		"type":     event.Type,
	}).Debug("Event published")
	return nil
}

// PublishReport 发布"调用完成"事件，subject 为 "<prefix>.<requestId>"。
func (eb *EventBus) PublishReport(ctx context.Context, rec domain.ReportRecord) error {
	event, err := NewReportEvent(eb.prefix, rec)
	if err != nil {
		return err
	}
	return eb.Publish(ctx, event.Subject, event)
}

// NewReportEvent 构造完成事件。
func NewReportEvent(prefix string, rec domain.ReportRecord) (*Event, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      "invocation.reported",
		Source:    "lambda-log-ingestor",
		Subject:   fmt.Sprintf("%s.%s", prefix, rec.RequestID),
		Data:      data,
		Timestamp: time.Now(),
	}, nil
}
