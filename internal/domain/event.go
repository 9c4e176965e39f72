package domain

import "time"

// EventType 表示扩展 API 下发的事件类型。
type EventType string

const (
	// EventInvoke 表示一次函数调用开始
	EventInvoke EventType = "INVOKE"
	// EventShutdown 表示执行环境即将关闭
	EventShutdown EventType = "SHUTDOWN"
)

// NextEvent 是 event/next 接口的响应体。
type NextEvent struct {
	EventType          EventType `json:"eventType"`
	DeadlineMs         int64     `json:"deadlineMs"`
	RequestID          string    `json:"requestId,omitempty"`
	InvokedFunctionArn string    `json:"invokedFunctionArn,omitempty"`
	ShutdownReason     string    `json:"shutdownReason,omitempty"`
}

// Deadline 将 DeadlineMs（Unix 毫秒）转换为时间，未设置时 ok 为 false。
func (e *NextEvent) Deadline() (time.Time, bool) {
	if e == nil || e.DeadlineMs <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(e.DeadlineMs), true
}
