package domain

import "time"

// PendingInvocation 表示一次已开始、但还没有观测到 REPORT 记录的调用。
type PendingInvocation struct {
	// RequestID 是调用的关联标识（Lambda 的 requestId）
	RequestID string `json:"request_id"`
	// RegisteredAt 是收到调用开始通知的时间
	RegisteredAt time.Time `json:"registered_at"`
}

// NewPendingInvocation 以当前时间创建一个待完成的调用。
func NewPendingInvocation(requestID string) *PendingInvocation {
	return &PendingInvocation{
		RequestID:    requestID,
		RegisteredAt: time.Now(),
	}
}

// Age 返回该调用已等待的时长。
func (p *PendingInvocation) Age() time.Duration {
	return time.Since(p.RegisteredAt)
}
