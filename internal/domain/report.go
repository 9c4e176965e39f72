package domain

import "time"

// ReportRecord 表示从一条 REPORT 日志行中解析出的调用完成指标。
// 除 RequestID 外的字段在原始日志行缺失时为 nil，调用方应将其视为"未知指标"。
type ReportRecord struct {
	RequestID      string    `json:"request_id"`
	Duration       *string   `json:"duration"`
	BilledDuration *string   `json:"billed_duration"`
	MemorySize     *string   `json:"memory_size"`
	MaxMemoryUsed  *string   `json:"max_memory_used"`
	LoggedAt       time.Time `json:"logged_at,omitempty"`
}

// Value 返回可空字段的值，nil 时返回空字符串。
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
