// Package domain 定义了日志采集扩展的核心领域模型。
package domain

import (
	"errors"
	"fmt"
	"time"
)

// 领域错误定义
// 这些错误用于在采集引擎的各层之间传递可识别的失败原因。

var (
	// ========== 日志存储相关错误 ==========

	// ErrStreamNotFound 表示目标日志流尚未创建（日志流通常会比调用晚一点出现）
	ErrStreamNotFound = errors.New("log stream not found")

	// ========== 日志目标相关错误 ==========

	// ErrConfigUnavailable 表示在等待窗口内没有读到日志目标配置文件
	ErrConfigUnavailable = errors.New("log config unavailable")
	// ErrInvalidLogConfig 表示日志目标配置缺少日志组或日志流名称
	ErrInvalidLogConfig = errors.New("invalid log config")

	// ========== 扩展事件相关错误 ==========

	// ErrUnknownEventType 表示扩展 API 返回了无法识别的事件类型，属于契约破坏，不可恢复
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrRegistrationFailed 表示向扩展 API 注册失败
	ErrRegistrationFailed = errors.New("extension registration failed")
)

// TimeoutError 表示重试预算耗尽。
// Last 保存最后一次底层错误，因此 errors.Is(err, ErrStreamNotFound) 对超时错误同样成立。
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Last    error
}

func (e *TimeoutError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
	}
	return fmt.Sprintf("%s timed out after %s: %v", e.Op, e.Timeout, e.Last)
}

func (e *TimeoutError) Unwrap() error {
	return e.Last
}

// IsTimeout 判断 err 链中是否包含 TimeoutError。
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
