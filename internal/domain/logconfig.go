package domain

import "fmt"

// LogConfig 描述一次调用的日志写入目标。
// 由函数代码写入旁路文件，扩展读取后立即删除。
type LogConfig struct {
	LogGroupName  string `json:"logGroupName"`
	LogStreamName string `json:"logStreamName"`
}

// Validate 校验日志组与日志流均已设置。
func (c LogConfig) Validate() error {
	if c.LogGroupName == "" || c.LogStreamName == "" {
		return fmt.Errorf("%w: group=%q stream=%q", ErrInvalidLogConfig, c.LogGroupName, c.LogStreamName)
	}
	return nil
}

// Key 返回该配置对应的关联任务键。
func (c LogConfig) Key() DestinationKey {
	return DestinationKey{LogGroup: c.LogGroupName, LogStream: c.LogStreamName}
}

// DestinationKey 唯一标识一个 (日志组, 日志流) 对，每个键最多只有一个活跃的关联任务。
type DestinationKey struct {
	LogGroup  string `json:"log_group"`
	LogStream string `json:"log_stream"`
}

func (k DestinationKey) String() string {
	return k.LogGroup + "/" + k.LogStream
}
