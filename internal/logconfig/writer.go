package logconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oriys/lambda-log-ingestor/internal/domain"
)

// WriteFile 以原子方式写入旁路文件：先写同目录下的临时文件再重命名，
// Resolver 不会读到写了一半的内容。函数代码在每次调用开始时调用。
func WriteFile(path string, cfg domain.LogConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".log-config-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// FromEnv 从 Lambda 运行时环境变量读取当前函数的日志目标。
func FromEnv() domain.LogConfig {
	return domain.LogConfig{
		LogGroupName:  os.Getenv("AWS_LAMBDA_LOG_GROUP_NAME"),
		LogStreamName: os.Getenv("AWS_LAMBDA_LOG_STREAM_NAME"),
	}
}
