// Package logconfig 读取函数代码写入的日志目标旁路文件。
//
// 扩展进程拿不到 AWS_LAMBDA_LOG_GROUP_NAME / AWS_LAMBDA_LOG_STREAM_NAME，
// 由函数在每次调用时把它们写入一个 JSON 文件：
//
//	{"logGroupName": "/aws/lambda/fn", "logStreamName": "2024/01/01/[$LATEST]abc"}
//
// Resolver 等待文件出现、读取后立即删除，文件在等待窗口内未出现视为该次调用失败。
package logconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oriys/lambda-log-ingestor/internal/config"
	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/sirupsen/logrus"
)

// Resolver 按调用解析日志目标。
type Resolver struct {
	path     string
	wait     time.Duration
	interval time.Duration
	logger   *logrus.Logger
}

// NewResolver 创建 Resolver。
func NewResolver(cfg config.LogConfigConfig, logger *logrus.Logger) *Resolver {
	return &Resolver{
		path:     cfg.Path,
		wait:     cfg.WaitTimeout,
		interval: cfg.PollInterval,
		logger:   logger,
	}
}

// Resolve 等待旁路文件出现并返回其中的日志目标。
// 文件不存在时每隔 interval 重试，目录上的 fsnotify 事件会提前唤醒；
// 超过等待窗口返回 domain.ErrConfigUnavailable，读取、解析或删除失败立即返回。
func (r *Resolver) Resolve(ctx context.Context) (domain.LogConfig, error) {
	var (
		wake <-chan fsnotify.Event
		errs <-chan error
	)
	if w, err := fsnotify.NewWatcher(); err == nil {
		defer w.Close()
		if err := w.Add(filepath.Dir(r.path)); err == nil {
			wake, errs = w.Events, w.Errors
		} else {
			r.logger.WithError(err).Debug("Cannot watch log config directory, polling only")
		}
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	timer := time.NewTimer(r.wait)
	defer timer.Stop()

	for {
		cfg, err := r.read()
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return domain.LogConfig{}, err
		}

		select {
		case <-ctx.Done():
			return domain.LogConfig{}, ctx.Err()
		case <-timer.C:
			return domain.LogConfig{}, fmt.Errorf("%w: %s did not appear within %s", domain.ErrConfigUnavailable, r.path, r.wait)
		case <-ticker.C:
		case _, ok := <-wake:
			if !ok {
				wake = nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.logger.WithError(err).Debug("Log config watcher error")
		}
	}
}

// read 读取、解析并删除旁路文件。
func (r *Resolver) read() (domain.LogConfig, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return domain.LogConfig{}, err
	}

	var cfg domain.LogConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.LogConfig{}, fmt.Errorf("parse %s: %w", r.path, err)
	}
	if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.LogConfig{}, fmt.Errorf("remove %s: %w", r.path, err)
	}
	if err := cfg.Validate(); err != nil {
		return domain.LogConfig{}, err
	}
	return cfg, nil
}
