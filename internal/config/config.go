// Package config 提供了日志采集扩展的配置管理功能。
// 该包从 YAML 配置文件加载配置，并支持通过环境变量覆盖运行环境相关配置（如 Region 和扩展 API 地址）
// 以及敏感配置项（如密码）。配置文件不存在时使用默认值。
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是扩展的主配置结构体，包含所有子系统的配置。
type Config struct {
	// Extension 扩展 API 配置（注册与事件拉取）
	Extension ExtensionConfig `yaml:"extension"`
	// LogConfig 日志目标旁路文件配置
	LogConfig LogConfigConfig `yaml:"logconfig"`
	// Poller 日志拉取与重试配置
	Poller PollerConfig `yaml:"poller"`
	// AWS CloudWatch Logs 客户端配置
	AWS AWSConfig `yaml:"aws"`
	// Shutdown 优雅关闭配置
	Shutdown ShutdownConfig `yaml:"shutdown"`
	// Storage 完成记录的存储后端（可选）
	Storage StorageConfig `yaml:"storage"`
	// Events 完成事件发布配置（可选）
	Events EventsConfig `yaml:"events"`
	// Logging 日志级别与格式
	Logging LoggingConfig `yaml:"logging"`
	// Metrics Prometheus 指标配置
	Metrics MetricsConfig `yaml:"metrics"`
	// Telemetry 分布式追踪配置
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ExtensionConfig 扩展 API 配置结构体。
type ExtensionConfig struct {
	// RuntimeAPI 扩展 API 地址（host:port），通常来自 AWS_LAMBDA_RUNTIME_API
	RuntimeAPI string `yaml:"runtime_api"`
	// Name 注册时使用的扩展名称，必须与扩展可执行文件名一致
	// 默认值：log-ingestor
	Name string `yaml:"name"`
	// Events 订阅的事件类型
	// 默认值：[INVOKE, SHUTDOWN]
	Events []string `yaml:"events"`
}

// LogConfigConfig 日志目标旁路文件配置结构体。
// 扩展进程无法读取 AWS_LAMBDA_LOG_GROUP_NAME / AWS_LAMBDA_LOG_STREAM_NAME，
// 因此由函数代码将其写入该文件。
type LogConfigConfig struct {
	// Path 旁路文件路径
	// 默认值：/tmp/log-ingestor-config.json
	Path string `yaml:"path"`
	// WaitTimeout 等待文件出现的最长时间
	// 默认值：2 秒
	WaitTimeout time.Duration `yaml:"wait_timeout"`
	// PollInterval 检查文件是否出现的间隔
	// 默认值：10 毫秒
	PollInterval time.Duration `yaml:"poll_interval"`
}

// PollerConfig 日志拉取配置结构体。
type PollerConfig struct {
	// PageSize 每次 GetLogEvents 请求的记录上限
	// 默认值：100
	PageSize int32 `yaml:"page_size"`
	// RetryBackoff 日志流不存在时的固定重试间隔
	// 默认值：10 毫秒
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	// StreamTimeout 单次拉取等待日志流出现的最长时间
	// 默认值：6 秒
	StreamTimeout time.Duration `yaml:"stream_timeout"`
	// IdleInterval 拉取到空页后的等待时间，0 表示不等待（持续拉取）
	// 默认值：0
	IdleInterval time.Duration `yaml:"idle_interval"`
}

// AWSConfig CloudWatch Logs 客户端配置结构体。
type AWSConfig struct {
	// Region AWS 区域，可通过环境变量 AWS_REGION 覆盖
	Region string `yaml:"region"`
	// Endpoint 自定义 CloudWatch Logs 端点（如 LocalStack），为空时使用默认端点
	Endpoint string `yaml:"endpoint"`
}

// ShutdownConfig 关闭配置结构体。
type ShutdownConfig struct {
	// Timeout SHUTDOWN 事件未携带截止时间时的排空超时，0 表示一直等待
	// 默认值：0
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig 存储配置结构体。
type StorageConfig struct {
	// Postgres PostgreSQL 配置，Host 为空时不启用
	Postgres PostgresConfig `yaml:"postgres"`
	// Redis Redis 配置，Addr 为空时不启用
	Redis RedisConfig `yaml:"redis"`
}

// PostgresConfig PostgreSQL 数据库配置结构体。
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	// SSLMode SSL 模式，可选值：disable、require、verify-ca、verify-full
	SSLMode string `yaml:"ssl_mode"`
}

// RedisConfig Redis 配置结构体。
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// ReportTTL 完成记录在 Redis 中的保留时间
	// 默认值：24 小时
	ReportTTL time.Duration `yaml:"report_ttl"`
}

// EventsConfig 事件配置结构体。
type EventsConfig struct {
	// NatsURL NATS 服务器 URL，为空时不发布事件
	NatsURL string `yaml:"nats_url"`
	// SubjectPrefix 完成事件的 subject 前缀
	// 默认值：report
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LoggingConfig 日志配置结构体。
type LoggingConfig struct {
	// Level 日志级别，可选值：debug、info、warn、error
	Level string `yaml:"level"`
	// Format 日志格式，可选值：json、text
	Format string `yaml:"format"`
}

// MetricsConfig 指标配置结构体。
type MetricsConfig struct {
	// Enabled 是否启用状态服务（/metrics、/health、/jobs）
	Enabled bool `yaml:"enabled"`
	// Namespace 指标命名空间前缀
	// 默认值：log_ingestor
	Namespace string `yaml:"namespace"`
	// Port 状态服务端口
	// 默认值：9090
	Port int `yaml:"port"`
}

// TelemetryConfig 遥测配置结构体。
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
	Environment string  `yaml:"environment"`
}

// Load 从指定路径加载配置文件。
// 文件不存在时返回仅包含默认值（及环境变量覆盖）的配置；读取或解析失败时返回错误。
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖。
// Lambda 运行环境提供的变量优先于配置文件；敏感配置项支持 *_FILE 方式。
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("AWS_LAMBDA_RUNTIME_API")); v != "" {
		c.Extension.RuntimeAPI = v
	}
	if v := strings.TrimSpace(os.Getenv("AWS_REGION")); v != "" {
		c.AWS.Region = v
	}
	if v := readEnvOrFile("INGESTOR_POSTGRES_PASSWORD", "INGESTOR_POSTGRES_PASSWORD_FILE"); v != "" {
		c.Storage.Postgres.Password = v
	}
	if v := readEnvOrFile("INGESTOR_REDIS_PASSWORD", "INGESTOR_REDIS_PASSWORD_FILE"); v != "" {
		c.Storage.Redis.Password = v
	}
}

// readEnvOrFile 优先从 fileKey 指向的文件读取值，否则读取 envKey。
func readEnvOrFile(envKey, fileKey string) string {
	if filePath := strings.TrimSpace(os.Getenv(fileKey)); filePath != "" {
		if b, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	return strings.TrimSpace(os.Getenv(envKey))
}

// applyDefaults 为未设置的配置项填充默认值。
func (c *Config) applyDefaults() {
	if c.Extension.Name == "" {
		c.Extension.Name = "log-ingestor"
	}
	if len(c.Extension.Events) == 0 {
		c.Extension.Events = []string{"INVOKE", "SHUTDOWN"}
	}
	if c.LogConfig.Path == "" {
		c.LogConfig.Path = "/tmp/log-ingestor-config.json"
	}
	if c.LogConfig.WaitTimeout == 0 {
		c.LogConfig.WaitTimeout = 2 * time.Second
	}
	if c.LogConfig.PollInterval == 0 {
		c.LogConfig.PollInterval = 10 * time.Millisecond
	}
	// CloudWatch GetLogEvents 单页上限为 10000，这里固定拉取 100 条
	if c.Poller.PageSize <= 0 {
		c.Poller.PageSize = 100
	}
	if c.Poller.RetryBackoff == 0 {
		c.Poller.RetryBackoff = 10 * time.Millisecond
	}
	if c.Poller.StreamTimeout == 0 {
		c.Poller.StreamTimeout = 6 * time.Second
	}
	if c.Poller.IdleInterval < 0 {
		c.Poller.IdleInterval = 0
	}
	if c.Storage.Postgres.Port == 0 {
		c.Storage.Postgres.Port = 5432
	}
	if c.Storage.Postgres.SSLMode == "" {
		c.Storage.Postgres.SSLMode = "disable"
	}
	if c.Storage.Redis.ReportTTL == 0 {
		c.Storage.Redis.ReportTTL = 24 * time.Hour
	}
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = "report"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "log_ingestor"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "log-ingestor"
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4317"
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 0.1
	}
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = "development"
	}
}
