// Package cmd 包含 log-ingestor 的命令行入口与组件装配。
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oriys/lambda-log-ingestor/internal/api"
	"github.com/oriys/lambda-log-ingestor/internal/config"
	"github.com/oriys/lambda-log-ingestor/internal/correlator"
	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/oriys/lambda-log-ingestor/internal/events"
	"github.com/oriys/lambda-log-ingestor/internal/extension"
	"github.com/oriys/lambda-log-ingestor/internal/ingestor"
	"github.com/oriys/lambda-log-ingestor/internal/logconfig"
	"github.com/oriys/lambda-log-ingestor/internal/logstore"
	"github.com/oriys/lambda-log-ingestor/internal/metrics"
	"github.com/oriys/lambda-log-ingestor/internal/observer"
	"github.com/oriys/lambda-log-ingestor/internal/storage"
	"github.com/oriys/lambda-log-ingestor/internal/telemetry"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "log-ingestor",
	Short: "Lambda extension that correlates invocations with their REPORT log lines",
	Long: `log-ingestor 作为 Lambda 扩展运行：每次调用开始时登记请求 ID，
在后台拉取函数的 CloudWatch 日志流，匹配 REPORT 行并输出耗时与内存指标。
执行环境关闭时会等待所有已登记的调用被匹配后再退出。`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

// Execute 执行根命令。
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "/opt/log-ingestor/config.yaml", "配置文件路径，不存在时使用默认配置")
	rootCmd.PersistentFlags().String("log-level", "", "日志级别（debug、info、warn、error），覆盖配置文件")
	rootCmd.PersistentFlags().String("runtime-api", "", "扩展 API 地址，覆盖 AWS_LAMBDA_RUNTIME_API")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("runtime_api", rootCmd.PersistentFlags().Lookup("runtime-api"))
}

// initConfig 环境变量格式：INGESTOR_<KEY>，如 INGESTOR_LOG_LEVEL
func initConfig() {
	viper.SetEnvPrefix("INGESTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if v := viper.GetString("config"); v != "" && !rootCmd.PersistentFlags().Changed("config") {
		cfgFile = v
	}
}

// newLogger 按配置创建日志记录器，默认 JSON 格式、info 级别。
func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger.SetLevel(logrus.InfoLevel)
	if cfg.Level != "" {
		if level, err := logrus.ParseLevel(cfg.Level); err == nil {
			logger.SetLevel(level)
		} else {
			logger.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		}
	}
	return logger
}

// exitErrorType 返回上报给 Lambda 的错误类型。
func exitErrorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownEventType):
		return "Extension.UnknownEvent"
	case errors.Is(err, domain.ErrRegistrationFailed):
		return "Extension.RegistrationFailed"
	default:
		return "Extension.Crash"
	}
}

func eventTypes(names []string) []domain.EventType {
	out := make([]domain.EventType, 0, len(names))
	for _, n := range names {
		out = append(out, domain.EventType(strings.ToUpper(strings.TrimSpace(n))))
	}
	return out
}

func run() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logrus.WithError(err).Error("Failed to load config")
		return err
	}
	if v := viper.GetString("log_level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := viper.GetString("runtime_api"); v != "" {
		cfg.Extension.RuntimeAPI = v
	}

	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"name":     cfg.Extension.Name,
		"log_file": cfg.LogConfig.Path,
	}).Info("Starting log ingestor")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		tel, err := telemetry.New(ctx, telemetry.Config{
			Enabled:     cfg.Telemetry.Enabled,
			Endpoint:    cfg.Telemetry.Endpoint,
			ServiceName: cfg.Telemetry.ServiceName,
			SampleRate:  cfg.Telemetry.SampleRate,
			Environment: cfg.Telemetry.Environment,
		})
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize telemetry, continuing without tracing")
		} else {
			defer tel.Shutdown(context.Background())
			logger.AddHook(telemetry.NewLogrusHook())
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(cfg.Metrics.Namespace)
	}

	cw, err := logstore.NewCloudWatch(ctx, cfg.AWS)
	if err != nil {
		logger.WithError(err).Error("Failed to create CloudWatch Logs client")
		return err
	}
	poller := logstore.NewPoller(cw, cfg.Poller, m, logger)

	backends, closers := openBackends(cfg, logger)
	defer func() {
		for _, c := range closers {
			c()
		}
	}()
	obs := observer.New(logger, m, backends...)

	// 注册表的上下文不随信号取消，排空阶段的拉取需要继续进行
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	registry := correlator.NewRegistry(jobCtx, poller, obs, correlator.Options{
		StreamTimeout: cfg.Poller.StreamTimeout,
		IdleInterval:  cfg.Poller.IdleInterval,
	}, m, logger)

	if cfg.Metrics.Enabled {
		srv := api.NewServer(cfg.Metrics.Port, &api.RouterConfig{
			Handler: api.NewHandler(registry),
			Logger:  logger,
		})
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	client := extension.New(cfg.Extension.RuntimeAPI, cfg.Extension.Name)
	agent := ingestor.NewAgent(client, logconfig.NewResolver(cfg.LogConfig, logger), registry, ingestor.Options{
		Events:          eventTypes(cfg.Extension.Events),
		ShutdownTimeout: cfg.Shutdown.Timeout,
	}, logger)

	err = agent.Run(ctx)
	if err != nil && ctx.Err() != nil && client.ID() != "" {
		// 本地运行时没有 SHUTDOWN 事件，收到信号后同样排空
		logger.Info("Signal received")
		err = agent.OnShutdown(context.Background(), &domain.NextEvent{
			EventType:      domain.EventShutdown,
			ShutdownReason: "signal",
		})
	}
	if err != nil {
		logger.WithError(err).Error("Log ingestor failed")
		if client.ID() != "" {
			exitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if exitErr := client.ExitError(exitCtx, exitErrorType(err), err); exitErr != nil {
				logger.WithError(exitErr).Warn("Failed to report exit error")
			}
		}
		return err
	}

	logger.Info("Log ingestor stopped")
	return nil
}

// openBackends 连接已配置的可选后端，连接失败的后端被跳过。
func openBackends(cfg *config.Config, logger *logrus.Logger) ([]observer.Backend, []func()) {
	var (
		backends []observer.Backend
		closers  []func()
	)

	if cfg.Storage.Redis.Addr != "" {
		rs, err := storage.NewRedisStore(cfg.Storage.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis backend disabled")
		} else {
			backends = append(backends, observer.Backend{Name: "redis", Write: rs.SaveReport})
			closers = append(closers, func() { rs.Close() })
		}
	}

	if cfg.Storage.Postgres.Host != "" {
		pg, err := storage.NewPostgresStore(cfg.Storage.Postgres)
		if err != nil {
			logger.WithError(err).Warn("PostgreSQL backend disabled")
		} else {
			backends = append(backends, observer.Backend{Name: "postgres", Write: pg.SaveReport})
			closers = append(closers, func() { pg.Close() })
		}
	}

	if cfg.Events.NatsURL != "" {
		bus, err := events.NewEventBus(cfg.Events.NatsURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			logger.WithError(err).Warn("NATS backend disabled")
		} else {
			backends = append(backends, observer.Backend{Name: "nats", Write: bus.PublishReport})
			closers = append(closers, func() { bus.Close() })
		}
	}

	return backends, closers
}
