// Package api 提供扩展进程内的状态服务：健康检查、Prometheus 指标和关联任务快照。
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oriys/lambda-log-ingestor/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// RouterConfig 路由器配置选项
type RouterConfig struct {
	// Handler 状态处理器
	Handler *Handler
	// Gatherer 指标来源，为空时使用默认注册表
	Gatherer prometheus.Gatherer
	// Logger 日志记录器
	Logger *logrus.Logger
}

// NewRouter 创建并配置 HTTP 路由器。
//
//	/health                      - 健康检查
//	/metrics                     - Prometheus 指标
//	/jobs                        - 所有关联任务的状态
//	/jobs/lookup?group=&stream=  - 单个日志目标的关联任务
func NewRouter(cfg *RouterConfig) *chi.Mux {
	h := cfg.Handler
	r := chi.NewRouter()

	r.Use(telemetry.HTTPMiddleware("lambda-log-ingestor"))
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", h.Health)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.ListJobs)
		r.Get("/lookup", h.GetJob)
	})

	return r
}

// Server 是状态服务的 HTTP 服务器。
type Server struct {
	srv    *http.Server
	logger *logrus.Logger
}

// NewServer 创建监听 port 的状态服务。
func NewServer(port int, cfg *RouterConfig) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           NewRouter(cfg),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// Start 在后台启动服务。
func (s *Server) Start() {
	go func() {
		s.logger.WithField("addr", s.srv.Addr).Info("Status server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Status server stopped")
		}
	}()
}

// Shutdown 优雅关闭服务。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
