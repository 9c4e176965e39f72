// Package telemetry 提供 OpenTelemetry 分布式追踪功能的封装。
// 追踪数据通过 OTLP gRPC 导出；未启用时所有 Span 均为空操作，调用方无需区分。
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// tracerName 是采集引擎内部 Span 使用的追踪器名称
const tracerName = "lambda-log-ingestor"

// Config 定义遥测配置。
type Config struct {
	// Enabled 为 false 时跳过追踪器初始化
	Enabled bool
	// Endpoint OTLP 接收器的 gRPC 地址，例如 "localhost:4317"
	Endpoint string
	// ServiceName 追踪数据中的服务名
	ServiceName string
	// SampleRate 采样率，取值 0.0 到 1.0
	SampleRate float64
	// Environment 运行环境标识
	Environment string
}

// Telemetry 持有追踪提供者，负责追踪数据的生命周期。
type Telemetry struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
}

// New 根据配置创建 Telemetry 实例，并设置全局追踪提供者与传播器。
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{config: cfg, tracer: otel.Tracer(tracerName)}, nil
	}

	if cfg.SampleRate > 1 {
		cfg.SampleRate = 1.0
	}

	// 扩展的 INIT 阶段时间有限，连接建立最多等待 5 秒
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(ctx, cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to %s: %w", cfg.Endpoint, err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			attribute.String("environment", cfg.Environment),
		),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Telemetry{
		config:         cfg,
		tracerProvider: tp,
		tracer:         tp.Tracer(tracerName),
	}, nil
}

// Shutdown 刷新所有待发送的追踪数据。
// Lambda 在 SHUTDOWN 之后会冻结执行环境，必须在退出前调用。
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.tracerProvider == nil {
		return nil
	}
	return t.tracerProvider.Shutdown(ctx)
}

// IsEnabled 返回遥测功能是否已启用。
func (t *Telemetry) IsEnabled() bool {
	return t != nil && t.config.Enabled
}

// StartSpan 在全局追踪提供者上创建 Span。
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// RecordError 在 Span 上记录错误并将状态置为 Error。
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
