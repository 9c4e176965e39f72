package telemetry

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel/trace"
)

func TestLogrusHookInjectsTraceFields(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.AddHook(NewLogrusHook())
	hook := test.NewLocal(logger)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.WithContext(ctx).Info("with span")
	entry := hook.LastEntry()
	if entry.Data["trace_id"] != traceID.String() {
		t.Fatalf("trace_id=%v", entry.Data["trace_id"])
	}
	if entry.Data["trace_sampled"] != true {
		t.Fatalf("trace_sampled=%v", entry.Data["trace_sampled"])
	}

	logger.WithFields(logrus.Fields{"k": "v"}).Info("without span")
	if _, ok := hook.LastEntry().Data["trace_id"]; ok {
		t.Fatalf("unexpected trace_id without context")
	}
}

func TestDisabledTelemetry(t *testing.T) {
	tel, err := New(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tel.IsEnabled() {
		t.Fatalf("IsEnabled=true, want false")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
