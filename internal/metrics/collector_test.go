package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordInvocation()
	m.RecordResolved(time.Second)
	m.RecordPoll(errors.New("boom"))
	m.ObserveReport(domain.ReportRecord{RequestID: "x"})
	m.JobStarted()
	m.JobFinished(true)
}

func TestInvocationLifecycle(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry(), "test")

	m.RecordInvocation()
	m.RecordInvocation()
	m.RecordResolved(150 * time.Millisecond)

	if got := testutil.ToFloat64(m.InvocationsTotal); got != 2 {
		t.Fatalf("invocations=%v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PendingInvocations); got != 1 {
		t.Fatalf("pending=%v, want 1", got)
	}

	m.RecordPoll(nil)
	m.RecordPoll(errors.New("boom"))
	if got := testutil.ToFloat64(m.PollsTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("poll errors=%v, want 1", got)
	}
}

func TestObserveReport(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry(), "test")
	d, b, mem := "100.00 ms", "100 ms", "64 MB"

	m.ObserveReport(domain.ReportRecord{RequestID: "a", Duration: &d, BilledDuration: &b, MaxMemoryUsed: &mem})
	m.ObserveReport(domain.ReportRecord{RequestID: "b"})

	if got := testutil.ToFloat64(m.ReportsTotal); got != 2 {
		t.Fatalf("reports=%v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.ReportDuration); got != 1 {
		t.Fatalf("duration series=%d, want 1", got)
	}
}
