package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/oriys/lambda-log-ingestor/internal/domain"
)

func TestNewReportEvent(t *testing.T) {
	d := "100.00 ms"
	ev, err := NewReportEvent("report", domain.ReportRecord{RequestID: "req-1", Duration: &d})
	if err != nil {
		t.Fatalf("NewReportEvent: %v", err)
	}
	if ev.Subject != "report.req-1" {
		t.Fatalf("subject=%q", ev.Subject)
	}
	if _, err := uuid.Parse(ev.ID); err != nil {
		t.Fatalf("id=%q is not a uuid", ev.ID)
	}

	var rec domain.ReportRecord
	if err := json.Unmarshal(ev.Data, &rec); err != nil {
		t.Fatalf("data: %v", err)
	}
	if rec.RequestID != "req-1" || domain.Value(rec.Duration) != "100.00 ms" || rec.MemorySize != nil {
		t.Fatalf("rec=%+v", rec)
	}
}
