package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTimeoutErrorUnwrap(t *testing.T) {
	last := fmt.Errorf("%w: ResourceNotFoundException", ErrStreamNotFound)
	err := fmt.Errorf("poll: %w", &TimeoutError{Op: "GetLogEvents", Timeout: time.Second, Last: last})

	if !IsTimeout(err) {
		t.Fatalf("IsTimeout=false, want true")
	}
	if !errors.Is(err, ErrStreamNotFound) {
		t.Fatalf("errors.Is(err, ErrStreamNotFound)=false, want true")
	}
	if IsTimeout(last) {
		t.Fatalf("IsTimeout(last)=true, want false")
	}
}

func TestLogConfigValidate(t *testing.T) {
	if err := (LogConfig{LogGroupName: "g", LogStreamName: "s"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (LogConfig{LogGroupName: "g"}).Validate(); !errors.Is(err, ErrInvalidLogConfig) {
		t.Fatalf("err=%v, want ErrInvalidLogConfig", err)
	}
}

func TestNextEventDeadline(t *testing.T) {
	ev := &NextEvent{EventType: EventShutdown, DeadlineMs: 1700000000000}
	d, ok := ev.Deadline()
	if !ok || d.UnixMilli() != 1700000000000 {
		t.Fatalf("deadline=%v ok=%v", d, ok)
	}
	if _, ok := (&NextEvent{}).Deadline(); ok {
		t.Fatalf("ok=true for zero deadline")
	}
}
