package logstore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/oriys/lambda-log-ingestor/internal/config"
	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/oriys/lambda-log-ingestor/internal/logstore"
	"github.com/oriys/lambda-log-ingestor/internal/logstore/logstoretest"
	"github.com/sirupsen/logrus/hooks/test"
)

func newPoller(store *logstoretest.Store) *logstore.Poller {
	logger, _ := test.NewNullLogger()
	return logstore.NewPoller(store, config.PollerConfig{
		PageSize:     100,
		RetryBackoff: 10 * time.Millisecond,
	}, nil, logger)
}

func TestFetchRetriesUntilStreamExists(t *testing.T) {
	store := logstoretest.New()
	store.Append("g", "s", "hello")
	store.FailNotFound("g", "s", 3)

	page, err := newPoller(store).Fetch(context.Background(), "g", "s", nil, time.Second)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(page.Events) != 1 || page.Events[0].Message != "hello" {
		t.Fatalf("events=%+v", page.Events)
	}
	if got := store.Calls(); got != 4 {
		t.Fatalf("calls=%d, want 4", got)
	}
	q := store.Queries()[0]
	if q.Limit != 100 || !q.StartFromHead || q.Cursor != nil {
		t.Fatalf("query=%+v", q)
	}
}

func TestFetchTimesOut(t *testing.T) {
	store := logstoretest.New()

	start := time.Now()
	_, err := newPoller(store).Fetch(context.Background(), "g", "missing", nil, 60*time.Millisecond)
	if !domain.IsTimeout(err) {
		t.Fatalf("err=%v, want TimeoutError", err)
	}
	if !errors.Is(err, domain.ErrStreamNotFound) {
		t.Fatalf("timeout error does not carry the last underlying error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Fetch took %s, want about 60ms", elapsed)
	}
	if store.Calls() < 2 {
		t.Fatalf("calls=%d, want retries", store.Calls())
	}
}

func TestFetchZeroTimeoutTriesOnce(t *testing.T) {
	store := logstoretest.New()
	_, err := newPoller(store).Fetch(context.Background(), "g", "missing", nil, 0)
	if !domain.IsTimeout(err) {
		t.Fatalf("err=%v, want TimeoutError", err)
	}
	if store.Calls() != 1 {
		t.Fatalf("calls=%d, want 1", store.Calls())
	}
}

func TestFetchSurfacesOtherErrors(t *testing.T) {
	store := logstoretest.New()
	boom := errors.New("throttled")
	store.FailWith(boom)

	_, err := newPoller(store).Fetch(context.Background(), "g", "s", nil, time.Second)
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want %v", err, boom)
	}
	if domain.IsTimeout(err) {
		t.Fatalf("non-retryable error reported as timeout")
	}
	if store.Calls() != 1 {
		t.Fatalf("calls=%d, want 1", store.Calls())
	}
}

func TestFetchHonoursContext(t *testing.T) {
	store := logstoretest.New()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := newPoller(store).Fetch(ctx, "g", "missing", nil, 10*time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v, want context.DeadlineExceeded", err)
	}
}

func TestFetchPaginates(t *testing.T) {
	store := logstoretest.New()
	for i := 0; i < 150; i++ {
		store.Append("g", "s", fmt.Sprintf("line %d", i))
	}
	p := newPoller(store)

	first, err := p.Fetch(context.Background(), "g", "s", nil, time.Second)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(first.Events) != 100 {
		t.Fatalf("first page=%d, want 100", len(first.Events))
	}
	second, err := p.Fetch(context.Background(), "g", "s", first.NextCursor, time.Second)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(second.Events) != 50 || second.Events[0].Message != "line 100" {
		t.Fatalf("second page=%d first=%q", len(second.Events), second.Events[0].Message)
	}
}
