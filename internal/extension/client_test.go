package extension

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oriys/lambda-log-ingestor/internal/domain"
)

func TestRegisterAndNext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2020-01-01/extension/register":
			if r.Method != http.MethodPost {
				t.Errorf("method=%s", r.Method)
			}
			if got := r.Header.Get("Lambda-Extension-Name"); got != "log-ingestor" {
				t.Errorf("extension name=%q", got)
			}
			var body registerRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Events) != 2 {
				t.Errorf("body=%+v err=%v", body, err)
			}
			w.Header().Set("Lambda-Extension-Identifier", "ext-123")
			w.Write([]byte(`{"functionName":"fn"}`))
		case "/2020-01-01/extension/event/next":
			if got := r.Header.Get("Lambda-Extension-Identifier"); got != "ext-123" {
				t.Errorf("identifier=%q", got)
			}
			w.Write([]byte(`{"eventType":"INVOKE","deadlineMs":1700000000000,"requestId":"req-1"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := New(strings.TrimPrefix(server.URL, "http://"), "log-ingestor")
	id, err := c.Register(context.Background(), domain.EventInvoke, domain.EventShutdown)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id != "ext-123" || c.ID() != "ext-123" {
		t.Fatalf("id=%q", id)
	}

	ev, err := c.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.EventType != domain.EventInvoke || ev.RequestID != "req-1" {
		t.Fatalf("event=%+v", ev)
	}
}

func TestRegisterFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorType":"Extension.InvalidName"}`, http.StatusForbidden)
	}))
	defer server.Close()

	c := New(server.URL, "bad")
	_, err := c.Register(context.Background(), domain.EventInvoke)
	if !errors.Is(err, domain.ErrRegistrationFailed) {
		t.Fatalf("err=%v, want ErrRegistrationFailed", err)
	}
	if !strings.Contains(err.Error(), "403") {
		t.Fatalf("err=%v, want status code", err)
	}
}

func TestExitError(t *testing.T) {
	var gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Lambda-Extension-Function-Error-Type")
		w.Write([]byte(`{"status":"OK"}`))
	}))
	defer server.Close()

	c := New(server.URL, "log-ingestor")
	if err := c.ExitError(context.Background(), "Extension.UnknownEvent", errors.New("boom")); err != nil {
		t.Fatalf("ExitError: %v", err)
	}
	if gotType != "Extension.UnknownEvent" {
		t.Fatalf("error type=%q", gotType)
	}
}
