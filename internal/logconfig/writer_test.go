package logconfig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oriys/lambda-log-ingestor/internal/domain"
)

func TestWriteFileRoundTrip(t *testing.T) {
	r, path := newResolver(t, time.Second)
	want := domain.LogConfig{LogGroupName: "/aws/lambda/fn", LogStreamName: "s1"}
	if err := WriteFile(path, want); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("leftover files: %v", entries)
	}
}

func TestWriteFileRejectsIncompleteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	err := WriteFile(path, domain.LogConfig{LogGroupName: "/aws/lambda/fn"})
	if !errors.Is(err, domain.ErrInvalidLogConfig) {
		t.Fatalf("err=%v, want ErrInvalidLogConfig", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file written for invalid config")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("AWS_LAMBDA_LOG_GROUP_NAME", "/aws/lambda/fn")
	t.Setenv("AWS_LAMBDA_LOG_STREAM_NAME", "2024/01/01/[$LATEST]abc")
	got := FromEnv()
	if got.Key().String() != "/aws/lambda/fn/2024/01/01/[$LATEST]abc" {
		t.Fatalf("FromEnv=%+v", got)
	}
}
