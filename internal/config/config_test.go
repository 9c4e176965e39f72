package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "127.0.0.1:9001")
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Extension.RuntimeAPI != "127.0.0.1:9001" {
		t.Fatalf("runtime api=%q", cfg.Extension.RuntimeAPI)
	}
	if cfg.AWS.Region != "eu-west-1" {
		t.Fatalf("region=%q", cfg.AWS.Region)
	}
	if cfg.Poller.PageSize != 100 {
		t.Fatalf("page size=%d, want 100", cfg.Poller.PageSize)
	}
	if cfg.Poller.RetryBackoff != 10*time.Millisecond {
		t.Fatalf("retry backoff=%s", cfg.Poller.RetryBackoff)
	}
	if cfg.Poller.StreamTimeout != 6*time.Second {
		t.Fatalf("stream timeout=%s", cfg.Poller.StreamTimeout)
	}
	if cfg.LogConfig.WaitTimeout != 2*time.Second || cfg.LogConfig.PollInterval != 10*time.Millisecond {
		t.Fatalf("logconfig=%+v", cfg.LogConfig)
	}
	if cfg.LogConfig.Path != "/tmp/log-ingestor-config.json" {
		t.Fatalf("logconfig path=%q", cfg.LogConfig.Path)
	}
	if len(cfg.Extension.Events) != 2 {
		t.Fatalf("events=%v", cfg.Extension.Events)
	}
}

func TestLoadFileAndSecretOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
poller:
  stream_timeout: 3s
  idle_interval: 50ms
storage:
  redis:
    addr: localhost:6379
    password: from-file
logging:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	secret := filepath.Join(dir, "redis-password")
	if err := os.WriteFile(secret, []byte("s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INGESTOR_REDIS_PASSWORD_FILE", secret)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poller.StreamTimeout != 3*time.Second {
		t.Fatalf("stream timeout=%s, want 3s", cfg.Poller.StreamTimeout)
	}
	if cfg.Poller.IdleInterval != 50*time.Millisecond {
		t.Fatalf("idle interval=%s", cfg.Poller.IdleInterval)
	}
	if cfg.Storage.Redis.Password != "s3cret" {
		t.Fatalf("redis password=%q, want s3cret", cfg.Storage.Redis.Password)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level=%q", cfg.Logging.Level)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("poller: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid yaml")
	}
}
