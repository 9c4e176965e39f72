package storage

import (
	"testing"

	"github.com/oriys/lambda-log-ingestor/internal/config"
)

func TestPostgresDSN(t *testing.T) {
	got := postgresDSN(config.PostgresConfig{
		Host: "db", Port: 5432, User: "ingestor", Password: "pw", Database: "reports", SSLMode: "disable",
	})
	want := "host=db port=5432 user=ingestor password=pw dbname=reports sslmode=disable"
	if got != want {
		t.Fatalf("dsn=%q, want %q", got, want)
	}
}

func TestReportKey(t *testing.T) {
	if got := reportKey("abc"); got != "report:abc" {
		t.Fatalf("key=%q", got)
	}
}
