package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/oriys/lambda-log-ingestor/internal/config"
	"github.com/oriys/lambda-log-ingestor/internal/domain"
)

const reportsSchema = `
CREATE TABLE IF NOT EXISTS invocation_reports (
	request_id      TEXT PRIMARY KEY,
	duration        TEXT,
	billed_duration TEXT,
	memory_size     TEXT,
	max_memory_used TEXT,
	logged_at       TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore 将完成记录写入 invocation_reports 表。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 连接数据库并确保表存在。
func NewPostgresStore(cfg config.PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}
	// 扩展进程生命周期短且写入量小
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if _, err := db.ExecContext(ctx, reportsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create invocation_reports: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func postgresDSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)
}

// Close 关闭连接池。
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// SaveReport 插入完成记录；同一调用的重复记录被忽略。
func (s *PostgresStore) SaveReport(ctx context.Context, rec domain.ReportRecord) error {
	var loggedAt *time.Time
	if !rec.LoggedAt.IsZero() {
		loggedAt = &rec.LoggedAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocation_reports (request_id, duration, billed_duration, memory_size, max_memory_used, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (request_id) DO NOTHING`,
		rec.RequestID, rec.Duration, rec.BilledDuration, rec.MemorySize, rec.MaxMemoryUsed, loggedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", rec.RequestID, err)
	}
	return nil
}
