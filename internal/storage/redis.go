// Package storage 提供完成观测的存储后端（Redis 缓存与 PostgreSQL 表）。
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oriys/lambda-log-ingestor/internal/config"
	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStore 以 "report:<requestId>" 为键缓存完成记录，带 TTL。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore 连接 Redis 并执行一次 PING。
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client, ttl: cfg.ReportTTL}, nil
}

// Close 关闭连接。
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func reportKey(requestID string) string {
	return "report:" + requestID
}

// SaveReport 写入完成记录。
func (s *RedisStore) SaveReport(ctx context.Context, rec domain.ReportRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, reportKey(rec.RequestID), data, s.ttl).Err()
}
