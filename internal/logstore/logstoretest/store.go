// Package logstoretest 提供内存版的分页日志存储，供采集引擎的测试使用。
package logstoretest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/oriys/lambda-log-ingestor/internal/logstore"
)

// Store 是按 (日志组, 日志流) 存放的追加式日志存储。
// 游标格式为 "f/<offset>"，到达末尾时返回与请求相同的游标，与 CloudWatch 行为一致。
type Store struct {
	mu       sync.Mutex
	streams  map[domain.DestinationKey][]logstore.Event
	notFound map[domain.DestinationKey]int
	err      error
	calls    int
	queries  []logstore.Query
}

// New 创建空存储。
func New() *Store {
	return &Store{
		streams:  make(map[domain.DestinationKey][]logstore.Event),
		notFound: make(map[domain.DestinationKey]int),
	}
}

// Append 向日志流追加消息，日志流不存在时创建。
func (s *Store) Append(group, stream string, messages ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.DestinationKey{LogGroup: group, LogStream: stream}
	events := s.streams[key]
	for _, m := range messages {
		events = append(events, logstore.Event{Message: m, Timestamp: time.Now()})
	}
	s.streams[key] = events
}

// FailNotFound 让接下来 n 次对该日志流的请求返回 ErrStreamNotFound。
func (s *Store) FailNotFound(group, stream string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notFound[domain.DestinationKey{LogGroup: group, LogStream: stream}] = n
}

// FailWith 让之后所有请求返回 err，传入 nil 恢复正常。
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls 返回累计请求次数。
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Queries 返回全部请求的副本。
func (s *Store) Queries() []logstore.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]logstore.Query(nil), s.queries...)
}

// GetLogEvents 实现 logstore.Client。
func (s *Store) GetLogEvents(ctx context.Context, q *logstore.Query) (*logstore.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.queries = append(s.queries, *q)

	if s.err != nil {
		return nil, s.err
	}
	key := domain.DestinationKey{LogGroup: q.LogGroup, LogStream: q.LogStream}
	if n := s.notFound[key]; n > 0 {
		s.notFound[key] = n - 1
		return nil, fmt.Errorf("%w: %s", domain.ErrStreamNotFound, key)
	}
	events, ok := s.streams[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrStreamNotFound, key)
	}

	from := 0
	if q.Cursor != nil {
		n, err := strconv.Atoi(strings.TrimPrefix(*q.Cursor, "f/"))
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q", *q.Cursor)
		}
		from = n
	}
	limit := int(q.Limit)
	if limit <= 0 {
		limit = len(events)
	}
	to := min(from+limit, len(events))
	next := "f/" + strconv.Itoa(to)
	return &logstore.Page{
		Events:     append([]logstore.Event(nil), events[from:to]...),
		NextCursor: &next,
	}, nil
}
