// Package logstore 封装对远端分页日志存储（CloudWatch Logs）的访问。
// Client 是单次分页请求的抽象；Poller 在其之上处理"日志流尚未创建"的有界重试。
package logstore

import (
	"context"
	"time"
)

// Event 是日志流中的一条记录。
type Event struct {
	Message   string
	Timestamp time.Time
}

// Page 是一次分页请求的结果。
type Page struct {
	Events []Event
	// NextCursor 指向下一页的游标，nil 表示存储未返回游标
	NextCursor *string
}

// Query 描述一次分页请求。
type Query struct {
	LogGroup  string
	LogStream string
	// Cursor 为 nil 时从日志流开头读取
	Cursor *string
	Limit  int32
	// StartFromHead 固定为 true：按时间正序读取
	StartFromHead bool
}

// Client 拉取一页日志记录。
// 目标日志流不存在时返回的错误必须满足 errors.Is(err, domain.ErrStreamNotFound)。
type Client interface {
	GetLogEvents(ctx context.Context, q *Query) (*Page, error)
}
