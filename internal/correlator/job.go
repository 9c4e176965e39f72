// Package correlator 将调用开始通知与异步到达的 REPORT 日志记录关联起来。
//
// 每个 (日志组, 日志流) 对应一个 Job：Job 持有待完成调用集合与分页游标，在后台循环拉取日志，
// 把匹配到的 REPORT 记录作为完成观测交给 Sink，并从集合中移除对应调用。
// Registry 负责按键路由通知、懒创建 Job，并在关闭时排空所有 Job。
package correlator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/oriys/lambda-log-ingestor/internal/logstore"
	"github.com/oriys/lambda-log-ingestor/internal/metrics"
	"github.com/oriys/lambda-log-ingestor/internal/report"
	"github.com/oriys/lambda-log-ingestor/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Fetcher 拉取日志流的下一页，由 logstore.Poller 实现。
type Fetcher interface {
	Fetch(ctx context.Context, group, stream string, cursor *string, timeout time.Duration) (*logstore.Page, error)
}

// Sink 接收完成观测。
type Sink interface {
	Observe(ctx context.Context, rec domain.ReportRecord)
}

// Options 控制 Job 的拉取节奏。
type Options struct {
	// StreamTimeout 每次拉取等待日志流出现的最长时间
	StreamTimeout time.Duration
	// IdleInterval 拉取到空页后的等待时间，0 表示立即开始下一轮
	IdleInterval time.Duration
}

// Job 是一个 (日志组, 日志流) 的关联任务。
//
// 循环在"待完成集合非空"或"尚未停止"时持续拉取，只有两者同时不成立才退出：
// 停止后仍会排空已知的待完成调用，而没有待完成调用的 Job 会一直拉取直到被停止。
// 停止标志只在每轮拉取开始前检查，正在进行的拉取不会被提前打断。
type Job struct {
	id      string
	key     domain.DestinationKey
	fetcher Fetcher
	sink    Sink
	opts    Options
	metrics *metrics.Metrics
	logger  *logrus.Entry

	mu      sync.Mutex
	pending map[string]*domain.PendingInvocation
	stopped bool
	exited  bool
	cursor  *string
	cycles  int
	started time.Time

	done chan struct{}
	err  error
}

// NewJob 创建一个尚未运行的 Job，调用 Run 启动循环。
func NewJob(key domain.DestinationKey, fetcher Fetcher, sink Sink, opts Options, m *metrics.Metrics, logger *logrus.Logger) *Job {
	id := uuid.NewString()
	return &Job{
		id:      id,
		key:     key,
		fetcher: fetcher,
		sink:    sink,
		opts:    opts,
		metrics: m,
		logger: logger.WithFields(logrus.Fields{
			"job_id":     id,
			"log_group":  key.LogGroup,
			"log_stream": key.LogStream,
		}),
		pending: make(map[string]*domain.PendingInvocation),
		done:    make(chan struct{}),
	}
}

// ID 返回 Job 的唯一标识。
func (j *Job) ID() string { return j.id }

// Key 返回 Job 对应的日志目标。
func (j *Job) Key() domain.DestinationKey { return j.key }

// Add 将调用加入待完成集合，下一轮拉取即可匹配到它。
// Job 循环已退出时返回 false，调用方应改用新的 Job。重复添加同一标识不会重置其登记时间。
func (j *Job) Add(requestID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.exited {
		return false
	}
	if _, ok := j.pending[requestID]; !ok {
		j.pending[requestID] = domain.NewPendingInvocation(requestID)
		j.metrics.RecordInvocation()
	}
	return true
}

// Stop 标记不再有新的调用到达。只会从 false 变为 true。
func (j *Job) Stop() {
	j.mu.Lock()
	j.stopped = true
	j.mu.Unlock()
}

// Done 在循环退出后关闭。
func (j *Job) Done() <-chan struct{} { return j.done }

// Err 返回循环退出的原因，正常排空时为 nil；循环未退出时也为 nil。
func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Exited 报告循环是否已退出（或已决定退出）。
func (j *Job) Exited() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.exited
}

// Wait 等待循环退出并返回其错误；ctx 先结束时返回 ctx.Err()。
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending 返回按字典序排列的待完成调用标识。
func (j *Job) Pending() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	ids := make([]string, 0, len(j.pending))
	for id := range j.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run 执行拉取循环，直到排空退出或拉取失败。每个 Job 只能调用一次。
// 拉取失败不会在 Job 层重试，错误直接返回给等待者。
func (j *Job) Run(ctx context.Context) (err error) {
	j.mu.Lock()
	j.started = time.Now()
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.exited = true
		j.err = err
		j.mu.Unlock()
		close(j.done)
	}()

	j.logger.Debug("Correlation job started")
	for j.shouldContinue() {
		if err := j.poll(ctx); err != nil {
			return err
		}
	}
	j.logger.Debug("Correlation job drained")
	return nil
}

// shouldContinue 在每轮开始前检查退出条件；决定退出时在同一把锁内标记 exited，
// 之后的 Add 会失败而不会把调用留在已退出的 Job 中。
func (j *Job) shouldContinue() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.pending) == 0 && j.stopped {
		j.exited = true
		return false
	}
	return true
}

// poll 执行一轮：拉取一页、匹配 REPORT 记录、推进游标。
func (j *Job) poll(ctx context.Context) error {
	j.mu.Lock()
	cursor := j.cursor
	j.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "correlator.poll", trace.WithAttributes(
		attribute.String("job.id", j.id),
	))
	defer span.End()

	page, err := j.fetcher.Fetch(ctx, j.key.LogGroup, j.key.LogStream, cursor, j.opts.StreamTimeout)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	matched := 0
	for _, ev := range page.Events {
		rec, ok := report.Parse(ev.Message)
		if !ok {
			continue
		}
		if !j.resolve(rec.RequestID) {
			// 属于其他 Job 的调用、重复记录或无关报告
			j.metrics.RecordUnmatched()
			continue
		}
		rec.LoggedAt = ev.Timestamp
		j.sink.Observe(ctx, rec)
		matched++
	}
	span.SetAttributes(attribute.Int("job.matched", matched))

	j.mu.Lock()
	if page.NextCursor != nil {
		j.cursor = page.NextCursor
	}
	j.cycles++
	j.mu.Unlock()

	if len(page.Events) == 0 && j.opts.IdleInterval > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(j.opts.IdleInterval):
		}
	}
	return nil
}

// resolve 从待完成集合中移除 requestID，不在集合中时返回 false。
func (j *Job) resolve(requestID string) bool {
	j.mu.Lock()
	p, ok := j.pending[requestID]
	if ok {
		delete(j.pending, requestID)
	}
	j.mu.Unlock()

	if ok {
		j.metrics.RecordResolved(p.Age())
	}
	return ok
}

// Status 是 Job 状态的只读快照。
type Status struct {
	ID        string                `json:"id"`
	Key       domain.DestinationKey `json:"key"`
	Pending   []string              `json:"pending"`
	Stopped   bool                  `json:"stopped"`
	Exited    bool                  `json:"exited"`
	Cycles    int                   `json:"cycles"`
	StartedAt time.Time             `json:"started_at"`
	Error     string                `json:"error,omitempty"`
}

// Snapshot 返回 Job 的当前状态。
func (j *Job) Snapshot() Status {
	pending := j.Pending()
	j.mu.Lock()
	defer j.mu.Unlock()
	s := Status{
		ID:        j.id,
		Key:       j.key,
		Pending:   pending,
		Stopped:   j.stopped,
		Exited:    j.exited,
		Cycles:    j.cycles,
		StartedAt: j.started,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}
