package correlator

import (
	"context"
	"sort"
	"sync"

	"github.com/oriys/lambda-log-ingestor/internal/domain"
	"github.com/oriys/lambda-log-ingestor/internal/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Registry 维护 (日志组, 日志流) 到唯一活跃 Job 的映射。
// 条目在进程生命周期内不会被移除；Job 退出后再次路由到同一键会创建新的 Job。
type Registry struct {
	ctx     context.Context
	fetcher Fetcher
	sink    Sink
	opts    Options
	metrics *metrics.Metrics
	logger  *logrus.Logger

	mu      sync.Mutex
	jobs    map[domain.DestinationKey]*Job
	retired []*Job
	closed  bool
}

// NewRegistry 创建 Registry。ctx 是所有 Job 循环的父上下文，取消它会强制中止正在进行的拉取。
func NewRegistry(ctx context.Context, fetcher Fetcher, sink Sink, opts Options, m *metrics.Metrics, logger *logrus.Logger) *Registry {
	return &Registry{
		ctx:     ctx,
		fetcher: fetcher,
		sink:    sink,
		opts:    opts,
		metrics: m,
		logger:  logger,
		jobs:    make(map[domain.DestinationKey]*Job),
	}
}

// Route 将调用路由到 (group, stream) 对应的 Job，必要时创建并在后台启动新 Job。
// 排空开始后到达的调用只记录日志并丢弃。
func (r *Registry) Route(group, stream, invocationID string) {
	key := domain.DestinationKey{LogGroup: group, LogStream: stream}
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			r.logger.WithFields(logrus.Fields{
				"request_id": invocationID,
				"log_group":  group,
				"log_stream": stream,
			}).Warn("Registry is draining, invocation dropped")
			return
		}

		job, ok := r.jobs[key]
		if !ok || job.Exited() {
			if ok {
				r.retired = append(r.retired, job)
			}
			job = NewJob(key, r.fetcher, r.sink, r.opts, r.metrics, r.logger)
			job.Add(invocationID)
			r.jobs[key] = job
			r.mu.Unlock()

			r.metrics.JobStarted()
			go r.run(job, invocationID)
			return
		}
		r.mu.Unlock()

		// Job 可能在查找之后恰好退出，此时重试并创建新 Job
		if job.Add(invocationID) {
			return
		}
	}
}

// run 在后台运行 Job，失败时记录日志；失败结果仍由 DrainAll 汇报。
func (r *Registry) run(job *Job, trigger string) {
	err := job.Run(r.ctx)
	r.metrics.JobFinished(err != nil)
	if err == nil {
		return
	}

	unresolved := job.Pending()
	r.metrics.RecordUnresolved(len(unresolved))
	r.logger.WithError(err).WithFields(logrus.Fields{
		"job_id":     job.ID(),
		"log_group":  job.Key().LogGroup,
		"log_stream": job.Key().LogStream,
		"request_id": trigger,
		"unresolved": unresolved,
	}).Error("Correlation job failed")
}

// DrainAll 为所有 Job 设置停止标志，并等待每个 Job 的循环退出。
// 所有 Job 都结束后才返回，返回遇到的第一个错误；ctx 结束时仍未解析的调用被记录为 unresolved。
func (r *Registry) DrainAll(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	jobs := make([]*Job, 0, len(r.jobs)+len(r.retired))
	jobs = append(jobs, r.retired...)
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	r.mu.Unlock()

	for _, job := range jobs {
		job.Stop()
	}

	r.logger.WithField("jobs", len(jobs)).Info("Draining correlation jobs")

	var g errgroup.Group
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			return job.Wait(ctx)
		})
	}
	err := g.Wait()

	if ctx.Err() != nil {
		for _, job := range jobs {
			if job.Exited() {
				continue
			}
			unresolved := job.Pending()
			r.metrics.RecordUnresolved(len(unresolved))
			for _, id := range unresolved {
				r.logger.WithFields(logrus.Fields{
					"request_id": id,
					"log_group":  job.Key().LogGroup,
					"log_stream": job.Key().LogStream,
				}).Warn("Invocation unresolved")
			}
		}
	}
	return err
}

// Snapshot 返回所有当前 Job 的状态，按键排序。
func (r *Registry) Snapshot() []Status {
	r.mu.Lock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	r.mu.Unlock()

	out := make([]Status, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Snapshot())
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].Key.String() < out[k].Key.String()
	})
	return out
}

// Job 返回 (group, stream) 当前对应的 Job。
func (r *Registry) Job(group, stream string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[domain.DestinationKey{LogGroup: group, LogStream: stream}]
	return job, ok
}
