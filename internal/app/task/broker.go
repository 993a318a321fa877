// internal/app/task/broker.go
package task

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/service/sitemap"
)

const (
	defaultQueueSize      = 256
	defaultRefreshTimeout = 30 * time.Minute
)

// Options Broker 的可选参数
type Options struct {
	// RefreshSchedule cron 表达式（支持秒字段和 @every 描述符），为空时不注册周期刷新
	RefreshSchedule string
	// RefreshTimeout 单轮周期刷新的上限
	RefreshTimeout time.Duration
	// RegenerateTimeout 单个缓存键后台再生成的上限
	RegenerateTimeout time.Duration
	Workers           int
	QueueSize         int
	Logger            *slog.Logger
}

// Broker 是整个后台任务模块的核心协调者。
// 它负责周期刷新过期的站点地图，并用一个有界队列承接请求路径派发的单键再生成。
type Broker struct {
	cron     *cron.Cron
	logger   *slog.Logger
	svc      sitemap.Service
	opts     Options
	jobQueue chan Job

	mu      sync.Mutex
	pending map[model.CacheKey]struct{}
	closed  bool
	workers sync.WaitGroup
}

// NewBroker 是 Broker 的构造函数。
func NewBroker(svc sitemap.Service, opts Options) *Broker {
	logger := opts.Logger
	if logger == nil {
		slogHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
		logger = slog.New(slogHandler)
	}
	logger = logger.With("system", "task_broker")

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
		if opts.Workers <= 0 {
			opts.Workers = 4
		}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = defaultRefreshTimeout
	}
	if opts.RegenerateTimeout <= 0 {
		opts.RegenerateTimeout = sitemap.DefaultRegenerateTimeout
	}

	cronLogger := newCronLogger(logger)
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cronLogger),
		cron.WithChain(jobWrappers(logger, cron.DelayIfStillRunning(cronLogger))...),
	)

	broker := &Broker{
		cron:     c,
		logger:   logger,
		svc:      svc,
		opts:     opts,
		jobQueue: make(chan Job, opts.QueueSize),
		pending:  make(map[model.CacheKey]struct{}),
	}

	broker.startWorkerPool()

	return broker
}

// startWorkerPool 启动固定数量的 worker goroutine 来处理任务。
func (b *Broker) startWorkerPool() {
	b.logger.Info("Starting task worker pool", "concurrency", b.opts.Workers)

	chain := cron.NewChain(jobWrappers(b.logger)...)
	for i := 0; i < b.opts.Workers; i++ {
		workerID := i + 1
		b.workers.Add(1)
		go func() {
			defer b.workers.Done()
			for job := range b.jobQueue {
				b.logger.Debug("Worker picked up a job", "worker_id", workerID, "job_name", job.Name())
				chain.Then(job).Run()
			}
			b.logger.Debug("Worker stopped", "worker_id", workerID)
		}()
	}
}

// RegisterCronJobs 注册所有周期性任务。
func (b *Broker) RegisterCronJobs() error {
	if b.opts.RefreshSchedule == "" {
		b.logger.Info("No refresh schedule configured, periodic sitemap refresh disabled")
		return nil
	}

	refreshJob := NewSitemapRefreshJob(b.svc, b.opts.RefreshTimeout, b.logger)
	if _, err := b.cron.AddJob(b.opts.RefreshSchedule, refreshJob); err != nil {
		b.logger.Error("Failed to add 'SitemapRefreshJob'", slog.Any("error", err))
		return fmt.Errorf("register sitemap refresh job: %w", err)
	}
	b.logger.Info("-> Successfully registered 'SitemapRefreshJob'", "schedule", b.opts.RefreshSchedule)
	return nil
}

// Dispatch 将任务发送到队列中，队列已满或已关闭时返回 false。
func (b *Broker) Dispatch(job Job) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	select {
	case b.jobQueue <- job:
		return true
	default:
		b.logger.Warn("Job queue is full, dropping job", "job_name", job.Name())
		return false
	}
}

// DispatchRegenerate 派发单键再生成任务，同一个键在队列中最多存在一个。
// 已在排队时视为派发成功。
func (b *Broker) DispatchRegenerate(key model.CacheKey) bool {
	b.mu.Lock()
	if _, queued := b.pending[key]; queued {
		b.mu.Unlock()
		return true
	}
	b.pending[key] = struct{}{}
	b.mu.Unlock()

	job := NewRegenerateKeyJob(b.svc, key, b.opts.RegenerateTimeout, b.logger, b.release)
	if !b.Dispatch(job) {
		b.release(key)
		return false
	}
	b.logger.Info("Successfully queued sitemap regeneration job", "key", key.String())
	return true
}

func (b *Broker) release(key model.CacheKey) {
	b.mu.Lock()
	delete(b.pending, key)
	b.mu.Unlock()
}

// RunRefreshNow 立即派发一次全量刷新，启动预热时使用
func (b *Broker) RunRefreshNow() error {
	if !b.Dispatch(NewSitemapRefreshJob(b.svc, b.opts.RefreshTimeout, b.logger)) {
		return errors.New("task queue unavailable")
	}
	return nil
}

// Start 启动 cron 调度器。
func (b *Broker) Start() {
	b.logger.Info("Task broker started.")
	b.cron.Start()
}

// Stop 优雅地停止 cron 调度器和所有 worker，已入队的任务会执行完毕。
func (b *Broker) Stop() {
	b.logger.Info("Stopping task broker...")
	ctx := b.cron.Stop()
	<-ctx.Done()

	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.jobQueue)
	}
	b.mu.Unlock()

	b.workers.Wait()
	b.logger.Info("Task broker gracefully stopped.")
}
