/*
 * @Description: 后台任务接口与站点地图任务
 * @Author: 安知鱼
 * @Date: 2025-07-12 16:09:46
 * @LastEditTime: 2025-11-14 18:02:44
 * @LastEditors: 安知鱼
 */
// internal/app/task/jobs.go
package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/service/sitemap"
)

// Job 与 cron.Job 接口兼容。
type Job interface {
	Run()
	Name() string
}

// SitemapRefreshJob 周期性地再生成所有缺失或过期的缓存记录
type SitemapRefreshJob struct {
	svc     sitemap.Service
	timeout time.Duration
	logger  *slog.Logger
}

// NewSitemapRefreshJob 创建刷新任务，timeout 是整轮刷新的上限
func NewSitemapRefreshJob(svc sitemap.Service, timeout time.Duration, logger *slog.Logger) *SitemapRefreshJob {
	return &SitemapRefreshJob{svc: svc, timeout: timeout, logger: logger}
}

func (j *SitemapRefreshJob) Name() string { return "SitemapRefreshJob" }

func (j *SitemapRefreshJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	refreshed, err := j.svc.RefreshStale(ctx)
	if err != nil {
		j.logger.Warn("Sitemap refresh finished with errors", "refreshed", refreshed, slog.Any("error", err))
		return
	}
	j.logger.Info("Sitemap refresh finished", "refreshed", refreshed)
}

// RegenerateKeyJob 再生成单个缓存键，由请求路径在返回过期记录后派发
type RegenerateKeyJob struct {
	svc     sitemap.Service
	key     model.CacheKey
	timeout time.Duration
	logger  *slog.Logger
	done    func(model.CacheKey)
}

// NewRegenerateKeyJob 创建单键再生成任务，done 在任务结束后调用（可为 nil）
func NewRegenerateKeyJob(svc sitemap.Service, key model.CacheKey, timeout time.Duration, logger *slog.Logger, done func(model.CacheKey)) *RegenerateKeyJob {
	return &RegenerateKeyJob{svc: svc, key: key, timeout: timeout, logger: logger, done: done}
}

func (j *RegenerateKeyJob) Name() string { return "RegenerateKeyJob" }

// LogAttrs 附加到任务日志上的字段
func (j *RegenerateKeyJob) LogAttrs() []any {
	return []any{slog.String("key", j.key.String())}
}

func (j *RegenerateKeyJob) Run() {
	if j.done != nil {
		defer j.done(j.key)
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	record, err := j.svc.Regenerate(ctx, j.key)
	if err != nil {
		j.logger.Warn("Background regeneration failed", "key", j.key.String(), slog.Any("error", err))
		return
	}
	j.logger.Info("Background regeneration finished",
		"key", j.key.String(), "urls", record.Stats.TotalURLs, "chunks", record.Stats.TotalChunks)
}
