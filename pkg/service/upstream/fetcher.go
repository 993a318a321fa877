/*
 * @Description: 分页抓取器，首页同步获取元数据，其余页面交给有界 worker 池
 * @Author: 安知鱼
 * @Date: 2025-10-29 09:31:20
 * @LastEditTime: 2025-11-14 11:05:19
 * @LastEditors: 安知鱼
 */
package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
)

const (
	DefaultPageSize    = 100
	DefaultMaxPages    = 200
	DefaultConcurrency = 5
)

// FetchRequest 一次完整抓取的参数
type FetchRequest struct {
	Domain      string
	Country     string
	Lang        string
	PageSize    int
	MaxPages    int
	Concurrency int
}

func (r *FetchRequest) normalize() {
	if r.PageSize <= 0 {
		r.PageSize = DefaultPageSize
	}
	if r.MaxPages <= 0 {
		r.MaxPages = DefaultMaxPages
	}
	if r.Concurrency <= 0 {
		r.Concurrency = DefaultConcurrency
	}
}

func (r *FetchRequest) page(n int) PageRequest {
	return PageRequest{
		Domain:  r.Domain,
		Country: r.Country,
		Lang:    r.Lang,
		Page:    n,
		PerPage: r.PageSize,
	}
}

// Fetcher 抓取某个 (domain, locale) 的全部记录，结果是尽力而为的完整集合
type Fetcher struct {
	pages  PageFetcher
	logger *slog.Logger
}

// NewFetcher 创建抓取器
func NewFetcher(pages PageFetcher, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		pages:  pages,
		logger: logger.With("component", "upstream_fetcher"),
	}
}

// FetchAll 抓取所有页面。
// 首页失败时返回错误；其余页面失败只记录日志并跳过，体现在 FetchOutcome 中。
func (f *Fetcher) FetchAll(ctx context.Context, req FetchRequest) ([]RawRecord, model.FetchOutcome, error) {
	req.normalize()
	start := time.Now()
	log := f.logger.With("domain", req.Domain, "locale", req.Country+"-"+req.Lang)

	first, err := f.pages.FetchPage(ctx, req.page(1))
	if err != nil {
		outcome := model.FetchOutcome{Succeeded: false, PagesFailed: 1, TotalPages: 1}
		log.Error("upstream first page failed", slog.Any("error", err))
		return nil, outcome, fmt.Errorf("fetch first page of %s: %w", req.Domain, err)
	}

	records := append([]RawRecord(nil), first.Data...)
	outcome := model.FetchOutcome{Succeeded: true, PagesFetched: 1, TotalPages: 1}

	if lastPage := first.LastPage(req.PageSize); lastPage > 0 {
		outcome.TotalPages = lastPage
		end := min(lastPage, req.MaxPages)
		if lastPage > req.MaxPages {
			log.Warn("upstream reports more pages than the ceiling, truncating",
				"last_page", lastPage, "max_pages", req.MaxPages)
		}
		if end >= 2 {
			rest, fetched, failed := f.fetchPool(ctx, req, 2, end, log)
			records = append(records, rest...)
			outcome.PagesFetched += fetched
			outcome.PagesFailed += failed
		}
	} else if first.Links.Next != "" {
		rest, fetched, failed := f.followCursor(ctx, req, first.Links.Next, log)
		records = append(records, rest...)
		outcome.PagesFetched += fetched
		outcome.PagesFailed += failed
		outcome.TotalPages = outcome.PagesFetched + outcome.PagesFailed
	}

	outcome.Records = len(records)
	log.Info("upstream fetch finished",
		"records", outcome.Records,
		"pages_fetched", outcome.PagesFetched,
		"pages_failed", outcome.PagesFailed,
		"total_pages", outcome.TotalPages,
		slog.Duration("duration", time.Since(start)))
	return records, outcome, nil
}

// fetchPool 把 [from, to] 页号放进共享队列，由 Concurrency 个 worker 争抢消费。
// 结果按 worker 完成顺序追加，不保证页序。
func (f *Fetcher) fetchPool(ctx context.Context, req FetchRequest, from, to int, log *slog.Logger) ([]RawRecord, int, int) {
	queue := make(chan int, to-from+1)
	for p := from; p <= to; p++ {
		queue <- p
	}
	close(queue)

	workers := min(req.Concurrency, to-from+1)

	var (
		mu      sync.Mutex
		records []RawRecord
		fetched int
		failed  int
		g       errgroup.Group
	)

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for pageNum := range queue {
				if ctx.Err() != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}

				page, err := f.pages.FetchPage(ctx, req.page(pageNum))

				mu.Lock()
				if err != nil {
					failed++
					mu.Unlock()
					log.Warn("upstream page failed, skipping", "page", pageNum, slog.Any("error", err))
					continue
				}
				records = append(records, page.Data...)
				fetched++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return records, fetched, failed
}

// followCursor 总数未知时沿着 links.next 顺序抓取，直到没有下一页或达到 MaxPages。
// 游标模式下一页失败就无法继续，记一次失败后结束。
func (f *Fetcher) followCursor(ctx context.Context, req FetchRequest, next string, log *slog.Logger) ([]RawRecord, int, int) {
	var (
		records []RawRecord
		fetched int
		failed  int
	)

	for pageNum := 2; next != "" && pageNum <= req.MaxPages; pageNum++ {
		pr := req.page(pageNum)
		pr.Cursor = next

		page, err := f.pages.FetchPage(ctx, pr)
		if err != nil {
			failed++
			log.Warn("upstream cursor page failed, stopping pagination", "page", pageNum, slog.Any("error", err))
			break
		}
		records = append(records, page.Data...)
		fetched++
		next = page.Links.Next
	}

	if next != "" && failed == 0 {
		log.Warn("cursor pagination reached the page ceiling", "max_pages", req.MaxPages)
	}
	return records, fetched, failed
}
