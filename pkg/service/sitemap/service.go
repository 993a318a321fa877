/*
 * @Description: 站点地图服务：缓存命中判断、增量再生成与渲染
 * @Author: 安知鱼
 * @Date: 2025-09-21 00:00:00
 * @LastEditTime: 2025-11-14 17:02:31
 * @LastEditors: 安知鱼
 */
package sitemap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/service/cache"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/service/upstream"
)

// DefaultRegenerateTimeout 同步再生成的默认超时
const DefaultRegenerateTimeout = 30 * time.Second

// ErrUnavailable 没有任何可用记录且上游抓取失败
var ErrUnavailable = errors.New("sitemap unavailable")

// CacheStatus 响应头 X-Sitemap-Cache 的取值
type CacheStatus string

const (
	CacheHit   CacheStatus = "HIT"
	CacheMiss  CacheStatus = "MISS"
	CacheStale CacheStatus = "STALE"
)

// ChunkNotFoundError 请求的分块序号超出范围
type ChunkNotFoundError struct {
	Key         model.CacheKey
	Index       int
	TotalChunks int
	TotalURLs   int
}

func (e *ChunkNotFoundError) Error() string {
	if e.TotalChunks == 0 {
		return fmt.Sprintf("sitemap chunk %d of %s not found", e.Index, e.Key)
	}
	return fmt.Sprintf("sitemap chunk %d of %s not found (valid range 0-%d)", e.Index, e.Key, e.TotalChunks-1)
}

// ChunkResult 一个渲染好的分块及其元信息
type ChunkResult struct {
	Key                model.CacheKey
	Body               []byte
	Index              int
	TotalChunks        int
	URLCount           int
	Cache              CacheStatus
	LastGenerated      time.Time
	GenerationDuration time.Duration
}

// IndexResult 站点地图索引
type IndexResult struct {
	Body  []byte
	Items []IndexItem
}

// Fetcher 抓取一个目录在某个语言区域下的全部记录
type Fetcher interface {
	FetchAll(ctx context.Context, req upstream.FetchRequest) ([]upstream.RawRecord, model.FetchOutcome, error)
}

// Dispatcher 把再生成任务投递到请求路径之外执行
type Dispatcher interface {
	DispatchRegenerate(key model.CacheKey) bool
}

// Options 服务配置
type Options struct {
	SiteURL           string
	Locales           []model.Locale
	Domains           []model.Domain
	Profiles          Profiles
	MaxBytes          int
	ServeStale        bool
	RegenerateTimeout time.Duration
	Logger            *slog.Logger
}

// Service 定义了站点地图相关的业务逻辑
type Service interface {
	// GetChunk 返回某个缓存键的第 index 个分块（从 0 开始）
	GetChunk(ctx context.Context, key model.CacheKey, index int) (*ChunkResult, error)
	// GetIndex 返回所有已配置目录和语言区域的站点地图索引
	GetIndex(ctx context.Context) (*IndexResult, error)
	// Regenerate 抓取上游并增量更新缓存记录，同一进程内同一键的并发调用会合并
	Regenerate(ctx context.Context, key model.CacheKey) (*model.CacheRecord, error)
	// RefreshStale 再生成所有缺失或过期的记录，返回成功刷新的数量
	RefreshStale(ctx context.Context) (int, error)
	// GenerateRobots 生成robots.txt
	GenerateRobots(ctx context.Context) (string, error)
	// Keys 返回已配置的全部缓存键
	Keys() []model.CacheKey
	// SetDispatcher 注入后台再生成的投递器
	SetDispatcher(d Dispatcher)
}

type service struct {
	store       cache.Store
	fetcher     Fetcher
	transformer *Transformer
	serializer  *Serializer
	chunkers    map[model.Domain]*Chunker
	mergers     map[model.Domain]*Merger
	profiles    Profiles
	opts        Options
	keys        []model.CacheKey
	group       singleflight.Group
	dispatcher  Dispatcher
	now         func() time.Time
	logger      *slog.Logger
}

// NewService 是 service 的构造函数，缓存存储和抓取器通过依赖注入传入
func NewService(store cache.Store, fetcher Fetcher, opts Options) Service {
	if opts.Profiles == nil {
		opts.Profiles = DefaultProfiles()
	}
	if len(opts.Domains) == 0 {
		opts.Domains = model.AllDomains()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.RegenerateTimeout <= 0 {
		opts.RegenerateTimeout = DefaultRegenerateTimeout
	}
	opts.SiteURL = strings.TrimRight(opts.SiteURL, "/")
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serializer := NewSerializer()
	s := &service{
		store:       store,
		fetcher:     fetcher,
		transformer: NewTransformer(opts.SiteURL, opts.Profiles, logger),
		serializer:  serializer,
		chunkers:    make(map[model.Domain]*Chunker, len(opts.Domains)),
		mergers:     make(map[model.Domain]*Merger, len(opts.Domains)),
		profiles:    opts.Profiles,
		opts:        opts,
		now:         time.Now,
		logger:      logger.With("system", "sitemap"),
	}

	for _, domain := range opts.Domains {
		profile := opts.Profiles.Get(domain)
		chunker := NewChunker(
			WithMaxEntries(profile.MaxEntries),
			WithMaxBytes(opts.MaxBytes),
			WithSerializer(serializer),
			WithChunkerLogger(logger),
		)
		s.chunkers[domain] = chunker
		s.mergers[domain] = NewMerger(chunker)
		for _, locale := range opts.Locales {
			s.keys = append(s.keys, model.NewCacheKey(domain, locale))
		}
	}
	return s
}

func (s *service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

func (s *service) Keys() []model.CacheKey {
	keys := make([]model.CacheKey, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// configured 判断缓存键是否属于已配置的目录和语言区域
func (s *service) configured(key model.CacheKey) bool {
	for _, k := range s.keys {
		if k == key {
			return true
		}
	}
	return false
}

func (s *service) GetChunk(ctx context.Context, key model.CacheKey, index int) (*ChunkResult, error) {
	start := time.Now()
	if !s.configured(key) {
		return nil, &ChunkNotFoundError{Key: key, Index: index}
	}

	record, status, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	total := len(record.Chunks)
	// 空目录依然提供一个空的 0 号文件
	if total == 0 && index == 0 {
		body, err := s.serializer.RenderEntries(nil)
		if err != nil {
			return nil, err
		}
		return &ChunkResult{
			Key: key, Body: body, Index: 0, TotalChunks: 0, Cache: status,
			LastGenerated: record.LastGenerated, GenerationDuration: time.Since(start),
		}, nil
	}
	if index < 0 || index >= total {
		return nil, &ChunkNotFoundError{Key: key, Index: index, TotalChunks: total, TotalURLs: record.Stats.TotalURLs}
	}

	chunk := record.Chunks[index]
	body, err := s.serializer.Render(chunk)
	if err != nil {
		return nil, fmt.Errorf("render %s chunk %d: %w", key, index, err)
	}
	return &ChunkResult{
		Key:                key,
		Body:               body,
		Index:              index,
		TotalChunks:        total,
		URLCount:           chunk.Len(),
		Cache:              status,
		LastGenerated:      record.LastGenerated,
		GenerationDuration: time.Since(start),
	}, nil
}

// resolve 命中新鲜记录时直接返回；记录过期时按 ServeStale 选择后台刷新或同步刷新；
// 同步刷新失败时回退到过期记录；完全没有记录且刷新失败时返回 ErrUnavailable。
func (s *service) resolve(ctx context.Context, key model.CacheKey) (*model.CacheRecord, CacheStatus, error) {
	record := s.load(ctx, key)
	maxAge := s.profiles.Get(key.Domain).MaxAge

	if record != nil && record.IsFresh(s.now(), maxAge) {
		return record, CacheHit, nil
	}

	if record != nil && s.opts.ServeStale {
		s.dispatch(key)
		return record, CacheStale, nil
	}

	regenCtx, cancel := context.WithTimeout(ctx, s.opts.RegenerateTimeout)
	defer cancel()
	fresh, err := s.Regenerate(regenCtx, key)
	if err == nil {
		return fresh, CacheMiss, nil
	}

	if record != nil {
		s.logger.Warn("regeneration failed, serving stale record",
			"key", key.String(), "age", record.Age(s.now()).Round(time.Second), slog.Any("error", err))
		return record, CacheStale, nil
	}
	s.logger.Error("regeneration failed and no cached record exists", "key", key.String(), slog.Any("error", err))
	return nil, "", fmt.Errorf("%w: %s: %v", ErrUnavailable, key, err)
}

// dispatch 优先交给任务队列，队列不可用或已满时退化为独立 goroutine
func (s *service) dispatch(key model.CacheKey) {
	if s.dispatcher != nil && s.dispatcher.DispatchRegenerate(key) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.RegenerateTimeout)
		defer cancel()
		if _, err := s.Regenerate(ctx, key); err != nil {
			s.logger.Warn("background regeneration failed", "key", key.String(), slog.Any("error", err))
		}
	}()
}

// load 读取记录，损坏的记录按未命中处理
func (s *service) load(ctx context.Context, key model.CacheKey) *model.CacheRecord {
	record, err := s.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrCorruptRecord) {
			s.logger.Warn("corrupt cache record treated as miss", "key", key.String(), slog.Any("error", err))
		} else {
			s.logger.Error("failed to load cache record", "key", key.String(), slog.Any("error", err))
		}
		return nil
	}
	return record
}

// Regenerate 同一个键的并发调用共享一次生成。
// 共享的生成不随任何调用方取消，只受 RegenerateTimeout 约束；调用方按自己的 ctx 放弃等待。
func (s *service) Regenerate(ctx context.Context, key model.CacheKey) (*model.CacheRecord, error) {
	ch := s.group.DoChan(key.String(), func() (interface{}, error) {
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RegenerateTimeout)
		defer cancel()
		return s.generate(genCtx, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("regeneration coalesced", "key", key.String())
		}
		return res.Val.(*model.CacheRecord), nil
	case <-ctx.Done():
		s.logger.Debug("caller stopped waiting, regeneration continues", "key", key.String())
		return nil, ctx.Err()
	}
}

func (s *service) generate(ctx context.Context, key model.CacheKey) (*model.CacheRecord, error) {
	start := time.Now()
	generationID := uuid.NewString()
	log := s.logger.With("key", key.String(), "generation_id", generationID)
	profile := s.profiles.Get(key.Domain)

	records, outcome, err := s.fetcher.FetchAll(ctx, upstream.FetchRequest{
		Domain:      key.Domain.String(),
		Country:     key.Locale.Country,
		Lang:        key.Locale.Lang,
		PageSize:    profile.PageSize,
		MaxPages:    profile.MaxPages,
		Concurrency: profile.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}

	entries := s.transformer.ToEntries(records, key.Locale, key.Domain)
	chunker, merger := s.chunkerFor(key.Domain)

	var chunks []model.Chunk
	previous := s.load(ctx, key)
	if previous == nil {
		SortEntries(entries)
		chunks, err = chunker.Chunk(entries)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", key, err)
		}
		log.Info("sitemap generated from scratch", "urls", len(entries), "chunks", len(chunks))
	} else {
		cs := Diff(previous.Entries(), entries)
		if outcome.Partial() && len(cs.Deleted) > 0 {
			// 部分页面失败时缺失的 URL 可能只是没抓到，本轮不删除
			log.Warn("partial fetch, keeping entries missing from this pass",
				"pages_failed", outcome.PagesFailed, "suppressed_deletions", len(cs.Deleted))
			cs.Deleted = nil
		}
		chunks, err = merger.Merge(previous.Chunks, cs)
		if err != nil {
			return nil, fmt.Errorf("merge %s: %w", key, err)
		}
		summary := cs.Summary()
		log.Info("sitemap merged incrementally",
			"added", summary["added"], "updated", summary["updated"],
			"deleted", summary["deleted"], "unchanged", summary["unchanged"],
			"chunks", len(chunks))
	}

	record := model.NewCacheRecord(key, chunks, s.now().UTC())
	record.GenerationID = generationID
	record.Outcome = outcome

	if err := s.store.Save(ctx, key, record); err != nil {
		return nil, fmt.Errorf("save %s: %w", key, err)
	}
	log.Info("sitemap cache record saved",
		"urls", record.Stats.TotalURLs, "bytes", record.Stats.TotalSizeBytes,
		"pages_fetched", outcome.PagesFetched, "pages_failed", outcome.PagesFailed,
		"duration", time.Since(start).Round(time.Millisecond))
	return record, nil
}

func (s *service) chunkerFor(domain model.Domain) (*Chunker, *Merger) {
	if c, ok := s.chunkers[domain]; ok {
		return c, s.mergers[domain]
	}
	c := NewChunker(
		WithMaxEntries(s.profiles.Get(domain).MaxEntries),
		WithMaxBytes(s.opts.MaxBytes),
		WithSerializer(s.serializer),
		WithChunkerLogger(s.logger),
	)
	return c, NewMerger(c)
}

func (s *service) RefreshStale(ctx context.Context) (int, error) {
	refreshed := 0
	var errs []error
	for _, key := range s.keys {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		record := s.load(ctx, key)
		if record != nil && record.IsFresh(s.now(), s.profiles.Get(key.Domain).MaxAge) {
			continue
		}
		if _, err := s.Regenerate(ctx, key); err != nil {
			s.logger.Warn("stale refresh failed", "key", key.String(), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		refreshed++
	}
	return refreshed, errors.Join(errs...)
}

// GetIndex 只读取已有记录，缺失的键以单个 0 号文件占位，等到被请求时再生成
func (s *service) GetIndex(ctx context.Context) (*IndexResult, error) {
	now := s.now().UTC().Truncate(time.Second)
	var items []IndexItem
	for _, key := range s.keys {
		record := s.load(ctx, key)
		if record == nil || len(record.Chunks) == 0 {
			lastModified := now
			if record != nil {
				lastModified = record.LastGenerated
			}
			items = append(items, IndexItem{Location: s.ChunkURL(key, 0), LastModified: lastModified})
			continue
		}
		for i := range record.Chunks {
			items = append(items, IndexItem{Location: s.ChunkURL(key, i), LastModified: record.LastGenerated})
		}
	}

	body, err := s.serializer.RenderIndex(items)
	if err != nil {
		return nil, fmt.Errorf("render sitemap index: %w", err)
	}
	return &IndexResult{Body: body, Items: items}, nil
}

// ChunkURL 分块文件的公开地址
func (s *service) ChunkURL(key model.CacheKey, index int) string {
	return fmt.Sprintf("%s/sitemaps/%s/%s/%d.xml", s.opts.SiteURL, key.Domain, key.Locale, index)
}

// GenerateRobots 生成robots.txt
func (s *service) GenerateRobots(ctx context.Context) (string, error) {
	baseURL := s.opts.SiteURL
	if baseURL == "" {
		return "", errors.New("site url is not configured")
	}

	robotsContent := fmt.Sprintf(`User-agent: *
Allow: /

# 禁止访问接口
Disallow: /api/
Disallow: /invalidate

# 站点地图
Sitemap: %s/sitemap.xml
`, baseURL)

	return robotsContent, nil
}
