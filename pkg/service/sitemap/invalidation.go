/*
 * @Description: 缓存失效与统计
 * @Author: 安知鱼
 * @Date: 2025-11-03 10:14:26
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

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/service/cache"
)

// TargetAll 失效全部缓存
const TargetAll = "all"

// ErrInvalidTarget 失效目标既不是 all 也不是已知目录类型
var ErrInvalidTarget = errors.New("invalid invalidation target")

// KeyStats 单个缓存键的统计信息
type KeyStats struct {
	Key           string    `json:"key"`
	SizeBytes     int       `json:"size_bytes"`
	TotalChunks   int       `json:"total_chunks"`
	TotalURLs     int       `json:"total_urls"`
	LastGenerated time.Time `json:"last_generated"`
	Stale         bool      `json:"stale"`
	Corrupt       bool      `json:"corrupt,omitempty"`
}

// InvalidationService 手动失效和统计缓存记录
type InvalidationService struct {
	store    cache.Store
	profiles Profiles
	now      func() time.Time
	logger   *slog.Logger
}

// NewInvalidationService 创建失效服务
func NewInvalidationService(store cache.Store, profiles Profiles, logger *slog.Logger) *InvalidationService {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InvalidationService{
		store:    store,
		profiles: profiles,
		now:      time.Now,
		logger:   logger.With("system", "sitemap_invalidation"),
	}
}

// Invalidate 按目标删除缓存记录，target 为 all 或目录类型，locale 为空表示全部语言区域。
// 返回删除的记录数。
func (s *InvalidationService) Invalidate(ctx context.Context, target, locale string) (int, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	locale = strings.TrimSpace(locale)

	var domain model.Domain
	switch {
	case target == "" || target == TargetAll:
	case model.Domain(target).Valid():
		domain = model.Domain(target)
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}

	if locale == "" {
		prefix := ""
		if domain != "" {
			prefix = domain.String() + "-"
		}
		deleted, err := s.store.Invalidate(ctx, prefix)
		if err != nil {
			return 0, fmt.Errorf("invalidate %q: %w", prefix, err)
		}
		s.logger.Info("sitemap cache invalidated", "target", firstNonEmpty(target, TargetAll), "deleted", deleted)
		return deleted, nil
	}

	loc, err := model.ParseLocale(locale)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cache keys: %w", err)
	}

	deleted := 0
	for _, key := range keys {
		if key.Locale != loc || (domain != "" && key.Domain != domain) {
			continue
		}
		ok, err := s.store.Delete(ctx, key)
		if err != nil {
			return deleted, fmt.Errorf("delete %s: %w", key, err)
		}
		if ok {
			deleted++
		}
	}
	s.logger.Info("sitemap cache invalidated",
		"target", firstNonEmpty(target, TargetAll), "locale", loc.String(), "deleted", deleted)
	return deleted, nil
}

// Stats 返回每个缓存键的统计，损坏的记录也会列出以便运维清理
func (s *InvalidationService) Stats(ctx context.Context) ([]KeyStats, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}

	now := s.now()
	stats := make([]KeyStats, 0, len(keys))
	for _, key := range keys {
		record, err := s.store.Load(ctx, key)
		if err != nil {
			if errors.Is(err, cache.ErrCorruptRecord) {
				stats = append(stats, KeyStats{Key: key.String(), Stale: true, Corrupt: true})
				continue
			}
			return nil, fmt.Errorf("load %s: %w", key, err)
		}
		if record == nil {
			continue
		}
		stats = append(stats, KeyStats{
			Key:           key.String(),
			SizeBytes:     record.Stats.TotalSizeBytes,
			TotalChunks:   record.Stats.TotalChunks,
			TotalURLs:     record.Stats.TotalURLs,
			LastGenerated: record.LastGenerated,
			Stale:         !record.IsFresh(now, s.profiles.Get(key.Domain).MaxAge),
		})
	}
	return stats, nil
}
