/*
 * @Description: 把变更集合并进已有分块
 * @Author: 安知鱼
 * @Date: 2025-10-31 10:08:52
 * @LastEditTime: 2025-11-12 09:20:44
 * @LastEditors: 安知鱼
 */
package sitemap

import (
	"slices"
	"strings"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
)

// Merger 把 ChangeSet 应用到旧分块上并重新分块
type Merger struct {
	chunker *Chunker
}

// NewMerger 创建合并器
func NewMerger(chunker *Chunker) *Merger {
	return &Merger{chunker: chunker}
}

// Merge 展开旧分块，去掉已删除的条目，替换已更新的条目，追加新增条目，
// 再按 URL 排序后重新分块。分块边界可能随之漂移，但覆盖范围保持准确。
func (m *Merger) Merge(oldChunks []model.Chunk, cs model.ChangeSet) ([]model.Chunk, error) {
	deleted := make(map[string]struct{}, len(cs.Deleted))
	for i := range cs.Deleted {
		deleted[cs.Deleted[i].URL] = struct{}{}
	}
	updated := make(map[string]model.SitemapEntry, len(cs.Updated))
	for i := range cs.Updated {
		updated[cs.Updated[i].URL] = cs.Updated[i]
	}

	total := len(cs.Added)
	for i := range oldChunks {
		total += len(oldChunks[i].Entries)
	}

	merged := make([]model.SitemapEntry, 0, total)
	position := make(map[string]int, total)
	put := func(e model.SitemapEntry) {
		if i, ok := position[e.URL]; ok {
			merged[i] = e
			return
		}
		position[e.URL] = len(merged)
		merged = append(merged, e)
	}

	for i := range oldChunks {
		for _, entry := range oldChunks[i].Entries {
			if _, gone := deleted[entry.URL]; gone {
				continue
			}
			if next, ok := updated[entry.URL]; ok {
				entry = next
			}
			put(entry)
		}
	}
	// 旧分块里不存在的“更新”条目同样需要落地
	for url, entry := range updated {
		if _, ok := position[url]; !ok {
			put(entry)
		}
	}
	for _, entry := range cs.Added {
		put(entry)
	}

	SortEntries(merged)
	return m.chunker.Chunk(merged)
}

// SortEntries 按 URL 稳定排序
func SortEntries(entries []model.SitemapEntry) {
	slices.SortStableFunc(entries, func(a, b model.SitemapEntry) int {
		return strings.Compare(a.URL, b.URL)
	})
}
