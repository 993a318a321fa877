/*
 * @Description: 新旧条目集合的内容寻址差异计算
 * @Author: 安知鱼
 * @Date: 2025-10-30 17:45:08
 * @LastEditTime: 2025-11-12 09:20:44
 * @LastEditors: 安知鱼
 */
package sitemap

import "github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"

// Diff 以 URL 为键比较新旧两组条目：两次建表加两次线性遍历，O(n)。
// 同一集合中重复的 URL 只保留第一次出现的条目。
func Diff(oldEntries, newEntries []model.SitemapEntry) model.ChangeSet {
	oldHashes := make(map[string]string, len(oldEntries))
	for i := range oldEntries {
		if _, ok := oldHashes[oldEntries[i].URL]; !ok {
			oldHashes[oldEntries[i].URL] = oldEntries[i].ContentHash()
		}
	}

	var cs model.ChangeSet
	seen := make(map[string]struct{}, len(newEntries))
	for i := range newEntries {
		entry := newEntries[i]
		if _, dup := seen[entry.URL]; dup {
			continue
		}
		seen[entry.URL] = struct{}{}

		oldHash, ok := oldHashes[entry.URL]
		switch {
		case !ok:
			cs.Added = append(cs.Added, entry)
		case oldHash != entry.ContentHash():
			cs.Updated = append(cs.Updated, entry)
		default:
			cs.Unchanged = append(cs.Unchanged, entry)
		}
	}

	for i := range oldEntries {
		url := oldEntries[i].URL
		if _, ok := seen[url]; ok {
			continue
		}
		// 标记为已处理，重复的旧条目不会被删除两次
		seen[url] = struct{}{}
		cs.Deleted = append(cs.Deleted, oldEntries[i])
	}

	return cs
}
