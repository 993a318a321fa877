/*
 * @Description: 站点地图缓存记录、缓存键与变更集
 * @Author: 安知鱼
 * @Date: 2025-10-28 16:02:13
 * @LastEditTime: 2025-11-14 10:25:07
 * @LastEditors: 安知鱼
 */
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidCacheKey 缓存键格式不正确
var ErrInvalidCacheKey = errors.New("invalid sitemap cache key")

// Domain 被生成站点地图的目录类型
type Domain string

const (
	DomainProducts   Domain = "products"
	DomainCompanies  Domain = "companies"
	DomainCategories Domain = "categories"
	DomainBlogs      Domain = "blogs"
)

// AllDomains 返回所有已知目录类型，顺序固定
func AllDomains() []Domain {
	return []Domain{DomainProducts, DomainCompanies, DomainCategories, DomainBlogs}
}

// Valid 判断是否为已知目录类型
func (d Domain) Valid() bool {
	switch d {
	case DomainProducts, DomainCompanies, DomainCategories, DomainBlogs:
		return true
	}
	return false
}

func (d Domain) String() string { return string(d) }

// Locale 国家+语言组合，例如 kw-ar
type Locale struct {
	Country string `json:"country"`
	Lang    string `json:"lang"`
}

// ParseLocale 解析 "kw-ar" 形式的语言区域
func ParseLocale(s string) (Locale, error) {
	country, lang, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok || country == "" || lang == "" || strings.Contains(lang, "-") {
		return Locale{}, fmt.Errorf("invalid locale %q", s)
	}
	return Locale{Country: strings.ToLower(country), Lang: strings.ToLower(lang)}, nil
}

func (l Locale) String() string {
	return l.Country + "-" + l.Lang
}

// CacheKey 是 {domain, locale} 的强类型缓存键
type CacheKey struct {
	Domain Domain `json:"domain"`
	Locale Locale `json:"locale"`
}

// NewCacheKey 构造缓存键
func NewCacheKey(domain Domain, locale Locale) CacheKey {
	return CacheKey{Domain: domain, Locale: locale}
}

// String 返回 {domain}-{locale} 形式，例如 products-kw-ar
func (k CacheKey) String() string {
	return k.Domain.String() + "-" + k.Locale.String()
}

// ParseCacheKey 是 String 的逆操作，domain 中不允许出现连字符
func ParseCacheKey(s string) (CacheKey, error) {
	domain, rest, ok := strings.Cut(s, "-")
	if !ok {
		return CacheKey{}, fmt.Errorf("%w: %q", ErrInvalidCacheKey, s)
	}
	d := Domain(domain)
	if !d.Valid() {
		return CacheKey{}, fmt.Errorf("%w: unknown domain %q", ErrInvalidCacheKey, domain)
	}
	locale, err := ParseLocale(rest)
	if err != nil {
		return CacheKey{}, fmt.Errorf("%w: %v", ErrInvalidCacheKey, err)
	}
	return CacheKey{Domain: d, Locale: locale}, nil
}

// Chunk 一个站点地图文件的条目切片
type Chunk struct {
	Entries   []SitemapEntry `json:"entries"`
	SizeBytes int            `json:"size_bytes"`
}

// Len 条目数量
func (c Chunk) Len() int { return len(c.Entries) }

// CacheStats 缓存记录的统计信息
type CacheStats struct {
	TotalChunks    int `json:"total_chunks"`
	TotalURLs      int `json:"total_urls"`
	TotalSizeBytes int `json:"total_size_bytes"`
}

// FetchOutcome 一次上游抓取的结果概况，和条目列表一起返回
type FetchOutcome struct {
	Succeeded    bool `json:"succeeded"`
	PagesFetched int  `json:"pages_fetched"`
	PagesFailed  int  `json:"pages_failed"`
	TotalPages   int  `json:"total_pages"`
	Records      int  `json:"records"`
}

// Partial 抓取成功但有页面失败
func (o FetchOutcome) Partial() bool {
	return o.Succeeded && o.PagesFailed > 0
}

// CacheRecord 每个缓存键对应的持久化单元，刷新时整体替换
type CacheRecord struct {
	Key           string       `json:"key"`
	Domain        Domain       `json:"domain"`
	Locale        string       `json:"locale"`
	Chunks        []Chunk      `json:"chunks"`
	Stats         CacheStats   `json:"stats"`
	LastGenerated time.Time    `json:"last_generated"`
	GenerationID  string       `json:"generation_id"`
	Outcome       FetchOutcome `json:"outcome"`
}

// NewCacheRecord 根据分块结果构造缓存记录并计算统计信息
func NewCacheRecord(key CacheKey, chunks []Chunk, generatedAt time.Time) *CacheRecord {
	record := &CacheRecord{
		Key:           key.String(),
		Domain:        key.Domain,
		Locale:        key.Locale.String(),
		Chunks:        chunks,
		LastGenerated: generatedAt,
	}
	record.Stats = ComputeStats(chunks)
	return record
}

// ComputeStats 统计分块总数、URL 总数和字节总数
func ComputeStats(chunks []Chunk) CacheStats {
	stats := CacheStats{TotalChunks: len(chunks)}
	for _, c := range chunks {
		stats.TotalURLs += len(c.Entries)
		stats.TotalSizeBytes += c.SizeBytes
	}
	return stats
}

// Entries 将所有分块展开为一个条目列表
func (r *CacheRecord) Entries() []SitemapEntry {
	entries := make([]SitemapEntry, 0, r.Stats.TotalURLs)
	for _, c := range r.Chunks {
		entries = append(entries, c.Entries...)
	}
	return entries
}

// Age 记录距 now 的时长
func (r *CacheRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.LastGenerated)
}

// IsFresh 判断记录在 maxAge 内是否仍然新鲜
func (r *CacheRecord) IsFresh(now time.Time, maxAge time.Duration) bool {
	return r.Age(now) < maxAge
}

// ChangeSet 新旧两组条目按 URL 比较后的划分
type ChangeSet struct {
	Added     []SitemapEntry `json:"added"`
	Updated   []SitemapEntry `json:"updated"`
	Deleted   []SitemapEntry `json:"deleted"`
	Unchanged []SitemapEntry `json:"unchanged"`
}

// HasChanges 是否存在新增、更新或删除
func (cs *ChangeSet) HasChanges() bool {
	return len(cs.Added) > 0 || len(cs.Updated) > 0 || len(cs.Deleted) > 0
}

// Summary 返回便于日志输出的计数
func (cs *ChangeSet) Summary() map[string]int {
	return map[string]int{
		"added":     len(cs.Added),
		"updated":   len(cs.Updated),
		"deleted":   len(cs.Deleted),
		"unchanged": len(cs.Unchanged),
	}
}
