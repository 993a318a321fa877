/*
 * @Description: 原始目录记录 -> 站点地图条目
 * @Author: 安知鱼
 * @Date: 2025-10-29 15:51:06
 * @LastEditTime: 2025-11-14 14:37:10
 * @LastEditors: 安知鱼
 */
package sitemap

import (
	"log/slog"
	"math"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/anzhiyu-c/anheyu-sitemap/internal/pkg/parser"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/service/upstream"
)

// 文本字段长度上限（Google 对 video:description 的限制是 2048 字符）
const (
	maxTitleRunes       = 100
	maxDescriptionRunes = 2048
)

var videoExtensions = map[string]bool{
	".mp4": true, ".m4v": true, ".webm": true, ".mov": true, ".avi": true,
	".mkv": true, ".ogv": true, ".flv": true, ".wmv": true, ".mpg": true, ".mpeg": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".avif": true, ".svg": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// mediaKeys 记录中可能携带媒体资源的字段
var mediaKeys = []string{"image", "thumbnail", "cover", "images", "gallery", "media", "video", "videos"}

type mediaKind int

const (
	mediaImage mediaKind = iota
	mediaVideo
)

type mediaItem struct {
	kind        mediaKind
	url         string
	title       string
	caption     string
	geo         string
	thumbnail   string
	description string
	timestamp   time.Time
}

// Transformer 把上游原始记录转换为规范的 SitemapEntry
type Transformer struct {
	siteURL  string
	profiles Profiles
	now      func() time.Time
	logger   *slog.Logger
}

// NewTransformer 创建转换器，siteURL 是站点根地址（例如 https://example.com）
func NewTransformer(siteURL string, profiles Profiles, logger *slog.Logger) *Transformer {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{
		siteURL:  strings.TrimRight(siteURL, "/"),
		profiles: profiles,
		now:      time.Now,
		logger:   logger.With("component", "entry_transformer"),
	}
}

// ToEntries 转换一批记录。缺少 slug 和 id 的记录无法得到稳定 URL，直接跳过；
// 校验失败的条目记录警告后丢弃；重复 URL 只保留第一条。
func (t *Transformer) ToEntries(records []upstream.RawRecord, locale model.Locale, domain model.Domain) []model.SitemapEntry {
	profile := t.profiles.Get(domain)
	now := t.now().UTC()

	entries := make([]model.SitemapEntry, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	skipped, invalid := 0, 0

	for _, record := range records {
		slug := record.String("slug")
		id := record.String("id")
		if slug == "" && id == "" {
			skipped++
			continue
		}

		entry := t.toEntry(record, locale, domain, slug, id, profile, now)
		if _, dup := seen[entry.URL]; dup {
			continue
		}
		if err := entry.Validate(); err != nil {
			invalid++
			t.logger.Warn("dropping invalid sitemap entry", "url", entry.URL, slog.Any("error", err))
			continue
		}
		seen[entry.URL] = struct{}{}
		entries = append(entries, entry)
	}

	if skipped > 0 || invalid > 0 {
		t.logger.Info("records skipped during transform",
			"domain", domain, "locale", locale.String(),
			"without_identity", skipped, "invalid", invalid)
	}
	return entries
}

func (t *Transformer) toEntry(record upstream.RawRecord, locale model.Locale, domain model.Domain, slug, id string, profile DomainProfile, now time.Time) model.SitemapEntry {
	name := parser.Truncate(parser.PlainText(record.String("name", "title")), maxTitleRunes)
	summary := parser.PlainText(record.String("description", "short_description", "summary", "excerpt"))
	if summary == "" {
		// 博客类记录通常只有 Markdown 正文
		summary = parser.MarkdownPlainText(record.String("content_md", "markdown", "body"))
	}
	summary = parser.Truncate(summary, maxDescriptionRunes)

	media := t.extractMedia(record)
	lastModified := resolveLastModified(record, media, now)
	freq, priority := classify(profile, lastModified, now)

	entry := model.SitemapEntry{
		URL:             t.siteURL + EntryPath(domain, locale, slug, id),
		LastModified:    lastModified,
		ChangeFrequency: freq,
		Priority:        priority,
	}

	var firstImage string
	for _, m := range media {
		if m.kind != mediaImage {
			continue
		}
		if firstImage == "" {
			firstImage = m.url
		}
		entry.Images = append(entry.Images, model.ImageAttachment{
			URL:         m.url,
			Title:       firstNonEmpty(m.title, name),
			Caption:     m.caption,
			GeoLocation: m.geo,
		})
	}
	for _, m := range media {
		if m.kind != mediaVideo {
			continue
		}
		thumbnail := firstNonEmpty(m.thumbnail, firstImage)
		if thumbnail == "" {
			// video:thumbnail_loc 是必填项，没有缩略图的视频不输出
			t.logger.Debug("dropping video without thumbnail", "url", entry.URL, "video", m.url)
			continue
		}
		entry.Videos = append(entry.Videos, model.VideoAttachment{
			ContentURL:   m.url,
			ThumbnailURL: thumbnail,
			Title:        firstNonEmpty(m.title, name),
			Description:  firstNonEmpty(m.description, summary, name),
		})
	}
	return entry
}

// EntryPath 按目录类型构建确定性的路径，同一条记录多次转换结果相同
func EntryPath(domain model.Domain, locale model.Locale, slug, id string) string {
	prefix := "/" + locale.String()
	switch domain {
	case model.DomainProducts:
		var segment string
		switch {
		case slug != "" && id != "":
			segment = slug + "-id=" + id
		case id != "":
			segment = "id=" + id
		default:
			segment = slug
		}
		return prefix + "/product/" + url.PathEscape(segment)
	case model.DomainCompanies:
		return prefix + "/company-details/" + url.PathEscape(firstNonEmpty(slug, id))
	case model.DomainCategories:
		return prefix + "/category/" + url.PathEscape(firstNonEmpty(slug, id))
	case model.DomainBlogs:
		return prefix + "/blog/" + url.PathEscape(firstNonEmpty(slug, id))
	default:
		return prefix + "/" + url.PathEscape(domain.String()) + "/" + url.PathEscape(firstNonEmpty(slug, id))
	}
}

// resolveLastModified updated_at -> 媒体中最新的时间 -> created_at -> 当前时间
func resolveLastModified(record upstream.RawRecord, media []mediaItem, now time.Time) time.Time {
	if t, ok := record.Time("updated_at", "updatedAt", "modified_at"); ok {
		return normalizeTime(t)
	}
	var latest time.Time
	for _, m := range media {
		if m.timestamp.After(latest) {
			latest = m.timestamp
		}
	}
	if !latest.IsZero() {
		return normalizeTime(latest)
	}
	if t, ok := record.Time("created_at", "createdAt", "published_at"); ok {
		return normalizeTime(t)
	}
	return normalizeTime(now)
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// classify 根据更新时间微调目录的默认频率与优先级
func classify(profile DomainProfile, lastModified, now time.Time) (model.ChangeFrequency, float64) {
	freq := profile.ChangeFreq
	priority := profile.Priority

	age := now.Sub(lastModified)
	switch {
	case age < 24*time.Hour:
		freq = model.ChangeFreqDaily
		priority += 0.1
	case age < 7*24*time.Hour:
		freq = model.ChangeFreqWeekly
	case age < 30*24*time.Hour:
		freq = model.ChangeFreqMonthly
	case age > 365*24*time.Hour:
		priority -= 0.1
	}

	priority = math.Round(math.Max(0.1, math.Min(1, priority))*10) / 10
	return freq, priority
}

// extractMedia 收集媒体资源，按源地址去重，并按扩展名区分图片和视频
func (t *Transformer) extractMedia(record upstream.RawRecord) []mediaItem {
	var items []mediaItem
	seen := make(map[string]struct{})

	add := func(item mediaItem, hint mediaKind) {
		item.url = t.absolute(item.url)
		if item.url == "" {
			return
		}
		if _, dup := seen[item.url]; dup {
			return
		}
		seen[item.url] = struct{}{}
		item.kind = sniffKind(item.url, hint)
		items = append(items, item)
	}

	for _, key := range mediaKeys {
		hint := mediaImage
		if strings.HasPrefix(key, "video") {
			hint = mediaVideo
		}
		switch v := record[key].(type) {
		case string:
			add(mediaItem{url: v}, hint)
		case map[string]any:
			add(mediaFromObject(upstream.RawRecord(v)), hint)
		case []any:
			for _, raw := range v {
				switch m := raw.(type) {
				case string:
					add(mediaItem{url: m}, hint)
				case map[string]any:
					add(mediaFromObject(upstream.RawRecord(m)), hint)
				}
			}
		}
	}
	return items
}

func mediaFromObject(obj upstream.RawRecord) mediaItem {
	item := mediaItem{
		url:         obj.String("url", "original_url", "src", "file", "path"),
		title:       parser.Truncate(parser.PlainText(obj.String("title", "name")), maxTitleRunes),
		caption:     parser.PlainText(obj.String("caption", "alt")),
		geo:         parser.PlainText(obj.String("geo_location", "location")),
		thumbnail:   obj.String("thumbnail_url", "thumbnail", "poster"),
		description: parser.Truncate(parser.PlainText(obj.String("description")), maxDescriptionRunes),
	}
	if ts, ok := obj.Time("updated_at", "created_at"); ok {
		item.timestamp = ts
	}
	return item
}

// sniffKind 通过扩展名判断媒体类型，扩展名未知时使用字段提示
func sniffKind(rawURL string, hint mediaKind) mediaKind {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	switch {
	case videoExtensions[ext]:
		return mediaVideo
	case imageExtensions[ext]:
		return mediaImage
	default:
		return hint
	}
}

// absolute 把站内相对路径补全为绝对地址
func (t *Transformer) absolute(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if strings.HasPrefix(raw, "/") {
		return t.siteURL + raw
	}
	return raw
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
