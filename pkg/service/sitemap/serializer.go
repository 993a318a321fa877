/*
 * @Description: 站点地图 XML 序列化
 * @Author: 安知鱼
 * @Date: 2025-10-30 10:14:56
 * @LastEditTime: 2025-11-14 14:37:10
 * @LastEditors: 安知鱼
 */
package sitemap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
)

const (
	xmlHeader    = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	urlsetOpen   = `<urlset xmlns="` + SitemapNamespace + `"`
	imageNSAttr  = ` xmlns:image="` + ImageNamespace + `"`
	videoNSAttr  = ` xmlns:video="` + VideoNamespace + `"`
	urlsetFooter = "</urlset>\n"

	// maxEnvelopeSize 带全部命名空间声明时的外壳大小
	maxEnvelopeSize = len(xmlHeader) + len(urlsetOpen) + len(imageNSAttr) + len(videoNSAttr) + len(">\n") + len(urlsetFooter)
)

// Serializer 把条目渲染为 sitemaps.org 协议的 XML。
// 文档大小等于外壳大小加上每个条目各自的大小，分块器依赖这一点做精确的回退计算。
type Serializer struct{}

// NewSerializer 创建序列化器
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Render 渲染一个分块
func (s *Serializer) Render(chunk model.Chunk) ([]byte, error) {
	return s.RenderEntries(chunk.Entries)
}

// RenderEntries 渲染 <urlset> 文档，image/video 命名空间只在有条目使用时声明
func (s *Serializer) RenderEntries(entries []model.SitemapEntry) ([]byte, error) {
	hasImages, hasVideos := false, false
	for i := range entries {
		hasImages = hasImages || entries[i].HasImages()
		hasVideos = hasVideos || entries[i].HasVideos()
	}

	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.WriteString(urlsetOpen)
	if hasImages {
		buf.WriteString(imageNSAttr)
	}
	if hasVideos {
		buf.WriteString(videoNSAttr)
	}
	buf.WriteString(">\n")

	for i := range entries {
		data, err := xml.Marshal(toURL(&entries[i]))
		if err != nil {
			return nil, fmt.Errorf("marshal sitemap entry %q: %w", entries[i].URL, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	buf.WriteString(urlsetFooter)
	return buf.Bytes(), nil
}

// EntrySize 返回单个条目在文档中占用的精确字节数
func (s *Serializer) EntrySize(entry *model.SitemapEntry) int {
	data, err := xml.Marshal(toURL(entry))
	if err != nil {
		return EstimateEntrySize(entry)
	}
	return len(data) + 1
}

// EstimateEntrySize 不做序列化的粗略估算，只用于贪心装箱
func EstimateEntrySize(entry *model.SitemapEntry) int {
	// <url><loc></loc><lastmod>..</lastmod><changefreq></changefreq><priority></priority></url>\n
	size := 100 + len(entry.URL) + len(entry.ChangeFrequency) + len(lastModLayout)
	for _, img := range entry.Images {
		size += 120 + len(img.URL) + len(img.Title) + len(img.Caption) + len(img.GeoLocation)
	}
	for _, v := range entry.Videos {
		size += 180 + len(v.ContentURL) + len(v.ThumbnailURL) + len(v.Title) + len(v.Description)
	}
	return size
}

// RenderIndex 渲染 <sitemapindex>
func (s *Serializer) RenderIndex(items []IndexItem) ([]byte, error) {
	index := SitemapIndex{
		Xmlns:    SitemapNamespace,
		Sitemaps: make([]IndexedFile, 0, len(items)),
	}
	for _, item := range items {
		file := IndexedFile{Location: item.Location}
		if !item.LastModified.IsZero() {
			file.LastModified = item.LastModified.UTC().Format(lastModLayout)
		}
		index.Sitemaps = append(index.Sitemaps, file)
	}

	data, err := xml.MarshalIndent(index, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sitemap index: %w", err)
	}
	return append([]byte(xmlHeader), append(data, '\n')...), nil
}

// toURL 转换为URL结构
func toURL(e *model.SitemapEntry) URL {
	u := URL{
		Location:     e.URL,
		LastModified: e.LastModified.UTC().Format(lastModLayout),
		ChangeFreq:   string(e.ChangeFrequency),
		Priority:     strconv.FormatFloat(e.Priority, 'f', -1, 64),
	}
	for _, img := range e.Images {
		u.Images = append(u.Images, Image{
			Location:    img.URL,
			Caption:     img.Caption,
			GeoLocation: img.GeoLocation,
			Title:       img.Title,
		})
	}
	for _, v := range e.Videos {
		u.Videos = append(u.Videos, Video{
			ThumbnailLocation: v.ThumbnailURL,
			Title:             v.Title,
			Description:       v.Description,
			ContentLocation:   v.ContentURL,
		})
	}
	return u
}
