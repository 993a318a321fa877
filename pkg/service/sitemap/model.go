/*
 * @Description: 站点地图 XML 数据模型
 * @Author: 安知鱼
 * @Date: 2025-09-21 00:00:00
 * @LastEditTime: 2025-11-14 14:37:10
 * @LastEditors: 安知鱼
 */
package sitemap

import (
	"encoding/xml"
	"time"
)

const (
	// SitemapNamespace sitemaps.org 协议命名空间
	SitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"
	// ImageNamespace Google 图片扩展命名空间
	ImageNamespace = "http://www.google.com/schemas/sitemap-image/1.1"
	// VideoNamespace Google 视频扩展命名空间
	VideoNamespace = "http://www.google.com/schemas/sitemap-video/1.1"

	// lastModLayout lastmod 输出格式（W3C Datetime）
	lastModLayout = "2006-01-02T15:04:05Z07:00"
)

// URL 站点地图URL条目
type URL struct {
	XMLName      xml.Name `xml:"url"`
	Location     string   `xml:"loc"`
	LastModified string   `xml:"lastmod,omitempty"`
	ChangeFreq   string   `xml:"changefreq,omitempty"`
	Priority     string   `xml:"priority"`
	Images       []Image  `xml:"image:image,omitempty"`
	Videos       []Video  `xml:"video:video,omitempty"`
}

// Image image:image 扩展
type Image struct {
	Location    string `xml:"image:loc"`
	Caption     string `xml:"image:caption,omitempty"`
	GeoLocation string `xml:"image:geo_location,omitempty"`
	Title       string `xml:"image:title,omitempty"`
}

// Video video:video 扩展
type Video struct {
	ThumbnailLocation string `xml:"video:thumbnail_loc"`
	Title             string `xml:"video:title"`
	Description       string `xml:"video:description"`
	ContentLocation   string `xml:"video:content_loc"`
}

// SitemapIndex 站点地图索引根元素
type SitemapIndex struct {
	XMLName  xml.Name      `xml:"sitemapindex"`
	Xmlns    string        `xml:"xmlns,attr"`
	Sitemaps []IndexedFile `xml:"sitemap"`
}

// IndexedFile 索引中的一个子站点地图
type IndexedFile struct {
	Location     string `xml:"loc"`
	LastModified string `xml:"lastmod,omitempty"`
}

// IndexItem 生成索引所需的信息
type IndexItem struct {
	Location     string
	LastModified time.Time
}
