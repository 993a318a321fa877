/*
 * @Description: 站点地图条目领域模型
 * @Author: 安知鱼
 * @Date: 2025-09-21 00:00:00
 * @LastEditTime: 2025-11-14 10:22:41
 * @LastEditors: 安知鱼
 */
package model

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zeebo/blake3"
)

// MaxURLLength 单条 URL 的最大长度（sitemaps.org 协议限制）
const MaxURLLength = 2048

// ErrMissingLastModified 条目缺少最后修改时间
var ErrMissingLastModified = errors.New("sitemap entry has no last modified time")

// ChangeFrequency 更新频率枚举
type ChangeFrequency string

const (
	ChangeFreqAlways  ChangeFrequency = "always"
	ChangeFreqHourly  ChangeFrequency = "hourly"
	ChangeFreqDaily   ChangeFrequency = "daily"
	ChangeFreqWeekly  ChangeFrequency = "weekly"
	ChangeFreqMonthly ChangeFrequency = "monthly"
	ChangeFreqYearly  ChangeFrequency = "yearly"
	ChangeFreqNever   ChangeFrequency = "never"
)

// ImageAttachment 条目附带的图片（image:image 扩展）
type ImageAttachment struct {
	URL         string `json:"url" validate:"required,max=2048"`
	Title       string `json:"title,omitempty"`
	Caption     string `json:"caption,omitempty"`
	GeoLocation string `json:"geo_location,omitempty"`
}

// VideoAttachment 条目附带的视频（video:video 扩展）
type VideoAttachment struct {
	ContentURL   string `json:"content_url" validate:"required,max=2048"`
	ThumbnailURL string `json:"thumbnail_url,omitempty" validate:"omitempty,max=2048"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
}

// SitemapEntry 是一个可被索引的单元，URL 是它在差异计算中的唯一身份。
type SitemapEntry struct {
	URL             string            `json:"url" validate:"required,max=2048"`
	LastModified    time.Time         `json:"last_modified"`
	ChangeFrequency ChangeFrequency   `json:"change_frequency" validate:"required,oneof=always hourly daily weekly monthly yearly never"`
	Priority        float64           `json:"priority" validate:"gte=0,lte=1"`
	Images          []ImageAttachment `json:"images,omitempty" validate:"omitempty,dive"`
	Videos          []VideoAttachment `json:"videos,omitempty" validate:"omitempty,dive"`
}

var (
	entryValidator     *validator.Validate
	entryValidatorOnce sync.Once
)

// Validate 校验条目不变量：URL 长度、优先级区间、更新频率取值、时间非零。
func (e *SitemapEntry) Validate() error {
	entryValidatorOnce.Do(func() {
		entryValidator = validator.New()
	})
	if err := entryValidator.Struct(e); err != nil {
		return err
	}
	if e.LastModified.IsZero() {
		return ErrMissingLastModified
	}
	return nil
}

// entryHashKey 条目内容哈希使用的 BLAKE3 域密钥（ASCII，零填充到 32 字节）
var entryHashKey = [32]byte{
	'a', 'n', 'h', 'e', 'y', 'u', '.', 's', 'i', 't', 'e', 'm', 'a', 'p', '.', 'e',
	'n', 't', 'r', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// ContentHash 计算条目值字段的内容哈希。
// 字段按固定顺序写入并带长度前缀，因此结果只取决于字段的值。
func (e *SitemapEntry) ContentHash() string {
	hasher, err := blake3.NewKeyed(entryHashKey[:])
	if err != nil {
		panic("model: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	w := hashWriter{h: hasher}
	w.str(e.URL)
	w.str(e.LastModified.UTC().Format(time.RFC3339))
	w.str(string(e.ChangeFrequency))
	w.u64(math.Float64bits(e.Priority))

	w.u64(uint64(len(e.Images)))
	for _, img := range e.Images {
		w.str(img.URL)
		w.str(img.Title)
		w.str(img.Caption)
		w.str(img.GeoLocation)
	}

	w.u64(uint64(len(e.Videos)))
	for _, v := range e.Videos {
		w.str(v.ContentURL)
		w.str(v.ThumbnailURL)
		w.str(v.Title)
		w.str(v.Description)
	}

	return hex.EncodeToString(hasher.Sum(nil))
}

// HasImages 条目是否携带图片
func (e *SitemapEntry) HasImages() bool { return len(e.Images) > 0 }

// HasVideos 条目是否携带视频
func (e *SitemapEntry) HasVideos() bool { return len(e.Videos) > 0 }

type hashWriter struct {
	h   *blake3.Hasher
	buf [8]byte
}

func (w *hashWriter) u64(v uint64) {
	binary.BigEndian.PutUint64(w.buf[:], v)
	w.h.Write(w.buf[:])
}

func (w *hashWriter) str(s string) {
	w.u64(uint64(len(s)))
	w.h.Write([]byte(s))
}
