/*
 * @Description: 上游目录接口的数据结构
 * @Author: 安知鱼
 * @Date: 2025-10-28 16:40:02
 * @LastEditTime: 2025-11-14 11:05:19
 * @LastEditors: 安知鱼
 */
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RawRecord 上游返回的一条原始目录记录，引擎只按字段名读取，不关心业务结构
type RawRecord map[string]any

// String 按顺序返回第一个非空字段的字符串形式（数字 id 也会被格式化）
func (r RawRecord) String(keys ...string) string {
	for _, key := range keys {
		if s := stringify(r[key]); s != "" {
			return s
		}
	}
	return ""
}

// Time 按顺序返回第一个能解析成时间的字段
func (r RawRecord) Time(keys ...string) (time.Time, bool) {
	for _, key := range keys {
		if t, ok := ParseTime(r[key]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// List 返回数组字段，非数组返回 nil
func (r RawRecord) List(key string) []any {
	if v, ok := r[key].([]any); ok {
		return v
	}
	return nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}

// timeLayouts 上游可能出现的时间格式
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime 解析字符串或 unix 秒时间戳
func ParseTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	case json.Number:
		if n, err := val.Int64(); err == nil && n > 0 {
			return time.Unix(n, 0).UTC(), true
		}
	case float64:
		if val > 0 {
			return time.Unix(int64(val), 0).UTC(), true
		}
	}
	return time.Time{}, false
}

// Meta 分页元数据
type Meta struct {
	Total    *int `json:"total"`
	LastPage int  `json:"last_page"`
	PerPage  int  `json:"per_page"`
}

// Links 游标式分页链接
type Links struct {
	Next string `json:"next"`
}

// Page 上游一页响应
type Page struct {
	Data  []RawRecord `json:"data"`
	Meta  Meta        `json:"meta"`
	Links Links       `json:"links"`
}

// LastPage 返回已知的最后一页；0 表示未知（只能跟随 links.next）。
// 只给了 total 时，页大小依次取 meta.per_page、本页实际条数、请求的 perPage。
func (p *Page) LastPage(requestedPerPage int) int {
	if p.Meta.LastPage > 0 {
		return p.Meta.LastPage
	}
	if p.Meta.Total == nil {
		return 0
	}
	total := *p.Meta.Total
	if total <= 0 {
		return 1
	}
	perPage := p.Meta.PerPage
	if perPage <= 0 {
		perPage = len(p.Data)
	}
	if perPage <= 0 {
		perPage = requestedPerPage
	}
	if perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// PageRequest 请求某个 (domain, locale) 的一页数据
type PageRequest struct {
	Domain  string
	Country string
	Lang    string
	Page    int
	PerPage int
	// Cursor 非空时直接请求该地址（来自上一页的 links.next）
	Cursor string
}

// PageFetcher 抓取单页的外部能力
type PageFetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
}

// Error 表示一次页面抓取失败
type Error struct {
	URL     string
	Page    int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream error for %s (page %d): %s: %v", e.URL, e.Page, e.Message, e.Cause)
	}
	return fmt.Sprintf("upstream error for %s (page %d): %s", e.URL, e.Page, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
