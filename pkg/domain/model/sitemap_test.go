package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEntry() SitemapEntry {
	return SitemapEntry{
		URL:             "https://example.com/kw-ar/product/phone-id=1",
		LastModified:    time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC),
		ChangeFrequency: ChangeFreqDaily,
		Priority:        0.8,
		Images: []ImageAttachment{
			{URL: "https://cdn.example.com/1.jpg", Title: "Phone"},
		},
	}
}

func TestSitemapEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *SitemapEntry)
		wantErr bool
	}{
		{name: "合法条目", mutate: func(e *SitemapEntry) {}},
		{name: "URL 为空", mutate: func(e *SitemapEntry) { e.URL = "" }, wantErr: true},
		{name: "URL 超长", mutate: func(e *SitemapEntry) { e.URL = "https://example.com/" + strings.Repeat("a", MaxURLLength) }, wantErr: true},
		{name: "URL 恰好 2048", mutate: func(e *SitemapEntry) {
			e.URL = "https://example.com/" + strings.Repeat("a", MaxURLLength-len("https://example.com/"))
		}},
		{name: "优先级大于 1", mutate: func(e *SitemapEntry) { e.Priority = 1.1 }, wantErr: true},
		{name: "优先级小于 0", mutate: func(e *SitemapEntry) { e.Priority = -0.1 }, wantErr: true},
		{name: "优先级边界 0", mutate: func(e *SitemapEntry) { e.Priority = 0 }},
		{name: "优先级边界 1", mutate: func(e *SitemapEntry) { e.Priority = 1 }},
		{name: "未知更新频率", mutate: func(e *SitemapEntry) { e.ChangeFrequency = "sometimes" }, wantErr: true},
		{name: "图片缺少地址", mutate: func(e *SitemapEntry) { e.Images[0].URL = "" }, wantErr: true},
		{name: "视频缺少地址", mutate: func(e *SitemapEntry) { e.Videos = []VideoAttachment{{Title: "x"}} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(&e)
			err := e.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("缺少修改时间", func(t *testing.T) {
		e := validEntry()
		e.LastModified = time.Time{}
		assert.True(t, errors.Is(e.Validate(), ErrMissingLastModified))
	})
}

func TestContentHash(t *testing.T) {
	base := validEntry()
	h := base.ContentHash()
	assert.Len(t, h, 64)
	assert.Equal(t, h, base.ContentHash(), "同一条目的哈希必须稳定")

	t.Run("时区不同但时刻相同", func(t *testing.T) {
		e := validEntry()
		e.LastModified = e.LastModified.In(time.FixedZone("AST", 3*3600))
		assert.Equal(t, h, e.ContentHash())
	})

	changes := map[string]func(e *SitemapEntry){
		"URL":    func(e *SitemapEntry) { e.URL += "x" },
		"修改时间":   func(e *SitemapEntry) { e.LastModified = e.LastModified.Add(time.Second) },
		"更新频率":   func(e *SitemapEntry) { e.ChangeFrequency = ChangeFreqWeekly },
		"优先级":    func(e *SitemapEntry) { e.Priority = 0.7 },
		"图片标题":   func(e *SitemapEntry) { e.Images[0].Title = "Other" },
		"新增视频":   func(e *SitemapEntry) { e.Videos = []VideoAttachment{{ContentURL: "https://cdn.example.com/v.mp4"}} },
		"去掉图片":   func(e *SitemapEntry) { e.Images = nil },
		"图片说明移位": func(e *SitemapEntry) { e.Images[0].Title, e.Images[0].Caption = "", "Phone" },
	}
	for name, mutate := range changes {
		t.Run("字段变化: "+name, func(t *testing.T) {
			e := validEntry()
			e.Images = append([]ImageAttachment(nil), base.Images...)
			mutate(&e)
			assert.NotEqual(t, h, e.ContentHash())
		})
	}
}

func TestCacheKey(t *testing.T) {
	key := NewCacheKey(DomainProducts, Locale{Country: "kw", Lang: "ar"})
	assert.Equal(t, "products-kw-ar", key.String())

	parsed, err := ParseCacheKey("products-kw-ar")
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	for _, bad := range []string{"", "products", "widgets-kw-ar", "products-kw", "products-kw-ar-x", "products--ar"} {
		_, err := ParseCacheKey(bad)
		assert.ErrorIs(t, err, ErrInvalidCacheKey, bad)
	}
}

func TestParseLocale(t *testing.T) {
	l, err := ParseLocale(" KW-AR ")
	require.NoError(t, err)
	assert.Equal(t, Locale{Country: "kw", Lang: "ar"}, l)
	assert.Equal(t, "kw-ar", l.String())

	_, err = ParseLocale("kwar")
	assert.Error(t, err)
}

func TestCacheRecord(t *testing.T) {
	e1, e2 := validEntry(), validEntry()
	e2.URL += "2"
	generated := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	record := NewCacheRecord(NewCacheKey(DomainBlogs, Locale{Country: "sa", Lang: "en"}), []Chunk{
		{Entries: []SitemapEntry{e1}, SizeBytes: 100},
		{Entries: []SitemapEntry{e2}, SizeBytes: 150},
	}, generated)

	assert.Equal(t, "blogs-sa-en", record.Key)
	assert.Equal(t, CacheStats{TotalChunks: 2, TotalURLs: 2, TotalSizeBytes: 250}, record.Stats)
	assert.Len(t, record.Entries(), 2)

	assert.True(t, record.IsFresh(generated.Add(23*time.Hour), 24*time.Hour))
	assert.False(t, record.IsFresh(generated.Add(24*time.Hour), 24*time.Hour), "恰好到期视为过期")
	assert.False(t, record.IsFresh(generated.Add(25*time.Hour), 24*time.Hour))
}

func TestFetchOutcomePartial(t *testing.T) {
	assert.False(t, FetchOutcome{Succeeded: true}.Partial())
	assert.True(t, FetchOutcome{Succeeded: true, PagesFailed: 2}.Partial())
	assert.False(t, FetchOutcome{Succeeded: false, PagesFailed: 1}.Partial())
}
