package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/service/upstream"
)

var testNow = time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC)

func makeEntry(url string) model.SitemapEntry {
	return model.SitemapEntry{
		URL:             url,
		LastModified:    time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC),
		ChangeFrequency: model.ChangeFreqWeekly,
		Priority:        0.6,
	}
}

func makeEntries(n int) []model.SitemapEntry {
	entries := make([]model.SitemapEntry, n)
	for i := range entries {
		entries[i] = makeEntry(fmt.Sprintf("https://example.com/kw-ar/blog/post-%06d", i))
	}
	return entries
}

func urlsOf(entries []model.SitemapEntry) []string {
	urls := make([]string, len(entries))
	for i := range entries {
		urls[i] = entries[i].URL
	}
	return urls
}

func flatten(chunks []model.Chunk) []model.SitemapEntry {
	var entries []model.SitemapEntry
	for _, c := range chunks {
		entries = append(entries, c.Entries...)
	}
	return entries
}

// bufferLogger 把日志写进缓冲区，便于断言警告内容
func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// fakeFetcher 按调用返回预设结果
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	fn    func(req upstream.FetchRequest) ([]upstream.RawRecord, model.FetchOutcome, error)
}

func (f *fakeFetcher) FetchAll(ctx context.Context, req upstream.FetchRequest) ([]upstream.RawRecord, model.FetchOutcome, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	return fn(req)
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) set(fn func(req upstream.FetchRequest) ([]upstream.RawRecord, model.FetchOutcome, error)) {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
}

// returning 返回固定记录的完整抓取
func returning(records ...upstream.RawRecord) func(upstream.FetchRequest) ([]upstream.RawRecord, model.FetchOutcome, error) {
	return func(upstream.FetchRequest) ([]upstream.RawRecord, model.FetchOutcome, error) {
		return records, model.FetchOutcome{Succeeded: true, PagesFetched: 1, TotalPages: 1, Records: len(records)}, nil
	}
}

func failing(err error) func(upstream.FetchRequest) ([]upstream.RawRecord, model.FetchOutcome, error) {
	return func(upstream.FetchRequest) ([]upstream.RawRecord, model.FetchOutcome, error) {
		return nil, model.FetchOutcome{PagesFailed: 1, TotalPages: 1}, err
	}
}

func blogRecord(slug string) upstream.RawRecord {
	return upstream.RawRecord{
		"slug":       slug,
		"title":      "Post " + slug,
		"updated_at": "2025-10-01T08:00:00Z",
	}
}

// 含需要 XML 转义的字符，让渲染后的大小明显大于原文
const randomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789-_&<>'\"é"

func randomText(rng *rand.Rand, maxLen int) string {
	letters := []rune(randomAlphabet)
	n := 1 + rng.IntN(maxLen)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteRune(letters[rng.IntN(len(letters))])
	}
	return b.String()
}

// randomEntries 生成 n 个 URL 互不相同的条目，编号从 base 开始，部分带图片和视频
func randomEntries(rng *rand.Rand, base, n int) []model.SitemapEntry {
	entries := make([]model.SitemapEntry, n)
	for i := range entries {
		e := model.SitemapEntry{
			URL:             fmt.Sprintf("https://example.com/kw-ar/p/%06d-%s", base+i, randomText(rng, 80)),
			LastModified:    testNow.Add(-time.Duration(rng.IntN(400*24)) * time.Hour),
			ChangeFrequency: model.ChangeFreqWeekly,
			Priority:        float64(1+rng.IntN(10)) / 10,
		}
		if rng.IntN(3) == 0 {
			e.Images = []model.ImageAttachment{{
				URL:   fmt.Sprintf("https://cdn.example.com/%d.jpg", base+i),
				Title: randomText(rng, 40),
			}}
		}
		if rng.IntN(5) == 0 {
			e.Videos = []model.VideoAttachment{{
				ContentURL:   fmt.Sprintf("https://cdn.example.com/%d.mp4", base+i),
				ThumbnailURL: fmt.Sprintf("https://cdn.example.com/%d-thumb.jpg", base+i),
				Title:        randomText(rng, 40),
				Description:  randomText(rng, 80),
			}}
		}
		entries[i] = e
	}
	return entries
}

// randomChunker 随机的条目数和字节上限，字节上限保证任意单个随机条目都放得下
func randomChunker(rng *rand.Rand) *Chunker {
	return NewChunker(
		WithMaxEntries(1+rng.IntN(60)),
		WithMaxBytes(6000+rng.IntN(24000)),
		WithMaxShrinkAttempts(1+rng.IntN(8)),
		WithChunkerLogger(discardLogger()),
	)
}
