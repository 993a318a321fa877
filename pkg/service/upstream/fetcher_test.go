package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePages 内存中的分页数据源
type fakePages struct {
	mu       sync.Mutex
	pages    map[int]*Page
	cursors  map[string]*Page
	failures map[int]bool
	requests []PageRequest
}

func (f *fakePages) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.failures[req.Page] {
		return nil, &Error{URL: "fake", Page: req.Page, Message: "HTTP status 500"}
	}
	if req.Cursor != "" {
		if p, ok := f.cursors[req.Cursor]; ok {
			return p, nil
		}
		return nil, &Error{URL: req.Cursor, Page: req.Page, Message: "unknown cursor"}
	}
	if p, ok := f.pages[req.Page]; ok {
		return p, nil
	}
	return &Page{}, nil
}

func (f *fakePages) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func numberedPages(lastPage, perPage int) map[int]*Page {
	pages := make(map[int]*Page, lastPage)
	for p := 1; p <= lastPage; p++ {
		page := &Page{Meta: Meta{LastPage: lastPage, PerPage: perPage}}
		for i := 0; i < perPage; i++ {
			page.Data = append(page.Data, RawRecord{"id": fmt.Sprintf("%d-%d", p, i)})
		}
		pages[p] = page
	}
	return pages
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetcher_FetchAll_Paged(t *testing.T) {
	tests := []struct {
		name        string
		lastPage    int
		maxPages    int
		failures    map[int]bool
		wantRecords int
		wantOutcome func(o *outcomeView)
	}{
		{name: "单页", lastPage: 1, maxPages: 10, wantRecords: 3,
			wantOutcome: func(o *outcomeView) { o.fetched, o.failed, o.total = 1, 0, 1 }},
		{name: "多页全部成功", lastPage: 8, maxPages: 10, wantRecords: 24,
			wantOutcome: func(o *outcomeView) { o.fetched, o.failed, o.total = 8, 0, 8 }},
		{name: "部分页面失败", lastPage: 8, maxPages: 10, failures: map[int]bool{3: true, 6: true}, wantRecords: 18,
			wantOutcome: func(o *outcomeView) { o.fetched, o.failed, o.total = 6, 2, 8 }},
		{name: "超过页数上限被截断", lastPage: 50, maxPages: 5, wantRecords: 15,
			wantOutcome: func(o *outcomeView) { o.fetched, o.failed, o.total = 5, 0, 50 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakePages{pages: numberedPages(tt.lastPage, 3), failures: tt.failures}
			f := NewFetcher(src, quietLogger())

			records, outcome, err := f.FetchAll(context.Background(), FetchRequest{
				Domain: "products", Country: "kw", Lang: "ar", PageSize: 3, MaxPages: tt.maxPages, Concurrency: 3,
			})
			require.NoError(t, err)
			assert.Len(t, records, tt.wantRecords)

			var want outcomeView
			tt.wantOutcome(&want)
			assert.True(t, outcome.Succeeded)
			assert.Equal(t, want.fetched, outcome.PagesFetched)
			assert.Equal(t, want.failed, outcome.PagesFailed)
			assert.Equal(t, want.total, outcome.TotalPages)
			assert.Equal(t, tt.wantRecords, outcome.Records)
			assert.Equal(t, len(tt.failures) > 0, outcome.Partial())
		})
	}
}

type outcomeView struct {
	fetched, failed, total int
}

func TestFetcher_FetchAll_FirstPageFails(t *testing.T) {
	src := &fakePages{pages: numberedPages(5, 2), failures: map[int]bool{1: true}}
	f := NewFetcher(src, quietLogger())

	records, outcome, err := f.FetchAll(context.Background(), FetchRequest{Domain: "blogs"})
	require.Error(t, err)
	assert.Nil(t, records)
	assert.False(t, outcome.Succeeded)
	assert.Equal(t, 1, outcome.PagesFailed)
	assert.Equal(t, 1, src.requestCount(), "首页失败后不再请求其它页")

	var upErr *Error
	assert.True(t, errors.As(err, &upErr))
}

func TestFetcher_FetchAll_Cursor(t *testing.T) {
	first := &Page{Data: []RawRecord{{"id": "1"}}, Links: Links{Next: "/blogs?cursor=b"}}

	t.Run("跟随游标到结束", func(t *testing.T) {
		src := &fakePages{
			pages: map[int]*Page{1: first},
			cursors: map[string]*Page{
				"/blogs?cursor=b": {Data: []RawRecord{{"id": "2"}}, Links: Links{Next: "/blogs?cursor=c"}},
				"/blogs?cursor=c": {Data: []RawRecord{{"id": "3"}}},
			},
		}
		records, outcome, err := NewFetcher(src, quietLogger()).FetchAll(context.Background(), FetchRequest{Domain: "blogs"})
		require.NoError(t, err)
		assert.Len(t, records, 3)
		assert.Equal(t, 3, outcome.PagesFetched)
		assert.Equal(t, 3, outcome.TotalPages)
		assert.False(t, outcome.Partial())
	})

	t.Run("游标页失败后停止", func(t *testing.T) {
		src := &fakePages{
			pages: map[int]*Page{1: first},
			cursors: map[string]*Page{
				"/blogs?cursor=b": {Data: []RawRecord{{"id": "2"}}, Links: Links{Next: "/blogs?cursor=missing"}},
			},
		}
		records, outcome, err := NewFetcher(src, quietLogger()).FetchAll(context.Background(), FetchRequest{Domain: "blogs"})
		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, 2, outcome.PagesFetched)
		assert.Equal(t, 1, outcome.PagesFailed)
		assert.Equal(t, 3, outcome.TotalPages)
		assert.True(t, outcome.Partial())
	})

	t.Run("游标受页数上限约束", func(t *testing.T) {
		loop := &Page{Data: []RawRecord{{"id": "x"}}, Links: Links{Next: "/blogs?cursor=loop"}}
		src := &fakePages{
			pages:   map[int]*Page{1: first},
			cursors: map[string]*Page{"/blogs?cursor=b": loop, "/blogs?cursor=loop": loop},
		}
		_, outcome, err := NewFetcher(src, quietLogger()).FetchAll(context.Background(), FetchRequest{Domain: "blogs", MaxPages: 4})
		require.NoError(t, err)
		assert.Equal(t, 4, outcome.PagesFetched)
		assert.Equal(t, 4, src.requestCount())
	})
}

func TestFetcher_FetchAll_RequestShape(t *testing.T) {
	src := &fakePages{pages: numberedPages(2, 1)}
	_, _, err := NewFetcher(src, quietLogger()).FetchAll(context.Background(), FetchRequest{Domain: "companies", Country: "sa", Lang: "en"})
	require.NoError(t, err)

	require.Len(t, src.requests, 2)
	for _, req := range src.requests {
		assert.Equal(t, "companies", req.Domain)
		assert.Equal(t, "sa", req.Country)
		assert.Equal(t, "en", req.Lang)
		assert.Equal(t, DefaultPageSize, req.PerPage)
	}
}

// trackingPages 记录同时在途的请求数峰值
type trackingPages struct {
	lastPage int
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32

	mu        sync.Mutex
	requested []int
}

func (p *trackingPages) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}

	p.mu.Lock()
	p.requested = append(p.requested, req.Page)
	p.mu.Unlock()

	if req.Page > 1 {
		time.Sleep(p.delay)
	}
	return &Page{Data: []RawRecord{{"id": req.Page}}, Meta: Meta{LastPage: p.lastPage}}, nil
}

func (p *trackingPages) pages() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	pages := append([]int(nil), p.requested...)
	sort.Ints(pages)
	return pages
}

func TestFetcher_FetchAll_BoundedConcurrency(t *testing.T) {
	tests := []struct {
		name        string
		lastPage    int
		maxPages    int
		concurrency int
	}{
		{name: "页数多于 worker", lastPage: 20, maxPages: 50, concurrency: 3},
		{name: "受页数上限截断", lastPage: 30, maxPages: 10, concurrency: 4},
		{name: "worker 多于页数", lastPage: 5, maxPages: 50, concurrency: 8},
		{name: "单 worker", lastPage: 6, maxPages: 50, concurrency: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &trackingPages{lastPage: tt.lastPage, delay: 5 * time.Millisecond}
			_, outcome, err := NewFetcher(src, quietLogger()).FetchAll(context.Background(), FetchRequest{
				Domain: "products", MaxPages: tt.maxPages, Concurrency: tt.concurrency,
			})
			require.NoError(t, err)

			assert.LessOrEqual(t, int(src.peak.Load()), tt.concurrency, "在途请求不超过 Concurrency")

			end := min(tt.lastPage, tt.maxPages)
			want := make([]int, 0, end)
			for p := 1; p <= end; p++ {
				want = append(want, p)
			}
			assert.Equal(t, want, src.pages(), "每一页恰好请求一次")
			assert.Equal(t, end, outcome.PagesFetched)
		})
	}
}

func TestFetcher_FetchAll_TotalWithoutPerPage(t *testing.T) {
	total := 7
	src := &fakePages{pages: map[int]*Page{
		1: {Data: []RawRecord{{"id": "1"}, {"id": "2"}, {"id": "3"}}, Meta: Meta{Total: &total}},
		2: {Data: []RawRecord{{"id": "4"}, {"id": "5"}, {"id": "6"}}},
		3: {Data: []RawRecord{{"id": "7"}}},
	}}

	records, outcome, err := NewFetcher(src, quietLogger()).FetchAll(context.Background(), FetchRequest{Domain: "blogs", PageSize: 100})
	require.NoError(t, err)
	assert.Len(t, records, 7, "按首页实际条数推算页数，不会只抓第一页")
	assert.Equal(t, 3, outcome.TotalPages)
	assert.Equal(t, 3, src.requestCount())
}
