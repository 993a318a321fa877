package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FetchPage(t *testing.T) {
	var gotPath, gotUA string
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		gotQuery = map[string]string{
			"page":     r.URL.Query().Get("page"),
			"country":  r.URL.Query().Get("country"),
			"lang":     r.URL.Query().Get("lang"),
			"per_page": r.URL.Query().Get("per_page"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":12345678901,"slug":"phone"}],"meta":{"last_page":3,"per_page":1}}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api/v1/", &Options{UserAgent: "anheyu-test"})
	require.NoError(t, err)

	page, err := client.FetchPage(context.Background(), PageRequest{Domain: "products", Country: "kw", Lang: "ar", Page: 2, PerPage: 100})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/products", gotPath)
	assert.Equal(t, "anheyu-test", gotUA)
	assert.Equal(t, map[string]string{"page": "2", "country": "kw", "lang": "ar", "per_page": "100"}, gotQuery)
	assert.Equal(t, 3, page.LastPage(0))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "12345678901", page.Data[0].String("id"), "大整数 id 不能丢失精度")
}

func TestClient_FetchPage_Cursor(t *testing.T) {
	var gotURI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		_, _ = w.Write([]byte(`{"data":[],"links":{"next":null}}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api", nil)
	require.NoError(t, err)

	_, err = client.FetchPage(context.Background(), PageRequest{Domain: "blogs", Page: 2, Cursor: "/api/blogs?cursor=abc"})
	require.NoError(t, err)
	assert.Equal(t, "/api/blogs?cursor=abc", gotURI)
}

func TestClient_FetchPage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
	}{
		{
			name: "非 2xx 状态码",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
		},
		{
			name: "响应不是 JSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
		},
		{
			name: "超时",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout: 50 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client, err := NewClient(srv.URL, &Options{Timeout: tt.timeout})
			require.NoError(t, err)

			_, err = client.FetchPage(context.Background(), PageRequest{Domain: "products", Page: 4})
			require.Error(t, err)
			var upErr *Error
			require.True(t, errors.As(err, &upErr))
			assert.Equal(t, 4, upErr.Page)
		})
	}
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/relative/only"} {
		_, err := NewClient(raw, nil)
		assert.Error(t, err, raw)
	}
}

func TestPage_LastPage(t *testing.T) {
	total := func(n int) *int { return &n }
	rows := func(n int) []RawRecord { return make([]RawRecord, n) }
	tests := []struct {
		name      string
		meta      Meta
		data      []RawRecord
		requested int
		expected  int
	}{
		{name: "直接给出 last_page", meta: Meta{LastPage: 7}, expected: 7},
		{name: "由 total 计算", meta: Meta{Total: total(250), PerPage: 100}, expected: 3},
		{name: "total 为 0", meta: Meta{Total: total(0), PerPage: 100}, expected: 1},
		{name: "缺少 per_page 时按本页条数", meta: Meta{Total: total(250)}, data: rows(50), requested: 100, expected: 5},
		{name: "缺少 per_page 且本页为空时按请求大小", meta: Meta{Total: total(250)}, requested: 100, expected: 3},
		{name: "只有 total 无从推算", meta: Meta{Total: total(250)}, expected: 0},
		{name: "未知", meta: Meta{}, requested: 100, expected: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Page{Meta: tt.meta, Data: tt.data}
			assert.Equal(t, tt.expected, p.LastPage(tt.requested))
		})
	}
}

func TestRawRecord(t *testing.T) {
	r := RawRecord{
		"id":      json.Number("42"),
		"price":   float64(9.5),
		"slug":    "  phone ",
		"empty":   "",
		"flag":    true,
		"updated": "2025-10-01 08:00:00",
		"unix":    float64(1760000000),
	}
	assert.Equal(t, "42", r.String("id"))
	assert.Equal(t, "9.5", r.String("price"))
	assert.Equal(t, "phone", r.String("empty", "slug"), "跳过空字段")
	assert.Equal(t, "", r.String("flag", "missing"))

	ts, ok := r.Time("missing", "updated")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC), ts)

	ts, ok = r.Time("unix")
	require.True(t, ok)
	assert.Equal(t, int64(1760000000), ts.Unix())

	_, ok = r.Time("slug")
	assert.False(t, ok)
}
