/*
 * @Description: 上游目录接口的 HTTP 客户端
 * @Author: 安知鱼
 * @Date: 2025-10-28 17:12:45
 * @LastEditTime: 2025-11-14 11:05:19
 * @LastEditors: 安知鱼
 */
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout 单页请求的默认超时（批量重建路径）
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent 请求上游时使用的 User-Agent
	DefaultUserAgent = "Mozilla/5.0 (compatible; AnheyuSitemap/1.0)"
	// maxBodySize 单页响应体上限
	maxBodySize = 64 << 20
)

// Options 客户端配置
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// RatePerSecond 每秒最多发出的请求数，<=0 表示不限制
	RatePerSecond float64
	Burst         int
	Headers       map[string]string
	HTTPClient    *http.Client
}

// DefaultOptions 返回默认配置
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Client 通过 HTTP 抓取上游分页数据，实现 PageFetcher
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	userAgent  string
	headers    map[string]string
}

// NewClient 创建上游客户端
func NewClient(baseURL string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &Error{URL: baseURL, Message: "invalid base URL", Cause: err}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = int(opts.RatePerSecond) + 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	return &Client{
		baseURL:    parsed,
		httpClient: httpClient,
		limiter:    limiter,
		timeout:    timeout,
		userAgent:  userAgent,
		headers:    opts.Headers,
	}, nil
}

// FetchPage 请求一页数据；超时视为失败，不在本次内重试
func (c *Client) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	target, err := c.pageURL(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{URL: target, Page: req.Page, Message: "rate limiter wait failed", Cause: err}
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{URL: target, Page: req.Page, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{URL: target, Page: req.Page, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{URL: target, Page: req.Page, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}

	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize))
	decoder.UseNumber()
	var page Page
	if err := decoder.Decode(&page); err != nil {
		return nil, &Error{URL: target, Page: req.Page, Message: "failed to decode response", Cause: err}
	}
	return &page, nil
}

// pageURL 构建 GET /{domain}?page=N&country=C&lang=L&per_page=P，或解析游标地址
func (c *Client) pageURL(req PageRequest) (string, error) {
	if req.Cursor != "" {
		next, err := c.baseURL.Parse(req.Cursor)
		if err != nil {
			return "", &Error{URL: req.Cursor, Page: req.Page, Message: "invalid cursor URL", Cause: err}
		}
		return next.String(), nil
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + url.PathEscape(req.Domain)
	q := u.Query()
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("country", req.Country)
	q.Set("lang", req.Lang)
	if req.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(req.PerPage))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
