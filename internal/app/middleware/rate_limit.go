/*
 * @Description: 频率限制中间件
 * @Author: 安知鱼
 * @Date: 2025-11-08 00:00:00
 * @LastEditTime: 2025-10-18 11:02:37
 * @LastEditors: 安知鱼
 */
package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/response"
)

const (
	// 闲置超过该时长的客户端限流器会被回收
	limiterIdleTimeout = 10 * time.Minute
	// 两次回收之间的最小间隔
	limiterSweepInterval = 5 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters 按客户端 IP 维护令牌桶，在查找时顺带回收闲置项
type clientLimiters struct {
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiters(requestsPerMinute, burst int) *clientLimiters {
	requestsPerMinute = max(requestsPerMinute, 1)
	return &clientLimiters{
		every:   rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:   max(burst, 1),
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

func (l *clientLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= limiterSweepInterval {
		for key, c := range l.clients {
			if now.Sub(c.lastSeen) > limiterIdleTimeout {
				delete(l.clients, key)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.every, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (l *clientLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// InvalidateRateLimit 缓存失效接口的频率限制，每次失效都会让后续请求回源
func InvalidateRateLimit(requestsPerMinute int) gin.HandlerFunc {
	return CustomRateLimit(requestsPerMinute, requestsPerMinute)
}

// CustomRateLimit 按客户端 IP 限制每分钟请求数，超限返回 429 并附带 Retry-After
func CustomRateLimit(requestsPerMinute, burst int) gin.HandlerFunc {
	limiters := newClientLimiters(requestsPerMinute, burst)
	retryAfter := strconv.Itoa(max(60/max(requestsPerMinute, 1), 1))

	return func(c *gin.Context) {
		if !limiters.allow(getClientIP(c)) {
			c.Header("Retry-After", retryAfter)
			response.Fail(c, http.StatusTooManyRequests, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}
		c.Next()
	}
}

// getClientIP 依次取 X-Real-IP、X-Forwarded-For 首项、RemoteAddr
func getClientIP(c *gin.Context) string {
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return stripPort(strings.TrimSpace(first))
	}
	return stripPort(c.Request.RemoteAddr)
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
