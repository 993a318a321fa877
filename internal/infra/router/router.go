/*
 * @Description: 路由注册
 * @Author: 安知鱼
 * @Date: 2025-06-15 11:30:55
 * @LastEditTime: 2025-11-14 17:41:52
 * @LastEditors: 安知鱼
 */
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/anzhiyu-c/anheyu-sitemap/internal/app/middleware"
	sitemap_handler "github.com/anzhiyu-c/anheyu-sitemap/pkg/handler/sitemap"
	version_handler "github.com/anzhiyu-c/anheyu-sitemap/pkg/handler/version"
)

// NoCacheMiddleware 反缓存中间件，确保管理接口的响应不会被CDN缓存
func NoCacheMiddleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate, private, max-age=0")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Header("X-Content-Type-Options", "nosniff")

		c.Next()
	})
}

// Router 封装了应用的所有路由和其依赖的处理器。
type Router struct {
	sitemapHandler          *sitemap_handler.Handler
	versionHandler          *version_handler.Handler
	invalidateRatePerMinute int
}

// NewRouter 是 Router 的构造函数，通过依赖注入接收所有处理器。
func NewRouter(
	sitemapHandler *sitemap_handler.Handler,
	versionHandler *version_handler.Handler,
	invalidateRatePerMinute int,
) *Router {
	if invalidateRatePerMinute <= 0 {
		invalidateRatePerMinute = 10
	}
	return &Router{
		sitemapHandler:          sitemapHandler,
		versionHandler:          versionHandler,
		invalidateRatePerMinute: invalidateRatePerMinute,
	}
}

// Setup 将所有路由注册到 Gin 引擎。
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Cors())

	apiGroup := engine.Group("/api")
	apiGroup.Use(NoCacheMiddleware())
	r.registerVersionRoutes(apiGroup)

	r.registerSitemapRoutes(engine) // 直接注册到engine，不使用/api前缀
	r.registerInvalidateRoutes(engine)
}

// registerSitemapRoutes 注册站点地图相关路由
func (r *Router) registerSitemapRoutes(engine *gin.Engine) {
	// 这些路由主要供搜索引擎使用，需要符合SEO标准

	// GET /sitemap.xml - 站点地图索引
	engine.GET("/sitemap.xml", r.sitemapHandler.GetIndex)

	// GET /sitemaps/products/kw-ar/0.xml - 站点地图分块
	engine.GET("/sitemaps/:domain/:locale/:file", r.sitemapHandler.GetChunk)

	// GET /robots.txt - 搜索引擎抓取规则
	engine.GET("/robots.txt", r.sitemapHandler.GetRobots)
}

// registerInvalidateRoutes 注册缓存管理路由
func (r *Router) registerInvalidateRoutes(engine *gin.Engine) {
	invalidateGroup := engine.Group("/invalidate")
	invalidateGroup.Use(NoCacheMiddleware())
	{
		// POST /invalidate - 失效缓存，按IP限流
		invalidateGroup.POST("", middleware.InvalidateRateLimit(r.invalidateRatePerMinute), r.sitemapHandler.Invalidate)

		// GET /invalidate - 缓存统计
		invalidateGroup.GET("", r.sitemapHandler.Stats)
	}
}

// registerVersionRoutes 注册版本信息相关路由
func (r *Router) registerVersionRoutes(api *gin.RouterGroup) {
	// GET /api/version - 获取版本信息
	api.GET("/version", r.versionHandler.GetVersion)
}
