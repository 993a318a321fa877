/*
 * @Description: 站点地图处理器
 * @Author: 安知鱼
 * @Date: 2025-09-21 00:00:00
 * @LastEditTime: 2025-11-14 17:30:12
 * @LastEditors: 安知鱼
 */
package sitemap

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/response"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/service/sitemap"
)

const (
	HeaderChunk        = "X-Sitemap-Chunk"
	HeaderURLCount     = "X-Sitemap-URL-Count"
	HeaderGenerationMs = "X-Sitemap-Generation-Ms"
	HeaderCache        = "X-Sitemap-Cache"

	sitemapMaxAge = time.Hour
	robotsMaxAge  = 24 * time.Hour
	retryAfter    = time.Minute
)

// emptyURLSet 上游不可用且没有缓存时返回的空文件
const emptyURLSet = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
	`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"></urlset>` + "\n"

// Handler 站点地图处理器
type Handler struct {
	sitemapService      sitemap.Service
	invalidationService *sitemap.InvalidationService
}

// NewHandler 创建站点地图处理器
func NewHandler(sitemapService sitemap.Service, invalidationService *sitemap.InvalidationService) *Handler {
	return &Handler{
		sitemapService:      sitemapService,
		invalidationService: invalidationService,
	}
}

// InvalidateRequest 缓存失效请求体
type InvalidateRequest struct {
	Type   string `json:"type"`
	Locale string `json:"locale"`
}

// GetIndex 获取站点地图索引
// @Summary      获取站点地图索引
// @Tags         站点地图
// @Produce      xml
// @Success      200  {string}  string  "XML格式的站点地图索引"
// @Router       /sitemap.xml [get]
func (h *Handler) GetIndex(c *gin.Context) {
	index, err := h.sitemapService.GetIndex(c.Request.Context())
	if err != nil {
		log.Printf("[Sitemap] 生成站点地图索引失败: %v", err)
		c.String(http.StatusInternalServerError, "生成站点地图索引失败")
		return
	}

	response.XML(c, http.StatusOK, index.Body, sitemapMaxAge)
}

// GetChunk 获取某个目录和语言区域的第 N 个分块
// @Summary      获取站点地图分块
// @Tags         站点地图
// @Produce      xml
// @Param        domain  path  string  true  "目录类型"
// @Param        locale  path  string  true  "语言区域，例如 kw-ar"
// @Param        file    path  string  true  "分块文件名，例如 0.xml"
// @Success      200  {string}  string  "XML格式的站点地图"
// @Failure      404  {object}  response.Response
// @Failure      503  {string}  string  "空的站点地图"
// @Router       /sitemaps/{domain}/{locale}/{file} [get]
func (h *Handler) GetChunk(c *gin.Context) {
	domain := model.Domain(strings.ToLower(c.Param("domain")))
	if !domain.Valid() {
		response.Fail(c, http.StatusNotFound, fmt.Sprintf("未知的目录类型: %s", c.Param("domain")))
		return
	}
	locale, err := model.ParseLocale(c.Param("locale"))
	if err != nil {
		response.Fail(c, http.StatusNotFound, fmt.Sprintf("无效的语言区域: %s", c.Param("locale")))
		return
	}
	index, ok := parseChunkFile(c.Param("file"))
	if !ok {
		response.Fail(c, http.StatusNotFound, fmt.Sprintf("无效的分块文件名: %s", c.Param("file")))
		return
	}

	key := model.NewCacheKey(domain, locale)
	result, err := h.sitemapService.GetChunk(c.Request.Context(), key, index)
	if err != nil {
		var notFound *sitemap.ChunkNotFoundError
		switch {
		case errors.As(err, &notFound):
			validRange := ""
			if notFound.TotalChunks > 0 {
				validRange = fmt.Sprintf("0-%d", notFound.TotalChunks-1)
			}
			response.FailWithData(c, http.StatusNotFound, gin.H{
				"valid_range":  validRange,
				"total_chunks": notFound.TotalChunks,
				"total_urls":   notFound.TotalURLs,
			}, "站点地图分块不存在")
		case errors.Is(err, sitemap.ErrUnavailable):
			response.Unavailable(c, retryAfter, []byte(emptyURLSet))
		default:
			log.Printf("[Sitemap] 获取分块 %s/%d 失败: %v", key, index, err)
			c.String(http.StatusInternalServerError, "生成站点地图失败")
		}
		return
	}

	c.Header(HeaderChunk, fmt.Sprintf("%d/%d", result.Index, result.TotalChunks))
	c.Header(HeaderURLCount, strconv.Itoa(result.URLCount))
	c.Header(HeaderGenerationMs, strconv.FormatInt(result.GenerationDuration.Milliseconds(), 10))
	c.Header(HeaderCache, string(result.Cache))
	if !result.LastGenerated.IsZero() {
		c.Header("Last-Modified", result.LastGenerated.UTC().Format(http.TimeFormat))
	}
	response.XML(c, http.StatusOK, result.Body, sitemapMaxAge)
}

// GetRobots 获取robots.txt
// @Summary      获取robots.txt
// @Tags         站点地图
// @Produce      plain
// @Success      200  {string}  string  "robots.txt内容"
// @Router       /robots.txt [get]
func (h *Handler) GetRobots(c *gin.Context) {
	robotsContent, err := h.sitemapService.GenerateRobots(c.Request.Context())
	if err != nil {
		c.String(http.StatusInternalServerError, "生成robots.txt失败")
		return
	}

	response.Text(c, http.StatusOK, robotsContent, robotsMaxAge)
}

// Invalidate 手动失效缓存
// @Summary      失效站点地图缓存
// @Tags         站点地图
// @Accept       json
// @Produce      json
// @Param        body  body  InvalidateRequest  true  "type 为 all 或目录类型，locale 可选"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /invalidate [post]
func (h *Handler) Invalidate(c *gin.Context) {
	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "请求体格式错误")
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		response.Fail(c, http.StatusBadRequest, "type 不能为空")
		return
	}

	deleted, err := h.invalidationService.Invalidate(c.Request.Context(), req.Type, req.Locale)
	if err != nil {
		if errors.Is(err, sitemap.ErrInvalidTarget) {
			response.Fail(c, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[Sitemap] 失效缓存失败: %v", err)
		response.Fail(c, http.StatusInternalServerError, "失效缓存失败")
		return
	}
	response.Success(c, gin.H{"deleted": deleted}, "缓存已失效")
}

// Stats 查看缓存统计
// @Summary      站点地图缓存统计
// @Tags         站点地图
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /invalidate [get]
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.invalidationService.Stats(c.Request.Context())
	if err != nil {
		log.Printf("[Sitemap] 读取缓存统计失败: %v", err)
		response.Fail(c, http.StatusInternalServerError, "读取缓存统计失败")
		return
	}
	response.Success(c, gin.H{"keys": stats, "total": len(stats)}, "获取成功")
}

// parseChunkFile 解析 "3.xml"
func parseChunkFile(file string) (int, bool) {
	name, ok := strings.CutSuffix(file, ".xml")
	if !ok || name == "" {
		return 0, false
	}
	index, err := strconv.Atoi(name)
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}
