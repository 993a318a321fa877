/*
 * @Description: 版本信息处理器
 * @Author: 安知鱼
 * @Date: 2025-09-26 09:52:32
 * @LastEditTime: 2025-10-18 11:34:08
 * @LastEditors: 安知鱼
 */
package version

import (
	"github.com/gin-gonic/gin"

	"github.com/anzhiyu-c/anheyu-sitemap/internal/pkg/version"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/response"
)

// RuntimeInfo 运行时状态，随版本信息一起返回
type RuntimeInfo struct {
	CacheStore string `json:"cache_store"`
	Keys       int    `json:"keys"`
}

// Info 版本接口返回的数据
type Info struct {
	version.BuildInfo
	Runtime *RuntimeInfo `json:"runtime,omitempty"`
}

// Handler 版本信息处理器
type Handler struct {
	runtime func() RuntimeInfo
}

// NewHandler 创建版本信息处理器，runtime 为 nil 时只返回构建信息
func NewHandler(runtime func() RuntimeInfo) *Handler {
	return &Handler{runtime: runtime}
}

// GetVersion 获取版本信息
// @Summary      获取版本信息
// @Tags         辅助工具
// @Produce      json
// @Success      200  {object}  response.Response{data=Info}
// @Router       /api/version [get]
func (h *Handler) GetVersion(c *gin.Context) {
	info := Info{BuildInfo: version.GetBuildInfo()}
	if h.runtime != nil {
		rt := h.runtime()
		info.Runtime = &rt
	}
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate, private, max-age=0")
	response.Success(c, info, "获取版本信息成功")
}
