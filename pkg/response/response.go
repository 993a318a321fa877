/*
 * @Description: 统一响应
 * @Author: 安知鱼
 * @Date: 2025-06-15 12:16:18
 * @LastEditTime: 2025-10-18 11:20:54
 * @LastEditors: 安知鱼
 */
package response

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	ContentTypeXML  = "application/xml; charset=utf-8"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Response 是统一的API返回结构体
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Success 成功响应
func Success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Message: message, Data: data})
}

// Fail 失败响应
func Fail(c *gin.Context, code int, message string) {
	FailWithData(c, code, nil, message)
}

// FailWithData 失败响应，附带诊断信息
func FailWithData(c *gin.Context, code int, data any, message string) {
	c.JSON(code, Response{Code: code, Message: message, Data: data})
}

// XML 输出站点地图文件，maxAge 为 0 时不允许缓存
func XML(c *gin.Context, code int, body []byte, maxAge time.Duration) {
	setCacheControl(c, maxAge)
	c.Data(code, ContentTypeXML, body)
}

// Text 输出纯文本，例如 robots.txt
func Text(c *gin.Context, code int, body string, maxAge time.Duration) {
	setCacheControl(c, maxAge)
	c.Data(code, ContentTypeText, []byte(body))
}

// Unavailable 返回 503 和 Retry-After，body 为空时只写状态码
func Unavailable(c *gin.Context, retryAfter time.Duration, body []byte) {
	c.Header("Retry-After", strconv.Itoa(int(retryAfter/time.Second)))
	if body == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	XML(c, http.StatusServiceUnavailable, body, 0)
}

func setCacheControl(c *gin.Context, maxAge time.Duration) {
	if maxAge <= 0 {
		c.Header("Cache-Control", "no-store")
		return
	}
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(maxAge/time.Second)))
}
