/*
 * @Description: 纯文本清洗
 * @Author: 安知鱼
 * @Date: 2025-08-08 16:10:36
 * @LastEditTime: 2025-11-03 11:48:20
 * @LastEditors: 安知鱼
 */
package parser

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var stripTagsPolicy *bluemonday.Policy

func init() {
	// StripTagsPolicy 会移除所有的HTML标签
	stripTagsPolicy = bluemonday.StripTagsPolicy()
}

// StripHTML 接受一个HTML字符串，返回一个去除了所有标签的纯文本字符串。
func StripHTML(htmlContent string) string {
	return stripTagsPolicy.Sanitize(htmlContent)
}

// PlainText 去掉标签、还原实体并折叠空白，结果交给 XML 编码器转义，避免二次转义。
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	text := html.UnescapeString(StripHTML(s))
	return strings.Join(strings.Fields(text), " ")
}

// Truncate 按字符截断文本
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
