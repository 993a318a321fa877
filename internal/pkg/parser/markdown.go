/*
 * @Description: Markdown 摘要提取
 * @Author: 安知鱼
 * @Date: 2025-08-08 15:57:23
 * @LastEditTime: 2025-10-18 10:21:40
 * @LastEditors: 安知鱼
 */
// internal/pkg/parser/markdown.go
package parser

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var mdParser goldmark.Markdown

func init() {
	// 摘要只需要正文文字，不开启标题 ID、排版美化等会改写文本的扩展
	mdParser = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(), // 原始 HTML 交给 PlainText 清理
		),
	)
}

// MarkdownToHTML 将 Markdown 转换为 HTML，结果未经清理
func MarkdownToHTML(mdContent string) (string, error) {
	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(mdContent), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// MarkdownPlainText 渲染 Markdown 后提取纯文本，转换失败时回落到直接清洗原文
func MarkdownPlainText(mdContent string) string {
	if mdContent == "" {
		return ""
	}
	rendered, err := MarkdownToHTML(mdContent)
	if err != nil {
		return PlainText(mdContent)
	}
	return PlainText(rendered)
}
