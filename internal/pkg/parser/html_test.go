package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "空字符串", input: "", expected: ""},
		{name: "纯文本", input: "Hello World", expected: "Hello World"},
		{name: "去掉标签", input: "<p>Hello <b>World</b></p>", expected: "Hello World"},
		{name: "还原实体", input: "Tom &amp; Jerry &lt;3", expected: "Tom & Jerry <3"},
		{name: "折叠空白", input: "  a \n\t b  ", expected: "a b"},
		{name: "脚本被移除", input: "hi<script>alert(1)</script>", expected: "hi"},
		{name: "阿拉伯语", input: "<span>هاتف ذكي</span>", expected: "هاتف ذكي"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PlainText(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "你好", Truncate("你好世界", 2))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestMarkdownPlainText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "空字符串", input: "", expected: ""},
		{name: "标题和强调", input: "# Title\n\nSome **bold** text", expected: "Title Some bold text"},
		{name: "链接保留文字", input: "see [docs](https://example.com/docs)", expected: "see docs"},
		{name: "内嵌 HTML 被清理", input: "a <script>alert(1)</script> b", expected: "a b"},
		{name: "列表", input: "- one\n- two", expected: "one two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MarkdownPlainText(tt.input))
		})
	}
}
