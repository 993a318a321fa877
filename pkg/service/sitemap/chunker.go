/*
 * @Description: 按条目数与字节数上限切分站点地图
 * @Author: 安知鱼
 * @Date: 2025-10-30 15:02:33
 * @LastEditTime: 2025-11-14 14:37:10
 * @LastEditors: 安知鱼
 */
package sitemap

import (
	"fmt"
	"log/slog"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
)

const (
	// DefaultMaxEntries 协议允许的单文件最大条目数
	DefaultMaxEntries = 50000
	// DefaultMaxBytes 协议允许的单文件最大字节数（未压缩）
	DefaultMaxBytes = 50 * 1024 * 1024
	// DefaultMaxShrinkAttempts 单个分块逐条回退的次数上限，超过后改为折半
	DefaultMaxShrinkAttempts = 64
)

// Chunker 贪心装箱：按输入顺序累加条目，超过数量或字节上限时开始新分块
type Chunker struct {
	maxEntries        int
	maxBytes          int
	maxShrinkAttempts int
	serializer        *Serializer
	logger            *slog.Logger
}

// ChunkerOption 配置分块器
type ChunkerOption func(*Chunker)

// WithMaxEntries 设置单个分块的最大条目数
func WithMaxEntries(n int) ChunkerOption {
	return func(c *Chunker) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithMaxBytes 设置单个分块序列化后的最大字节数
func WithMaxBytes(n int) ChunkerOption {
	return func(c *Chunker) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithMaxShrinkAttempts 设置逐条回退次数上限
func WithMaxShrinkAttempts(n int) ChunkerOption {
	return func(c *Chunker) {
		if n > 0 {
			c.maxShrinkAttempts = n
		}
	}
}

// WithSerializer 指定用于校验字节数的序列化器
func WithSerializer(s *Serializer) ChunkerOption {
	return func(c *Chunker) {
		if s != nil {
			c.serializer = s
		}
	}
}

// WithChunkerLogger 指定日志
func WithChunkerLogger(logger *slog.Logger) ChunkerOption {
	return func(c *Chunker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChunker 创建分块器
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		maxEntries:        DefaultMaxEntries,
		maxBytes:          DefaultMaxBytes,
		maxShrinkAttempts: DefaultMaxShrinkAttempts,
		serializer:        NewSerializer(),
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "chunker")
	return c
}

// MaxEntries 单个分块的最大条目数
func (c *Chunker) MaxEntries() int { return c.maxEntries }

// MaxBytes 单个分块的最大字节数
func (c *Chunker) MaxBytes() int { return c.maxBytes }

// Chunk 切分条目。输出分块顺序与输入顺序一致，空输入返回零个分块。
// 每个候选分块都会实际渲染一次校验字节数，超限则从尾部回退条目到下一个分块。
func (c *Chunker) Chunk(entries []model.SitemapEntry) ([]model.Chunk, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	var chunks []model.Chunk
	start := 0
	for start < len(entries) {
		end := c.pack(entries, start)

		body, err := c.serializer.RenderEntries(entries[start:end])
		if err != nil {
			return nil, fmt.Errorf("render chunk %d: %w", len(chunks), err)
		}
		size := len(body)

		if size > c.maxBytes && end-start > 1 {
			end, size, err = c.shrink(entries, start, end, size)
			if err != nil {
				return nil, fmt.Errorf("shrink chunk %d: %w", len(chunks), err)
			}
		}

		if size > c.maxBytes {
			c.logger.Warn("single sitemap entry exceeds the byte limit, serving it anyway",
				"url", entries[start].URL,
				"size_bytes", size,
				"max_bytes", c.maxBytes)
		}

		chunks = append(chunks, model.Chunk{
			Entries:   append([]model.SitemapEntry(nil), entries[start:end]...),
			SizeBytes: size,
		})
		start = end
	}

	return chunks, nil
}

// pack 用估算大小贪心决定候选分块的结束位置（不含），至少包含一个条目
func (c *Chunker) pack(entries []model.SitemapEntry, start int) int {
	estimated := maxEnvelopeSize
	end := start
	for end < len(entries) && end-start < c.maxEntries {
		size := EstimateEntrySize(&entries[end])
		if end > start && estimated+size > c.maxBytes {
			break
		}
		estimated += size
		end++
	}
	return end
}

// shrink 逐条从尾部回退直到满足字节上限；回退次数用尽后改为折半，避免大量临界条目时退化
func (c *Chunker) shrink(entries []model.SitemapEntry, start, end, size int) (int, int, error) {
	attempts := 0
	for size > c.maxBytes && end-start > 1 && attempts < c.maxShrinkAttempts {
		end--
		// 去掉条目后外壳可能少一个命名空间声明，这里的 size 是上界
		size -= c.serializer.EntrySize(&entries[end])
		attempts++
	}

	body, err := c.serializer.RenderEntries(entries[start:end])
	if err != nil {
		return 0, 0, err
	}
	size = len(body)

	for size > c.maxBytes && end-start > 1 {
		end = start + (end-start)/2
		body, err = c.serializer.RenderEntries(entries[start:end])
		if err != nil {
			return 0, 0, err
		}
		size = len(body)
	}

	if attempts >= c.maxShrinkAttempts {
		c.logger.Debug("chunk shrink attempts exhausted, fell back to halving",
			"start", start, "end", end, "attempts", attempts)
	}
	return end, size, nil
}
