/*
 * @Description: 站点地图缓存存储接口
 * @Author: 安知鱼
 * @Date: 2025-10-30 09:12:40
 * @LastEditTime: 2025-11-13 16:48:02
 * @LastEditors: 安知鱼
 */
package cache

import (
	"context"
	"errors"
	"strings"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
)

// ErrCorruptRecord 缓存中的数据无法解码，调用方应当按未命中处理
var ErrCorruptRecord = errors.New("corrupt sitemap cache record")

// Store 定义了缓存记录的持久化接口。
// 过期判断不在存储层完成，过期记录依旧可以被读取。
type Store interface {
	// Load 读取记录，不存在时返回 nil, nil
	Load(ctx context.Context, key model.CacheKey) (*model.CacheRecord, error)
	// Save 整体替换一条记录
	Save(ctx context.Context, key model.CacheKey, record *model.CacheRecord) error
	// Delete 删除单个键，返回键是否存在
	Delete(ctx context.Context, key model.CacheKey) (bool, error)
	// Invalidate 删除字符串形式以 prefix 开头的所有键，prefix 为空时删除全部，返回删除数量
	Invalidate(ctx context.Context, prefix string) (int, error)
	// Keys 列出当前所有缓存键
	Keys(ctx context.Context) ([]model.CacheKey, error)
}

// Type 缓存存储类型
type Type string

const (
	TypeMemory Type = "memory"
	TypeFile   Type = "file"
	TypeRedis  Type = "redis"
)

// matchPrefix 判断键是否命中失效前缀
func matchPrefix(key, prefix string) bool {
	return prefix == "" || strings.HasPrefix(key, prefix)
}
