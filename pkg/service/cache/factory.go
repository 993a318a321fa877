/*
 * @Description: 缓存存储工厂，按配置选择实现并在 Redis 不可用时自动降级
 * @Author: 安知鱼
 * @Date: 2025-10-30 15:10:44
 * @LastEditTime: 2025-11-13 16:48:02
 * @LastEditors: 安知鱼
 */
package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewStoreWithFallback 创建带有自动降级功能的缓存存储。
// file 类型目录不可用、redis 类型客户端为 nil 或 ping 失败时，都降级到内存存储。
func NewStoreWithFallback(storeType Type, dir string, redisClient *redis.Client) Store {
	switch storeType {
	case TypeFile:
		store, err := NewFileStore(dir)
		if err != nil {
			log.Printf("⚠️  文件缓存不可用: %v，降级到内存缓存", err)
			return NewMemoryStore()
		}
		log.Printf("✅ 使用文件缓存（%s）", dir)
		return store
	case TypeRedis:
		if redisClient == nil {
			log.Println("🔄 Redis 未连接，使用内存缓存")
			return NewMemoryStore()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("⚠️  Redis 不可用: %v，降级到内存缓存", err)
			return NewMemoryStore()
		}
		log.Println("✅ 使用 Redis 缓存")
		return NewRedisStore(redisClient)
	default:
		log.Println("🔄 使用内存缓存（Memory Cache）")
		return NewMemoryStore()
	}
}

// TypeOf 获取存储的实际类型
func TypeOf(store Store) Type {
	switch store.(type) {
	case *redisStore:
		return TypeRedis
	case *fileStore:
		return TypeFile
	default:
		return TypeMemory
	}
}
