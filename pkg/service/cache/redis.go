/*
 * @Description: Redis 缓存存储
 * @Author: 安知鱼
 * @Date: 2025-10-30 14:02:19
 * @LastEditTime: 2025-11-13 16:48:02
 * @LastEditors: 安知鱼
 */
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
)

// Namespace Redis 键前缀
const Namespace = "anheyu:sitemap:"

const scanBatch = 200

type redisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore 通过依赖注入接收 Redis 客户端
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client, namespace: Namespace}
}

func (s *redisStore) Load(ctx context.Context, key model.CacheKey) (*model.CacheRecord, error) {
	blob, err := s.client.Get(ctx, s.namespace+key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return Decode(blob)
}

// Save 单条 SET，整条记录原子替换，不设置过期时间
func (s *redisStore) Save(ctx context.Context, key model.CacheKey, record *model.CacheRecord) error {
	blob, err := Encode(record)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.namespace+key.String(), blob, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key model.CacheKey) (bool, error) {
	n, err := s.client.Del(ctx, s.namespace+key.String()).Result()
	if err != nil {
		return false, fmt.Errorf("redis del %s: %w", key, err)
	}
	return n > 0, nil
}

// Invalidate 使用 SCAN 安全地查找匹配的键，再批量删除
func (s *redisStore) Invalidate(ctx context.Context, prefix string) (int, error) {
	names, err := s.scan(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 0, nil
	}
	full := make([]string, len(names))
	for i, name := range names {
		full[i] = s.namespace + name
	}
	n, err := s.client.Del(ctx, full...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return int(n), nil
}

func (s *redisStore) Keys(ctx context.Context) ([]model.CacheKey, error) {
	names, err := s.scan(ctx, "")
	if err != nil {
		return nil, err
	}
	return parseKeys(names), nil
}

// scan 返回去掉命名空间后的键名
func (s *redisStore) scan(ctx context.Context, prefix string) ([]string, error) {
	pattern := s.namespace + escapeGlob(prefix) + "*"
	var names []string
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, k := range keys {
			names = append(names, strings.TrimPrefix(k, s.namespace))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(names)
	return names, nil
}

// escapeGlob 转义 Redis MATCH 的通配符
func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
