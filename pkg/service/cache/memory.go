/*
 * @Description: 内存缓存存储（Redis 不可用时的降级方案）
 * @Author: 安知鱼
 * @Date: 2025-10-30 10:05:31
 * @LastEditTime: 2025-11-13 16:48:02
 * @LastEditors: 安知鱼
 */
package cache

import (
	"context"
	"sort"
	"sync"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
)

// memoryStore 保存编码后的字节，读取时解码，调用方拿到的是独立副本
type memoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() Store {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) Load(ctx context.Context, key model.CacheKey) (*model.CacheRecord, error) {
	s.mu.RLock()
	blob, ok := s.data[key.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return Decode(blob)
}

func (s *memoryStore) Save(ctx context.Context, key model.CacheKey, record *model.CacheRecord) error {
	blob, err := Encode(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key.String()] = blob
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, key model.CacheKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key.String()]; !ok {
		return false, nil
	}
	delete(s.data, key.String())
	return true, nil
}

func (s *memoryStore) Invalidate(ctx context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for k := range s.data {
		if matchPrefix(k, prefix) {
			delete(s.data, k)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memoryStore) Keys(ctx context.Context) ([]model.CacheKey, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.data))
	for k := range s.data {
		names = append(names, k)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return parseKeys(names), nil
}

// setRaw 直接写入原始字节，测试损坏数据时使用
func (s *memoryStore) setRaw(key string, blob []byte) {
	s.mu.Lock()
	s.data[key] = blob
	s.mu.Unlock()
}

// parseKeys 跳过无法解析的键
func parseKeys(names []string) []model.CacheKey {
	keys := make([]model.CacheKey, 0, len(names))
	for _, name := range names {
		key, err := model.ParseCacheKey(name)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}
