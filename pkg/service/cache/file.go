/*
 * @Description: 文件缓存存储，每个缓存键一个文件
 * @Author: 安知鱼
 * @Date: 2025-10-30 11:26:50
 * @LastEditTime: 2025-11-13 16:48:02
 * @LastEditors: 安知鱼
 */
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
)

const fileExt = ".cache"

type fileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore 创建文件存储，目录不存在时自动创建
func NewFileStore(dir string) (Store, error) {
	if dir == "" {
		return nil, errors.New("file cache dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &fileStore{dir: dir}, nil
}

func (s *fileStore) path(key string) string {
	return filepath.Join(s.dir, key+fileExt)
}

func (s *fileStore) Load(ctx context.Context, key model.CacheKey) (*model.CacheRecord, error) {
	blob, err := os.ReadFile(s.path(key.String()))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	return Decode(blob)
}

// Save 先写临时文件再重命名，读者不会看到写了一半的记录
func (s *fileStore) Save(ctx context.Context, key model.CacheKey, record *model.CacheRecord) error {
	blob, err := Encode(record)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, key.String()+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Rename(tmpName, s.path(key.String())); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

func (s *fileStore) Delete(ctx context.Context, key model.CacheKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key.String())); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("remove cache file: %w", err)
	}
	return true, nil
}

func (s *fileStore) Invalidate(ctx context.Context, prefix string) (int, error) {
	names, err := s.names()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, name := range names {
		if !matchPrefix(name, prefix) {
			continue
		}
		if err := os.Remove(s.path(name)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return deleted, fmt.Errorf("remove cache file: %w", err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *fileStore) Keys(ctx context.Context) ([]model.CacheKey, error) {
	names, err := s.names()
	if err != nil {
		return nil, err
	}
	return parseKeys(names), nil
}

func (s *fileStore) names() ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list cache dir: %w", err)
	}
	var names []string
	for _, e := range dirEntries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(names)
	return names, nil
}
