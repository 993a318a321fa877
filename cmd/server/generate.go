/*
 * @Description: 离线生成站点地图文件
 * @Author: 安知鱼
 * @Date: 2025-11-06 15:22:09
 * @LastEditTime: 2025-11-14 18:40:16
 * @LastEditors: 安知鱼
 */
package server

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
)

// GenerateReport 离线生成的结果统计
type GenerateReport struct {
	Keys   int
	Files  int
	URLs   int
	Failed []string
}

// Generate 再生成所有缓存键，并把分块和索引写入 outDir：
// outDir/sitemap.xml 与 outDir/sitemaps/{domain}/{locale}/{i}.xml，与线上路由一致。
// 单个键失败不会中断其它键。
func (a *App) Generate(ctx context.Context, outDir string, concurrency int) (*GenerateReport, error) {
	if concurrency <= 0 {
		concurrency = 2
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}

	keys := a.sitemapService.Keys()
	report := &GenerateReport{Keys: len(keys)}
	var files, urls atomic.Int64
	failed := make([]string, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, key := range keys {
		g.Go(func() error {
			if _, err := a.sitemapService.Regenerate(gctx, key); err != nil {
				log.Printf("⚠️  生成 %s 失败: %v", key, err)
				failed[i] = key.String()
				return nil
			}
			n, u, err := a.writeKey(gctx, outDir, key)
			if err != nil {
				return err
			}
			files.Add(int64(n))
			urls.Add(int64(u))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, k := range failed {
		if k != "" {
			report.Failed = append(report.Failed, k)
		}
	}

	index, err := a.sitemapService.GetIndex(ctx)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(outDir, "sitemap.xml"), index.Body, 0644); err != nil {
		return nil, fmt.Errorf("写入索引失败: %w", err)
	}

	report.Files = int(files.Load()) + 1
	report.URLs = int(urls.Load())
	log.Printf("📦 共导出 %d 个文件，%d 个 URL", report.Files, report.URLs)
	return report, nil
}

// writeKey 写出一个缓存键的全部分块
func (a *App) writeKey(ctx context.Context, outDir string, key model.CacheKey) (int, int, error) {
	dir := filepath.Join(outDir, "sitemaps", key.Domain.String(), key.Locale.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, 0, fmt.Errorf("创建目录失败: %w", err)
	}

	files, urls := 0, 0
	for i := 0; ; i++ {
		result, err := a.sitemapService.GetChunk(ctx, key, i)
		if err != nil {
			return files, urls, fmt.Errorf("读取 %s 分块 %d 失败: %w", key, i, err)
		}
		target := filepath.Join(dir, strconv.Itoa(i)+".xml")
		if err := os.WriteFile(target, result.Body, 0644); err != nil {
			return files, urls, fmt.Errorf("写入文件 %s 失败: %w", target, err)
		}
		files++
		urls += result.URLCount
		if i+1 >= result.TotalChunks {
			return files, urls, nil
		}
	}
}
