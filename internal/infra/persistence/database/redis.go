/*
 * @Description: Redis 客户端
 * @Author: 安知鱼
 * @Date: 2025-06-15 11:30:55
 * @LastEditTime: 2025-10-18 12:05:47
 * @LastEditors: 安知鱼
 */
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/config"
)

const (
	defaultRedisTimeout = 3 * time.Second
	redisPingTimeout    = 5 * time.Second
)

// RedisOptions 从配置读取连接参数，Addr 为空表示未启用
func RedisOptions(cfg *config.Config) (*redis.Options, error) {
	addr := cfg.GetString(config.KeyRedisAddr)
	if addr == "" {
		return nil, nil
	}

	opts := &redis.Options{
		Addr:     addr,
		Password: cfg.GetString(config.KeyRedisPassword),
		DB:       cfg.GetInt(config.KeyRedisDB),
	}
	if opts.DB < 0 || opts.DB > 15 {
		return nil, fmt.Errorf("无效的 Redis.DB: %d", opts.DB)
	}

	// 整个站点地图记录一次读写，超时与连接池按记录大小放宽
	timeout := cfg.GetDuration(config.KeyRedisTimeout, defaultRedisTimeout)
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout
	if size := cfg.GetInt(config.KeyRedisPoolSize); size > 0 {
		opts.PoolSize = size
	}
	return opts, nil
}

// NewRedisClient 返回 Redis 客户端，未配置或连接失败时返回 nil，由缓存工厂降级
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := RedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		log.Println("⚠️  Redis 地址未配置，站点地图缓存将降级")
		return nil, nil
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("⚠️  连接 Redis (%s, DB %d) 失败: %v，站点地图缓存将降级", opts.Addr, opts.DB, err)
		_ = rdb.Close()
		return nil, nil
	}

	log.Printf("✅ 成功连接到 Redis (%s, DB %d, 超时 %s)", opts.Addr, opts.DB, opts.ReadTimeout)
	return rdb, nil
}
