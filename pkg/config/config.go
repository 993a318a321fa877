/*
 * @Description: 统一配置管理 (终极健壮版，手动加载)
 * @Author: 安知鱼
 * @Date: 2025-06-28 00:21:55
 * @LastEditTime: 2025-11-12 15:33:41
 * @LastEditors: 安知鱼
 */
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultFilePath 默认配置文件位置
const DefaultFilePath = "data/conf.ini"

const (
	KeyServerPort  = "System.Port"
	KeyServerDebug = "System.Debug"

	KeyRedisAddr     = "Redis.Addr"
	KeyRedisPassword = "Redis.Password"
	KeyRedisDB       = "Redis.DB"
	KeyRedisTimeout  = "Redis.Timeout"
	KeyRedisPoolSize = "Redis.PoolSize"

	KeyCacheType = "Cache.Type"
	KeyCacheDir  = "Cache.Dir"

	KeyUpstreamBaseURL       = "Upstream.BaseURL"
	KeyUpstreamTimeout       = "Upstream.Timeout"
	KeyUpstreamRatePerSecond = "Upstream.RatePerSecond"
	KeyUpstreamUserAgent     = "Upstream.UserAgent"

	KeySitemapSiteURL           = "Sitemap.SiteURL"
	KeySitemapLocales           = "Sitemap.Locales"
	KeySitemapServeStale        = "Sitemap.ServeStale"
	KeySitemapRegenerateTimeout = "Sitemap.RegenerateTimeout"
	KeySitemapRefreshSchedule   = "Sitemap.RefreshSchedule"
	KeySitemapMaxBytes          = "Sitemap.MaxBytes"
	KeySitemapInvalidateRate    = "Sitemap.InvalidateRatePerMinute"
)

// 每个目录类型一个分区，例如 [Products] MaxAge = 6h
const (
	DomainKeyMaxAge      = "MaxAge"
	DomainKeyMaxEntries  = "MaxEntries"
	DomainKeyPageSize    = "PageSize"
	DomainKeyMaxPages    = "MaxPages"
	DomainKeyConcurrency = "Concurrency"
)

// DomainSections 目录类型对应的配置分区名
var DomainSections = []string{"Products", "Companies", "Categories", "Blogs"}

// 定义所有已知的配置键
var allKeys = buildKeys()

func buildKeys() []string {
	keys := []string{
		KeyServerPort, KeyServerDebug,
		KeyRedisAddr, KeyRedisPassword, KeyRedisDB, KeyRedisTimeout, KeyRedisPoolSize,
		KeyCacheType, KeyCacheDir,
		KeyUpstreamBaseURL, KeyUpstreamTimeout, KeyUpstreamRatePerSecond, KeyUpstreamUserAgent,
		KeySitemapSiteURL, KeySitemapLocales, KeySitemapServeStale, KeySitemapRegenerateTimeout,
		KeySitemapRefreshSchedule, KeySitemapMaxBytes, KeySitemapInvalidateRate,
	}
	for _, section := range DomainSections {
		for _, k := range []string{DomainKeyMaxAge, DomainKeyMaxEntries, DomainKeyPageSize, DomainKeyMaxPages, DomainKeyConcurrency} {
			keys = append(keys, DomainKey(section, k))
		}
	}
	return keys
}

// DomainKey 拼接目录分区下的配置键，例如 Products.MaxAge
func DomainKey(section, key string) string {
	return section + "." + key
}

type Config struct {
	vp *viper.Viper
}

// NewConfig 从默认位置加载配置
func NewConfig() (*Config, error) {
	return NewConfigFromFile(DefaultFilePath)
}

// NewConfigFromFile 是最终的构造函数，手动加载配置，确保可靠性。
// 优先级：环境变量（含 .env）> 配置文件 > 代码内默认值。
func NewConfigFromFile(filePath string) (*Config, error) {
	vp := viper.New()

	// --- 步骤 0: 加载 .env（不存在时忽略），不会覆盖已有的环境变量 ---
	if err := godotenv.Load(); err == nil {
		log.Println("已从 .env 文件加载环境变量。")
	}

	// --- 步骤 1: 使用 go-ini 从文件加载配置 (作为默认值) ---
	iniCfg, err := ini.Load(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("提示: 未找到 %s，将创建默认配置文件。", filePath)
			// 自动创建默认配置文件
			if err := createDefaultConfigFile(filePath); err != nil {
				log.Printf("警告: 创建默认配置文件失败: %v，将仅依赖环境变量或内部默认值。", err)
			} else {
				log.Printf("✅ 已创建默认配置文件: %s", filePath)
				// 重新加载配置文件
				iniCfg, err = ini.Load(filePath)
				if err != nil {
					log.Printf("警告: 重新加载配置文件失败: %v", err)
				}
			}
		} else {
			// 如果文件存在但格式错误
			return nil, fmt.Errorf("错误: 解析配置文件 '%s' 失败: %w", filePath, err)
		}
	}

	// 如果文件成功加载，则将其中的值全部设置到 Viper 中
	if iniCfg != nil {
		for _, section := range iniCfg.Sections() {
			for _, key := range section.Keys() {
				// 构建 Viper 使用的 key，例如 "Sitemap.SiteURL"
				viperKey := fmt.Sprintf("%s.%s", section.Name(), key.Name())
				// 特殊处理默认分区 "DEFAULT"
				if section.Name() == "DEFAULT" {
					viperKey = key.Name()
				}
				vp.Set(viperKey, key.Value())
			}
		}
		log.Printf("从 %s 文件加载了默认配置。", filePath)
	}

	// --- 步骤 2: 手动检查并覆盖环境变量 ---
	envReplacer := strings.NewReplacer(".", "_")
	envPrefix := "ANHEYU"

	for _, key := range allKeys {
		// 构建环境变量名，例如 ANHEYU_SITEMAP_SITEURL
		envVarName := fmt.Sprintf("%s_%s", envPrefix, envReplacer.Replace(strings.ToUpper(key)))

		// 检查环境变量是否存在
		if value, found := os.LookupEnv(envVarName); found {
			// 如果存在，就用环境变量的值覆盖 Viper 中的值
			vp.Set(key, value)
			log.Printf("发现环境变量: %s, 已覆盖配置 '%s'。", envVarName, key)
		}
	}

	log.Println("✅ 配置加载器初始化完成。")
	return &Config{vp: vp}, nil
}

// Set 覆盖单个配置项，命令行参数使用
func (c *Config) Set(key string, value any) {
	c.vp.Set(key, value)
}

// IsSet 配置项是否存在且非空
func (c *Config) IsSet(key string) bool {
	return c.vp.IsSet(key) && strings.TrimSpace(c.vp.GetString(key)) != ""
}

func (c *Config) GetString(key string) string {
	return c.vp.GetString(key)
}

func (c *Config) GetInt(key string) int {
	return c.vp.GetInt(key)
}

func (c *Config) GetFloat(key string) float64 {
	return c.vp.GetFloat64(key)
}

func (c *Config) GetBool(key string) bool {
	return c.vp.GetBool(key)
}

// GetDuration 解析 "6h"、"30s" 形式的时长，未配置或格式错误时返回 def
func (c *Config) GetDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(c.vp.GetString(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("⚠️  配置 '%s' 的值 '%s' 不是有效时长，使用默认值 %s", key, raw, def)
		return def
	}
	return d
}

// GetStringSlice 按逗号拆分配置值，忽略空项
func (c *Config) GetStringSlice(key string) []string {
	raw := c.vp.GetString(key)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// createDefaultConfigFile 创建默认的配置文件
func createDefaultConfigFile(filePath string) error {
	// 确保目录存在
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	defaultConfig := `[System]
Port = 8091
Debug = false

# Redis 配置（可选）
# 如果不配置或留空 Addr，Cache.Type = redis 时将自动降级到内存缓存
[Redis]
Addr =
Password =
DB = 0
Timeout = 3s
PoolSize = 10

# 缓存存储：memory / file / redis
[Cache]
Type = file
Dir = data/sitemap-cache

[Upstream]
BaseURL = http://localhost:8080/api/v1
Timeout = 30s
RatePerSecond = 20
UserAgent = anheyu-sitemap/1.0

[Sitemap]
SiteURL = https://example.com
Locales = kw-ar,kw-en,sa-ar,sa-en
ServeStale = true
RegenerateTimeout = 30s
RefreshSchedule = @every 30m
MaxBytes = 52428800
InvalidateRatePerMinute = 10

[Products]
MaxAge = 6h
MaxEntries = 10000

[Companies]
MaxAge = 12h
MaxEntries = 20000

[Categories]
MaxAge = 24h

[Blogs]
MaxAge = 24h
`

	// 写入文件
	if err := os.WriteFile(filePath, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}
