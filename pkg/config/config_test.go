package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigFromFile_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "conf.ini")

	cfg, err := NewConfigFromFile(path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "缺失时应创建默认配置文件")
	assert.Equal(t, "8091", cfg.GetString(KeyServerPort))
	assert.Equal(t, "file", cfg.GetString(KeyCacheType))
	assert.True(t, cfg.GetBool(KeySitemapServeStale))
	assert.Equal(t, []string{"kw-ar", "kw-en", "sa-ar", "sa-en"}, cfg.GetStringSlice(KeySitemapLocales))
	assert.Equal(t, 6*time.Hour, cfg.GetDuration(DomainKey("Products", DomainKeyMaxAge), time.Minute))
	assert.Equal(t, 20000, cfg.GetInt(DomainKey("Companies", DomainKeyMaxEntries)))
	assert.Equal(t, 20.0, cfg.GetFloat(KeyUpstreamRatePerSecond))
}

func TestNewConfigFromFile_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.ini")
	require.NoError(t, os.WriteFile(path, []byte("[Sitemap]\nSiteURL = https://file.example.com\nLocales = kw-ar\n"), 0o644))
	t.Setenv("ANHEYU_SITEMAP_SITEURL", "https://env.example.com")
	t.Setenv("ANHEYU_BLOGS_MAXAGE", "48h")

	cfg, err := NewConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.GetString(KeySitemapSiteURL), "环境变量优先于配置文件")
	assert.Equal(t, []string{"kw-ar"}, cfg.GetStringSlice(KeySitemapLocales))
	assert.Equal(t, 48*time.Hour, cfg.GetDuration(DomainKey("Blogs", DomainKeyMaxAge), time.Hour))
}

func TestNewConfigFromFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.ini")
	require.NoError(t, os.WriteFile(path, []byte("[Sitemap\nSiteURL"), 0o644))

	_, err := NewConfigFromFile(path)
	assert.Error(t, err)
}

func TestGetDuration(t *testing.T) {
	cfg := &Config{vp: viper.New()}
	tests := []struct {
		name     string
		value    any
		expected time.Duration
	}{
		{name: "未配置", value: nil, expected: time.Minute},
		{name: "合法时长", value: "90s", expected: 90 * time.Second},
		{name: "带空白", value: " 2h ", expected: 2 * time.Hour},
		{name: "格式错误", value: "two hours", expected: time.Minute},
		{name: "非正数", value: "-5m", expected: time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != nil {
				cfg.Set("Test.Duration", tt.value)
			} else {
				cfg.Set("Test.Duration", "")
			}
			assert.Equal(t, tt.expected, cfg.GetDuration("Test.Duration", time.Minute))
		})
	}
}

func TestGetStringSlice(t *testing.T) {
	cfg := &Config{vp: viper.New()}
	tests := []struct {
		name     string
		value    string
		expected []string
	}{
		{name: "空字符串", value: "", expected: nil},
		{name: "单个值", value: "kw-ar", expected: []string{"kw-ar"}},
		{name: "忽略空项和空白", value: " kw-ar, ,sa-en ,", expected: []string{"kw-ar", "sa-en"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.Set("Test.List", tt.value)
			assert.Equal(t, tt.expected, cfg.GetStringSlice("Test.List"))
		})
	}
}

func TestIsSet(t *testing.T) {
	cfg := &Config{vp: viper.New()}
	assert.False(t, cfg.IsSet(KeyRedisAddr))
	cfg.Set(KeyRedisAddr, "  ")
	assert.False(t, cfg.IsSet(KeyRedisAddr), "只有空白视为未配置")
	cfg.Set(KeyRedisAddr, "127.0.0.1:6379")
	assert.True(t, cfg.IsSet(KeyRedisAddr))
}
