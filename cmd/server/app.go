/*
 * @Description: 应用装配与生命周期
 * @Author: 安知鱼
 * @Date: 2025-10-17 10:35:28
 * @LastEditTime: 2025-11-14 18:40:16
 * @LastEditors: 安知鱼
 */
// anheyu-sitemap/cmd/server/app.go
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/anzhiyu-c/anheyu-sitemap/internal/app/task"
	"github.com/anzhiyu-c/anheyu-sitemap/internal/infra/persistence/database"
	"github.com/anzhiyu-c/anheyu-sitemap/internal/infra/router"
	"github.com/anzhiyu-c/anheyu-sitemap/internal/pkg/version"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/config"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
	sitemap_handler "github.com/anzhiyu-c/anheyu-sitemap/pkg/handler/sitemap"
	version_handler "github.com/anzhiyu-c/anheyu-sitemap/pkg/handler/version"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/service/cache"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/service/sitemap"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/service/upstream"
)

const shutdownTimeout = 15 * time.Second

// App 结构体，用于封装应用的所有核心组件
type App struct {
	cfg                 *config.Config
	engine              *gin.Engine
	taskBroker          *task.Broker
	store               cache.Store
	sitemapService      sitemap.Service
	invalidationService *sitemap.InvalidationService
	logger              *slog.Logger
	appVersion          string
}

func (a *App) PrintBanner() {
	log.Println("--------------------------------------------------------")
	log.Printf(" Anheyu Sitemap: %s", version.GetVersionString())
	log.Printf(" 缓存存储: %s, 缓存键: %d 个", cache.TypeOf(a.store), len(a.sitemapService.Keys()))
	log.Println("--------------------------------------------------------")
}

// NewApp 是应用的构造函数，它执行所有的初始化和依赖注入工作
func NewApp(configPath string) (*App, func(), error) {
	appVersion := version.GetVersion()

	// --- Phase 1: 加载外部配置 ---
	if configPath == "" {
		configPath = config.DefaultFilePath
	}
	cfg, err := config.NewConfigFromFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	logger := newLogger(cfg.GetBool(config.KeyServerDebug))

	// --- Phase 2: 缓存存储 ---
	var redisClient *redis.Client
	storeType := cache.Type(strings.ToLower(cfg.GetString(config.KeyCacheType)))
	if storeType == cache.TypeRedis {
		redisClient, err = database.NewRedisClient(context.Background(), cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("初始化 Redis 失败: %w", err)
		}
	}
	cacheDir := cfg.GetString(config.KeyCacheDir)
	if cacheDir == "" {
		cacheDir = "data/sitemap-cache"
	}
	store := cache.NewStoreWithFallback(storeType, cacheDir, redisClient)

	// --- Phase 3: 上游客户端 ---
	baseURL := cfg.GetString(config.KeyUpstreamBaseURL)
	if baseURL == "" {
		return nil, nil, errors.New("未配置 Upstream.BaseURL")
	}
	clientOpts := upstream.DefaultOptions()
	clientOpts.Timeout = cfg.GetDuration(config.KeyUpstreamTimeout, upstream.DefaultTimeout)
	clientOpts.RatePerSecond = cfg.GetFloat(config.KeyUpstreamRatePerSecond)
	if ua := cfg.GetString(config.KeyUpstreamUserAgent); ua != "" {
		clientOpts.UserAgent = ua
	} else {
		clientOpts.UserAgent = version.UserAgent()
	}
	client, err := upstream.NewClient(baseURL, clientOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化上游客户端失败: %w", err)
	}
	fetcher := upstream.NewFetcher(client, logger)

	// --- Phase 4: 站点地图服务 ---
	locales, err := parseLocales(cfg.GetStringSlice(config.KeySitemapLocales))
	if err != nil {
		return nil, nil, err
	}
	siteURL := cfg.GetString(config.KeySitemapSiteURL)
	if siteURL == "" {
		return nil, nil, errors.New("未配置 Sitemap.SiteURL")
	}
	profiles := ProfilesFromConfig(cfg)
	regenerateTimeout := cfg.GetDuration(config.KeySitemapRegenerateTimeout, sitemap.DefaultRegenerateTimeout)

	sitemapSvc := sitemap.NewService(store, fetcher, sitemap.Options{
		SiteURL:           siteURL,
		Locales:           locales,
		Profiles:          profiles,
		MaxBytes:          cfg.GetInt(config.KeySitemapMaxBytes),
		ServeStale:        cfg.GetBool(config.KeySitemapServeStale),
		RegenerateTimeout: regenerateTimeout,
		Logger:            logger,
	})
	invalidationSvc := sitemap.NewInvalidationService(store, profiles, logger)

	// --- Phase 5: 后台任务 ---
	taskBroker := task.NewBroker(sitemapSvc, task.Options{
		RefreshSchedule:   cfg.GetString(config.KeySitemapRefreshSchedule),
		RegenerateTimeout: regenerateTimeout,
		Logger:            logger,
	})
	sitemapSvc.SetDispatcher(taskBroker)

	// --- Phase 6: 路由与 Gin 引擎 ---
	if cfg.GetBool(config.KeyServerDebug) {
		gin.SetMode(gin.DebugMode)
		log.Println("运行模式: Debug (Gin 将打印详细路由日志)")
	} else {
		gin.SetMode(gin.ReleaseMode)
		log.Println("运行模式: Release (Gin 启动日志已禁用)")
	}

	engine := gin.Default()
	if err := engine.SetTrustedProxies([]string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}); err != nil {
		return nil, nil, fmt.Errorf("设置信任代理失败: %w", err)
	}
	engine.ForwardedByClientIP = true

	appRouter := router.NewRouter(
		sitemap_handler.NewHandler(sitemapSvc, invalidationSvc),
		version_handler.NewHandler(func() version_handler.RuntimeInfo {
			return version_handler.RuntimeInfo{
				CacheStore: string(cache.TypeOf(store)),
				Keys:       len(sitemapSvc.Keys()),
			}
		}),
		cfg.GetInt(config.KeySitemapInvalidateRate),
	)
	appRouter.Setup(engine)

	app := &App{
		cfg:                 cfg,
		engine:              engine,
		taskBroker:          taskBroker,
		store:               store,
		sitemapService:      sitemapSvc,
		invalidationService: invalidationSvc,
		logger:              logger,
		appVersion:          appVersion,
	}

	cleanup := func() {
		log.Println("执行清理操作...")
		// 关闭 Redis 连接（如果存在）
		if redisClient != nil {
			log.Println("关闭 Redis 连接...")
			redisClient.Close()
		}
	}

	return app, cleanup, nil
}

// ProfilesFromConfig 以默认配置为基础，用 [Products] 等分区中的值覆盖
func ProfilesFromConfig(cfg *config.Config) sitemap.Profiles {
	profiles := sitemap.DefaultProfiles()
	for i, domain := range model.AllDomains() {
		section := config.DomainSections[i]
		p := profiles.Get(domain)
		p.MaxAge = cfg.GetDuration(config.DomainKey(section, config.DomainKeyMaxAge), p.MaxAge)
		if v := cfg.GetInt(config.DomainKey(section, config.DomainKeyMaxEntries)); v > 0 {
			p.MaxEntries = v
		}
		if v := cfg.GetInt(config.DomainKey(section, config.DomainKeyPageSize)); v > 0 {
			p.PageSize = v
		}
		if v := cfg.GetInt(config.DomainKey(section, config.DomainKeyMaxPages)); v > 0 {
			p.MaxPages = v
		}
		if v := cfg.GetInt(config.DomainKey(section, config.DomainKeyConcurrency)); v > 0 {
			p.Concurrency = v
		}
		profiles[domain] = p
	}
	return profiles
}

func parseLocales(raw []string) ([]model.Locale, error) {
	if len(raw) == 0 {
		return nil, errors.New("未配置 Sitemap.Locales")
	}
	locales := make([]model.Locale, 0, len(raw))
	seen := make(map[model.Locale]struct{}, len(raw))
	for _, s := range raw {
		locale, err := model.ParseLocale(s)
		if err != nil {
			return nil, fmt.Errorf("Sitemap.Locales 配置错误: %w", err)
		}
		if _, dup := seen[locale]; dup {
			continue
		}
		seen[locale] = struct{}{}
		locales = append(locales, locale)
	}
	return locales, nil
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func (a *App) Config() *config.Config {
	return a.cfg
}

func (a *App) Engine() *gin.Engine {
	return a.engine
}

func (a *App) SitemapService() sitemap.Service {
	return a.sitemapService
}

func (a *App) InvalidationService() *sitemap.InvalidationService {
	return a.invalidationService
}

func (a *App) Version() string {
	return a.appVersion
}

// Run 启动后台任务和 HTTP 服务，收到 SIGINT/SIGTERM 后优雅退出
func (a *App) Run(warmup bool) error {
	if err := a.taskBroker.RegisterCronJobs(); err != nil {
		return err
	}
	a.taskBroker.Start()
	if warmup {
		if err := a.taskBroker.RunRefreshNow(); err != nil {
			log.Printf("⚠️  启动预热失败: %v", err)
		}
	}

	port := a.cfg.GetString(config.KeyServerPort)
	if port == "" {
		port = "8091"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("应用程序启动成功，正在监听端口: %s\n", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Println("收到退出信号，正在关闭 HTTP 服务...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *App) Stop() {
	if a.taskBroker != nil {
		a.taskBroker.Stop()
		log.Println("任务调度器已停止。")
	}
}
