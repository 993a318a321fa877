/*
 * @Description: 命令行入口
 * @Author: 安知鱼
 * @Date: 2025-06-28 00:21:55
 * @LastEditTime: 2025-11-14 18:52:37
 * @LastEditors: 安知鱼
 */
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anzhiyu-c/anheyu-sitemap/cmd/server"
	"github.com/anzhiyu-c/anheyu-sitemap/internal/pkg/version"
	"github.com/anzhiyu-c/anheyu-sitemap/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "anheyu-sitemap",
	Short:         "增量站点地图生成与缓存服务",
	Version:       version.GetVersionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务与后台刷新任务",
	RunE:  runServe,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "抓取全部目录并把站点地图文件写入目录",
	RunE:  runGenerate,
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate [all|products|companies|categories|blogs]",
	Short: "失效缓存记录",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvalidate,
}

var (
	serveWarmup bool

	generateOutDir      string
	generateConcurrency int
	generateTimeout     time.Duration

	invalidateLocale string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFilePath, "配置文件路径")

	serveCmd.Flags().BoolVar(&serveWarmup, "warmup", false, "启动后立即刷新所有缺失或过期的记录")

	generateCmd.Flags().StringVarP(&generateOutDir, "out", "o", "", "输出目录 (必填)")
	generateCmd.Flags().IntVar(&generateConcurrency, "concurrency", 2, "同时生成的缓存键数量")
	generateCmd.Flags().DurationVar(&generateTimeout, "timeout", time.Hour, "整体超时时间")
	if err := generateCmd.MarkFlagRequired("out"); err != nil {
		panic(fmt.Sprintf("failed to mark out flag as required: %v", err))
	}

	invalidateCmd.Flags().StringVarP(&invalidateLocale, "locale", "l", "", "只失效某个语言区域，例如 kw-ar")

	rootCmd.AddCommand(serveCmd, generateCmd, invalidateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	// 调用位于 cmd/server 包中的 NewApp 函数来构建整个应用
	app, cleanup, err := server.NewApp(configPath)
	if err != nil {
		return fmt.Errorf("应用初始化失败: %w", err)
	}
	defer cleanup()
	// 确保后台任务在程序退出时被停止
	defer app.Stop()

	app.PrintBanner()
	if err := app.Run(serveWarmup); err != nil {
		return fmt.Errorf("应用运行失败: %w", err)
	}
	return nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	app, cleanup, err := server.NewApp(configPath)
	if err != nil {
		return fmt.Errorf("应用初始化失败: %w", err)
	}
	defer cleanup()
	defer app.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	report, err := app.Generate(ctx, generateOutDir, generateConcurrency)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ 已生成 %d 个缓存键，%d 个文件，%d 个 URL -> %s\n",
		report.Keys, report.Files, report.URLs, generateOutDir)
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d 个缓存键生成失败: %s", len(report.Failed), strings.Join(report.Failed, ", "))
	}
	return nil
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	app, cleanup, err := server.NewApp(configPath)
	if err != nil {
		return fmt.Errorf("应用初始化失败: %w", err)
	}
	defer cleanup()
	defer app.Stop()

	deleted, err := app.InvalidationService().Invalidate(cmd.Context(), args[0], invalidateLocale)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ 已删除 %d 条缓存记录\n", deleted)
	return nil
}
