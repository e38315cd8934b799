package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/InsightCrawler/internal/config"
	"github.com/RecoveryAshes/InsightCrawler/internal/core"
	"github.com/RecoveryAshes/InsightCrawler/internal/crawlers"
	"github.com/RecoveryAshes/InsightCrawler/internal/store"
	"github.com/RecoveryAshes/InsightCrawler/internal/utils"
)

// runtime 一次命令执行所需的全部组件
type runtime struct {
	config       *core.Config
	store        *store.Store
	headers      *core.HeaderManager
	dynamic      *crawlers.DynamicStrategy
	orchestrator *core.Orchestrator
}

// newRuntime 打开存储并组装抓取策略和编排器
// 启用浏览器时会启动一次无头浏览器检测可用性
func newRuntime(ctx context.Context, cfg *core.Config, opts ...core.OrchestratorOption) (*runtime, error) {
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("打开存储失败: %w", err)
	}

	headerManager, err := core.NewHeaderManager(cfg.Crawler.Headers, headers, cfg.Crawler.UserAgents)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	loc, err := cfg.DateLocation()
	if err != nil {
		st.Close()
		return nil, err
	}
	extractor := &crawlers.Extractor{Location: loc}

	rt := &runtime{
		config:  cfg,
		store:   st,
		headers: headerManager,
	}

	static := crawlers.NewStaticStrategy(cfg.Policy(), headerManager, extractor)

	var dynamic core.DynamicFetcher
	if cfg.Browser.Enabled {
		factory := crawlers.NewRodSessionFactory(crawlers.RodConfig{
			Bin:               cfg.Browser.Bin,
			NoSandbox:         cfg.Browser.NoSandbox,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			UserAgents:        cfg.Crawler.UserAgents,
			Intn:              headerManager.Intn,
		})
		guard := crawlers.NewResourceGuard(cfg.Browser.MinFreeMemoryMB, cfg.Browser.CPULoadThreshold)
		rt.dynamic = crawlers.NewDynamicStrategy(cfg.DynamicConfig(), factory, extractor, crawlers.WithResourceGuard(guard))

		// 检测失败只影响动态目标, 失败原因由策略记住
		_ = rt.dynamic.Probe(ctx)
		dynamic = rt.dynamic
	} else {
		utils.Info("动态爬取已在配置中关闭")
	}

	rt.orchestrator = core.NewOrchestrator(static, dynamic, st, st, st, cfg.OrchestratorOptions(), opts...)
	return rt, nil
}

// browserStatus 报告动态爬取可用性
func (rt *runtime) browserStatus() (bool, string) {
	if rt.dynamic == nil {
		return false, "动态爬取已在配置中关闭"
	}
	return rt.dynamic.Available()
}

// syncTargets 从目标定义文件导入目标
func (rt *runtime) syncTargets(ctx context.Context, path string) (int, error) {
	targets, err := config.NewTargetConfigLoader(path).LoadTargets()
	if err != nil {
		return 0, err
	}

	for _, t := range targets {
		if _, err := core.ParseCron(t.CronExpression); err != nil {
			return 0, fmt.Errorf("目标 %s 的cron表达式无效 %q: %w", t.Name, t.CronExpression, err)
		}
	}

	for _, t := range targets {
		if _, err := rt.store.UpsertTarget(ctx, t); err != nil {
			return 0, err
		}
	}
	utils.Infof("📥 已导入 %d 个目标: %s", len(targets), path)
	return len(targets), nil
}

func (rt *runtime) Close() {
	if err := rt.store.Close(); err != nil {
		utils.Warnf("关闭存储失败: %v", err)
	}
}

// signalContext Ctrl+C / SIGTERM 时取消
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			utils.Warnf("收到中断信号: %v, 正在优雅关闭...", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}
