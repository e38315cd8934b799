package main

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/InsightCrawler/internal/core"
	"github.com/RecoveryAshes/InsightCrawler/internal/crawlers"
	"github.com/RecoveryAshes/InsightCrawler/internal/store"
	"github.com/go-rod/rod/lib/launcher"
)

// runProbe 启动一次无头浏览器, 报告动态爬取是否可用
func runProbe(ctx context.Context, cfg *core.Config) error {
	bin := cfg.Browser.Bin
	if bin == "" {
		if path, ok := launcher.LookPath(); ok {
			bin = path
			fmt.Printf("✅ 找到本地浏览器: %s\n", path)
		} else {
			fmt.Println("⚠️  未找到本地浏览器, 将尝试自动下载 Chromium")
		}
	}

	dynCfg := cfg.DynamicConfig()
	dynCfg.BrowserBin = bin
	strategy := crawlers.NewDynamicStrategy(dynCfg, crawlers.NewRodSessionFactory(crawlers.RodConfig{
		Bin:               bin,
		NoSandbox:         cfg.Browser.NoSandbox,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		UserAgents:        cfg.Crawler.UserAgents,
	}), nil)

	if err := strategy.Probe(ctx); err != nil {
		fmt.Printf("❌ %v\n", err)
		if cfg.Browser.FallbackToStatic {
			fmt.Println("   动态目标将回退到静态爬取 (browser.fallback_to_static=true)")
		} else {
			fmt.Println("   动态目标将直接失败, 可设置 CHROME_BIN 指定浏览器路径")
		}
		return err
	}
	fmt.Println("✅ 无头浏览器可用")
	return nil
}

// openStore 打开存储, 不启动浏览器
func openStore() (*store.Store, error) {
	st, err := store.Open(appConfig.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("打开存储失败: %w", err)
	}
	return st, nil
}
