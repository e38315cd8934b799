package crawlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/models"
	"github.com/RecoveryAshes/InsightCrawler/internal/utils"
)

// BrowserSession 一次爬取独占的浏览器会话
type BrowserSession interface {
	Navigate(url string) error
	ReadyState() (string, error)
	CountElements(selector string) (int, error)
	ScrollHeight() (int, error)
	ScrollToBottom() error
	ScrollToTop() error
	// Document 返回当前页面的根节点
	Document() (Node, error)
	Close() error
}

// SessionFactory 创建浏览器会话
type SessionFactory interface {
	NewSession(ctx context.Context) (BrowserSession, error)
}

// DynamicConfig 动态爬取参数
type DynamicConfig struct {
	// BrowserBin 显式指定的浏览器路径,为空时由launcher自动查找
	BrowserBin       string
	ReadyTimeout     time.Duration
	PollInterval     time.Duration
	GracePeriod      time.Duration
	ScrollIterations int
	ScrollPause      time.Duration
	SettlePause      time.Duration
	// CrawlTimeout 单次爬取的总时限, 浏览器的所有调用都受它约束
	CrawlTimeout time.Duration
}

// DefaultDynamicConfig 默认动态爬取参数
func DefaultDynamicConfig() DynamicConfig {
	return DynamicConfig{
		ReadyTimeout:     10 * time.Second,
		PollInterval:     500 * time.Millisecond,
		GracePeriod:      2 * time.Second,
		ScrollIterations: 3,
		ScrollPause:      1500 * time.Millisecond,
		SettlePause:      500 * time.Millisecond,
		CrawlTimeout:     2 * time.Minute,
	}
}

// DynamicStrategy 动态抓取策略
// 每次爬取新建浏览器会话,结束时无条件释放,会话不复用
type DynamicStrategy struct {
	config    DynamicConfig
	factory   SessionFactory
	extractor *Extractor
	guard     *ResourceGuard
	sleep     Sleeper

	mu          sync.RWMutex
	unavailable string
}

// DynamicOption 动态策略选项
type DynamicOption func(*DynamicStrategy)

// WithDynamicSleeper 替换等待函数
func WithDynamicSleeper(sleep Sleeper) DynamicOption {
	return func(d *DynamicStrategy) { d.sleep = sleep }
}

// WithResourceGuard 启动浏览器前检查系统资源
func WithResourceGuard(guard *ResourceGuard) DynamicOption {
	return func(d *DynamicStrategy) { d.guard = guard }
}

// NewDynamicStrategy 创建动态抓取策略
func NewDynamicStrategy(config DynamicConfig, factory SessionFactory, extractor *Extractor, opts ...DynamicOption) *DynamicStrategy {
	if extractor == nil {
		extractor = &Extractor{}
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 500 * time.Millisecond
	}
	if config.CrawlTimeout <= 0 {
		config.CrawlTimeout = 2 * time.Minute
	}
	d := &DynamicStrategy{
		config:    config,
		factory:   factory,
		extractor: extractor,
		sleep:     SleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Type 实现 Strategy 接口
func (d *DynamicStrategy) Type() models.CrawlType {
	return models.CrawlTypeDynamic
}

// Probe 检测浏览器是否可用,进程启动时调用一次
// 失败原因会被记住,之后的动态爬取直接失败而不再重新检测
func (d *DynamicStrategy) Probe(ctx context.Context) error {
	err := d.probe(ctx)

	d.mu.Lock()
	if err != nil {
		d.unavailable = err.Error()
	} else {
		d.unavailable = ""
	}
	d.mu.Unlock()

	if err != nil {
		utils.Warnf("⚠️  动态爬取不可用: %v", err)
		return &models.EnvironmentError{Reason: err.Error()}
	}
	utils.Info("✅ 无头浏览器可用,已启用动态爬取")
	return nil
}

func (d *DynamicStrategy) probe(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("浏览器检测panic: %v", r)
		}
	}()

	if d.config.BrowserBin != "" {
		if _, err := os.Stat(d.config.BrowserBin); err != nil {
			return fmt.Errorf("浏览器路径不存在: %s", d.config.BrowserBin)
		}
	}
	if d.factory == nil {
		return errors.New("未配置浏览器会话工厂")
	}

	probeCtx, cancel := context.WithTimeout(ctx, d.config.CrawlTimeout)
	defer cancel()

	session, err := d.factory.NewSession(probeCtx)
	if err != nil {
		return fmt.Errorf("创建浏览器会话失败: %w", err)
	}
	if err := session.Close(); err != nil {
		utils.Warnf("关闭检测会话失败: %v", err)
	}
	return nil
}

// Available 返回是否可用以及不可用原因
// 未检测过时视为可用
func (d *DynamicStrategy) Available() (bool, string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.unavailable == "", d.unavailable
}

// Fetch 渲染目标页面并提取文章
func (d *DynamicStrategy) Fetch(ctx context.Context, target *models.CrawlTarget) (result *models.CrawlResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = models.NewFailureResult(fmt.Sprintf("动态爬取panic: %v", r), time.Since(start))
		}
	}()

	if ok, reason := d.Available(); !ok {
		return models.NewFailureResult((&models.EnvironmentError{Reason: reason}).Error(), time.Since(start))
	}

	cfg, err := target.Selectors()
	if err != nil {
		return models.NewFailureResult(err.Error(), time.Since(start))
	}
	if err := cfg.Validate(); err != nil {
		utils.Warnf("目标 %s 选择器配置存在缺陷: %v", target, err)
	}

	if d.guard != nil {
		if err := d.guard.Check(); err != nil {
			return models.NewFailureResult(err.Error(), time.Since(start))
		}
	}

	if d.factory == nil {
		return models.NewFailureResult("未配置浏览器会话工厂", time.Since(start))
	}
	// 会话绑定到带时限的上下文, 浏览器无响应时所有调用都会在时限到达后返回
	crawlCtx, cancel := context.WithTimeout(ctx, d.config.CrawlTimeout)
	defer cancel()

	session, err := d.factory.NewSession(crawlCtx)
	if err != nil {
		return models.NewFailureResult(fmt.Sprintf("创建浏览器会话失败: %v", err), time.Since(start))
	}
	defer d.release(session)

	if err := session.Navigate(target.URL); err != nil {
		return models.NewFailureResult((&models.FetchError{URL: target.URL, Cause: err}).Error(), time.Since(start))
	}

	d.waitForReady(crawlCtx, session, cfg.ArticleItemSelector)
	d.scrollToLoad(crawlCtx, session)

	if err := crawlCtx.Err(); err != nil {
		return models.NewFailureResult(fmt.Sprintf("动态爬取超时或被取消 (时限 %v): %v", d.config.CrawlTimeout, err), time.Since(start))
	}

	root, err := session.Document()
	if err != nil {
		return models.NewFailureResult(fmt.Sprintf("获取页面文档失败: %v", err), time.Since(start))
	}

	extraction, err := d.extractor.Extract(root, cfg, target.URL)
	if err != nil {
		return models.NewFailureResult(err.Error(), time.Since(start))
	}

	result = models.NewSuccessResult(extraction.Articles, time.Since(start))
	result.SkippedItems = extraction.Skipped
	utils.Infof("✅ 动态爬取完成: %s, 文章 %d 篇, 跳过 %d 项, 耗时 %dms",
		target, len(extraction.Articles), extraction.Skipped, result.DurationMs)
	return result
}

func (d *DynamicStrategy) release(session BrowserSession) {
	if err := session.Close(); err != nil {
		utils.Warnf("关闭浏览器会话失败: %v", err)
	}
}

// waitForReady 等待 readyState=complete 以及列表项出现,超时只记录日志
func (d *DynamicStrategy) waitForReady(ctx context.Context, session BrowserSession, itemSelector string) {
	polls := d.pollCount()

	ready := false
	for i := 0; i < polls; i++ {
		state, err := session.ReadyState()
		if err == nil && state == "complete" {
			ready = true
			break
		}
		if d.sleep(ctx, d.config.PollInterval) != nil {
			return
		}
	}
	if !ready {
		utils.Warnf("等待页面加载超时 (%v), 继续提取", d.config.ReadyTimeout)
	}

	if itemSelector != "" {
		found := false
		for i := 0; i < polls; i++ {
			n, err := session.CountElements(itemSelector)
			if err == nil && n > 0 {
				found = true
				break
			}
			if d.sleep(ctx, d.config.PollInterval) != nil {
				return
			}
		}
		if !found {
			utils.Warnf("等待列表项 '%s' 超时, 继续提取", itemSelector)
		}
	}

	_ = d.sleep(ctx, d.config.GracePeriod)
}

func (d *DynamicStrategy) pollCount() int {
	n := int(d.config.ReadyTimeout / d.config.PollInterval)
	if n < 1 {
		return 1
	}
	return n
}

// scrollToLoad 滚动到底部触发懒加载,高度不再增长时提前结束,最后回到顶部
func (d *DynamicStrategy) scrollToLoad(ctx context.Context, session BrowserSession) {
	lastHeight, err := session.ScrollHeight()
	if err != nil {
		utils.Debugf("获取页面高度失败: %v", err)
		return
	}

	for i := 0; i < d.config.ScrollIterations; i++ {
		if err := session.ScrollToBottom(); err != nil {
			utils.Debugf("滚动失败: %v", err)
			break
		}
		if d.sleep(ctx, d.config.ScrollPause) != nil {
			return
		}

		height, err := session.ScrollHeight()
		if err != nil || height == lastHeight {
			break
		}
		lastHeight = height
	}

	if err := session.ScrollToTop(); err != nil {
		utils.Debugf("回到顶部失败: %v", err)
	}
	_ = d.sleep(ctx, d.config.SettlePause)
}
