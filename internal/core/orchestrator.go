package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/crawlers"
	"github.com/RecoveryAshes/InsightCrawler/internal/models"
	"github.com/RecoveryAshes/InsightCrawler/internal/utils"
)

const (
	// maxErrorMessageLength 历史记录中错误信息的最大字符数
	maxErrorMessageLength = 1000

	// saveTimeout 爬取结束后保存文章和历史的时限, 不受爬取上下文取消影响
	saveTimeout = 30 * time.Second
)

// DynamicFetcher 动态策略需要额外报告可用性
type DynamicFetcher interface {
	crawlers.Strategy
	Available() (bool, string)
}

// OrchestratorOptions 编排参数
type OrchestratorOptions struct {
	// InterTargetDelay 批量执行时目标之间的间隔
	InterTargetDelay time.Duration

	// RetryCount 整体失败后的重试次数 (不含首次)
	RetryCount int

	// RetryDelay 整体重试前的等待时间
	RetryDelay time.Duration

	// FallbackToStatic 动态爬取不可用时改用静态策略
	FallbackToStatic bool

	// SkipIfRunning 同一目标上一次执行未结束时跳过本次
	SkipIfRunning bool
}

// Orchestrator 爬取编排器
// 为目标选择策略, 去重保存文章并记录执行历史
type Orchestrator struct {
	static  crawlers.Strategy
	dynamic DynamicFetcher

	targets models.TargetProvider
	history models.HistoryRecorder
	dedup   *Deduplicator

	opts  OrchestratorOptions
	sleep crawlers.Sleeper
	now   func() time.Time

	onTargetDone func(done, total int, outcome *models.CrawlOutcome)

	mu      sync.Mutex
	running map[int64]bool
}

// OrchestratorOption 编排器选项
type OrchestratorOption func(*Orchestrator)

// WithSleeper 替换等待函数
func WithSleeper(sleep crawlers.Sleeper) OrchestratorOption {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithClock 替换时钟
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// WithProgress 批量执行时每完成一个目标回调一次
func WithProgress(fn func(done, total int, outcome *models.CrawlOutcome)) OrchestratorOption {
	return func(o *Orchestrator) { o.onTargetDone = fn }
}

// NewOrchestrator 创建编排器
// dynamic 可以为nil, 此时动态目标一律失败 (或按配置回退到静态)
func NewOrchestrator(
	static crawlers.Strategy,
	dynamic DynamicFetcher,
	targets models.TargetProvider,
	articles models.ArticleStore,
	history models.HistoryRecorder,
	opts OrchestratorOptions,
	options ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		static:  static,
		dynamic: dynamic,
		targets: targets,
		history: history,
		dedup:   NewDeduplicator(articles),
		opts:    opts,
		sleep:   crawlers.SleepContext,
		now:     time.Now,
		running: make(map[int64]bool),
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// RunByID 按ID加载目标并执行
func (o *Orchestrator) RunByID(ctx context.Context, targetID int64) (*models.CrawlOutcome, error) {
	target, err := o.targets.GetTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("加载目标 #%d 失败: %w", targetID, err)
	}
	return o.Run(ctx, target), nil
}

// Run 执行单个目标
// 失败不会向上抛出, 全部体现在返回的 CrawlOutcome 中
func (o *Orchestrator) Run(ctx context.Context, target *models.CrawlTarget) *models.CrawlOutcome {
	outcome := &models.CrawlOutcome{
		RunID:      models.NewID(),
		TargetID:   target.ID,
		TargetName: target.Name,
	}
	logger := utils.WithTarget(target.ID, target.Name).With().Str("run_id", outcome.RunID).Logger()

	if o.opts.SkipIfRunning {
		if !o.markRunning(target.ID) {
			logger.Warn().Msg("⏭️  上一次执行尚未结束, 跳过本次")
			outcome.Skipped = true
			outcome.Status = models.StatusFailed
			outcome.Result = models.NewFailureResult(models.ErrTargetRunning.Error(), 0)
			return outcome
		}
		defer o.clearRunning(target.ID)
	}

	logger.Info().Str("url", target.URL).Str("type", string(target.CrawlType)).Msg("🚀 开始爬取")

	result, attempts := o.fetchWithRetry(ctx, target)
	outcome.Result = result
	outcome.Attempts = attempts
	outcome.Status = result.Status()

	// 爬取中途被取消时, 已抓到的文章和本次结果照样落库
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if result.Success {
		outcome.ArticlesFound = len(result.Articles)
		outcome.ArticlesNew = o.persist(saveCtx, target, result.Articles)
	}

	o.record(saveCtx, target, outcome)

	if result.Success {
		logger.Info().
			Str("status", string(outcome.Status)).
			Int("found", outcome.ArticlesFound).
			Int("new", outcome.ArticlesNew).
			Int64("duration_ms", result.DurationMs).
			Msg("✅ 爬取完成")
	} else {
		logger.Error().
			Int("attempts", attempts).
			Str("error", result.ErrorMessage).
			Msg("❌ 爬取失败")
	}
	return outcome
}

// fetchWithRetry 选择策略并执行, 失败时按配置整体重试
// 配置错误和环境不可用不重试
func (o *Orchestrator) fetchWithRetry(ctx context.Context, target *models.CrawlTarget) (*models.CrawlResult, int) {
	if _, err := target.Selectors(); err != nil {
		return models.NewFailureResult(err.Error(), 0), 1
	}

	strategy, failure := o.selectStrategy(target)
	if failure != nil {
		return failure, 1
	}

	for attempt := 1; ; attempt++ {
		result := o.safeFetch(ctx, strategy, target)
		if result.Success || attempt > o.opts.RetryCount || ctx.Err() != nil {
			return result, attempt
		}

		utils.Warnf("目标 %s 第%d次爬取失败, %v 后重试: %s", target, attempt, o.opts.RetryDelay, result.ErrorMessage)
		if err := o.sleep(ctx, o.opts.RetryDelay); err != nil {
			return result, attempt
		}
	}
}

// selectStrategy 按爬取类型选择策略
func (o *Orchestrator) selectStrategy(target *models.CrawlTarget) (crawlers.Strategy, *models.CrawlResult) {
	switch target.CrawlType {
	case models.CrawlTypeDynamic:
		reason := "未配置无头浏览器"
		if o.dynamic != nil {
			ok, why := o.dynamic.Available()
			if ok {
				return o.dynamic, nil
			}
			reason = why
		}
		if o.opts.FallbackToStatic {
			utils.Warnf("⚠️  目标 %s 需要动态爬取但浏览器不可用 (%s), 回退到静态爬取", target, reason)
			return o.static, nil
		}
		return nil, models.NewFailureResult((&models.EnvironmentError{Reason: reason}).Error(), 0)
	default:
		return o.static, nil
	}
}

func (o *Orchestrator) safeFetch(ctx context.Context, strategy crawlers.Strategy, target *models.CrawlTarget) (result *models.CrawlResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = models.NewFailureResult(fmt.Sprintf("爬取panic: %v", r), time.Since(start))
		}
	}()

	result = strategy.Fetch(ctx, target)
	if result == nil {
		result = models.NewFailureResult("策略未返回结果", time.Since(start))
	}
	return result
}

// persist 过滤无效链接后逐篇去重保存, 返回新增数量
func (o *Orchestrator) persist(ctx context.Context, target *models.CrawlTarget, articles []models.ArticleCandidate) int {
	saved := 0
	for _, article := range articles {
		if strings.TrimSpace(article.URL) == "" {
			utils.Debugf("跳过无链接的文章: %s", article.Title)
			continue
		}
		if IsMediaURL(article.URL) {
			utils.Debugf("跳过媒体链接: %s", article.URL)
			continue
		}

		inserted, err := o.dedup.Accept(ctx, target.ID, article)
		if err != nil {
			utils.Warnf("目标 %s 保存文章失败 [%s]: %v", target, article.URL, err)
			continue
		}
		if inserted {
			saved++
		}
	}
	return saved
}

// record 写入历史记录并回写目标状态, 失败只记录日志
func (o *Orchestrator) record(ctx context.Context, target *models.CrawlTarget, outcome *models.CrawlOutcome) {
	executedAt := o.now()

	entry := models.CrawlHistory{
		ID:            outcome.RunID,
		TargetID:      target.ID,
		Status:        outcome.Status,
		ArticlesFound: outcome.ArticlesFound,
		ArticlesNew:   outcome.ArticlesNew,
		DurationMs:    outcome.Result.DurationMs,
		ErrorMessage:  utils.TruncateRunes(outcome.Result.ErrorMessage, maxErrorMessageLength),
		ExecutedAt:    executedAt,
	}
	if o.history != nil {
		if err := o.history.RecordHistory(ctx, entry); err != nil {
			utils.Errorf("写入爬取历史失败 [%s]: %v", target, err)
		}
	}
	if err := o.targets.UpdateLastRun(ctx, target.ID, outcome.Status, executedAt); err != nil {
		utils.Errorf("更新目标状态失败 [%s]: %v", target, err)
	}
}

func (o *Orchestrator) markRunning(id int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[id] {
		return false
	}
	o.running[id] = true
	return true
}

func (o *Orchestrator) clearRunning(id int64) {
	o.mu.Lock()
	delete(o.running, id)
	o.mu.Unlock()
}

// Running 正在执行的目标ID
func (o *Orchestrator) Running() []int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]int64, 0, len(o.running))
	for id := range o.running {
		ids = append(ids, id)
	}
	return ids
}
