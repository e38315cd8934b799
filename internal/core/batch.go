package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/models"
	"github.com/RecoveryAshes/InsightCrawler/internal/utils"
)

// RunAll 依次执行所有启用的目标
// 目标之间等待 InterTargetDelay, 单个目标失败或panic不影响后续目标
func (o *Orchestrator) RunAll(ctx context.Context, targets []*models.CrawlTarget) *models.BatchSummary {
	enabled := make([]*models.CrawlTarget, 0, len(targets))
	for _, t := range targets {
		if t != nil && t.Enabled {
			enabled = append(enabled, t)
		}
	}

	summary := &models.BatchSummary{
		RunID:        models.NewID(),
		StartedAt:    o.now(),
		TotalTargets: len(enabled),
		Outcomes:     make([]*models.CrawlOutcome, 0, len(enabled)),
	}
	startTime := time.Now()

	utils.Infof("🚀 开始批量爬取: %d个目标", len(enabled))

	for i, target := range enabled {
		utils.Infof("==================== [%d/%d] %s ====================", i+1, len(enabled), target)

		outcome := o.runIsolated(ctx, target)
		summary.Add(outcome)
		if o.onTargetDone != nil {
			o.onTargetDone(i+1, len(enabled), outcome)
		}

		if i < len(enabled)-1 && o.opts.InterTargetDelay > 0 {
			utils.Debugf("等待 %v 后处理下一个目标...", o.opts.InterTargetDelay)
			if err := o.sleep(ctx, o.opts.InterTargetDelay); err != nil {
				utils.Warnf("批量爬取中止: %v", err)
				break
			}
		}
	}

	summary.FinishedAt = o.now()
	summary.DurationMs = time.Since(startTime).Milliseconds()

	utils.Infof("📊 批量爬取结束: 成功 %d, 部分成功 %d, 失败 %d, 跳过 %d, 新文章 %d",
		summary.SuccessCount, summary.PartialCount, summary.FailCount, summary.SkippedCount, summary.ArticlesNew)
	return summary
}

// RunAllEnabled 从目标提供方加载启用的目标并批量执行
func (o *Orchestrator) RunAllEnabled(ctx context.Context) (*models.BatchSummary, error) {
	targets, err := o.targets.EnabledTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载启用目标失败: %w", err)
	}
	return o.RunAll(ctx, targets), nil
}

// RunAllDetached 在执行器中异步批量执行, 立即返回
func (o *Orchestrator) RunAllDetached(exec Executor) error {
	return exec.Submit(func(ctx context.Context) {
		if _, err := o.RunAllEnabled(ctx); err != nil {
			utils.Errorf("后台批量爬取失败: %v", err)
		}
	})
}

// runIsolated 执行单个目标, 将panic转换为失败结果
func (o *Orchestrator) runIsolated(ctx context.Context, target *models.CrawlTarget) (outcome *models.CrawlOutcome) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("❌ 目标 %s 执行panic: %v", target, r)
			outcome = &models.CrawlOutcome{
				RunID:      models.NewID(),
				TargetID:   target.ID,
				TargetName: target.Name,
				Status:     models.StatusFailed,
				Result:     models.NewFailureResult(fmt.Sprintf("执行panic: %v", r), 0),
			}
		}
	}()
	return o.Run(ctx, target)
}
