package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/InsightCrawler/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// WriteBatchReport 保存批量执行报告,返回报告路径
func (r *Reporter) WriteBatchReport(summary *models.BatchSummary) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	name := fmt.Sprintf("run_all_%s.json", summary.StartedAt.Format("20060102_150405"))
	path := filepath.Join(r.outputDir, name)

	jsonData, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return path, nil
}

// PrintBatchSummary 打印批量执行摘要
func PrintBatchSummary(summary *models.BatchSummary) {
	Info("==================================================")
	Info("📊 批量爬取摘要")
	Info("==================================================")
	Infof("目标数: %d", summary.TotalTargets)
	Infof("✅ 成功: %d", summary.SuccessCount)
	Infof("⚠️  部分成功: %d", summary.PartialCount)
	Infof("❌ 失败: %d", summary.FailCount)
	if summary.SkippedCount > 0 {
		Infof("⏭️  跳过(上次执行未结束): %d", summary.SkippedCount)
	}
	Infof("📰 发现文章: %d, 新增: %d", summary.ArticlesFound, summary.ArticlesNew)
	Infof("⏱️  总耗时: %.2f秒", float64(summary.DurationMs)/1000)
	Info("==================================================")

	if summary.FailCount > 0 {
		Warn("失败的目标:")
		for _, outcome := range summary.Outcomes {
			if outcome.Status == models.StatusFailed && !outcome.Skipped && outcome.Result != nil {
				Warnf("  - %s(#%d): %s", outcome.TargetName, outcome.TargetID, outcome.Result.ErrorMessage)
			}
		}
	}
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
