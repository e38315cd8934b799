package models

import "time"

// BatchSummary 批量执行摘要
type BatchSummary struct {
	RunID         string          `json:"runId"`
	StartedAt     time.Time       `json:"startedAt"`
	FinishedAt    time.Time       `json:"finishedAt"`
	TotalTargets  int             `json:"totalTargets"`
	SuccessCount  int             `json:"successCount"`
	PartialCount  int             `json:"partialCount"`
	FailCount     int             `json:"failCount"`
	SkippedCount  int             `json:"skippedCount"`
	ArticlesFound int             `json:"articlesFound"`
	ArticlesNew   int             `json:"articlesNew"`
	DurationMs    int64           `json:"durationMs"`
	Outcomes      []*CrawlOutcome `json:"outcomes"`
}

// Add 累加一个目标的执行结果
// 因上一次执行未结束而跳过的目标单独计数, 不算失败
func (s *BatchSummary) Add(outcome *CrawlOutcome) {
	s.Outcomes = append(s.Outcomes, outcome)
	if outcome.Skipped {
		s.SkippedCount++
		return
	}
	switch outcome.Status {
	case StatusSuccess:
		s.SuccessCount++
	case StatusPartial:
		s.PartialCount++
	default:
		s.FailCount++
	}
	s.ArticlesFound += outcome.ArticlesFound
	s.ArticlesNew += outcome.ArticlesNew
}
