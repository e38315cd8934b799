package models

import (
	"time"
)

// ArticleCandidate 从列表页提取出的候选文章
// 每次提取都会新建,构建后不再修改
type ArticleCandidate struct {
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Content      string     `json:"content,omitempty"`
	Author       string     `json:"author,omitempty"`
	PublishedAt  *time.Time `json:"publishedAt,omitempty"`
	ThumbnailURL string     `json:"thumbnailUrl,omitempty"`
}

// CrawlResult 单次爬取的结果
// Success=false 时 ErrorMessage 非空; Success=true 时不携带错误信息
type CrawlResult struct {
	Success      bool               `json:"success"`
	Articles     []ArticleCandidate `json:"articles"`
	Duration     time.Duration      `json:"-"`
	DurationMs   int64              `json:"durationMs"`
	ErrorMessage string             `json:"errorMessage,omitempty"`

	// Partial 分页中途因抓取错误提前结束,已收集的文章保留
	Partial bool `json:"partial,omitempty"`
	// SkippedItems 提取阶段被丢弃的列表项数量
	SkippedItems int `json:"skippedItems,omitempty"`
}

// NewSuccessResult 创建成功结果
func NewSuccessResult(articles []ArticleCandidate, duration time.Duration) *CrawlResult {
	if articles == nil {
		articles = []ArticleCandidate{}
	}
	return &CrawlResult{
		Success:    true,
		Articles:   articles,
		Duration:   duration,
		DurationMs: duration.Milliseconds(),
	}
}

// NewFailureResult 创建失败结果
func NewFailureResult(message string, duration time.Duration) *CrawlResult {
	if message == "" {
		message = "未知错误"
	}
	return &CrawlResult{
		Success:      false,
		Articles:     []ArticleCandidate{},
		Duration:     duration,
		DurationMs:   duration.Milliseconds(),
		ErrorMessage: message,
	}
}

// Status 将结果映射为目标状态
func (r *CrawlResult) Status() CrawlStatus {
	switch {
	case !r.Success:
		return StatusFailed
	case r.Partial:
		return StatusPartial
	default:
		return StatusSuccess
	}
}

// CrawlOutcome 编排器对一个目标的执行结果
type CrawlOutcome struct {
	RunID         string       `json:"runId"`
	TargetID      int64        `json:"targetId"`
	TargetName    string       `json:"targetName"`
	Status        CrawlStatus  `json:"status"`
	Result        *CrawlResult `json:"result"`
	ArticlesFound int          `json:"articlesFound"`
	ArticlesNew   int          `json:"articlesNew"`
	Attempts      int          `json:"attempts"`
	// Skipped 同一目标已在执行,本次未执行
	Skipped bool `json:"skipped,omitempty"`
}

// CrawlHistory 一条爬取历史记录
type CrawlHistory struct {
	ID            string      `json:"id"`
	TargetID      int64       `json:"targetId"`
	Status        CrawlStatus `json:"status"`
	ArticlesFound int         `json:"articlesFound"`
	ArticlesNew   int         `json:"articlesNew"`
	DurationMs    int64       `json:"durationMs"`
	ErrorMessage  string      `json:"errorMessage,omitempty"`
	ExecutedAt    time.Time   `json:"executedAt"`
}

// StoredArticle 已入库文章
type StoredArticle struct {
	ID          string `json:"id"`
	TargetID    int64  `json:"targetId"`
	ContentHash string `json:"contentHash"`
	ArticleCandidate
	CreatedAt time.Time `json:"createdAt"`
}
