package models

import (
	"context"
	"time"
)

// TargetProvider 目标定义提供方
type TargetProvider interface {
	// EnabledTargets 返回所有启用的目标
	EnabledTargets(ctx context.Context) ([]*CrawlTarget, error)

	// GetTarget 按ID获取目标,不存在时返回 ErrTargetNotFound
	GetTarget(ctx context.Context, id int64) (*CrawlTarget, error)

	// UpdateLastRun 回写最近一次执行状态
	UpdateLastRun(ctx context.Context, id int64, status CrawlStatus, at time.Time) error
}

// ArticleStore 文章存储方
type ArticleStore interface {
	// ExistsByHash 内容哈希是否已存在
	ExistsByHash(ctx context.Context, hash string) (bool, error)

	// SaveArticle 保存文章,返回是否真正插入 (并发下哈希冲突时返回false)
	SaveArticle(ctx context.Context, targetID int64, article ArticleCandidate, hash string) (bool, error)
}

// HistoryRecorder 爬取历史记录方
type HistoryRecorder interface {
	RecordHistory(ctx context.Context, entry CrawlHistory) error
}
