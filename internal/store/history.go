package store

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/models"
)

// RecordHistory 实现 HistoryRecorder
func (s *Store) RecordHistory(ctx context.Context, entry models.CrawlHistory) error {
	if entry.ID == "" {
		entry.ID = models.NewID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_history (id, target_id, status, articles_found, articles_new,
		                           duration_ms, error_message, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TargetID, string(entry.Status), entry.ArticlesFound, entry.ArticlesNew,
		entry.DurationMs, entry.ErrorMessage, toMillis(entry.ExecutedAt),
	)
	if err != nil {
		return fmt.Errorf("写入爬取历史失败: %w", err)
	}
	return nil
}

// ListHistory 目标的执行历史, 最新的在前
func (s *Store) ListHistory(ctx context.Context, targetID int64, limit int) ([]models.CrawlHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target_id, status, articles_found, articles_new, duration_ms, error_message, executed_at
		FROM crawl_history
		WHERE target_id = ?
		ORDER BY executed_at DESC, rowid DESC
		LIMIT ?`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("查询爬取历史失败: %w", err)
	}
	defer rows.Close()

	var result []models.CrawlHistory
	for rows.Next() {
		var (
			h          models.CrawlHistory
			status     string
			executedAt int64
		)
		if err := rows.Scan(&h.ID, &h.TargetID, &status, &h.ArticlesFound, &h.ArticlesNew,
			&h.DurationMs, &h.ErrorMessage, &executedAt); err != nil {
			return nil, err
		}
		h.Status = models.CrawlStatus(status)
		h.ExecutedAt = time.UnixMilli(executedAt)
		result = append(result, h)
	}
	return result, rows.Err()
}
