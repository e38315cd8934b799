package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/models"
)

// ExistsByHash 实现 ArticleStore
func (s *Store) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM news_articles WHERE content_hash = ?`, hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SaveArticle 实现 ArticleStore
// 哈希唯一约束冲突时不报错, 返回false
func (s *Store) SaveArticle(ctx context.Context, targetID int64, article models.ArticleCandidate, hash string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO news_articles (id, target_id, content_hash, original_url, title,
		                                     content, author, published_at, thumbnail_url, crawled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		models.NewID(), targetID, hash, article.URL, article.Title,
		article.Content, article.Author, nullMillis(article.PublishedAt), article.ThumbnailURL,
		toMillis(s.now()),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountArticles 文章数量, targetID为0时统计全部
func (s *Store) CountArticles(ctx context.Context, targetID int64) (int, error) {
	var n int
	var err error
	if targetID == 0 {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news_articles`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news_articles WHERE target_id = ?`, targetID).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("统计文章失败: %w", err)
	}
	return n, nil
}

// RecentArticles 目标最近入库的文章
func (s *Store) RecentArticles(ctx context.Context, targetID int64, limit int) ([]models.StoredArticle, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target_id, content_hash, original_url, title, content, author,
		       published_at, thumbnail_url, crawled_at
		FROM news_articles
		WHERE target_id = ?
		ORDER BY crawled_at DESC, rowid DESC
		LIMIT ?`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("查询文章失败: %w", err)
	}
	defer rows.Close()

	var result []models.StoredArticle
	for rows.Next() {
		var (
			a         models.StoredArticle
			published sql.NullInt64
			crawledAt int64
		)
		if err := rows.Scan(&a.ID, &a.TargetID, &a.ContentHash, &a.URL, &a.Title, &a.Content, &a.Author,
			&published, &a.ThumbnailURL, &crawledAt); err != nil {
			return nil, err
		}
		a.PublishedAt = fromNullMillis(published)
		a.CreatedAt = time.UnixMilli(crawledAt)
		result = append(result, a)
	}
	return result, rows.Err()
}
