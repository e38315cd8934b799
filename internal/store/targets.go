package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/models"
)

const targetColumns = `id, name, url, description, selector_config, cron_expression,
    enabled, crawl_type, last_crawled_at, last_status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (*models.CrawlTarget, error) {
	var (
		t         models.CrawlTarget
		enabled   int
		crawlType string
		status    string
		lastRun   sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.Name, &t.URL, &t.Description, &t.SelectorConfig, &t.CronExpression,
		&enabled, &crawlType, &lastRun, &status)
	if err != nil {
		return nil, err
	}
	t.Enabled = enabled == 1
	t.CrawlType = models.CrawlType(crawlType)
	t.LastStatus = models.CrawlStatus(status)
	t.LastCrawledAt = fromNullMillis(lastRun)
	return &t, nil
}

func (s *Store) queryTargets(ctx context.Context, query string, args ...any) ([]*models.CrawlTarget, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询爬取目标失败: %w", err)
	}
	defer rows.Close()

	var targets []*models.CrawlTarget
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("读取爬取目标失败: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// EnabledTargets 实现 TargetProvider
func (s *Store) EnabledTargets(ctx context.Context) ([]*models.CrawlTarget, error) {
	return s.queryTargets(ctx, `SELECT `+targetColumns+` FROM crawl_targets WHERE enabled = 1 ORDER BY id`)
}

// ListTargets 所有目标, 包括禁用的
func (s *Store) ListTargets(ctx context.Context) ([]*models.CrawlTarget, error) {
	return s.queryTargets(ctx, `SELECT `+targetColumns+` FROM crawl_targets ORDER BY id`)
}

// GetTarget 实现 TargetProvider
func (s *Store) GetTarget(ctx context.Context, id int64) (*models.CrawlTarget, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM crawl_targets WHERE id = ?`, id)
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTargetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询目标 #%d 失败: %w", id, err)
	}
	return t, nil
}

// UpsertTarget 按名称插入或更新目标定义, 不修改执行状态
// 返回目标ID
func (s *Store) UpsertTarget(ctx context.Context, t *models.CrawlTarget) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	crawlType, _ := models.ParseCrawlType(string(t.CrawlType))
	now := toMillis(s.now())

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO crawl_targets (name, url, description, selector_config, cron_expression,
		                           enabled, crawl_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			url = excluded.url,
			description = excluded.description,
			selector_config = excluded.selector_config,
			cron_expression = excluded.cron_expression,
			enabled = excluded.enabled,
			crawl_type = excluded.crawl_type,
			updated_at = excluded.updated_at
		RETURNING id`,
		t.Name, t.URL, t.Description, t.SelectorConfig, t.CronExpression,
		boolToInt(t.Enabled), string(crawlType), now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("保存目标 %q 失败: %w", t.Name, err)
	}
	t.ID = id
	return id, nil
}

// SetEnabled 启用或禁用目标
func (s *Store) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE crawl_targets SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), toMillis(s.now()), id)
	if err != nil {
		return fmt.Errorf("更新目标 #%d 失败: %w", id, err)
	}
	return requireAffected(res)
}

// UpdateLastRun 实现 TargetProvider
func (s *Store) UpdateLastRun(ctx context.Context, id int64, status models.CrawlStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE crawl_targets SET last_crawled_at = ?, last_status = ?, updated_at = ? WHERE id = ?`,
		toMillis(at), string(status), toMillis(s.now()), id)
	if err != nil {
		return fmt.Errorf("更新目标 #%d 状态失败: %w", id, err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrTargetNotFound
	}
	return nil
}
