package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/core"
	"github.com/RecoveryAshes/InsightCrawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTarget(name string) *models.CrawlTarget {
	return &models.CrawlTarget{
		Name:           name,
		URL:            "https://news.example.com/" + name,
		SelectorConfig: `{"articleItemSelector":"li"}`,
		CronExpression: "0 0 * * * *",
		Enabled:        true,
		CrawlType:      models.CrawlTypeStatic,
	}
}

func TestStore_UpsertTarget(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	target := sampleTarget("tech")
	id, err := s.UpsertTarget(ctx, target)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, target.ID)

	updated := sampleTarget("tech")
	updated.URL = "https://news.example.com/tech/v2"
	updated.CrawlType = "DYNAMIC"
	id2, err := s.UpsertTarget(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, id, id2, "同名目标更新而不是新增")

	got, err := s.GetTarget(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://news.example.com/tech/v2", got.URL)
	assert.Equal(t, models.CrawlTypeDynamic, got.CrawlType)
	assert.Nil(t, got.LastCrawledAt)

	_, err = s.UpsertTarget(ctx, &models.CrawlTarget{Name: "bad", URL: "ftp://x", CronExpression: "@hourly"})
	assert.Error(t, err)
}

func TestStore_EnabledTargets(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.UpsertTarget(ctx, sampleTarget(name))
		require.NoError(t, err)
	}
	all, err := s.ListTargets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	require.NoError(t, s.SetEnabled(ctx, all[1].ID, false))

	enabled, err := s.EnabledTargets(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, "a", enabled[0].Name)
	assert.Equal(t, "c", enabled[1].Name)

	assert.ErrorIs(t, s.SetEnabled(ctx, 999, true), models.ErrTargetNotFound)
}

func TestStore_GetTargetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetTarget(t.Context(), 42)
	assert.ErrorIs(t, err, models.ErrTargetNotFound)
}

func TestStore_UpdateLastRun(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()
	id, err := s.UpsertTarget(ctx, sampleTarget("tech"))
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.UpdateLastRun(ctx, id, models.StatusPartial, at))

	got, err := s.GetTarget(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartial, got.LastStatus)
	require.NotNil(t, got.LastCrawledAt)
	assert.True(t, at.Equal(*got.LastCrawledAt))

	assert.ErrorIs(t, s.UpdateLastRun(ctx, 999, models.StatusFailed, at), models.ErrTargetNotFound)
}

func TestStore_SaveArticleDeduplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()
	id, err := s.UpsertTarget(ctx, sampleTarget("tech"))
	require.NoError(t, err)

	published := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	article := models.ArticleCandidate{
		URL:          "https://news.example.com/1",
		Title:        "第一篇",
		Author:       "编辑部",
		PublishedAt:  &published,
		ThumbnailURL: "https://cdn.example.com/1.jpg",
	}
	hash := core.ContentHash(article.URL, article.Title)

	exists, err := s.ExistsByHash(ctx, hash)
	require.NoError(t, err)
	assert.False(t, exists)

	inserted, err := s.SaveArticle(ctx, id, article, hash)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.SaveArticle(ctx, id, article, hash)
	require.NoError(t, err)
	assert.False(t, inserted, "唯一约束冲突返回false而非错误")

	exists, err = s.ExistsByHash(ctx, hash)
	require.NoError(t, err)
	assert.True(t, exists)

	n, err := s.CountArticles(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recent, err := s.RecentArticles(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "编辑部", recent[0].Author)
	require.NotNil(t, recent[0].PublishedAt)
	assert.True(t, published.Equal(*recent[0].PublishedAt))
}

func TestStore_ConcurrentSaveSameHash(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "insight.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := t.Context()
	id, err := s.UpsertTarget(ctx, sampleTarget("tech"))
	require.NoError(t, err)

	article := models.ArticleCandidate{URL: "https://news.example.com/1", Title: "并发"}
	hash := core.ContentHash(article.URL, article.Title)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.SaveArticle(ctx, id, article, hash)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	n, err := s.CountArticles(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_History(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()
	id, err := s.UpsertTarget(ctx, sampleTarget("tech"))
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordHistory(ctx, models.CrawlHistory{
		TargetID: id, Status: models.StatusSuccess, ArticlesFound: 10, ArticlesNew: 3, DurationMs: 1200, ExecutedAt: base,
	}))
	require.NoError(t, s.RecordHistory(ctx, models.CrawlHistory{
		TargetID: id, Status: models.StatusFailed, ErrorMessage: "HTTP 503", ExecutedAt: base.Add(time.Hour),
	}))

	history, err := s.ListHistory(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusFailed, history[0].Status, "最新记录在前")
	assert.Equal(t, "HTTP 503", history[0].ErrorMessage)
	assert.Equal(t, 3, history[1].ArticlesNew)
	assert.NotEmpty(t, history[1].ID)

	err = s.RecordHistory(ctx, models.CrawlHistory{TargetID: 999, Status: models.StatusSuccess, ExecutedAt: base})
	assert.Error(t, err, "外键约束拒绝不存在的目标")
}

func TestStore_WithOrchestrator(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()
	target := sampleTarget("tech")
	_, err := s.UpsertTarget(ctx, target)
	require.NoError(t, err)

	d := core.NewDeduplicator(s)
	for i := 0; i < 2; i++ {
		_, err := d.Accept(ctx, target.ID, models.ArticleCandidate{URL: "https://news.example.com/a", Title: "同一篇"})
		require.NoError(t, err)
	}
	_, err = d.Accept(ctx, target.ID, models.ArticleCandidate{URL: "https://news.example.com/b", Title: "另一篇"})
	require.NoError(t, err)

	n, err := s.CountArticles(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// cancellingStrategy 抓取期间取消上下文, 模拟客户端断开或进程退出
type cancellingStrategy struct {
	cancel   context.CancelFunc
	articles []models.ArticleCandidate
}

func (s *cancellingStrategy) Type() models.CrawlType { return models.CrawlTypeStatic }

func (s *cancellingStrategy) Fetch(ctx context.Context, target *models.CrawlTarget) *models.CrawlResult {
	s.cancel()
	return models.NewSuccessResult(s.articles, 0)
}

func TestStore_CancelledRunStillRecorded(t *testing.T) {
	s := openTestStore(t)
	target := sampleTarget("tech")
	_, err := s.UpsertTarget(t.Context(), target)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	strategy := &cancellingStrategy{cancel: cancel, articles: []models.ArticleCandidate{
		{URL: "https://news.example.com/a", Title: "第一篇"},
		{URL: "https://news.example.com/b", Title: "第二篇"},
	}}

	o := core.NewOrchestrator(strategy, nil, s, s, s, core.OrchestratorOptions{})
	outcome, err := o.RunByID(ctx, target.ID)
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.Equal(t, models.StatusSuccess, outcome.Status)
	assert.Equal(t, 2, outcome.ArticlesNew)

	history, err := s.ListHistory(t.Context(), target.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusSuccess, history[0].Status)

	got, err := s.GetTarget(t.Context(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, got.LastStatus)

	n, err := s.CountArticles(t.Context(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
