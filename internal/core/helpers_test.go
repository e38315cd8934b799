package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/models"
)

const testSelectors = `{"articleItemSelector":"li.item","titleSelector":"a","linkSelector":"a"}`

// memoryStore 内存实现的目标/文章/历史存储
type memoryStore struct {
	mu       sync.Mutex
	targets  map[int64]*models.CrawlTarget
	articles map[string]models.ArticleCandidate
	history  []models.CrawlHistory
	statuses map[int64]models.CrawlStatus

	// panicOnUpdate 回写该目标状态时panic
	panicOnUpdate int64
}

func newMemoryStore(targets ...*models.CrawlTarget) *memoryStore {
	s := &memoryStore{
		targets:  make(map[int64]*models.CrawlTarget),
		articles: make(map[string]models.ArticleCandidate),
		statuses: make(map[int64]models.CrawlStatus),
	}
	for _, t := range targets {
		s.targets[t.ID] = t
	}
	return s
}

func (s *memoryStore) EnabledTargets(ctx context.Context) ([]*models.CrawlTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.CrawlTarget
	for _, t := range s.targets {
		if t.Enabled {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *memoryStore) GetTarget(ctx context.Context, id int64) (*models.CrawlTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[id]
	if !ok {
		return nil, models.ErrTargetNotFound
	}
	return t, nil
}

func (s *memoryStore) UpdateLastRun(ctx context.Context, id int64, status models.CrawlStatus, at time.Time) error {
	if id == s.panicOnUpdate {
		panic("存储层异常")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = status
	return nil
}

func (s *memoryStore) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.articles[hash]
	return ok, nil
}

func (s *memoryStore) SaveArticle(ctx context.Context, targetID int64, article models.ArticleCandidate, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[hash]; ok {
		return false, nil
	}
	s.articles[hash] = article
	return true, nil
}

func (s *memoryStore) RecordHistory(ctx context.Context, entry models.CrawlHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
	return nil
}

func (s *memoryStore) articleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.articles)
}

// fakeStrategy 按调用顺序返回预设结果
type fakeStrategy struct {
	mu        sync.Mutex
	kind      models.CrawlType
	results   []*models.CrawlResult
	calls     int
	panicFor  int64
	available string
}

func (f *fakeStrategy) Type() models.CrawlType { return f.kind }

func (f *fakeStrategy) Fetch(ctx context.Context, target *models.CrawlTarget) *models.CrawlResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicFor != 0 && target.ID == f.panicFor {
		panic("选择器引擎崩溃")
	}
	if len(f.results) == 0 {
		return models.NewSuccessResult(nil, time.Millisecond)
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r
}

func (f *fakeStrategy) Available() (bool, string) {
	return f.available == "", f.available
}

func (f *fakeStrategy) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingSleeper 记录等待时长, 不真正等待
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return ctx.Err()
}

// syncExecutor 在调用方goroutine中直接执行任务
type syncExecutor struct{}

func (syncExecutor) Submit(task func(ctx context.Context)) error {
	task(context.Background())
	return nil
}

func newTarget(id int64, name string) *models.CrawlTarget {
	return &models.CrawlTarget{
		ID:             id,
		Name:           name,
		URL:            "https://news.example.com/list",
		SelectorConfig: testSelectors,
		CronExpression: "0 */30 * * * *",
		Enabled:        true,
		CrawlType:      models.CrawlTypeStatic,
	}
}

func articles(pairs ...string) []models.ArticleCandidate {
	var result []models.ArticleCandidate
	for i := 0; i+1 < len(pairs); i += 2 {
		result = append(result, models.ArticleCandidate{URL: pairs[i], Title: pairs[i+1]})
	}
	return result
}
