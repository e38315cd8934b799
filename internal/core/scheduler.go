package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/models"
	"github.com/RecoveryAshes/InsightCrawler/internal/utils"
	"github.com/robfig/cron/v3"
)

// TargetRunner 按ID执行目标
type TargetRunner interface {
	RunByID(ctx context.Context, targetID int64) (*models.CrawlOutcome, error)
}

// ScheduledTarget 已注册的调度项
type ScheduledTarget struct {
	TargetID int64     `json:"targetId"`
	Next     time.Time `json:"next,omitempty"`
	Prev     time.Time `json:"prev,omitempty"`
}

// cronParser 六段式表达式: 秒 分 时 日 月 周, 同时支持 @every 等描述符
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCron 校验cron表达式
func ParseCron(expression string) (cron.Schedule, error) {
	return cronParser.Parse(expression)
}

// CrawlScheduler 按cron表达式触发目标爬取
// 每个目标最多一个调度项, 触发后交给执行器异步运行
type CrawlScheduler struct {
	cron     *cron.Cron
	targets  models.TargetProvider
	runner   TargetRunner
	executor Executor

	mu      sync.Mutex
	entries map[int64]cron.EntryID
}

// SchedulerOption 调度器选项
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	location *time.Location
}

// WithLocation 指定cron时区
func WithLocation(loc *time.Location) SchedulerOption {
	return func(o *schedulerOptions) { o.location = loc }
}

// NewCrawlScheduler 创建调度器
func NewCrawlScheduler(targets models.TargetProvider, runner TargetRunner, executor Executor, opts ...SchedulerOption) *CrawlScheduler {
	options := schedulerOptions{location: time.Local}
	for _, opt := range opts {
		opt(&options)
	}

	logger := cronLogger{}
	return &CrawlScheduler{
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLocation(options.location),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		targets:  targets,
		runner:   runner,
		executor: executor,
		entries:  make(map[int64]cron.EntryID),
	}
}

// Start 启动调度
func (s *CrawlScheduler) Start() {
	s.cron.Start()
	utils.Infof("⏰ 调度器已启动, 当前调度 %d 个目标", s.Count())
}

// Stop 停止调度, 返回的context在运行中的cron回调结束后关闭
func (s *CrawlScheduler) Stop() context.Context {
	utils.Info("调度器停止")
	return s.cron.Stop()
}

// Refresh 取消全部调度后按启用目标重新注册
// 加载目标失败时保留现有调度; 单个目标注册失败只记录日志
func (s *CrawlScheduler) Refresh(ctx context.Context) (int, error) {
	targets, err := s.targets.EnabledTargets(ctx)
	if err != nil {
		return s.Count(), fmt.Errorf("加载启用目标失败: %w", err)
	}

	s.CancelAll()

	scheduled := 0
	for _, target := range targets {
		if err := s.Schedule(target); err != nil {
			utils.Errorf("注册调度失败: %v", err)
			continue
		}
		scheduled++
	}

	utils.Infof("🔄 调度刷新完成: %d/%d 个目标", scheduled, len(targets))
	return scheduled, nil
}

// Schedule 为目标注册调度, 已有调度时先替换
func (s *CrawlScheduler) Schedule(target *models.CrawlTarget) error {
	schedule, err := ParseCron(target.CronExpression)
	if err != nil {
		return &models.ScheduleError{TargetID: target.ID, Expression: target.CronExpression, Cause: err}
	}

	s.mu.Lock()
	if old, ok := s.entries[target.ID]; ok {
		s.cron.Remove(old)
	}
	s.entries[target.ID] = s.cron.Schedule(schedule, cron.FuncJob(s.trigger(target.ID)))
	s.mu.Unlock()

	utils.Debugf("已调度 %s [%s], 下次执行: %s",
		target, target.CronExpression, schedule.Next(time.Now()).Format(time.RFC3339))
	return nil
}

// Cancel 取消目标的调度, 没有调度时为空操作
func (s *CrawlScheduler) Cancel(targetID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[targetID]; ok {
		s.cron.Remove(id)
		delete(s.entries, targetID)
		utils.Debugf("已取消目标 #%d 的调度", targetID)
	}
}

// CancelAll 取消所有调度
func (s *CrawlScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for targetID, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, targetID)
	}
}

// Update 目标定义变更后重新调度, 禁用的目标只取消
func (s *CrawlScheduler) Update(target *models.CrawlTarget) error {
	s.Cancel(target.ID)
	if !target.Enabled {
		return nil
	}
	return s.Schedule(target)
}

// Count 当前调度项数量
func (s *CrawlScheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Scheduled 当前调度项快照, 按目标ID排序
func (s *CrawlScheduler) Scheduled() []ScheduledTarget {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]ScheduledTarget, 0, len(s.entries))
	for targetID, id := range s.entries {
		entry := s.cron.Entry(id)
		result = append(result, ScheduledTarget{TargetID: targetID, Next: entry.Next, Prev: entry.Prev})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TargetID < result[j].TargetID })
	return result
}

// trigger cron回调只负责提交任务, 实际爬取在执行器中进行
func (s *CrawlScheduler) trigger(targetID int64) func() {
	return func() {
		err := s.executor.Submit(func(ctx context.Context) {
			outcome, err := s.runner.RunByID(ctx, targetID)
			if err != nil {
				utils.Errorf("定时爬取目标 #%d 失败: %v", targetID, err)
				return
			}
			utils.Debugf("定时爬取目标 #%d 结束: %s", targetID, outcome.Status)
		})
		if err != nil {
			utils.Warnf("提交目标 #%d 的定时任务失败: %v", targetID, err)
		}
	}
}

// cronLogger 将cron内部日志转到zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	utils.Logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	utils.Logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
