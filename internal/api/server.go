// Package api 管理接口: 调度状态、手动触发和目标查询
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/core"
	"github.com/RecoveryAshes/InsightCrawler/internal/models"
	"github.com/RecoveryAshes/InsightCrawler/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Scheduler 调度器操作
type Scheduler interface {
	Refresh(ctx context.Context) (int, error)
	Cancel(targetID int64)
	Count() int
	Scheduled() []core.ScheduledTarget
}

// Runner 手动执行
type Runner interface {
	RunByID(ctx context.Context, targetID int64) (*models.CrawlOutcome, error)
	RunAllDetached(exec core.Executor) error
	Running() []int64
}

// TargetLister 目标查询
type TargetLister interface {
	ListTargets(ctx context.Context) ([]*models.CrawlTarget, error)
}

// Server 管理接口
type Server struct {
	scheduler Scheduler
	runner    Runner
	targets   TargetLister
	executor  core.Executor
	browser   func() (bool, string)
	started   time.Time
}

// NewServer 创建管理接口
// browser 报告动态爬取是否可用, 可以为nil
func NewServer(scheduler Scheduler, runner Runner, targets TargetLister, executor core.Executor, browser func() (bool, string)) *Server {
	if browser == nil {
		browser = func() (bool, string) { return false, "未配置无头浏览器" }
	}
	return &Server{
		scheduler: scheduler,
		runner:    runner,
		targets:   targets,
		executor:  executor,
		browser:   browser,
		started:   time.Now(),
	}
}

// Handler 返回挂载了全部路由的处理器
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	s.RegisterHTTP(r)
	return r
}

// RegisterHTTP 注册路由
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/targets", s.handleTargets)

	r.Route("/api/scheduler", func(r chi.Router) {
		r.Get("/status", s.handleSchedulerStatus)
		r.Post("/refresh", s.handleRefresh)
		r.Delete("/{targetID}", s.handleCancel)
	})

	r.Route("/api/crawl", func(r chi.Router) {
		r.Post("/all", s.handleCrawlAll)
		r.Post("/{targetID}", s.handleCrawlTarget)
	})
}

// ListenAndServe 监听直到ctx结束, 然后优雅关闭
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Infof("🌐 管理接口监听: %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	available, reason := s.browser()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"scheduled": s.scheduler.Count(),
		"browser": map[string]any{
			"available": available,
			"reason":    reason,
		},
	})
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.targets.ListTargets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if targets == nil {
		targets = []*models.CrawlTarget{}
	}
	writeJSON(w, http.StatusOK, targets)
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     s.scheduler.Count(),
		"scheduled": s.scheduler.Scheduled(),
		"running":   s.runner.Running(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	n, err := s.scheduler.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"scheduled": n})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}
	s.scheduler.Cancel(id)
	w.WriteHeader(http.StatusNoContent)
}

// runResult 工作池中单个目标的执行结果
type runResult struct {
	outcome *models.CrawlOutcome
	err     error
}

// handleCrawlTarget 在工作池中执行单个目标并等待结果
// 客户端断开后爬取继续在后台完成
func (s *Server) handleCrawlTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	done := make(chan runResult, 1)
	err := s.executor.Submit(func(ctx context.Context) {
		outcome, err := s.runner.RunByID(ctx, id)
		done <- runResult{outcome: outcome, err: err}
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	var res runResult
	select {
	case res = <-done:
	case <-r.Context().Done():
		utils.Warnf("请求已断开, 目标 #%d 在后台继续执行", id)
		return
	}

	switch {
	case errors.Is(res.err, models.ErrTargetNotFound):
		writeError(w, http.StatusNotFound, res.err)
		return
	case res.err != nil:
		writeError(w, http.StatusInternalServerError, res.err)
		return
	}

	if res.outcome.Skipped {
		writeJSON(w, http.StatusConflict, res.outcome)
		return
	}
	writeJSON(w, http.StatusOK, res.outcome)
}

// handleCrawlAll 后台执行全部目标, 立即返回
func (s *Server) handleCrawlAll(w http.ResponseWriter, _ *http.Request) {
	if err := s.runner.RunAllDetached(s.executor); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func targetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "targetID"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "无效的目标ID"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Debugf("写入响应失败: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// requestLogger 以zerolog记录每个请求
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		utils.Logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("api")
	})
}
