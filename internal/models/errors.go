package models

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTargetNotFound 目标不存在
	ErrTargetNotFound = errors.New("爬取目标不存在")
	// ErrTargetRunning 目标已有执行中的任务
	ErrTargetRunning = errors.New("爬取目标正在执行中")
)

// ConfigError 配置错误
// 选择器配置缺失或无法解析,爬取立即失败且不发起任何网络请求
type ConfigError struct {
	// Source 配置来源 (文件路径或目标标识)
	Source string

	// Field 出错的字段
	Field string

	// Cause 底层错误
	Cause error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	switch {
	case e.Source != "" && e.Field != "":
		return fmt.Sprintf("配置错误 [%s] %s: %v", e.Source, e.Field, e.Cause)
	case e.Source != "":
		return fmt.Sprintf("配置错误 [%s]: %v", e.Source, e.Cause)
	case e.Field != "":
		return fmt.Sprintf("配置错误 %s: %v", e.Field, e.Cause)
	}
	return fmt.Sprintf("配置错误: %v", e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// FetchError 抓取错误 (网络、超时或非2xx响应)
type FetchError struct {
	URL        string
	StatusCode int // 0 表示未收到响应
	Cause      error
}

// Error 实现error接口
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("抓取失败 [%s] HTTP %d: %v", e.URL, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("抓取失败 [%s]: %v", e.URL, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Retryable 403/429以及传输层错误可以重试
func (e *FetchError) Retryable() bool {
	switch e.StatusCode {
	case 0, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return false
}

// EnvironmentError 运行环境错误 (如无头浏览器不可用)
type EnvironmentError struct {
	Reason string
}

// Error 实现error接口
func (e *EnvironmentError) Error() string {
	return "动态爬取不可用: " + e.Reason
}

// ScheduleError 调度错误 (cron表达式无效)
type ScheduleError struct {
	TargetID   int64
	Expression string
	Cause      error
}

// Error 实现error接口
func (e *ScheduleError) Error() string {
	return fmt.Sprintf("目标 #%d 的cron表达式无效 %q: %v", e.TargetID, e.Expression, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ScheduleError) Unwrap() error {
	return e.Cause
}

// ValidationError 头部验证错误
type ValidationError struct {
	HeaderName string
	Reason     string
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	return fmt.Sprintf("头部验证失败 [%s]: %s", e.HeaderName, e.Reason)
}
