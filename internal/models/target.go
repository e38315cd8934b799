package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CrawlType 爬取类型
type CrawlType string

const (
	// CrawlTypeStatic 静态爬取 (HTTP + HTML解析)
	CrawlTypeStatic CrawlType = "static"
	// CrawlTypeDynamic 动态爬取 (无头浏览器渲染)
	CrawlTypeDynamic CrawlType = "dynamic"
)

// ParseCrawlType 解析爬取类型,忽略大小写,空值视为static
func ParseCrawlType(s string) (CrawlType, error) {
	switch CrawlType(strings.ToLower(strings.TrimSpace(s))) {
	case "", CrawlTypeStatic:
		return CrawlTypeStatic, nil
	case CrawlTypeDynamic:
		return CrawlTypeDynamic, nil
	default:
		return "", fmt.Errorf("未知的爬取类型: %q (可选: static|dynamic)", s)
	}
}

// CrawlStatus 最近一次爬取状态
type CrawlStatus string

const (
	StatusSuccess CrawlStatus = "SUCCESS"
	StatusFailed  CrawlStatus = "FAILED"
	StatusPartial CrawlStatus = "PARTIAL"
)

// CrawlTarget 爬取目标
// 由目标定义方持有和修改,爬取核心只读取并回报状态
type CrawlTarget struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	URL            string      `json:"url"`
	Description    string      `json:"description,omitempty"`
	SelectorConfig string      `json:"selectorConfig"` // JSON文本,延迟解析
	CronExpression string      `json:"cronExpression"`
	Enabled        bool        `json:"enabled"`
	CrawlType      CrawlType   `json:"crawlType"`
	LastCrawledAt  *time.Time  `json:"lastCrawledAt,omitempty"`
	LastStatus     CrawlStatus `json:"lastStatus,omitempty"`
}

// Selectors 解析目标的选择器配置
func (t *CrawlTarget) Selectors() (*SelectorConfig, error) {
	cfg, err := ParseSelectorConfig(t.SelectorConfig)
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Source == "" {
		cfgErr.Source = fmt.Sprintf("target#%d", t.ID)
	}
	return cfg, err
}

// Validate 校验目标定义
func (t *CrawlTarget) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("目标名称不能为空")
	}
	if err := ValidateTargetURL(t.URL); err != nil {
		return fmt.Errorf("目标 %s: %w", t.Name, err)
	}
	if strings.TrimSpace(t.CronExpression) == "" {
		return fmt.Errorf("目标 %s: cron表达式不能为空", t.Name)
	}
	if _, err := ParseCrawlType(string(t.CrawlType)); err != nil {
		return fmt.Errorf("目标 %s: %w", t.Name, err)
	}
	return nil
}

// String 日志友好的目标描述
func (t *CrawlTarget) String() string {
	return fmt.Sprintf("%s(#%d, %s)", t.Name, t.ID, t.CrawlType)
}
