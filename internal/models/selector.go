package models

import (
	"encoding/json"
	"errors"
	"strings"
)

// DefaultMaxPages 分页未指定最大页数时的默认值
const DefaultMaxPages = 5

// SelectorConfig 选择器配置
// 描述如何定位文章列表、列表项以及列表项内的各个字段
type SelectorConfig struct {
	ArticleListSelector string            `json:"articleListSelector,omitempty"`
	ArticleItemSelector string            `json:"articleItemSelector"`
	TitleSelector       string            `json:"titleSelector,omitempty"`
	LinkSelector        string            `json:"linkSelector,omitempty"`
	ContentSelector     string            `json:"contentSelector,omitempty"`
	AuthorSelector      string            `json:"authorSelector,omitempty"`
	DateSelector        string            `json:"dateSelector,omitempty"`
	DateFormat          string            `json:"dateFormat,omitempty"`
	ThumbnailSelector   string            `json:"thumbnailSelector,omitempty"`
	Pagination          *PaginationConfig `json:"pagination,omitempty"`
}

// PaginationConfig 分页配置
type PaginationConfig struct {
	Enabled          bool   `json:"enabled"`
	NextPageSelector string `json:"nextPageSelector,omitempty"` // 仅作参考,翻页通过页码参数实现
	PageParamName    string `json:"pageParamName"`
	MaxPages         int    `json:"maxPages"`
}

// ParseSelectorConfig 解析JSON格式的选择器配置
// 空文本或非法JSON返回 *ConfigError
func ParseSelectorConfig(raw string) (*SelectorConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ConfigError{Field: "selectorConfig", Cause: errors.New("选择器配置为空")}
	}

	var cfg SelectorConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, &ConfigError{Field: "selectorConfig", Cause: err}
	}
	return &cfg, nil
}

// Validate 检查配置缺陷
// 缺少列表项选择器不会阻止爬取(结果为空),但调用方应当作配置缺陷报告
func (c *SelectorConfig) Validate() error {
	if strings.TrimSpace(c.ArticleItemSelector) == "" {
		return &ConfigError{Field: "articleItemSelector", Cause: errors.New("未配置列表项选择器,提取结果将为空")}
	}
	if c.PaginationEnabled() && strings.TrimSpace(c.Pagination.PageParamName) == "" {
		return &ConfigError{Field: "pagination.pageParamName", Cause: errors.New("启用分页时必须指定页码参数名")}
	}
	return nil
}

// PaginationEnabled 是否启用分页
func (c *SelectorConfig) PaginationEnabled() bool {
	return c.Pagination != nil && c.Pagination.Enabled && c.Pagination.PageParamName != ""
}

// MaxPages 分页最大页数,未配置时为 DefaultMaxPages
func (c *SelectorConfig) MaxPages() int {
	if c.Pagination == nil || c.Pagination.MaxPages <= 0 {
		return DefaultMaxPages
	}
	return c.Pagination.MaxPages
}
