package crawlers

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/models"
	"github.com/RecoveryAshes/InsightCrawler/internal/utils"
)

// Node 可查询的DOM节点
// 静态爬取基于goquery实现,动态爬取基于浏览器中的实时元素实现
type Node interface {
	TagName() (string, error)
	Text() (string, error)
	Attr(name string) (string, error)
	// First 返回第一个匹配的子孙节点,无匹配时返回nil
	First(selector string) (Node, error)
	All(selector string) ([]Node, error)
}

// Extraction 一次列表提取的结果
type Extraction struct {
	Articles []models.ArticleCandidate
	Skipped  int
}

// Extractor 按选择器配置从页面中提取候选文章
type Extractor struct {
	// Location 无时区日期的解析时区
	Location *time.Location
}

// Extract 从root中提取所有列表项
// 单个列表项失败只会计入Skipped,不影响其余列表项; 只有定位列表项本身失败时才返回错误
func (e *Extractor) Extract(root Node, cfg *models.SelectorConfig, baseURL string) (Extraction, error) {
	out := Extraction{Articles: []models.ArticleCandidate{}}

	if strings.TrimSpace(cfg.ArticleItemSelector) == "" {
		utils.Warn("未配置列表项选择器,跳过提取")
		return out, nil
	}

	scope := root
	if cfg.ArticleListSelector != "" {
		container, err := root.First(cfg.ArticleListSelector)
		if err != nil {
			return out, fmt.Errorf("定位列表容器失败: %w", err)
		}
		if container == nil {
			utils.Warnf("未找到列表容器: %s", cfg.ArticleListSelector)
			return out, nil
		}
		scope = container
	}

	items, err := scope.All(cfg.ArticleItemSelector)
	if err != nil {
		return out, fmt.Errorf("定位列表项失败: %w", err)
	}
	utils.Debugf("选择器 '%s' 匹配到 %d 个列表项", cfg.ArticleItemSelector, len(items))

	base, _ := url.Parse(baseURL)
	for i, item := range items {
		article, err := e.extractItem(item, cfg, base)
		if err != nil {
			out.Skipped++
			utils.Debugf("跳过第 %d 个列表项: %v", i+1, err)
			continue
		}
		out.Articles = append(out.Articles, article)
	}

	return out, nil
}

// extractItem 在单个列表项内解析各字段,panic 视为该项失败
func (e *Extractor) extractItem(item Node, cfg *models.SelectorConfig, base *url.URL) (article models.ArticleCandidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("列表项解析panic: %v", r)
		}
	}()

	tag, err := item.TagName()
	if err != nil {
		return article, err
	}
	isAnchor := strings.EqualFold(tag, "a")

	title, err := fieldText(item, cfg.TitleSelector)
	if err != nil {
		return article, err
	}
	if title == "" && isAnchor {
		text, err := item.Text()
		if err != nil {
			return article, err
		}
		title = firstLine(text)
	}

	var href string
	if isAnchor {
		href, err = item.Attr("href")
	} else {
		href, err = fieldAttr(item, cfg.LinkSelector, "href")
	}
	if err != nil {
		return article, err
	}
	link := resolveURL(base, href)

	if title == "" && link == "" {
		return article, fmt.Errorf("标题和链接均为空")
	}

	article.Title = title
	article.URL = link

	// 以下字段均可缺失
	if article.Content, err = fieldText(item, cfg.ContentSelector); err != nil {
		return article, err
	}
	if article.Author, err = fieldText(item, cfg.AuthorSelector); err != nil {
		return article, err
	}

	if cfg.DateSelector != "" {
		raw, err := fieldText(item, cfg.DateSelector)
		if err != nil {
			return article, err
		}
		if raw != "" {
			article.PublishedAt = ParseDate(raw, cfg.DateFormat, e.Location)
			if article.PublishedAt == nil {
				utils.Debugf("无法解析日期: %q (格式: %q)", raw, cfg.DateFormat)
			}
		}
	}

	if cfg.ThumbnailSelector != "" {
		src, err := fieldAttr(item, cfg.ThumbnailSelector, "src")
		if err != nil {
			return article, err
		}
		if src == "" {
			if src, err = fieldAttr(item, cfg.ThumbnailSelector, "data-src"); err != nil {
				return article, err
			}
		}
		article.ThumbnailURL = resolveURL(base, src)
	}

	return article, nil
}

func fieldText(item Node, selector string) (string, error) {
	if selector == "" {
		return "", nil
	}
	node, err := item.First(selector)
	if err != nil || node == nil {
		return "", err
	}
	text, err := node.Text()
	return strings.TrimSpace(text), err
}

func fieldAttr(item Node, selector, attr string) (string, error) {
	if selector == "" {
		return "", nil
	}
	node, err := item.First(selector)
	if err != nil || node == nil {
		return "", err
	}
	value, err := node.Attr(attr)
	return strings.TrimSpace(value), err
}

// firstLine 截取第一个换行前的内容
func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// resolveURL 将相对地址解析为绝对地址
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || href == "#" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
