package crawlers

import (
	"context"
	"net/http"

	"github.com/RecoveryAshes/InsightCrawler/internal/models"
)

// Strategy 抓取策略,静态和动态两种实现
// Fetch 从不返回错误,所有失败都体现在 CrawlResult 中
type Strategy interface {
	Type() models.CrawlType
	Fetch(ctx context.Context, target *models.CrawlTarget) *models.CrawlResult
}

// BrowserHeaders 模拟浏览器的默认请求头
func BrowserHeaders(userAgent string) http.Header {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return http.Header{
		"User-Agent":                {userAgent},
		"Accept":                    {"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
		"Accept-Language":           {"en-US,en;q=0.9,ko;q=0.8"},
		"Accept-Encoding":           {"gzip, deflate, br"},
		"Connection":                {"keep-alive"},
		"Upgrade-Insecure-Requests": {"1"},
		"Sec-Ch-Ua":                 {`"Chromium";v="131", "Not_A Brand";v="24", "Google Chrome";v="131"`},
		"Sec-Ch-Ua-Mobile":          {"?0"},
		"Sec-Ch-Ua-Platform":        {`"Windows"`},
		"Sec-Fetch-Dest":            {"document"},
		"Sec-Fetch-Mode":            {"navigate"},
		"Sec-Fetch-Site":            {"none"},
		"Sec-Fetch-User":            {"?1"},
		"Cache-Control":             {"max-age=0"},
		"Referer":                   {"https://www.google.com/"},
	}
}
