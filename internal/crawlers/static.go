package crawlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/InsightCrawler/internal/models"
	"github.com/RecoveryAshes/InsightCrawler/internal/utils"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
)

// StaticStrategy 静态抓取策略
// 通过HTTP获取页面后用选择器提取文章,支持按页码参数翻页
type StaticStrategy struct {
	policy    Policy
	headers   models.HeaderProvider
	extractor *Extractor
	sleep     Sleeper
	transport http.RoundTripper
}

// StaticOption 静态策略选项
type StaticOption func(*StaticStrategy)

// WithStaticSleeper 替换等待函数
func WithStaticSleeper(sleep Sleeper) StaticOption {
	return func(s *StaticStrategy) { s.sleep = sleep }
}

// WithTransport 替换HTTP传输层
func WithTransport(rt http.RoundTripper) StaticOption {
	return func(s *StaticStrategy) { s.transport = rt }
}

// NewStaticStrategy 创建静态抓取策略
// headers 为nil时使用 BrowserHeaders 默认头部
func NewStaticStrategy(policy Policy, headers models.HeaderProvider, extractor *Extractor, opts ...StaticOption) *StaticStrategy {
	if extractor == nil {
		extractor = &Extractor{}
	}
	s := &StaticStrategy{
		policy:    policy,
		headers:   headers,
		extractor: extractor,
		sleep:     SleepContext,
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Type 实现 Strategy 接口
func (s *StaticStrategy) Type() models.CrawlType {
	return models.CrawlTypeStatic
}

// pageResponse 单个页面的响应
type pageResponse struct {
	url         *url.URL
	status      int
	body        []byte
	contentType string
}

// Fetch 抓取目标页面 (以及后续分页) 并提取文章
func (s *StaticStrategy) Fetch(ctx context.Context, target *models.CrawlTarget) (result *models.CrawlResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = models.NewFailureResult(fmt.Sprintf("静态爬取panic: %v", r), time.Since(start))
		}
	}()

	cfg, err := target.Selectors()
	if err != nil {
		return models.NewFailureResult(err.Error(), time.Since(start))
	}
	if err := cfg.Validate(); err != nil {
		utils.Warnf("目标 %s 选择器配置存在缺陷: %v", target, err)
	}

	collector, err := s.newCollector()
	if err != nil {
		return models.NewFailureResult(err.Error(), time.Since(start))
	}

	first, err := s.fetchAndExtract(ctx, collector, target.URL, cfg)
	if err != nil {
		return models.NewFailureResult(err.Error(), time.Since(start))
	}

	articles := first.Articles
	skipped := first.Skipped
	partial := false

	if cfg.PaginationEnabled() {
		for page := 2; page <= cfg.MaxPages(); page++ {
			if err := s.sleep(ctx, s.policy.RequestDelay); err != nil {
				partial = true
				break
			}

			pageURL, err := BuildPageURL(target.URL, cfg.Pagination.PageParamName, page)
			if err != nil {
				utils.Warnf("构建第%d页URL失败: %v", page, err)
				partial = true
				break
			}

			extraction, err := s.fetchAndExtract(ctx, collector, pageURL, cfg)
			if err != nil {
				utils.Warnf("第%d页抓取失败,停止翻页: %v", page, err)
				partial = true
				break
			}
			if len(extraction.Articles) == 0 {
				utils.Debugf("第%d页没有文章,翻页结束", page)
				break
			}

			articles = append(articles, extraction.Articles...)
			skipped += extraction.Skipped
		}
	}

	result = models.NewSuccessResult(articles, time.Since(start))
	result.Partial = partial
	result.SkippedItems = skipped
	utils.Infof("✅ 静态爬取完成: %s, 文章 %d 篇, 跳过 %d 项, 耗时 %dms",
		target, len(articles), skipped, result.DurationMs)
	return result
}

// newCollector 每次爬取新建collector,同一次爬取的分页共享cookie
func (s *StaticStrategy) newCollector() (*colly.Collector, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("创建cookie jar失败: %w", err)
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.SetClient(&http.Client{
		Transport: newDecodingTransport(s.transport),
		Jar:       jar,
	})
	c.SetRequestTimeout(s.policy.Timeout)
	return c, nil
}

// fetchAndExtract 抓取单个页面并提取
func (s *StaticStrategy) fetchAndExtract(ctx context.Context, c *colly.Collector, pageURL string, cfg *models.SelectorConfig) (Extraction, error) {
	resp, err := s.fetchPage(ctx, c, pageURL)
	if err != nil {
		return Extraction{}, err
	}

	doc, err := goquery.NewDocumentFromReader(decodeCharset(resp.body, resp.contentType))
	if err != nil {
		return Extraction{}, fmt.Errorf("解析HTML失败 [%s]: %w", pageURL, err)
	}

	baseURL := pageURL
	if resp.url != nil {
		baseURL = resp.url.String()
	}
	return s.extractor.Extract(NewDocumentNode(doc), cfg, baseURL)
}

// fetchPage 带重试的页面抓取
// 仅 403/429 和传输层错误会重试,等待时间按指数退避
func (s *StaticStrategy) fetchPage(ctx context.Context, c *colly.Collector, pageURL string) (*pageResponse, error) {
	attempts := s.policy.Attempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := s.fetchOnce(c, pageURL)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var fetchErr *models.FetchError
		if !errors.As(err, &fetchErr) || !fetchErr.Retryable() || attempt == attempts {
			break
		}

		wait := s.policy.Backoff(attempt)
		utils.Warnf("抓取失败 (第%d/%d次), %v 后重试: %v", attempt, attempts, wait, err)
		if err := s.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// fetchOnce 发起一次GET请求
func (s *StaticStrategy) fetchOnce(c *colly.Collector, pageURL string) (*pageResponse, error) {
	headers, err := s.requestHeaders()
	if err != nil {
		return nil, fmt.Errorf("获取请求头失败: %w", err)
	}

	// Clone 共享HTTP客户端和cookie,但不共享回调
	pc := c.Clone()

	var (
		resp   *pageResponse
		status int
	)

	pc.OnRequest(func(r *colly.Request) {
		for name, values := range headers {
			r.Headers.Del(name)
			for _, v := range values {
				r.Headers.Add(name, v)
			}
		}
	})

	pc.OnResponse(func(r *colly.Response) {
		resp = &pageResponse{
			url:      r.Request.URL,
			status:   r.StatusCode,
			body:        r.Body,
			contentType: r.Headers.Get("Content-Type"),
		}
	})

	pc.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := pc.Visit(pageURL); err != nil {
		return nil, &models.FetchError{URL: pageURL, StatusCode: status, Cause: err}
	}
	if resp == nil {
		return nil, &models.FetchError{URL: pageURL, Cause: errors.New("未收到响应")}
	}

	utils.Debugf("抓取成功: %s (HTTP %d, %d 字节)", pageURL, resp.status, len(resp.body))
	return resp, nil
}

// decodeCharset 响应头带charset时colly已转为UTF-8,否则按BOM和<meta>声明转码
func decodeCharset(body []byte, contentType string) io.Reader {
	if _, params, err := mime.ParseMediaType(contentType); err == nil && params["charset"] != "" {
		return bytes.NewReader(body)
	}
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		utils.Debugf("识别页面编码失败,按UTF-8解析: %v", err)
		return bytes.NewReader(body)
	}
	return reader
}

func (s *StaticStrategy) requestHeaders() (http.Header, error) {
	if s.headers == nil {
		return BrowserHeaders(DefaultUserAgent), nil
	}
	return s.headers.GetHeaders()
}

// BuildPageURL 在URL上设置(或覆盖)页码参数
func BuildPageURL(baseURL, param string, page int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("无效的URL: %w", err)
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
