package crawlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/models"
	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

const itemSelectorJSON = `{"articleListSelector":"ul.list","articleItemSelector":"li","titleSelector":"a","linkSelector":"a"%s}`

func listPage(prefix string, n int) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="list">`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<li><a href="/%s/%d">%s 文章 %d</a></li>`, prefix, i, prefix, i)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

// pageServer 记录每个页码被请求的次数
type pageServer struct {
	mu       sync.Mutex
	requests map[string]int
	headers  http.Header
	handler  func(w http.ResponseWriter, page string, count int)
}

func newPageServer(t *testing.T, handler func(w http.ResponseWriter, page string, count int)) (*httptest.Server, *pageServer) {
	ps := &pageServer{requests: map[string]int{}, handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		ps.mu.Lock()
		ps.requests[page]++
		count := ps.requests[page]
		ps.headers = r.Header.Clone()
		ps.mu.Unlock()
		ps.handler(w, page, count)
	}))
	t.Cleanup(srv.Close)
	return srv, ps
}

func (ps *pageServer) count(page string) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.requests[page]
}

func testPolicy() Policy {
	return Policy{Timeout: 5 * time.Second, RetryCount: 3}
}

func newTestStatic() *StaticStrategy {
	return NewStaticStrategy(testPolicy(), nil, &Extractor{}, WithStaticSleeper(NoSleep))
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func TestStaticStrategy_SinglePage(t *testing.T) {
	srv, ps := newPageServer(t, func(w http.ResponseWriter, page string, _ int) {
		writeHTML(w, listPage("news", 3))
	})

	target := &models.CrawlTarget{ID: 1, Name: "news", URL: srv.URL + "/list",
		SelectorConfig: fmt.Sprintf(itemSelectorJSON, "")}

	result := newTestStatic().Fetch(context.Background(), target)

	require.True(t, result.Success, result.ErrorMessage)
	assert.Empty(t, result.ErrorMessage)
	require.Len(t, result.Articles, 3)
	assert.Equal(t, "news 文章 1", result.Articles[0].Title)
	assert.Equal(t, srv.URL+"/news/1", result.Articles[0].URL)

	assert.NotEmpty(t, ps.headers.Get("User-Agent"))
	assert.Equal(t, "en-US,en;q=0.9,ko;q=0.8", ps.headers.Get("Accept-Language"))
	assert.Equal(t, "gzip, deflate, br", ps.headers.Get("Accept-Encoding"))
}

func TestStaticStrategy_PaginationStopsOnEmptyPage(t *testing.T) {
	srv, ps := newPageServer(t, func(w http.ResponseWriter, page string, _ int) {
		switch page {
		case "", "1":
			writeHTML(w, listPage("p1", 5))
		default:
			writeHTML(w, listPage("p"+page, 0))
		}
	})

	target := &models.CrawlTarget{ID: 2, Name: "paged", URL: srv.URL + "/list",
		SelectorConfig: fmt.Sprintf(itemSelectorJSON, `,"pagination":{"enabled":true,"pageParamName":"page","maxPages":5}`)}

	result := newTestStatic().Fetch(context.Background(), target)

	require.True(t, result.Success, result.ErrorMessage)
	assert.Len(t, result.Articles, 5)
	assert.False(t, result.Partial)
	assert.Equal(t, 1, ps.count("2"))
	assert.Equal(t, 0, ps.count("3"), "第2页为空后不应请求第3页")
}

func TestStaticStrategy_PaginationRespectsMaxPages(t *testing.T) {
	srv, ps := newPageServer(t, func(w http.ResponseWriter, page string, _ int) {
		writeHTML(w, listPage("p"+page, 2))
	})

	target := &models.CrawlTarget{ID: 3, Name: "paged", URL: srv.URL + "/list?cat=tech",
		SelectorConfig: fmt.Sprintf(itemSelectorJSON, `,"pagination":{"enabled":true,"pageParamName":"page","maxPages":3}`)}

	result := newTestStatic().Fetch(context.Background(), target)

	require.True(t, result.Success, result.ErrorMessage)
	assert.Len(t, result.Articles, 6)
	assert.Equal(t, 0, ps.count("4"))
}

func TestStaticStrategy_LaterPageErrorKeepsArticles(t *testing.T) {
	srv, _ := newPageServer(t, func(w http.ResponseWriter, page string, _ int) {
		if page == "2" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeHTML(w, listPage("p1", 4))
	})

	target := &models.CrawlTarget{ID: 4, Name: "flaky", URL: srv.URL,
		SelectorConfig: fmt.Sprintf(itemSelectorJSON, `,"pagination":{"enabled":true,"pageParamName":"page","maxPages":5}`)}

	result := newTestStatic().Fetch(context.Background(), target)

	require.True(t, result.Success)
	assert.Empty(t, result.ErrorMessage)
	assert.Len(t, result.Articles, 4)
	assert.True(t, result.Partial)
}

func TestStaticStrategy_FirstPageFailure(t *testing.T) {
	srv, ps := newPageServer(t, func(w http.ResponseWriter, page string, _ int) {
		http.NotFound(w, nil)
	})

	target := &models.CrawlTarget{ID: 5, Name: "gone", URL: srv.URL,
		SelectorConfig: fmt.Sprintf(itemSelectorJSON, "")}

	result := newTestStatic().Fetch(context.Background(), target)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.ErrorMessage)
	assert.Empty(t, result.Articles)
	assert.Equal(t, 1, ps.count(""), "404不应重试")
}

func TestStaticStrategy_RetriesTooManyRequests(t *testing.T) {
	srv, ps := newPageServer(t, func(w http.ResponseWriter, page string, count int) {
		if count == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeHTML(w, listPage("ok", 2))
	})

	var waits []string
	s := NewStaticStrategy(Policy{Timeout: 5 * time.Second, RetryCount: 3, RetryDelay: time.Second}, nil, &Extractor{},
		WithStaticSleeper(func(ctx context.Context, d time.Duration) error {
			waits = append(waits, d.String())
			return nil
		}))

	target := &models.CrawlTarget{ID: 6, Name: "limited", URL: srv.URL,
		SelectorConfig: fmt.Sprintf(itemSelectorJSON, "")}

	result := s.Fetch(context.Background(), target)

	require.True(t, result.Success, result.ErrorMessage)
	assert.Len(t, result.Articles, 2)
	assert.Equal(t, 2, ps.count(""))
	assert.Equal(t, []string{"1s"}, waits)
}

func TestStaticStrategy_ConfigErrorMakesNoRequest(t *testing.T) {
	srv, ps := newPageServer(t, func(w http.ResponseWriter, page string, _ int) {
		writeHTML(w, listPage("x", 1))
	})

	for _, raw := range []string{"", "{not json"} {
		target := &models.CrawlTarget{ID: 7, Name: "broken", URL: srv.URL, SelectorConfig: raw}
		result := newTestStatic().Fetch(context.Background(), target)

		assert.False(t, result.Success)
		assert.Contains(t, result.ErrorMessage, "配置错误")
	}
	assert.Equal(t, 0, ps.count(""))
}

func TestStaticStrategy_ZeroItemsIsSuccess(t *testing.T) {
	srv, _ := newPageServer(t, func(w http.ResponseWriter, page string, _ int) {
		writeHTML(w, `<html><body><p>nothing here</p></body></html>`)
	})

	target := &models.CrawlTarget{ID: 8, Name: "empty", URL: srv.URL,
		SelectorConfig: fmt.Sprintf(itemSelectorJSON, "")}

	result := newTestStatic().Fetch(context.Background(), target)

	assert.True(t, result.Success)
	assert.Empty(t, result.ErrorMessage)
	assert.Empty(t, result.Articles)
}

func TestStaticStrategy_BrotliResponse(t *testing.T) {
	var compressed bytes.Buffer
	bw := brotli.NewWriter(&compressed)
	_, _ = bw.Write([]byte(listPage("br", 2)))
	require.NoError(t, bw.Close())

	srv, _ := newPageServer(t, func(w http.ResponseWriter, page string, _ int) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(compressed.Bytes())
	})

	target := &models.CrawlTarget{ID: 9, Name: "br", URL: srv.URL,
		SelectorConfig: fmt.Sprintf(itemSelectorJSON, "")}

	result := newTestStatic().Fetch(context.Background(), target)

	require.True(t, result.Success, result.ErrorMessage)
	assert.Len(t, result.Articles, 2)
}

// eucKRPage 生成EUC-KR编码的列表页, meta为true时在<head>中声明编码
func eucKRPage(t *testing.T, meta bool) []byte {
	head := ""
	if meta {
		head = `<head><meta charset="euc-kr"></head>`
	}
	page := `<html>` + head + `<body><ul class="list"><li><a href="/ai/1">인공지능 뉴스</a></li></ul></body></html>`
	encoded, err := korean.EUCKR.NewEncoder().String(page)
	require.NoError(t, err)
	return []byte(encoded)
}

func TestStaticStrategy_BrotliWithHeaderCharset(t *testing.T) {
	var compressed bytes.Buffer
	bw := brotli.NewWriter(&compressed)
	_, _ = bw.Write(eucKRPage(t, false))
	require.NoError(t, bw.Close())

	srv, _ := newPageServer(t, func(w http.ResponseWriter, page string, _ int) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(compressed.Bytes())
	})

	target := &models.CrawlTarget{ID: 11, Name: "euckr-br", URL: srv.URL,
		SelectorConfig: fmt.Sprintf(itemSelectorJSON, "")}
	result := newTestStatic().Fetch(context.Background(), target)

	require.True(t, result.Success, result.ErrorMessage)
	require.Len(t, result.Articles, 1)
	assert.Equal(t, "인공지능 뉴스", result.Articles[0].Title)
	assert.Equal(t, srv.URL+"/ai/1", result.Articles[0].URL)
}

func TestStaticStrategy_MetaCharset(t *testing.T) {
	srv, _ := newPageServer(t, func(w http.ResponseWriter, page string, _ int) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(eucKRPage(t, true))
	})

	target := &models.CrawlTarget{ID: 12, Name: "euckr-meta", URL: srv.URL,
		SelectorConfig: fmt.Sprintf(itemSelectorJSON, "")}
	result := newTestStatic().Fetch(context.Background(), target)

	require.True(t, result.Success, result.ErrorMessage)
	require.Len(t, result.Articles, 1)
	assert.Equal(t, "인공지능 뉴스", result.Articles[0].Title)
}

// fixedHeaders 固定的头部提供者
type fixedHeaders http.Header

func (h fixedHeaders) GetHeaders() (http.Header, error) { return http.Header(h).Clone(), nil }

func TestStaticStrategy_UsesHeaderProvider(t *testing.T) {
	srv, ps := newPageServer(t, func(w http.ResponseWriter, page string, _ int) {
		writeHTML(w, listPage("h", 1))
	})

	headers := BrowserHeaders("InsightCrawlerTest/1.0")
	headers.Set("X-Trace", "abc")
	s := NewStaticStrategy(testPolicy(), fixedHeaders(headers), &Extractor{}, WithStaticSleeper(NoSleep))

	target := &models.CrawlTarget{ID: 10, Name: "hdr", URL: srv.URL,
		SelectorConfig: fmt.Sprintf(itemSelectorJSON, "")}
	result := s.Fetch(context.Background(), target)

	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, "InsightCrawlerTest/1.0", ps.headers.Get("User-Agent"))
	assert.Equal(t, "abc", ps.headers.Get("X-Trace"))
}

func TestBuildPageURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://a.example.com/list", "https://a.example.com/list?page=3"},
		{"https://a.example.com/list?cat=it", "https://a.example.com/list?cat=it&page=3"},
		{"https://a.example.com/list?page=1", "https://a.example.com/list?page=3"},
	}

	for _, tt := range tests {
		got, err := BuildPageURL(tt.base, "page", 3)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
