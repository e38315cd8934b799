package core

import (
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/crawlers"
	"github.com/RecoveryAshes/InsightCrawler/internal/models"
	"github.com/RecoveryAshes/InsightCrawler/internal/utils"
)

// HeaderManager 管理HTTP请求头部
// 实现 HeaderProvider 接口, 每次请求轮换User-Agent
type HeaderManager struct {
	// config 配置文件中的自定义头部
	config http.Header

	// cli 命令行传递的头部
	cli http.Header

	// userAgents User-Agent池
	userAgents []string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewHeaderManager 创建头部管理器
// 参数:
//   - configHeaders: 配置文件 crawler.headers
//   - cliHeaders: 命令行 -H 参数
//   - userAgents: User-Agent池, 为空时使用内置池
//
// 返回:
//   - *HeaderManager: 头部管理器实例
//   - error: 头部解析或校验失败
func NewHeaderManager(configHeaders map[string]string, cliHeaders []string, userAgents []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		config:     make(http.Header),
		userAgents: userAgents,
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x1f)),
	}
	if len(hm.userAgents) == 0 {
		hm.userAgents = crawlers.DefaultUserAgents
	}

	for name, value := range configHeaders {
		hm.config.Set(name, value)
	}
	if err := utils.ValidateHeaders(hm.config); err != nil {
		utils.Errorf("配置文件头部验证失败: %v", err)
		return nil, err
	}

	cli, err := models.CliHeaders(cliHeaders).Parse()
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateHeaders(cli); err != nil {
		utils.Errorf("命令行头部验证失败: %v", err)
		return nil, err
	}
	hm.cli = cli

	if len(hm.config)+len(hm.cli) > 0 {
		utils.Debugf("自定义HTTP头部: %s", hm.SafeHeaders())
	}
	return hm, nil
}

// WithSource 替换随机源
func (hm *HeaderManager) WithSource(src rand.Source) *HeaderManager {
	hm.mu.Lock()
	hm.rng = rand.New(src)
	hm.mu.Unlock()
	return hm
}

// Intn 并发安全的随机数
func (hm *HeaderManager) Intn(n int) int {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return hm.rng.IntN(n)
}

// NextUserAgent 从池中随机选择一个User-Agent
func (hm *HeaderManager) NextUserAgent() string {
	return crawlers.PickUserAgent(hm.userAgents, hm.Intn)
}

// GetHeaders 实现 HeaderProvider 接口
// 合并优先级: 浏览器默认 < 配置文件 < 命令行
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	result := crawlers.BrowserHeaders(hm.NextUserAgent())

	for name, values := range hm.config {
		result[name] = append([]string(nil), values...)
	}
	for name, values := range hm.cli {
		result[name] = append([]string(nil), values...)
	}
	return result, nil
}

// SafeHeaders 脱敏后的自定义头部 (用于日志)
func (hm *HeaderManager) SafeHeaders() string {
	merged := make(http.Header)
	for name, values := range hm.config {
		merged[name] = values
	}
	for name, values := range hm.cli {
		merged[name] = values
	}
	return utils.RedactHeaders(merged)
}
