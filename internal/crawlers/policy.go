package crawlers

import (
	"context"
	"time"
)

// DefaultUserAgent 默认User-Agent
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/131.0.0.0 Safari/537.36"

// DefaultUserAgents 轮换使用的User-Agent池
var DefaultUserAgents = []string{
	DefaultUserAgent,
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

// Policy 抓取策略: 超时、重试、请求间隔
type Policy struct {
	Timeout      time.Duration
	RetryCount   int
	RetryDelay   time.Duration
	RequestDelay time.Duration
}

// DefaultPolicy 默认抓取策略
func DefaultPolicy() Policy {
	return Policy{
		Timeout:      10 * time.Second,
		RetryCount:   3,
		RetryDelay:   2 * time.Second,
		RequestDelay: time.Second,
	}
}

// Attempts 总尝试次数,至少为1
func (p Policy) Attempts() int {
	if p.RetryCount < 1 {
		return 1
	}
	return p.RetryCount
}

// Backoff 第attempt次失败后的等待时间: RetryDelay * 2^(attempt-1)
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.RetryDelay <= 0 {
		return 0
	}
	return p.RetryDelay << (attempt - 1)
}

// PickUserAgent 从agents中随机选取一个User-Agent
// intn 返回 [0,n) 内的随机数; agents为空时返回 DefaultUserAgent
func PickUserAgent(agents []string, intn func(n int) int) string {
	if len(agents) == 0 {
		return DefaultUserAgent
	}
	return agents[intn(len(agents))]
}

// Sleeper 可注入的等待函数,测试中可替换为零等待
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext 等待d或ctx结束
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoSleep 不等待,仅检查ctx
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
