package crawlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/InsightCrawler/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RodConfig 浏览器启动参数
type RodConfig struct {
	Bin               string
	NoSandbox         bool
	NavigationTimeout time.Duration
	UserAgents        []string
	// Intn 选择User-Agent的随机源
	Intn func(n int) int
}

// RodSessionFactory 基于go-rod的会话工厂
// 每个会话独立启动一个浏览器进程,关闭会话时进程一并退出
type RodSessionFactory struct {
	config RodConfig
}

// NewRodSessionFactory 创建会话工厂
func NewRodSessionFactory(config RodConfig) *RodSessionFactory {
	if config.NavigationTimeout <= 0 {
		config.NavigationTimeout = 30 * time.Second
	}
	return &RodSessionFactory{config: config}
}

// closeTimeout 关闭页面和浏览器的时限
const closeTimeout = 5 * time.Second

// NewSession 启动浏览器并打开一个隐身页面
// ctx 结束时浏览器上的所有调用立即返回错误
func (f *RodSessionFactory) NewSession(ctx context.Context) (BrowserSession, error) {
	userAgent := DefaultUserAgent
	if f.config.Intn != nil {
		userAgent = PickUserAgent(f.config.UserAgents, f.config.Intn)
	}

	// 最小资源占用: 不加载图片,关闭后台功能,固定窗口大小
	l := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(f.config.NoSandbox).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding").
		Set("disable-blink-features", "AutomationControlled").
		Set("blink-settings", "imagesEnabled=false").
		Set("window-size", "1920,1080").
		Set("user-agent", userAgent)
	if f.config.Bin != "" {
		l = l.Bin(f.config.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		_ = browser.Close()
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("创建页面失败: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: 1920, Height: 1080}); err != nil {
		utils.Debugf("设置视口失败: %v", err)
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return &rodSession{
		launcher: l,
		browser:  browser,
		page:     page,
		timeout:  f.config.NavigationTimeout,
	}, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration

	closeOnce sync.Once
	closeErr  error
}

func (s *rodSession) Navigate(url string) error {
	return s.page.Timeout(s.timeout).Navigate(url)
}

func (s *rodSession) ReadyState() (string, error) {
	res, err := s.page.Eval(`() => document.readyState`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (s *rodSession) CountElements(selector string) (int, error) {
	res, err := s.page.Eval(`(s) => document.querySelectorAll(s).length`, selector)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (s *rodSession) ScrollHeight() (int, error) {
	res, err := s.page.Eval(`() => document.body ? document.body.scrollHeight : 0`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (s *rodSession) ScrollToBottom() error {
	_, err := s.page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (s *rodSession) ScrollToTop() error {
	_, err := s.page.Eval(`() => window.scrollTo(0, 0)`)
	return err
}

func (s *rodSession) Document() (Node, error) {
	els, err := s.page.Elements("html")
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, errors.New("页面没有html根元素")
	}
	return rodNode{el: els[0]}, nil
}

// Close 关闭页面和浏览器并清理用户目录,可重复调用
// 会话上下文可能已经超时, 关闭使用独立的短时限, 最后无条件杀掉进程
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.page.Context(context.Background()).Timeout(closeTimeout).Close(); err != nil {
			errs = append(errs, fmt.Errorf("关闭页面失败: %w", err))
		}
		if err := s.browser.Context(context.Background()).Timeout(closeTimeout).Close(); err != nil {
			errs = append(errs, fmt.Errorf("关闭浏览器失败: %w", err))
		}
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.closeErr = errors.Join(errs...)
		utils.Debugf("浏览器已关闭")
	})
	return s.closeErr
}

// rodNode 浏览器中的实时元素
// 元素在定位和读取之间可能失效,此时返回错误,由提取逻辑跳过该列表项
type rodNode struct {
	el *rod.Element
}

func (n rodNode) TagName() (string, error) {
	res, err := n.el.Eval(`() => this.tagName`)
	if err != nil {
		return "", err
	}
	return strings.ToLower(res.Value.Str()), nil
}

func (n rodNode) Text() (string, error) {
	return n.el.Text()
}

func (n rodNode) Attr(name string) (string, error) {
	value, err := n.el.Attribute(name)
	if err != nil || value == nil {
		return "", err
	}
	return *value, nil
}

func (n rodNode) First(selector string) (Node, error) {
	els, err := n.el.Elements(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, nil
	}
	return rodNode{el: els[0]}, nil
}

func (n rodNode) All(selector string) ([]Node, error) {
	els, err := n.el.Elements(selector)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(els))
	for _, el := range els {
		nodes = append(nodes, rodNode{el: el})
	}
	return nodes, nil
}
