package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/RecoveryAshes/InsightCrawler/internal/crawlers"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Targets   TargetsConfig   `mapstructure:"targets"`
	Server    ServerConfig    `mapstructure:"server"`
	Report    ReportConfig    `mapstructure:"report"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CrawlerConfig 抓取策略配置
type CrawlerConfig struct {
	Timeout      time.Duration     `mapstructure:"timeout"`
	RetryCount   int               `mapstructure:"retry_count"`
	RetryDelay   time.Duration     `mapstructure:"retry_delay"`
	RequestDelay time.Duration     `mapstructure:"request_delay"`
	UserAgents   []string          `mapstructure:"user_agents"`
	Headers      map[string]string `mapstructure:"headers"`
	DateLocation string            `mapstructure:"date_location"`
}

// BrowserConfig 无头浏览器配置
type BrowserConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Bin               string        `mapstructure:"bin"`
	NoSandbox         bool          `mapstructure:"no_sandbox"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	ReadyTimeout      time.Duration `mapstructure:"ready_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	GracePeriod       time.Duration `mapstructure:"grace_period"`
	ScrollIterations  int           `mapstructure:"scroll_iterations"`
	ScrollPause       time.Duration `mapstructure:"scroll_pause"`
	CrawlTimeout      time.Duration `mapstructure:"crawl_timeout"`
	MinFreeMemoryMB   int           `mapstructure:"min_free_memory_mb"`
	CPULoadThreshold  int           `mapstructure:"cpu_load_threshold"`
	FallbackToStatic  bool          `mapstructure:"fallback_to_static"`
}

// SchedulerConfig 调度配置
type SchedulerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Workers       int    `mapstructure:"workers"`
	Timezone      string `mapstructure:"timezone"`
	SkipIfRunning bool   `mapstructure:"skip_if_running"`
}

// ExecutionConfig 编排执行配置
type ExecutionConfig struct {
	InterTargetDelay time.Duration `mapstructure:"inter_target_delay"`
	RetryCount       int           `mapstructure:"retry_count"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// TargetsConfig 目标定义文件配置
type TargetsConfig struct {
	File        string `mapstructure:"file"`
	SyncOnStart bool   `mapstructure:"sync_on_start"`
}

// ServerConfig 管理接口配置
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ReportConfig 报告配置
type ReportConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// LoadConfig 加载配置文件
// 环境变量 INSIGHT_<SECTION>_<KEY> 覆盖配置文件, CHROME_BIN 覆盖 browser.bin
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".insightcrawler"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix("INSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("browser.bin", "CHROME_BIN", "INSIGHT_BROWSER_BIN"); err != nil {
		return nil, fmt.Errorf("绑定环境变量失败: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在,使用默认值
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.timeout", 10*time.Second)
	v.SetDefault("crawler.retry_count", 3)
	v.SetDefault("crawler.retry_delay", 2*time.Second)
	v.SetDefault("crawler.request_delay", time.Second)
	v.SetDefault("crawler.user_agents", crawlers.DefaultUserAgents)
	v.SetDefault("crawler.headers", map[string]string{})
	v.SetDefault("crawler.date_location", "Local")

	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.ready_timeout", 10*time.Second)
	v.SetDefault("browser.poll_interval", 500*time.Millisecond)
	v.SetDefault("browser.grace_period", 2*time.Second)
	v.SetDefault("browser.scroll_iterations", 3)
	v.SetDefault("browser.scroll_pause", 1500*time.Millisecond)
	v.SetDefault("browser.crawl_timeout", 2*time.Minute)
	v.SetDefault("browser.min_free_memory_mb", 256)
	v.SetDefault("browser.cpu_load_threshold", 95)
	v.SetDefault("browser.fallback_to_static", false)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.workers", 5)
	v.SetDefault("scheduler.timezone", "")
	v.SetDefault("scheduler.skip_if_running", true)

	v.SetDefault("execution.inter_target_delay", 2*time.Second)
	v.SetDefault("execution.retry_count", 2)
	v.SetDefault("execution.retry_delay", time.Minute)

	v.SetDefault("storage.path", "data/insight.db")

	v.SetDefault("targets.file", "configs/targets.yaml")
	v.SetDefault("targets.sync_on_start", true)

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", "127.0.0.1:8080")

	v.SetDefault("report.dir", "reports")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	if c.Crawler.Timeout <= 0 {
		return fmt.Errorf("crawler.timeout 必须大于0")
	}
	if c.Crawler.RetryCount < 0 || c.Execution.RetryCount < 0 {
		return fmt.Errorf("重试次数不能为负数")
	}
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers 至少为1")
	}
	if _, err := c.DateLocation(); err != nil {
		return fmt.Errorf("crawler.date_location 无效: %w", err)
	}
	if _, err := c.SchedulerLocation(); err != nil {
		return fmt.Errorf("scheduler.timezone 无效: %w", err)
	}
	return nil
}

// Policy 抓取策略
func (c *Config) Policy() crawlers.Policy {
	return crawlers.Policy{
		Timeout:      c.Crawler.Timeout,
		RetryCount:   c.Crawler.RetryCount,
		RetryDelay:   c.Crawler.RetryDelay,
		RequestDelay: c.Crawler.RequestDelay,
	}
}

// DynamicConfig 动态爬取参数
func (c *Config) DynamicConfig() crawlers.DynamicConfig {
	cfg := crawlers.DefaultDynamicConfig()
	cfg.BrowserBin = c.Browser.Bin
	cfg.ReadyTimeout = c.Browser.ReadyTimeout
	cfg.PollInterval = c.Browser.PollInterval
	cfg.GracePeriod = c.Browser.GracePeriod
	cfg.ScrollIterations = c.Browser.ScrollIterations
	cfg.ScrollPause = c.Browser.ScrollPause
	cfg.CrawlTimeout = c.Browser.CrawlTimeout
	return cfg
}

// OrchestratorOptions 编排参数
func (c *Config) OrchestratorOptions() OrchestratorOptions {
	return OrchestratorOptions{
		InterTargetDelay: c.Execution.InterTargetDelay,
		RetryCount:       c.Execution.RetryCount,
		RetryDelay:       c.Execution.RetryDelay,
		FallbackToStatic: c.Browser.FallbackToStatic,
		SkipIfRunning:    c.Scheduler.SkipIfRunning,
	}
}

// DateLocation 日期解析时区
func (c *Config) DateLocation() (*time.Location, error) {
	return loadLocation(c.Crawler.DateLocation)
}

// SchedulerLocation cron时区
func (c *Config) SchedulerLocation() (*time.Location, error) {
	return loadLocation(c.Scheduler.Timezone)
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
