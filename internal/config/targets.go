package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/RecoveryAshes/InsightCrawler/internal/models"
	"github.com/RecoveryAshes/InsightCrawler/internal/utils"
	"github.com/spf13/viper"
)

const (
	// DefaultTargetsFile 默认目标定义文件路径
	DefaultTargetsFile = "configs/targets.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

//go:embed targets_template.yaml
var defaultTargetsTemplate string

// TargetDefinition 目标定义文件中的一项
type TargetDefinition struct {
	Name        string                 `mapstructure:"name"`
	URL         string                 `mapstructure:"url"`
	Description string                 `mapstructure:"description"`
	Cron        string                 `mapstructure:"cron"`
	Enabled     *bool                  `mapstructure:"enabled"`
	CrawlType   string                 `mapstructure:"crawl_type"`
	Selectors   map[string]interface{} `mapstructure:"selectors"`
}

// TargetsFile 目标定义文件
type TargetsFile struct {
	Targets []TargetDefinition `mapstructure:"targets"`
}

// TargetConfigLoader 目标定义文件加载器
// 负责加载、验证并转换为 CrawlTarget
type TargetConfigLoader struct {
	configPath string
}

// NewTargetConfigLoader 创建目标定义加载器
func NewTargetConfigLoader(configPath string) *TargetConfigLoader {
	if configPath == "" {
		configPath = DefaultTargetsFile
	}
	return &TargetConfigLoader{
		configPath: configPath,
	}
}

// Path 文件路径
func (l *TargetConfigLoader) Path() string {
	return l.configPath
}

// EnsureConfigExists 确保文件存在,如不存在则生成模板
func (l *TargetConfigLoader) EnsureConfigExists() error {
	if _, err := os.Stat(l.configPath); os.IsNotExist(err) {
		dir := filepath.Dir(l.configPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
		}

		if err := os.WriteFile(l.configPath, []byte(defaultTargetsTemplate), 0644); err != nil {
			return fmt.Errorf("无法生成目标定义文件 [%s]: %w", l.configPath, err)
		}
		utils.Infof("已生成目标定义模板: %s", l.configPath)
	}
	return nil
}

// ValidateFileSize 验证文件大小是否在限制内
func (l *TargetConfigLoader) ValidateFileSize() error {
	info, err := os.Stat(l.configPath)
	if err != nil {
		return fmt.Errorf("无法读取配置文件信息 [%s]: %w", l.configPath, err)
	}

	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			Source: l.configPath,
			Cause: fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)",
				info.Size(), MaxConfigFileSize),
		}
	}
	return nil
}

// LoadTargets 加载并转换目标定义
// 执行流程:
//  1. 确保文件存在 (不存在则生成模板)
//  2. 验证文件大小
//  3. 使用Viper解析YAML
//  4. 逐项转换并校验
//
// 任意一项无效都会返回错误, 不做部分导入
func (l *TargetConfigLoader) LoadTargets() ([]*models.CrawlTarget, error) {
	if err := l.EnsureConfigExists(); err != nil {
		return nil, err
	}
	if err := l.ValidateFileSize(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(l.configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// 文件被其他进程锁定时视为没有目标
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			utils.Warnf("目标定义文件被锁定 [%s], 跳过导入", l.configPath)
			return nil, nil
		}
		return nil, &models.ConfigError{Source: l.configPath, Cause: err}
	}

	var file TargetsFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, &models.ConfigError{
			Source: l.configPath,
			Cause:  fmt.Errorf("配置绑定失败: %w", err),
		}
	}

	seen := make(map[string]bool, len(file.Targets))
	targets := make([]*models.CrawlTarget, 0, len(file.Targets))
	for i, def := range file.Targets {
		target, err := def.ToTarget()
		if err != nil {
			return nil, &models.ConfigError{
				Source: l.configPath,
				Field:  fmt.Sprintf("targets[%d]", i),
				Cause:  err,
			}
		}
		if seen[target.Name] {
			return nil, &models.ConfigError{
				Source: l.configPath,
				Field:  fmt.Sprintf("targets[%d]", i),
				Cause:  fmt.Errorf("目标名称重复: %s", target.Name),
			}
		}
		seen[target.Name] = true
		targets = append(targets, target)
	}
	return targets, nil
}

// ToTarget 转换为 CrawlTarget, 选择器序列化为JSON文本
func (d TargetDefinition) ToTarget() (*models.CrawlTarget, error) {
	crawlType, err := models.ParseCrawlType(d.CrawlType)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(d.Selectors)
	if err != nil {
		return nil, fmt.Errorf("选择器配置无法序列化: %w", err)
	}
	selectors, err := models.ParseSelectorConfig(string(raw))
	if err != nil {
		return nil, err
	}
	if err := selectors.Validate(); err != nil {
		return nil, err
	}
	// 统一为规范的字段名
	normalized, err := json.Marshal(selectors)
	if err != nil {
		return nil, err
	}

	enabled := true
	if d.Enabled != nil {
		enabled = *d.Enabled
	}

	target := &models.CrawlTarget{
		Name:           strings.TrimSpace(d.Name),
		URL:            strings.TrimSpace(d.URL),
		Description:    d.Description,
		SelectorConfig: string(normalized),
		CronExpression: strings.TrimSpace(d.Cron),
		Enabled:        enabled,
		CrawlType:      crawlType,
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return target, nil
}
