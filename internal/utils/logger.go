package utils

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志器
// InitLogger 调用前输出到标准错误
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().
	Timestamp().
	Logger()

// LogConfig 日志配置
type LogConfig struct {
	Level      string // 日志级别: trace, debug, info, warn, error, fatal, panic
	LogDir     string // 日志目录
	MaxSize    int    // 单个日志文件最大大小(MB)
	MaxBackups int    // 保留的旧日志文件数量
	MaxAge     int    // 保留天数
	Compress   bool   // 是否压缩旧日志
}

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

const (
	mainLogName  = "insight_crawler.log"
	errorLogName = "insight_crawler_error.log"
)

// InitLogger 初始化日志系统
// 控制台输出走标准错误, 标准输出留给 --json 等命令结果
func InitLogger(config LogConfig) error {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// 控制台 + 主日志(所有级别) + 错误日志(仅error及以上)
	multiWriter := zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"},
		config.rotatingFile(mainLogName),
		&FilteredWriter{Writer: config.rotatingFile(errorLogName), MinLevel: zerolog.ErrorLevel},
	)

	Logger = zerolog.New(multiWriter).
		With().
		Timestamp().
		Caller().
		Logger()
	log.Logger = Logger

	Logger.Info().
		Str("level", level.String()).
		Str("log_dir", config.LogDir).
		Msg("日志系统初始化完成")
	return nil
}

// rotatingFile 日志目录下按大小轮转的文件
func (c LogConfig) rotatingFile(name string) io.Writer {
	return &lumberjack.Logger{
		Filename:   filepath.Join(c.LogDir, name),
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// FilteredWriter 过滤写入器,仅写入指定级别及以上的日志
type FilteredWriter struct {
	Writer   io.Writer
	MinLevel zerolog.Level
}

// Write 实现io.Writer接口
// 不带级别的写入无法判断级别,直接丢弃
func (w *FilteredWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

// WriteLevel 带级别的写入
func (w *FilteredWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	if level >= w.MinLevel {
		return w.Writer.Write(p)
	}
	return len(p), nil
}

// Info 快捷方法: 信息日志
func Info(msg string) {
	Logger.Info().Msg(msg)
}

// Infof 快捷方法: 格式化信息日志
func Infof(format string, args ...interface{}) {
	Logger.Info().Msgf(format, args...)
}

// Error 快捷方法: 错误日志
func Error(err error, msg string) {
	Logger.Error().Err(err).Msg(msg)
}

// Errorf 快捷方法: 格式化错误日志
func Errorf(format string, args ...interface{}) {
	Logger.Error().Msgf(format, args...)
}

// Warn 快捷方法: 警告日志
func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

// Warnf 快捷方法: 格式化警告日志
func Warnf(format string, args ...interface{}) {
	Logger.Warn().Msgf(format, args...)
}

// Debug 快捷方法: 调试日志
func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

// Debugf 快捷方法: 格式化调试日志
func Debugf(format string, args ...interface{}) {
	Logger.Debug().Msgf(format, args...)
}

// WithTarget 返回带目标字段的子日志器
func WithTarget(targetID int64, targetName string) zerolog.Logger {
	return Logger.With().
		Int64("target_id", targetID).
		Str("target", targetName).
		Logger()
}

// Fatal 快捷方法: 致命错误日志(会导致程序退出)
func Fatal(err error, msg string) {
	Logger.Fatal().Err(err).Msg(msg)
}
