// Package log 提供 dep2p-ble 统一日志接口
//
// 基于 Go 标准库 log/slog 封装，各组件通过 Logger(component) 获取带组件名的
// 懒加载 logger，运行时切换输出目标后立即生效。
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// SetDefault 设置默认 logger
func SetDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// New 创建文本格式 logger
func New(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewJSON 创建 JSON 格式 logger
func NewJSON(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetOutputWithLevel 同时设置日志输出目标、级别和格式
//
// format 为 "json" 时输出 JSON，其余情况输出文本。
//
// 示例：
//
//	w := &lumberjack.Logger{Filename: "logs/ble.log", MaxSize: 10}
//	log.SetOutputWithLevel(w, log.LevelDebug, "text")
func SetOutputWithLevel(w io.Writer, level slog.Level, format string) {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		slog.SetDefault(NewJSON(w, opts))
		return
	}
	slog.SetDefault(New(w, opts))
}

// ParseLevel 解析日志级别字符串（debug/info/warn/error）
//
// 无法识别时返回 LevelInfo 和 false。
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时都从 slog.Default() 获取最新的 handler。
//
//	var logger = log.Logger("core/transport/ble")
//	logger.Info("设备已注册", "addr", addr)
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) base() *slog.Logger {
	return slog.Default().With("component", l.component)
}

// Component 返回组件名
func (l *LazyLogger) Component() string {
	return l.component
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.base().Debug(msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.base().Info(msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.base().Warn(msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.base().Error(msg, args...)
}

// Log 以指定级别输出日志
func (l *LazyLogger) Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	l.base().Log(ctx, level, msg, args...)
}

// Enabled 判断指定级别是否会输出
func (l *LazyLogger) Enabled(level slog.Level) bool {
	return slog.Default().Enabled(context.Background(), level)
}

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.base().With(args...)
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

func init() {
	slog.SetDefault(New(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
