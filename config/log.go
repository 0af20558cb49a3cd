package config

import (
	"errors"
	"fmt"
	"strings"
)

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别：debug/info/warn/error
	Level string `json:"level" yaml:"level"`

	// Format 输出格式：text/json
	Format string `json:"format" yaml:"format"`

	// File 日志文件路径，空表示输出到 stderr
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// MaxSizeMB 单个日志文件最大尺寸（MB），超过后轮转
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups 保留的轮转文件数量
	MaxBackups int `json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays 轮转文件保留天数
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     "text",
		MaxSizeMB:  20,
		MaxBackups: 5,
		MaxAgeDays: 7,
	}
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Level)
	}
	switch strings.ToLower(c.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %s", c.Format)
	}
	if c.File != "" && c.MaxSizeMB <= 0 {
		return errors.New("log max size must be positive when writing to file")
	}
	return nil
}
