package config

import (
	"errors"
	"regexp"
)

var metricNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enable 是否启用 Prometheus 指标
	Enable bool `json:"enable" yaml:"enable"`

	// Namespace 指标命名空间
	Namespace string `json:"namespace" yaml:"namespace"`

	// ListenAddr 指标 HTTP 端点地址，空表示不暴露
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enable:    true,
		Namespace: "dep2p",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	if !metricNamePattern.MatchString(c.Namespace) {
		return errors.New("metrics namespace must be a valid prometheus name")
	}
	return nil
}
