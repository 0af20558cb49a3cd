package config

import (
	"errors"
	"time"
)

// SimConfig 模拟设备配置
//
// 仅命令行演示和测试使用，用模拟链路代替真实的原生驱动。
type SimConfig struct {
	// Peers 模拟的附近设备数量
	Peers int `json:"peers" yaml:"peers"`

	// LinkDelay 链路从 connecting 到 connected 的耗时
	LinkDelay Duration `json:"link_delay" yaml:"link_delay"`

	// IdentifyDelay 链路建立后完成识别握手的耗时
	IdentifyDelay Duration `json:"identify_delay" yaml:"identify_delay"`

	// WriteLatency 每次写入的模拟耗时
	WriteLatency Duration `json:"write_latency" yaml:"write_latency"`
}

// DefaultSimConfig 返回默认模拟配置
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Peers:         3,
		LinkDelay:     Duration(50 * time.Millisecond),
		IdentifyDelay: Duration(100 * time.Millisecond),
		WriteLatency:  Duration(5 * time.Millisecond),
	}
}

// Validate 验证模拟配置
func (c SimConfig) Validate() error {
	if c.Peers < 0 {
		return errors.New("sim peers must not be negative")
	}
	if c.LinkDelay < 0 || c.IdentifyDelay < 0 || c.WriteLatency < 0 {
		return errors.New("sim delays must not be negative")
	}
	return nil
}
