// Package config 提供统一的配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义，
// 支持从 JSON / YAML 加载。
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.BLE.MaxDevices = 32
//
//	cfg, err := config.LoadFile("ble.yaml")
package config

import "fmt"

// Config 是 dep2p-ble 的完整配置结构
type Config struct {
	// PeerID 本地节点 ID，用于派生默认 BLE 监听地址
	PeerID string `json:"peer_id" yaml:"peer_id"`

	// BLE BLE 传输配置
	BLE BLEConfig `json:"ble" yaml:"ble"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Log 日志配置
	Log LogConfig `json:"log" yaml:"log"`

	// Sim 模拟设备配置
	Sim SimConfig `json:"sim" yaml:"sim"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		BLE:     DefaultBLEConfig(),
		Metrics: DefaultMetricsConfig(),
		Log:     DefaultLogConfig(),
		Sim:     DefaultSimConfig(),
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.BLE.Validate(); err != nil {
		return fmt.Errorf("ble: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Sim.Validate(); err != nil {
		return fmt.Errorf("sim: %w", err)
	}
	return nil
}
