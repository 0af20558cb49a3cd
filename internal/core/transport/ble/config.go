package ble

import (
	"time"

	"github.com/dep2p/go-dep2p-ble/config"
)

// Config BLE 传输配置
type Config struct {
	ListenAddr       string
	DisconnectReason string
	MaxDevices       int
	RecentEvictions  int
	AcceptBacklog    int
	ReadBuffer       int
	ShutdownTimeout  time.Duration
}

// NewConfig 创建默认配置
func NewConfig() Config {
	return ConfigFromUnified(nil)
}

// ConfigFromUnified 从统一配置创建 BLE 传输配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := config.DefaultBLEConfig()
	if cfg != nil {
		c = cfg.BLE
	}
	return Config{
		ListenAddr:       c.ListenAddr,
		DisconnectReason: c.DisconnectReason,
		MaxDevices:       c.MaxDevices,
		RecentEvictions:  c.RecentEvictions,
		AcceptBacklog:    c.AcceptBacklog,
		ReadBuffer:       c.ReadBuffer,
		ShutdownTimeout:  c.ShutdownTimeout.Duration(),
	}
}

// RegistryOptions 返回对应的注册表选项
func (c Config) RegistryOptions() []RegistryOption {
	return []RegistryOption{
		WithMaxDevices(c.MaxDevices),
		WithRecentEvictions(c.RecentEvictions),
		WithDisconnectReason(c.DisconnectReason),
	}
}
