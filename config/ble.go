package config

import (
	"errors"
	"strings"
	"time"
)

// DefaultBLEListenAddr 默认监听地址
//
// 监听时会被替换为由本地 PeerID 派生的确定性 UUID。
const DefaultBLEListenAddr = "/ble/00000000-0000-0000-0000-000000000000"

// BLEConfig BLE 传输配置
type BLEConfig struct {
	// Enable 是否启用 BLE 传输
	Enable bool `json:"enable" yaml:"enable"`

	// ListenAddr 监听地址，格式 /ble/<id>
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`

	// DisconnectReason 关闭连接时传给设备的断开原因
	DisconnectReason string `json:"disconnect_reason" yaml:"disconnect_reason"`

	// MaxDevices 同时跟踪的设备上限，0 表示不限制
	MaxDevices int `json:"max_devices" yaml:"max_devices"`

	// RecentEvictions 记住最近被注册表主动移除的设备数量
	//
	// 设备随后从断开回调里调用 Unregister 时不会被当作异常。
	RecentEvictions int `json:"recent_evictions" yaml:"recent_evictions"`

	// AcceptBacklog 监听器等待 Accept 的入站连接队列长度
	AcceptBacklog int `json:"accept_backlog" yaml:"accept_backlog"`

	// ReadBuffer 每个连接缓存的入站数据包数量
	ReadBuffer int `json:"read_buffer" yaml:"read_buffer"`

	// ShutdownTimeout 传输关闭时等待 fx OnStop 的超时
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DefaultBLEConfig 返回默认 BLE 配置
func DefaultBLEConfig() BLEConfig {
	return BLEConfig{
		Enable:           true,
		ListenAddr:       DefaultBLEListenAddr,
		DisconnectReason: "libp2p request",
		MaxDevices:       0,                         // 不限制：附近可见设备通常只有几十个
		RecentEvictions:  128,                       // 足够覆盖一次 ShutdownAll 的所有迟到注销
		AcceptBacklog:    16,                        // 入站连接队列
		ReadBuffer:       64,                        // 每连接 64 个数据包
		ShutdownTimeout:  Duration(5 * time.Second), // 关闭超时：5 秒
	}
}

// Validate 验证 BLE 配置
func (c BLEConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	if !strings.HasPrefix(c.ListenAddr, "/ble/") || len(c.ListenAddr) == len("/ble/") {
		return errors.New("ble listen addr must be /ble/<id>")
	}
	if c.MaxDevices < 0 {
		return errors.New("ble max devices must not be negative")
	}
	if c.RecentEvictions <= 0 {
		return errors.New("ble recent evictions must be positive")
	}
	if c.AcceptBacklog <= 0 {
		return errors.New("ble accept backlog must be positive")
	}
	if c.ReadBuffer <= 0 {
		return errors.New("ble read buffer must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("ble shutdown timeout must be positive")
	}
	return nil
}

// WithMaxDevices 设置设备上限
func (c BLEConfig) WithMaxDevices(n int) BLEConfig {
	c.MaxDevices = n
	return c
}

// WithListenAddr 设置监听地址
func (c BLEConfig) WithListenAddr(addr string) BLEConfig {
	c.ListenAddr = addr
	return c
}
