package blesim

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

// Central 模拟扫描并连接附近设备的中心角色
type Central struct {
	registrar Registrar
	handler   PeerHandler
	opts      Options

	mu      sync.Mutex
	devices []*Device
}

// NewCentral 创建模拟中心
func NewCentral(registrar Registrar, handler PeerHandler, opts Options) *Central {
	return &Central{
		registrar: registrar,
		handler:   handler,
		opts:      opts,
	}
}

// NewMAC 生成随机的本地管理单播 MAC 地址
func NewMAC() string {
	b := uuid.New()
	// 本地管理位置 1，组播位清零
	b[0] = (b[0] | 0x02) &^ 0x01
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}

// NewPeerID 生成模拟节点 ID
func NewPeerID() types.PeerID {
	return types.PeerID("sim-" + uuid.NewString())
}

// Spawn 创建 n 个新设备，设备尚未运行
func (c *Central) Spawn(n int) []*Device {
	devs := make([]*Device, 0, n)
	for i := 0; i < n; i++ {
		devs = append(devs, NewDevice(NewMAC(), NewPeerID(), c.registrar, c.handler, c.opts))
	}

	c.mu.Lock()
	c.devices = append(c.devices, devs...)
	c.mu.Unlock()
	return devs
}

// Run 并发运行设备，直到全部退出
//
// 单个设备失败不会影响其他设备，返回第一个错误。
func (c *Central) Run(ctx context.Context, devs []*Device) error {
	var g errgroup.Group
	for _, d := range devs {
		d := d
		g.Go(func() error {
			if err := d.Run(ctx); err != nil {
				logger.Warn("模拟设备退出", "addr", d.HardwareAddr(), "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Devices 返回所有创建过的设备
func (c *Central) Devices() []*Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Device(nil), c.devices...)
}

// Reconnect 模拟同一硬件地址的设备重连
//
// 返回的新句柄与 old 共享硬件地址和节点 ID，需要调用方运行。
func (c *Central) Reconnect(old *Device) *Device {
	d := NewDevice(old.HardwareAddr(), old.Peer(), c.registrar, c.handler, c.opts)

	c.mu.Lock()
	c.devices = append(c.devices, d)
	c.mu.Unlock()
	return d
}
