package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

// Reporter 提供记录和检索流量统计的方法
type Reporter interface {
	// LogSent 记录发送给设备的字节数
	LogSent(size int64, logical string)

	// LogRecv 记录从设备接收的字节数
	LogRecv(size int64, logical string)

	// GetBandwidthForDevice 获取设备流量统计
	GetBandwidthForDevice(logical string) Stats

	// GetBandwidthTotals 获取总流量统计
	GetBandwidthTotals() Stats

	// GetBandwidthByDevice 获取所有设备流量统计
	GetBandwidthByDevice() map[string]Stats

	// RemoveDevice 移除设备统计
	RemoveDevice(logical string)

	// Reset 重置所有统计
	Reset()
}

// 确保 TrafficCounter 实现接口
var (
	_ Reporter           = (*TrafficCounter)(nil)
	_ pkgif.DeviceTracer = (*TrafficCounter)(nil)
)

// deviceTraffic 单个设备的计数器
type deviceTraffic struct {
	in      atomic.Int64
	out     atomic.Int64
	inRate  *RateMeter
	outRate *RateMeter
}

// TrafficCounter 流量计数器
//
// 跟踪通过 BLE 设备发送和接收的数据。全局计数器使用原子操作，
// 按设备计数器由 mu 保护。
type TrafficCounter struct {
	clock clock.Clock

	totalIn      atomic.Int64
	totalOut     atomic.Int64
	totalInRate  *RateMeter
	totalOutRate *RateMeter

	mu      sync.RWMutex
	devices map[string]*deviceTraffic
}

// NewTrafficCounter 创建流量计数器
func NewTrafficCounter() *TrafficCounter {
	return NewTrafficCounterWithClock(clock.New())
}

// NewTrafficCounterWithClock 使用指定时钟创建流量计数器
func NewTrafficCounterWithClock(clk clock.Clock) *TrafficCounter {
	if clk == nil {
		clk = clock.New()
	}
	return &TrafficCounter{
		clock:        clk,
		totalInRate:  NewRateMeter(clk),
		totalOutRate: NewRateMeter(clk),
		devices:      make(map[string]*deviceTraffic),
	}
}

// Trace 实现 DeviceTracer：成功的 send / receive 计入流量，
// 设备移除后清理其统计
func (tc *TrafficCounter) Trace(evt types.DeviceEvent) {
	switch evt.Op {
	case types.DeviceOpSend:
		if evt.OK() {
			tc.LogSent(int64(evt.Size), evt.LogicalAddr)
		}
	case types.DeviceOpReceive:
		if evt.OK() {
			tc.LogRecv(int64(evt.Size), evt.LogicalAddr)
		}
	case types.DeviceOpClose, types.DeviceOpShutdown, types.DeviceOpUnregister:
		if evt.OK() && evt.LogicalAddr != "" {
			tc.RemoveDevice(evt.LogicalAddr)
		}
	}
}

// LogSent 记录发送给设备的字节数
func (tc *TrafficCounter) LogSent(size int64, logical string) {
	tc.totalOut.Add(size)
	tc.totalOutRate.Add(size)

	d := tc.device(logical)
	d.out.Add(size)
	d.outRate.Add(size)
}

// LogRecv 记录从设备接收的字节数
func (tc *TrafficCounter) LogRecv(size int64, logical string) {
	tc.totalIn.Add(size)
	tc.totalInRate.Add(size)

	d := tc.device(logical)
	d.in.Add(size)
	d.inRate.Add(size)
}

// device 获取或创建设备计数器
func (tc *TrafficCounter) device(logical string) *deviceTraffic {
	tc.mu.RLock()
	d := tc.devices[logical]
	tc.mu.RUnlock()
	if d != nil {
		return d
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()
	if d = tc.devices[logical]; d == nil {
		d = &deviceTraffic{
			inRate:  NewRateMeter(tc.clock),
			outRate: NewRateMeter(tc.clock),
		}
		tc.devices[logical] = d
	}
	return d
}

// GetBandwidthForDevice 返回设备流量统计
func (tc *TrafficCounter) GetBandwidthForDevice(logical string) Stats {
	tc.mu.RLock()
	d := tc.devices[logical]
	tc.mu.RUnlock()

	if d == nil {
		return Stats{}
	}
	return d.stats()
}

// GetBandwidthTotals 返回总流量统计
func (tc *TrafficCounter) GetBandwidthTotals() Stats {
	return Stats{
		TotalIn:  tc.totalIn.Load(),
		TotalOut: tc.totalOut.Load(),
		RateIn:   tc.totalInRate.Rate(),
		RateOut:  tc.totalOutRate.Rate(),
	}
}

// GetBandwidthByDevice 返回所有设备流量统计
func (tc *TrafficCounter) GetBandwidthByDevice() map[string]Stats {
	tc.mu.RLock()
	devices := make(map[string]*deviceTraffic, len(tc.devices))
	for k, v := range tc.devices {
		devices[k] = v
	}
	tc.mu.RUnlock()

	out := make(map[string]Stats, len(devices))
	for k, d := range devices {
		out[k] = d.stats()
	}
	return out
}

// RemoveDevice 移除设备统计，全局统计不受影响
func (tc *TrafficCounter) RemoveDevice(logical string) {
	tc.mu.Lock()
	delete(tc.devices, logical)
	tc.mu.Unlock()
}

// Reset 重置所有统计
func (tc *TrafficCounter) Reset() {
	tc.totalIn.Store(0)
	tc.totalOut.Store(0)
	tc.totalInRate.Reset()
	tc.totalOutRate.Reset()

	tc.mu.Lock()
	tc.devices = make(map[string]*deviceTraffic)
	tc.mu.Unlock()
}

func (d *deviceTraffic) stats() Stats {
	return Stats{
		TotalIn:  d.in.Load(),
		TotalOut: d.out.Load(),
		RateIn:   d.inRate.Rate(),
		RateOut:  d.outRate.Rate(),
	}
}
