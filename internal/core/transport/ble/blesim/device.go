package blesim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	blema "github.com/dep2p/go-dep2p-ble/pkg/lib/multiaddr"
	"github.com/dep2p/go-dep2p-ble/pkg/lib/log"
	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

var logger = log.Logger("core/transport/ble/blesim")

var (
	// ErrInterrupted 进行中的操作被 Interrupt 取消
	ErrInterrupted = errors.New("blesim: operation interrupted")

	// ErrNotIdentified 设备尚未完成识别
	ErrNotIdentified = errors.New("blesim: device not identified")
)

// Registrar 设备注册表中驱动使用的部分
type Registrar interface {
	Register(dev pkgif.BLEDevice) error
	Unregister(dev pkgif.BLEDevice) error
	Identify(dev pkgif.BLEDevice) error
}

// PeerHandler 传输层回调
type PeerHandler interface {
	HandlePeerFound(remotePeer types.PeerID, logical string) bool
	ReceiveFromDevice(logical string, payload []byte) error
	HandlePeerLost(dev pkgif.BLEDevice) bool
}

// Options 模拟参数
type Options struct {
	// LinkDelay 链路建立耗时
	LinkDelay time.Duration
	// IdentifyDelay 识别握手耗时
	IdentifyDelay time.Duration
	// WriteLatency 每次写入耗时
	WriteLatency time.Duration
	// Clock 时钟，默认真实时钟
	Clock clock.Clock
	// OnWrite 写入成功后回调，在写入方的 goroutine 中调用
	OnWrite func(d *Device, payload []byte)
}

// ============================================================================
//                              Device 实现
// ============================================================================

// Device 模拟的 BLE 连接句柄
type Device struct {
	hwAddr    string
	peer      types.PeerID
	registrar Registrar
	handler   PeerHandler
	opts      Options

	state      atomic.Int32
	identified atomic.Bool

	mu      sync.Mutex
	logical string
	ops     map[uint64]context.CancelFunc // 进行中的操作
	nextOp  uint64
	reason  string

	disconnected   chan struct{}
	disconnectOnce sync.Once

	interrupts atomic.Int64
	writes     atomic.Int64
}

// 确保实现接口
var _ pkgif.BLEDevice = (*Device)(nil)

// NewDevice 创建模拟设备
//
// handler 可以为 nil，此时识别完成后不会通知传输层。
func NewDevice(hwAddr string, peer types.PeerID, registrar Registrar, handler PeerHandler, opts Options) *Device {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Device{
		hwAddr:       hwAddr,
		peer:         peer,
		registrar:    registrar,
		handler:      handler,
		opts:         opts,
		ops:          make(map[uint64]context.CancelFunc),
		disconnected: make(chan struct{}),
	}
}

// LogicalAddrFor 返回节点对应的逻辑地址
//
// 与 BLE 传输在默认监听地址上派生的地址一致。
func LogicalAddrFor(peer types.PeerID) string {
	return blema.FormatBLE(uuid.NewSHA1(uuid.Nil, []byte(peer)).String())
}

// Run 运行设备 worker
//
// 注册设备、建立链路、完成识别并通知传输层，然后保持连接直到 ctx 取消
// 或设备被断开。返回前通知传输层设备已断开，并注销设备。
func (d *Device) Run(ctx context.Context) error {
	if err := d.registrar.Register(d); err != nil {
		return fmt.Errorf("register %s: %w", d.hwAddr, err)
	}
	defer func() {
		d.identified.Store(false)
		d.state.Store(int32(types.LinkDisconnected))
		if d.handler != nil && d.LogicalAddr() != "" {
			d.handler.HandlePeerLost(d)
		}
		if uerr := d.registrar.Unregister(d); uerr != nil {
			logger.Warn("注销设备失败", "addr", d.hwAddr, "error", uerr)
		}
		logger.Debug("设备 worker 退出", "addr", d.hwAddr, "reason", d.DisconnectReason())
	}()

	d.state.Store(int32(types.LinkConnecting))
	if err := d.sleep(ctx, d.opts.LinkDelay); err != nil {
		return d.exitErr(ctx, err)
	}
	d.state.Store(int32(types.LinkConnected))

	if err := d.sleep(ctx, d.opts.IdentifyDelay); err != nil {
		return d.exitErr(ctx, err)
	}

	logical := LogicalAddrFor(d.peer)
	d.mu.Lock()
	d.logical = logical
	d.mu.Unlock()
	d.identified.Store(true)

	if err := d.registrar.Identify(d); err != nil {
		return fmt.Errorf("identify %s: %w", d.hwAddr, err)
	}
	logger.Debug("设备已识别", "addr", d.hwAddr, "logical", logical, "peer", d.peer.ShortString())

	if d.handler != nil && !d.handler.HandlePeerFound(d.peer, logical) {
		logger.Debug("传输层未接受设备", "logical", logical)
	}

	select {
	case <-ctx.Done():
	case <-d.disconnected:
	}
	return nil
}

// exitErr 区分正常退出和被中断
func (d *Device) exitErr(ctx context.Context, err error) error {
	select {
	case <-d.disconnected:
		return nil
	default:
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// beginOp 开始一个可以被 Interrupt 取消的操作
func (d *Device) beginOp(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	d.mu.Lock()
	d.nextOp++
	id := d.nextOp
	d.ops[id] = cancel
	d.mu.Unlock()

	return ctx, func() {
		d.mu.Lock()
		delete(d.ops, id)
		d.mu.Unlock()
		cancel()
	}
}

// sleep 等待 delay，可被 ctx、Interrupt 或 Disconnect 打断
func (d *Device) sleep(parent context.Context, delay time.Duration) error {
	ctx, done := d.beginOp(parent)
	defer done()

	if delay <= 0 {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		return nil
	}

	timer := d.opts.Clock.Timer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ErrInterrupted
	case <-d.disconnected:
		return ErrInterrupted
	}
}

// ============================================================================
//                              BLEDevice 接口
// ============================================================================

// HardwareAddr 返回硬件地址
func (d *Device) HardwareAddr() string {
	return d.hwAddr
}

// LogicalAddr 返回逻辑地址，识别前为空
func (d *Device) LogicalAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logical
}

// IsLinkConnected 链路是否已连接
func (d *Device) IsLinkConnected() bool {
	return d.State() == types.LinkConnected
}

// IsIdentified 是否已完成识别
func (d *Device) IsIdentified() bool {
	return d.identified.Load()
}

// Interrupt 取消所有进行中的操作
func (d *Device) Interrupt() {
	d.interrupts.Add(1)

	d.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(d.ops))
	for _, cancel := range d.ops {
		cancels = append(cancels, cancel)
	}
	d.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Write 模拟写入，耗时 WriteLatency
func (d *Device) Write(payload []byte) (bool, error) {
	if d.State() != types.LinkConnected {
		return false, nil
	}
	if !d.IsIdentified() {
		return false, ErrNotIdentified
	}

	if err := d.sleep(context.Background(), d.opts.WriteLatency); err != nil {
		return false, err
	}

	d.writes.Add(1)
	if d.opts.OnWrite != nil {
		d.opts.OnWrite(d, payload)
	}
	return true, nil
}

// Disconnect 请求断开，worker 随后退出并注销设备
func (d *Device) Disconnect(reason string) {
	d.disconnectOnce.Do(func() {
		d.mu.Lock()
		d.reason = reason
		d.mu.Unlock()

		d.state.Store(int32(types.LinkDisconnecting))
		close(d.disconnected)
		logger.Debug("设备断开", "addr", d.hwAddr, "reason", reason)
	})
}

// ============================================================================
//                              模拟辅助
// ============================================================================

// Deliver 模拟远端发来数据，转交给传输层
func (d *Device) Deliver(payload []byte) error {
	if d.handler == nil {
		return nil
	}
	logical := d.LogicalAddr()
	if logical == "" {
		return ErrNotIdentified
	}
	return d.handler.ReceiveFromDevice(logical, payload)
}

// Peer 返回远端节点 ID
func (d *Device) Peer() types.PeerID {
	return d.peer
}

// State 返回链路状态
func (d *Device) State() types.LinkState {
	return types.LinkState(d.state.Load())
}

// DisconnectReason 返回断开原因，未断开时为空
func (d *Device) DisconnectReason() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reason
}

// Disconnected 返回断开通知通道
func (d *Device) Disconnected() <-chan struct{} {
	return d.disconnected
}

// Interrupts 返回 Interrupt 调用次数
func (d *Device) Interrupts() int64 {
	return d.interrupts.Load()
}

// Writes 返回成功写入次数
func (d *Device) Writes() int64 {
	return d.writes.Load()
}
