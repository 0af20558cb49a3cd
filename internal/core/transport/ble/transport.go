package ble

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/multierr"

	"github.com/dep2p/go-dep2p-ble/config"
	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	blema "github.com/dep2p/go-dep2p-ble/pkg/lib/multiaddr"
	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport BLE 传输层实现
//
// BLE 无法真正拨号：原生驱动会自动连接附近的设备，Dial 只能使用已经
// 建立并完成识别的链路。传输持有设备注册表，关闭时断开所有设备。
type Transport struct {
	localPeer types.PeerID
	registry  *Registry
	config    Config

	// mu 保护 listener 和 conns
	mu       sync.Mutex
	listener *Listener
	conns    map[string]*Conn // 远端逻辑地址 → 连接

	closed atomic.Bool
}

// 确保实现接口
var _ pkgif.Transport = (*Transport)(nil)

// NewTransport 创建 BLE 传输层
func NewTransport(localPeer types.PeerID, registry *Registry, cfg Config) *Transport {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Transport{
		localPeer: localPeer,
		registry:  registry,
		config:    cfg,
		conns:     make(map[string]*Conn),
	}
}

// Registry 返回传输持有的设备注册表
func (t *Transport) Registry() *Registry {
	return t.registry
}

// Listener 返回当前监听器，未监听时返回 nil
func (t *Transport) Listener() *Listener {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listener
}

// LocalPeer 返回本地节点 ID
func (t *Transport) LocalPeer() types.PeerID {
	return t.localPeer
}

// Dial 使用已建立的 BLE 链路创建出站连接
func (t *Transport) Dial(ctx context.Context, raddr ma.Multiaddr, remotePeer types.PeerID) (pkgif.Connection, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 原生驱动在创建监听器时初始化，没有监听器就无法拨号
	t.mu.Lock()
	l := t.listener
	t.mu.Unlock()
	if l == nil {
		return nil, fmt.Errorf("transport dialing peer failed: %w", ErrNoListener)
	}

	if _, err := blema.BLEValue(raddr); err != nil {
		return nil, fmt.Errorf("transport dialing peer failed: %w: %w", ErrInvalidAddr, err)
	}

	if !t.registry.Dial(raddr.String()) {
		return nil, fmt.Errorf("transport dialing peer failed: %w", ErrNotConnected)
	}

	c, err := t.addConn(l.Multiaddr(), raddr, remotePeer, t.registry.handle(raddr.String()), types.DirOutbound)
	if err != nil {
		return nil, fmt.Errorf("transport dialing peer failed: %w", err)
	}

	logger.Info("BLE 出站连接已建立", "remote", raddr.String(), "peer", remotePeer.ShortString())
	return c, nil
}

// CanDial 检查是否可以拨号到指定地址
func (t *Transport) CanDial(addr ma.Multiaddr) bool {
	return !t.closed.Load() && blema.IsBLE(addr)
}

// Listen 在指定地址监听
//
// BLE 只允许一个监听器。默认监听地址会被替换为由本地 PeerID 派生的
// 确定性 UUID（v5）。
func (t *Transport) Listen(laddr ma.Multiaddr) (pkgif.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if _, err := blema.BLEValue(laddr); err != nil {
		return nil, fmt.Errorf("transport listen failed: %w: %w", ErrInvalidAddr, err)
	}

	if laddr.String() == config.DefaultBLEListenAddr {
		if err := t.localPeer.Validate(); err != nil {
			logger.Warn("本地节点 ID 无效，默认监听地址不唯一", "error", err)
		}
		id := uuid.NewSHA1(uuid.Nil, []byte(t.localPeer)).String()
		bound, err := blema.NewBLE(id)
		if err != nil {
			return nil, fmt.Errorf("transport listen failed: %w", err)
		}
		laddr = bound
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listener != nil {
		return nil, fmt.Errorf("transport listen failed: %w", ErrListenerExists)
	}

	l := newListener(t, laddr, t.config.AcceptBacklog)
	t.listener = l

	logger.Info("BLE 监听器已创建", "addr", laddr.String())
	return l, nil
}

// Protocols 返回支持的协议编号
func (t *Transport) Protocols() []int {
	return []int{blema.P_BLE}
}

// Proxy BLE 是直连传输
func (t *Transport) Proxy() bool {
	return false
}

func (t *Transport) String() string {
	return "BLE"
}

// Close 关闭传输层
//
// 关闭监听器和所有连接，然后断开注册表中的所有设备。
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.mu.Lock()
	l := t.listener
	conns := make([]*Conn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	var err error
	if l != nil {
		err = multierr.Append(err, l.Close())
	}
	for _, c := range conns {
		err = multierr.Append(err, c.Close())
	}

	removed := t.registry.ShutdownAll()
	logger.Info("BLE 传输已关闭", "conns", len(conns), "devices", removed)
	return err
}

// IsClosed 检查是否已关闭
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

// ============================================================================
//                              原生驱动回调
// ============================================================================

// HandlePeerFound 原生驱动识别出新设备时调用，为其创建入站连接
//
// 没有监听器、地址无效、连接已存在或监听器队列已满时返回 false。
func (t *Transport) HandlePeerFound(remotePeer types.PeerID, logical string) bool {
	if t.closed.Load() {
		return false
	}

	t.mu.Lock()
	l := t.listener
	t.mu.Unlock()
	if l == nil {
		logger.Warn("发现设备但没有监听器", "logical", logical)
		return false
	}

	raddr, err := blema.Parse(logical)
	if err != nil {
		logger.Warn("发现设备但地址无效", "logical", logical, "error", err)
		return false
	}

	c, err := t.addConn(l.Multiaddr(), raddr, remotePeer, t.registry.handle(raddr.String()), types.DirInbound)
	if err != nil {
		logger.Debug("入站连接未创建", "logical", logical, "error", err)
		return false
	}

	if !l.enqueue(c) {
		t.removeConn(c)
		return false
	}
	return true
}

// HandlePeerLost 原生驱动在设备自行断开（链路丢失、驱动退出）时调用
//
// 关闭该设备对应的连接：读取返回 io.EOF，连接从连接表移除，但不会再
// 通过注册表断开设备。连接属于同一逻辑地址上的另一个句柄（重连）时
// 保持不变。返回是否关闭了连接。
func (t *Transport) HandlePeerLost(dev pkgif.BLEDevice) bool {
	if dev == nil {
		return false
	}
	logical := dev.LogicalAddr()
	if logical == "" {
		return false
	}

	t.mu.Lock()
	c, ok := t.conns[logical]
	if ok && c.device != nil && c.device != dev {
		ok = false
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	c.closeByPeer()
	logger.Info("设备已断开，关闭连接", "remote", logical, "addr", dev.HardwareAddr())
	return true
}

// ReceiveFromDevice 原生驱动收到设备数据时调用，转交给对应连接
//
// 阻塞直到连接读取数据或连接关闭。没有对应连接时返回 ErrConnClosed。
func (t *Transport) ReceiveFromDevice(logical string, payload []byte) error {
	t.mu.Lock()
	c, ok := t.conns[logical]
	t.mu.Unlock()

	if !ok {
		logger.Debug("收到数据但没有对应连接", "logical", logical, "length", len(payload))
		t.registry.trace(types.DeviceEvent{Op: types.DeviceOpReceive, LogicalAddr: logical, Outcome: types.OutcomeNotConnected, Err: ErrConnClosed, Size: len(payload), Tracked: t.registry.Len()})
		return ErrConnClosed
	}

	if err := c.deliver(payload); err != nil {
		t.registry.trace(types.DeviceEvent{Op: types.DeviceOpReceive, LogicalAddr: logical, Outcome: types.OutcomeNotConnected, Err: err, Size: len(payload), Tracked: t.registry.Len()})
		return err
	}
	t.registry.trace(types.DeviceEvent{Op: types.DeviceOpReceive, LogicalAddr: logical, Outcome: types.OutcomeOK, Size: len(payload), Tracked: t.registry.Len()})
	return nil
}

// ============================================================================
//                              连接表
// ============================================================================

// addConn 创建并记录连接，同一远端地址只能有一个连接
//
// 已有连接属于一个已被新句柄取代的旧句柄时（驱动没有报告断开），
// 旧连接按设备断开处理并被替换。
func (t *Transport) addConn(laddr, raddr ma.Multiaddr, remotePeer types.PeerID, dev pkgif.BLEDevice, dir types.Direction) (*Conn, error) {
	key := raddr.String()

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	stale, ok := t.conns[key]
	if ok && (dev == nil || stale.device == nil || stale.device == dev) {
		t.mu.Unlock()
		return nil, ErrAlreadyConnected
	}

	c := newConn(t, laddr, raddr, remotePeer, dev, dir, t.config.ReadBuffer)
	t.conns[key] = c
	t.mu.Unlock()

	if stale != nil {
		logger.Warn("替换旧句柄遗留的连接", "remote", key)
		stale.closeByPeer()
	}
	return c, nil
}

// removeConn 移除连接记录（仅当记录仍指向该连接）
func (t *Transport) removeConn(c *Conn) {
	key := c.remoteAddr.String()

	t.mu.Lock()
	if cur, ok := t.conns[key]; ok && cur == c {
		delete(t.conns, key)
	}
	t.mu.Unlock()
}

// clearListener 清除监听器记录
func (t *Transport) clearListener(l *Listener) {
	t.mu.Lock()
	if t.listener == l {
		t.listener = nil
	}
	t.mu.Unlock()
}

// ConnCount 返回连接数量
func (t *Transport) ConnCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}
