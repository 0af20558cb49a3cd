package ble

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	ma "github.com/multiformats/go-multiaddr"

	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

// ============================================================================
//                              Conn 实现
// ============================================================================

// Conn BLE 连接
//
// 写入经设备注册表转交给连接句柄；读取来自原生驱动通过
// Transport.ReceiveFromDevice 投递的数据包。
type Conn struct {
	transport  *Transport
	localPeer  types.PeerID
	remotePeer types.PeerID
	localAddr  ma.Multiaddr
	remoteAddr ma.Multiaddr
	direction  types.Direction
	opened     time.Time

	// device 创建连接时逻辑地址对应的句柄，可能为 nil
	device pkgif.BLEDevice

	incoming chan []byte

	// readMu 保护 pending
	readMu  sync.Mutex
	pending []byte

	closing   chan struct{}
	closeOnce sync.Once

	bytesIn  atomic.Int64
	bytesOut atomic.Int64
}

// 确保实现接口
var _ pkgif.Connection = (*Conn)(nil)

func newConn(t *Transport, laddr, raddr ma.Multiaddr, remotePeer types.PeerID, dev pkgif.BLEDevice, dir types.Direction, readBuffer int) *Conn {
	if readBuffer <= 0 {
		readBuffer = 1
	}
	return &Conn{
		transport:  t,
		localPeer:  t.localPeer,
		remotePeer: remotePeer,
		localAddr:  laddr,
		remoteAddr: raddr,
		direction:  dir,
		device:     dev,
		opened:     time.Now(),
		incoming:   make(chan []byte, readBuffer),
		closing:    make(chan struct{}),
	}
}

// Read 读取设备发来的数据
//
// 连接关闭后返回 io.EOF。
func (c *Conn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if len(c.pending) == 0 {
		// 优先读取已缓存的数据
		select {
		case b := <-c.incoming:
			c.pending = b
		default:
			select {
			case b := <-c.incoming:
				c.pending = b
			case <-c.closing:
				return 0, io.EOF
			}
		}
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	c.bytesIn.Add(int64(n))
	return n, nil
}

// Write 通过设备注册表写入数据
func (c *Conn) Write(p []byte) (int, error) {
	if c.IsClosed() {
		return 0, ErrConnClosed
	}

	// 设备可能异步持有数据，不能保留调用方的切片
	payload := append([]byte(nil), p...)
	if !c.transport.registry.Send(c.remoteAddr.String(), payload) {
		return 0, ErrWriteFailed
	}

	c.bytesOut.Add(int64(len(p)))
	return len(p), nil
}

// deliver 投递入站数据，阻塞直到被缓存或连接关闭
func (c *Conn) deliver(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	select {
	case <-c.closing:
		return ErrConnClosed
	default:
	}

	select {
	case c.incoming <- payload:
		return nil
	case <-c.closing:
		return ErrConnClosed
	}
}

// Close 关闭连接并断开对应设备
func (c *Conn) Close() error {
	c.shutdown(true)
	return nil
}

// closeByPeer 设备已经断开时关闭连接，不再通过注册表断开设备
func (c *Conn) closeByPeer() {
	c.shutdown(false)
}

func (c *Conn) shutdown(disconnect bool) {
	c.closeOnce.Do(func() {
		close(c.closing)
		c.transport.removeConn(c)
		if disconnect {
			if c.device != nil {
				c.transport.registry.closeHandle(c.remoteAddr.String(), c.device)
			} else {
				c.transport.registry.CloseConn(c.remoteAddr.String())
			}
		}
		logger.Debug("BLE 连接已关闭", "remote", c.remoteAddr.String(), "direction", c.direction.String(), "byPeer", !disconnect)
	})
}

// IsClosed 检查连接是否已关闭
func (c *Conn) IsClosed() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

// LocalPeer 返回本地节点 ID
func (c *Conn) LocalPeer() types.PeerID {
	return c.localPeer
}

// LocalMultiaddr 返回本地多地址
func (c *Conn) LocalMultiaddr() ma.Multiaddr {
	return c.localAddr
}

// RemotePeer 返回远端节点 ID
func (c *Conn) RemotePeer() types.PeerID {
	return c.remotePeer
}

// RemoteMultiaddr 返回远端多地址
func (c *Conn) RemoteMultiaddr() ma.Multiaddr {
	return c.remoteAddr
}

// Stat 返回连接统计
func (c *Conn) Stat() pkgif.ConnectionStat {
	return pkgif.ConnectionStat{
		Direction: c.direction,
		Opened:    c.opened.Unix(),
		BytesIn:   c.bytesIn.Load(),
		BytesOut:  c.bytesOut.Load(),
	}
}
