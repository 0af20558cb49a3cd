package ble

import (
	"sync"

	ma "github.com/multiformats/go-multiaddr"

	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
)

// ============================================================================
//                              Listener 实现
// ============================================================================

// Listener BLE 监听器
//
// 入站连接由原生驱动通过 Transport.HandlePeerFound 投递。
type Listener struct {
	transport *Transport
	addr      ma.Multiaddr

	// mu 使关闭检查与投递、关闭与清空队列各自成为原子操作
	mu      sync.Mutex
	closed  bool
	inbound chan *Conn
	closing chan struct{}
}

// 确保实现接口
var _ pkgif.Listener = (*Listener)(nil)

func newListener(t *Transport, addr ma.Multiaddr, backlog int) *Listener {
	if backlog <= 0 {
		backlog = 1
	}
	return &Listener{
		transport: t,
		addr:      addr,
		inbound:   make(chan *Conn, backlog),
		closing:   make(chan struct{}),
	}
}

// Accept 接受连接，阻塞直到有入站连接或监听器关闭
func (l *Listener) Accept() (pkgif.Connection, error) {
	select {
	case c := <-l.inbound:
		return c, nil
	case <-l.closing:
		return nil, ErrListenerClosed
	}
}

// enqueue 投递入站连接，队列已满或监听器已关闭时返回 false
func (l *Listener) enqueue(c *Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	select {
	case l.inbound <- c:
		return true
	default:
		logger.Warn("入站连接队列已满", "remote", c.remoteAddr.String())
		return false
	}
}

// Close 关闭监听器
//
// 尚未被 Accept 的入站连接会被关闭。
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.closing)

	var pending []*Conn
	for drained := false; !drained; {
		select {
		case c := <-l.inbound:
			pending = append(pending, c)
		default:
			drained = true
		}
	}
	l.mu.Unlock()

	l.transport.clearListener(l)
	for _, c := range pending {
		_ = c.Close()
	}
	return nil
}

// Multiaddr 返回监听地址
func (l *Listener) Multiaddr() ma.Multiaddr {
	return l.addr
}

// IsClosed 检查监听器是否已关闭
func (l *Listener) IsClosed() bool {
	select {
	case <-l.closing:
		return true
	default:
		return false
	}
}
