package interfaces

import (
	"context"
	"io"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

// Transport 定义传输层接口
//
// BLE 传输无法主动拨号：只能使用原生驱动已经建立的链路。
type Transport interface {
	// Dial 拨号连接到指定地址
	Dial(ctx context.Context, raddr ma.Multiaddr, peerID types.PeerID) (Connection, error)

	// CanDial 检查是否支持拨号到指定地址
	CanDial(addr ma.Multiaddr) bool

	// Listen 在指定地址监听
	Listen(laddr ma.Multiaddr) (Listener, error)

	// Protocols 返回支持的协议编号
	Protocols() []int

	// Proxy 返回该传输是否为代理传输
	Proxy() bool

	// Close 关闭传输
	Close() error
}

// Listener 定义监听器接口
type Listener interface {
	// Accept 接受新连接，阻塞直到有连接或监听器关闭
	Accept() (Connection, error)

	// Close 关闭监听器
	Close() error

	// Multiaddr 返回监听地址
	Multiaddr() ma.Multiaddr
}

// Connection 定义连接接口
type Connection interface {
	io.ReadWriteCloser

	// LocalPeer 返回本地节点 ID
	LocalPeer() types.PeerID

	// LocalMultiaddr 返回本地多地址
	LocalMultiaddr() ma.Multiaddr

	// RemotePeer 返回远端节点 ID
	RemotePeer() types.PeerID

	// RemoteMultiaddr 返回远端多地址
	RemoteMultiaddr() ma.Multiaddr

	// Stat 返回连接统计
	Stat() ConnectionStat

	// IsClosed 检查连接是否已关闭
	IsClosed() bool
}

// ConnectionStat 连接统计信息
type ConnectionStat struct {
	// Direction 连接方向
	Direction types.Direction

	// Opened 连接建立时间戳（Unix 秒）
	Opened int64

	// BytesIn 已读取字节数
	BytesIn int64

	// BytesOut 已写入字节数
	BytesOut int64
}
