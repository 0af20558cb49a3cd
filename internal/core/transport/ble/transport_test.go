package ble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dep2p-ble/config"
	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	blema "github.com/dep2p/go-dep2p-ble/pkg/lib/multiaddr"
	"github.com/dep2p/go-dep2p-ble/pkg/types"
	"github.com/dep2p/go-dep2p-ble/tests/mocks"
)

const testLocalPeer = types.PeerID("12D3KooWLocal")

func testAddr(t *testing.T, s string) ma.Multiaddr {
	t.Helper()
	addr, err := blema.Parse(s)
	require.NoError(t, err)
	return addr
}

// newTestTransport 创建已监听的传输
func newTestTransport(t *testing.T) (*Transport, pkgif.Listener, *mocks.MockTracer) {
	t.Helper()

	r, tracer, _ := newTestRegistry(t)
	tr := NewTransport(testLocalPeer, r, NewConfig())
	t.Cleanup(func() { _ = tr.Close() })

	l, err := tr.Listen(testAddr(t, config.DefaultBLEListenAddr))
	require.NoError(t, err)
	return tr, l, tracer
}

// ============================================================================
//                              Listen
// ============================================================================

func TestTransport_Listen_DefaultAddr(t *testing.T) {
	tr, l, _ := newTestTransport(t)

	want := "/ble/" + uuid.NewSHA1(uuid.Nil, []byte(testLocalPeer)).String()
	assert.Equal(t, want, l.Multiaddr().String())
	assert.Same(t, l, tr.Listener())

	// 只允许一个监听器
	_, err := tr.Listen(testAddr(t, "/ble/other"))
	assert.ErrorIs(t, err, ErrListenerExists)

	t.Log("✅ 默认监听地址替换为 PeerID 派生的 UUID")
}

func TestTransport_Listen_CustomAddr(t *testing.T) {
	tr := NewTransport(testLocalPeer, nil, NewConfig())
	defer tr.Close()

	l, err := tr.Listen(testAddr(t, "/ble/custom"))
	require.NoError(t, err)
	assert.Equal(t, "/ble/custom", l.Multiaddr().String())

	// 关闭后可以重新监听
	require.NoError(t, l.Close())
	assert.Nil(t, tr.Listener())
	_, err = tr.Listen(testAddr(t, "/ble/custom"))
	assert.NoError(t, err)
}

func TestTransport_Listen_InvalidAddr(t *testing.T) {
	tr := NewTransport(testLocalPeer, nil, NewConfig())
	defer tr.Close()

	tcp, err := ma.NewMultiaddr("/ip4/127.0.0.1/tcp/4001")
	require.NoError(t, err)

	_, err = tr.Listen(tcp)
	assert.ErrorIs(t, err, ErrInvalidAddr)
	assert.False(t, tr.CanDial(tcp))
	assert.True(t, tr.CanDial(testAddr(t, "/ble/peer-1")))
}

func TestTransport_Protocols(t *testing.T) {
	tr := NewTransport(testLocalPeer, nil, NewConfig())
	assert.Equal(t, []int{blema.P_BLE}, tr.Protocols())
	assert.False(t, tr.Proxy())
	assert.Equal(t, "BLE", tr.String())
	assert.NotNil(t, tr.Registry())
	assert.Equal(t, testLocalPeer, tr.LocalPeer())
}

// ============================================================================
//                              Dial
// ============================================================================

func TestTransport_Dial(t *testing.T) {
	tr, l, _ := newTestTransport(t)
	dev := registerDevice(t, tr.Registry(), "AA:01", "/ble/peer-1")

	conn, err := tr.Dial(context.Background(), testAddr(t, "/ble/peer-1"), "remote")
	require.NoError(t, err)

	assert.Equal(t, testLocalPeer, conn.LocalPeer())
	assert.Equal(t, types.PeerID("remote"), conn.RemotePeer())
	assert.Equal(t, l.Multiaddr().String(), conn.LocalMultiaddr().String())
	assert.Equal(t, "/ble/peer-1", conn.RemoteMultiaddr().String())
	assert.Equal(t, types.DirOutbound, conn.Stat().Direction)
	assert.Equal(t, 1, tr.ConnCount())

	n, err := conn.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, [][]byte{[]byte("hello")}, dev.Writes())
	assert.Equal(t, int64(5), conn.Stat().BytesOut)

	// 同一远端只能有一个连接
	_, err = tr.Dial(context.Background(), testAddr(t, "/ble/peer-1"), "remote")
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	t.Log("✅ Dial 使用已建立的链路创建连接")
}

func TestTransport_Dial_Errors(t *testing.T) {
	t.Run("NoListener", func(t *testing.T) {
		tr := NewTransport(testLocalPeer, nil, NewConfig())
		defer tr.Close()
		registerDevice(t, tr.Registry(), "AA:01", "/ble/peer-1")

		_, err := tr.Dial(context.Background(), testAddr(t, "/ble/peer-1"), "remote")
		assert.ErrorIs(t, err, ErrNoListener)
	})

	t.Run("NotConnected", func(t *testing.T) {
		tr, _, _ := newTestTransport(t)
		dev := registerDevice(t, tr.Registry(), "AA:01", "/ble/peer-1")
		dev.SetConnected(false)

		_, err := tr.Dial(context.Background(), testAddr(t, "/ble/peer-1"), "remote")
		assert.ErrorIs(t, err, ErrNotConnected)

		_, err = tr.Dial(context.Background(), testAddr(t, "/ble/unknown"), "remote")
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("Canceled", func(t *testing.T) {
		tr, _, _ := newTestTransport(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := tr.Dial(ctx, testAddr(t, "/ble/peer-1"), "remote")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Closed", func(t *testing.T) {
		tr, _, _ := newTestTransport(t)
		require.NoError(t, tr.Close())

		_, err := tr.Dial(context.Background(), testAddr(t, "/ble/peer-1"), "remote")
		assert.ErrorIs(t, err, ErrTransportClosed)
		assert.True(t, tr.IsClosed())
	})
}

// ============================================================================
//                              入站连接
// ============================================================================

func TestTransport_HandlePeerFound(t *testing.T) {
	tr, l, _ := newTestTransport(t)
	registerDevice(t, tr.Registry(), "AA:01", "/ble/peer-1")

	require.True(t, tr.HandlePeerFound("remote", "/ble/peer-1"))
	assert.False(t, tr.HandlePeerFound("remote", "/ble/peer-1"), "连接已存在")
	assert.False(t, tr.HandlePeerFound("remote", "not-a-multiaddr"))

	conn, err := l.Accept()
	require.NoError(t, err)
	assert.Equal(t, types.DirInbound, conn.Stat().Direction)
	assert.Equal(t, "/ble/peer-1", conn.RemoteMultiaddr().String())

	require.NoError(t, tr.ReceiveFromDevice("/ble/peer-1", []byte("hello world")))

	buf := make([]byte, 5)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	rest, err := io.ReadAll(io.LimitReader(conn, 6))
	require.NoError(t, err)
	assert.Equal(t, " world", string(rest))
	assert.Equal(t, int64(11), conn.Stat().BytesIn)

	assert.ErrorIs(t, tr.ReceiveFromDevice("/ble/unknown", []byte("x")), ErrConnClosed)

	t.Log("✅ 入站连接收发数据")
}

func TestTransport_HandlePeerFound_NoListener(t *testing.T) {
	tr := NewTransport(testLocalPeer, nil, NewConfig())
	defer tr.Close()

	assert.False(t, tr.HandlePeerFound("remote", "/ble/peer-1"))
	assert.Equal(t, 0, tr.ConnCount())
}

func TestTransport_HandlePeerFound_Backlog(t *testing.T) {
	cfg := NewConfig()
	cfg.AcceptBacklog = 1
	tr := NewTransport(testLocalPeer, nil, cfg)
	defer tr.Close()

	_, err := tr.Listen(testAddr(t, "/ble/local"))
	require.NoError(t, err)

	assert.True(t, tr.HandlePeerFound("a", "/ble/peer-1"))
	assert.False(t, tr.HandlePeerFound("b", "/ble/peer-2"), "队列已满")
	assert.Equal(t, 1, tr.ConnCount())
}

// ============================================================================
//                              Close
// ============================================================================

func TestConn_Close(t *testing.T) {
	tr, _, _ := newTestTransport(t)
	dev := registerDevice(t, tr.Registry(), "AA:01", "/ble/peer-1")

	conn, err := tr.Dial(context.Background(), testAddr(t, "/ble/peer-1"), "remote")
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.True(t, conn.IsClosed())

	assert.Equal(t, 0, tr.ConnCount())
	assert.False(t, tr.Registry().Contains("AA:01"))
	assert.Equal(t, []string{"libp2p request"}, dev.Disconnects())

	_, err = conn.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrConnClosed)

	_, err = conn.Read(make([]byte, 1))
	assert.Equal(t, io.EOF, err)

	t.Log("✅ 关闭连接断开对应设备")
}

func TestConn_Write_Failed(t *testing.T) {
	tr, _, _ := newTestTransport(t)
	dev := registerDevice(t, tr.Registry(), "AA:01", "/ble/peer-1")
	dev.WriteFunc = func([]byte) (bool, error) { return false, nil }

	conn, err := tr.Dial(context.Background(), testAddr(t, "/ble/peer-1"), "remote")
	require.NoError(t, err)

	_, err = conn.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.Equal(t, int64(0), conn.Stat().BytesOut)
}

func TestConn_ReadUnblocksOnClose(t *testing.T) {
	tr, _, _ := newTestTransport(t)
	registerDevice(t, tr.Registry(), "AA:01", "/ble/peer-1")

	conn, err := tr.Dial(context.Background(), testAddr(t, "/ble/peer-1"), "remote")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := conn.Read(make([]byte, 1))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, conn.Close())

	select {
	case err := <-done:
		assert.Equal(t, io.EOF, err)
	case <-time.After(time.Second):
		t.Fatal("Read 没有在关闭后返回")
	}
}

func TestTransport_Close(t *testing.T) {
	tr, l, tracer := newTestTransport(t)

	withConn := registerDevice(t, tr.Registry(), "AA:01", "/ble/peer-1")
	idle := registerDevice(t, tr.Registry(), "AA:02", "/ble/peer-2")

	_, err := tr.Dial(context.Background(), testAddr(t, "/ble/peer-1"), "remote")
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	assert.Equal(t, 0, tr.ConnCount())
	assert.Equal(t, 0, tr.Registry().Len())

	// 有连接的设备被断开，空闲设备被中断
	assert.Len(t, withConn.Disconnects(), 1)
	assert.Equal(t, 1, withConn.Interrupts())
	assert.Equal(t, 1, idle.Interrupts())

	_, err = l.Accept()
	assert.ErrorIs(t, err, ErrListenerClosed)

	_, err = tr.Listen(testAddr(t, "/ble/local"))
	assert.ErrorIs(t, err, ErrTransportClosed)
	assert.False(t, tr.HandlePeerFound("remote", "/ble/peer-2"))

	assert.Empty(t, tracer.Anomalies())

	t.Log("✅ 关闭传输断开所有设备")
}

func TestListener_ClosePending(t *testing.T) {
	tr, l, _ := newTestTransport(t)
	dev := registerDevice(t, tr.Registry(), "AA:01", "/ble/peer-1")

	require.True(t, tr.HandlePeerFound("remote", "/ble/peer-1"))
	require.NoError(t, l.Close())

	// 未被接受的连接随监听器关闭
	assert.Equal(t, 0, tr.ConnCount())
	assert.Len(t, dev.Disconnects(), 1)

	_, err := l.Accept()
	assert.True(t, errors.Is(err, ErrListenerClosed))
}

func TestListener_CloseRacingEnqueue(t *testing.T) {
	for i := 0; i < 50; i++ {
		cfg := NewConfig()
		cfg.AcceptBacklog = 64
		tr := NewTransport(testLocalPeer, nil, cfg)

		l, err := tr.Listen(testAddr(t, "/ble/local"))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for j := 0; j < 8; j++ {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				tr.HandlePeerFound("remote", fmt.Sprintf("/ble/peer-%d", j))
			}(j)
		}
		require.NoError(t, l.Close())
		wg.Wait()

		// 每个入站连接要么在关闭时被清理，要么被拒绝
		require.Equal(t, 0, tr.ConnCount(), "iteration %d", i)
		require.NoError(t, tr.Close())
	}
}

// ============================================================================
//                              设备侧断开
// ============================================================================

func TestTransport_HandlePeerLost(t *testing.T) {
	tr, l, _ := newTestTransport(t)
	h1 := registerDevice(t, tr.Registry(), "AA:01", "/ble/peer-1")

	require.True(t, tr.HandlePeerFound("remote", "/ble/peer-1"))
	conn, err := l.Accept()
	require.NoError(t, err)

	// 同一逻辑地址上的其他句柄不影响连接
	other := mocks.NewMockBLEDevice("AA:02", "/ble/peer-1")
	assert.False(t, tr.HandlePeerLost(other))
	assert.False(t, tr.HandlePeerLost(nil))
	assert.Equal(t, 1, tr.ConnCount())

	require.True(t, tr.HandlePeerLost(h1))
	assert.True(t, conn.IsClosed())
	assert.Equal(t, 0, tr.ConnCount())

	_, err = conn.Read(make([]byte, 1))
	assert.Equal(t, io.EOF, err)

	// 设备已经自行断开，关闭连接不再经过注册表
	require.NoError(t, conn.Close())
	assert.Empty(t, h1.Disconnects())
	assert.True(t, tr.Registry().Contains("AA:01"))
	assert.False(t, tr.HandlePeerLost(h1))

	t.Log("✅ 设备侧断开关闭对应连接")
}

func TestTransport_HandlePeerFound_ReplacesStaleConn(t *testing.T) {
	tr, l, tracer := newTestTransport(t)
	h1 := registerDevice(t, tr.Registry(), "AA:01", "/ble/peer-1")

	require.True(t, tr.HandlePeerFound("remote", "/ble/peer-1"))
	c1, err := l.Accept()
	require.NoError(t, err)

	// 驱动没有报告 H1 断开，H1 注销后 H2 以同一硬件地址重连
	require.NoError(t, tr.Registry().Unregister(h1))
	h2 := registerDevice(t, tr.Registry(), "AA:01", "/ble/peer-1")

	require.True(t, tr.HandlePeerFound("remote", "/ble/peer-1"))
	c2, err := l.Accept()
	require.NoError(t, err)

	assert.True(t, c1.IsClosed())
	assert.False(t, c2.IsClosed())
	assert.Equal(t, 1, tr.ConnCount())

	// 旧连接的关闭不会断开新句柄
	require.NoError(t, c1.Close())
	assert.Empty(t, h1.Disconnects())
	assert.Empty(t, h2.Disconnects())
	assert.True(t, tr.Registry().Contains("AA:01"))

	_, err = c2.Write([]byte("x"))
	require.NoError(t, err)
	assert.Len(t, h2.Writes(), 1)

	assert.Empty(t, tracer.Anomalies())
}

func TestConn_CloseSkipsReplacedHandle(t *testing.T) {
	tr, l, tracer := newTestTransport(t)
	h1 := registerDevice(t, tr.Registry(), "AA:01", "/ble/peer-1")

	require.True(t, tr.HandlePeerFound("remote", "/ble/peer-1"))
	c1, err := l.Accept()
	require.NoError(t, err)

	// H2 接管逻辑地址，旧连接尚未被替换
	require.NoError(t, tr.Registry().Unregister(h1))
	h2 := registerDevice(t, tr.Registry(), "AA:01", "/ble/peer-1")
	assert.False(t, c1.IsClosed())

	require.NoError(t, c1.Close())
	assert.Empty(t, h1.Disconnects())
	assert.Empty(t, h2.Disconnects())
	assert.Zero(t, h2.Interrupts())
	assert.True(t, tr.Registry().Contains("AA:01"))

	dev, ok := tr.Registry().LookupLogical("/ble/peer-1")
	require.True(t, ok)
	assert.Same(t, h2, dev)

	assert.Empty(t, tracer.Anomalies())
	t.Log("✅ 旧连接关闭不会断开新句柄")
}
