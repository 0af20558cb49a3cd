package ble

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dep2p-ble/pkg/types"
	"github.com/dep2p/go-dep2p-ble/tests/mocks"
)

// ============================================================================
//                              Dial
// ============================================================================

func TestRegistry_Dial(t *testing.T) {
	r, tracer, _ := newTestRegistry(t)

	assert.False(t, r.Dial("/ble/peer-1"), "未知设备")

	dev := registerDevice(t, r, "AA:01", "/ble/peer-1")
	assert.True(t, r.Dial("/ble/peer-1"))

	dev.SetConnected(false)
	assert.False(t, r.Dial("/ble/peer-1"), "链路未连接")

	assert.Len(t, tracer.Find(types.DeviceOpDial, types.OutcomeNotFound), 1)
	assert.Len(t, tracer.Find(types.DeviceOpDial, types.OutcomeOK), 1)
	assert.Len(t, tracer.Find(types.DeviceOpDial, types.OutcomeNotConnected), 1)

	// Dial 不会触发任何句柄操作
	assert.Empty(t, dev.Writes())
	assert.Equal(t, 0, dev.Interrupts())

	t.Log("✅ Dial 只报告链路状态")
}

// ============================================================================
//                              Send
// ============================================================================

func TestRegistry_Send(t *testing.T) {
	r, tracer, _ := newTestRegistry(t)

	dev := registerDevice(t, r, "AA:01", "/ble/peer-1")
	require.True(t, r.Send("/ble/peer-1", []byte("hello")))

	writes := dev.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, []byte("hello"), writes[0])

	ok := tracer.Find(types.DeviceOpSend, types.OutcomeOK)
	require.Len(t, ok, 1)
	assert.Equal(t, 5, ok[0].Size)
}

func TestRegistry_Send_Unknown(t *testing.T) {
	r, tracer, _ := newTestRegistry(t)

	assert.False(t, r.Send("/ble/peer-1", []byte("x")))
	assert.Len(t, tracer.Find(types.DeviceOpSend, types.OutcomeNotFound), 1)
}

func TestRegistry_Send_NotIdentified(t *testing.T) {
	r, tracer, _ := newTestRegistry(t)

	dev := registerDevice(t, r, "AA:01", "/ble/peer-1")
	dev.SetIdentified(false)

	assert.False(t, r.Send("/ble/peer-1", []byte("x")))
	assert.Empty(t, dev.Writes(), "未识别的设备不能写入")
	assert.Len(t, tracer.Find(types.DeviceOpSend, types.OutcomeNotReady), 1)

	t.Log("✅ 未完成识别的设备拒绝写入")
}

func TestRegistry_Send_DeviceFailure(t *testing.T) {
	t.Run("WriteFailed", func(t *testing.T) {
		r, tracer, _ := newTestRegistry(t)
		dev := registerDevice(t, r, "AA:01", "/ble/peer-1")
		dev.WriteFunc = func([]byte) (bool, error) { return false, nil }

		assert.False(t, r.Send("/ble/peer-1", []byte("x")))
		assert.Len(t, tracer.Find(types.DeviceOpSend, types.OutcomeWriteFailed), 1)
	})

	t.Run("Interrupted", func(t *testing.T) {
		r, tracer, _ := newTestRegistry(t)
		dev := registerDevice(t, r, "AA:01", "/ble/peer-1")
		dev.WriteFunc = func([]byte) (bool, error) { return false, errors.New("gatt busy") }

		assert.False(t, r.Send("/ble/peer-1", []byte("x")))

		events := tracer.Find(types.DeviceOpSend, types.OutcomeInterrupted)
		require.Len(t, events, 1)
		assert.ErrorIs(t, events[0].Err, ErrLinkInterrupted)
	})

	t.Run("Panic", func(t *testing.T) {
		r, tracer, _ := newTestRegistry(t)
		dev := registerDevice(t, r, "AA:01", "/ble/peer-1")
		dev.WriteFunc = func([]byte) (bool, error) { panic("link lost") }

		assert.False(t, r.Send("/ble/peer-1", []byte("x")))
		assert.Len(t, tracer.Find(types.DeviceOpSend, types.OutcomeInterrupted), 1)

		// 注册表仍然可用
		assert.True(t, r.Contains("AA:01"))
		assert.True(t, r.Dial("/ble/peer-1"))
	})

	t.Log("✅ 写入失败、中断和 panic 都转换为 false")
}

// ============================================================================
//                              CloseConn
// ============================================================================

func TestRegistry_CloseConn(t *testing.T) {
	r, tracer, _ := newTestRegistry(t)

	dev := registerDevice(t, r, "AA:01", "/ble/peer-1")
	r.CloseConn("/ble/peer-1")

	assert.False(t, r.Contains("AA:01"))
	assert.Equal(t, 1, dev.Interrupts())
	assert.Equal(t, []string{"libp2p request"}, dev.Disconnects())
	assert.Len(t, tracer.Find(types.DeviceOpClose, types.OutcomeOK), 1)

	// 断开回调里的迟到注销是预期内的
	require.NoError(t, r.Unregister(dev))
	assert.Len(t, tracer.Find(types.DeviceOpUnregister, types.OutcomeEvicted), 1)
	assert.Empty(t, tracer.Anomalies())

	t.Log("✅ CloseConn 先移除再断开")
}

func TestRegistry_CloseConn_ReentrantUnregister(t *testing.T) {
	r, tracer, _ := newTestRegistry(t)

	dev := registerDevice(t, r, "AA:01", "/ble/peer-1")

	var unregErr error
	dev.DisconnectFunc = func(string) {
		// 断开回调同步重入注册表
		unregErr = r.Unregister(dev)
	}

	r.CloseConn("/ble/peer-1")

	assert.NoError(t, unregErr)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, tracer.Anomalies())
}

func TestRegistry_CloseConn_Unknown(t *testing.T) {
	r, tracer, _ := newTestRegistry(t)

	r.CloseConn("/ble/peer-1")

	anomalies := tracer.Anomalies()
	require.Len(t, anomalies, 1)
	assert.Equal(t, types.DeviceOpClose, anomalies[0].Op)
	assert.Equal(t, types.OutcomeStaleRemoval, anomalies[0].Outcome)
}

func TestRegistry_CloseConn_Twice(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	dev := registerDevice(t, r, "AA:01", "/ble/peer-1")
	r.CloseConn("/ble/peer-1")
	r.CloseConn("/ble/peer-1")

	// 第二次调用找不到设备，不会再次断开
	assert.Equal(t, 1, dev.Interrupts())
	assert.Len(t, dev.Disconnects(), 1)
}

func TestRegistry_CloseConnWithReason(t *testing.T) {
	r, _, _ := newTestRegistry(t, WithDisconnectReason("going away"))

	a := registerDevice(t, r, "AA:01", "/ble/peer-1")
	b := registerDevice(t, r, "AA:02", "/ble/peer-2")

	r.CloseConn("/ble/peer-1")
	r.CloseConnWithReason("/ble/peer-2", "shutdown")

	assert.Equal(t, []string{"going away"}, a.Disconnects())
	assert.Equal(t, []string{"shutdown"}, b.Disconnects())
}

// TestRegistry_Reconnect 同一硬件地址断开后重连
//
// H1 被 CloseConn 移除，H2 以相同硬件地址注册，H1 的断开回调此时才
// 调用 Unregister。H2 必须保留。
func TestRegistry_Reconnect(t *testing.T) {
	r, tracer, _ := newTestRegistry(t)

	h1 := registerDevice(t, r, "AA:01", "/ble/peer-1")
	r.CloseConn("/ble/peer-1")

	h2 := registerDevice(t, r, "AA:01", "/ble/peer-1")

	require.NoError(t, r.Unregister(h1))

	got, ok := r.Lookup("AA:01")
	require.True(t, ok)
	assert.Same(t, h2, got)
	assert.True(t, r.Send("/ble/peer-1", []byte("x")))
	assert.Len(t, h2.Writes(), 1)
	assert.Empty(t, h1.Writes())

	assert.Empty(t, tracer.Anomalies())

	t.Log("✅ 重连后旧句柄的迟到注销不影响新句柄")
}

// ============================================================================
//                              ShutdownAll
// ============================================================================

func TestRegistry_ShutdownAll(t *testing.T) {
	r, tracer, _ := newTestRegistry(t)

	devs := []*mocks.MockBLEDevice{
		registerDevice(t, r, "AA:01", "/ble/peer-1"),
		registerDevice(t, r, "AA:02", "/ble/peer-2"),
		registerDevice(t, r, "AA:03", ""),
	}

	assert.Equal(t, 3, r.ShutdownAll())
	assert.Equal(t, 0, r.Len())

	for _, dev := range devs {
		assert.Equal(t, 1, dev.Interrupts(), dev.HardwareAddr())
	}
	assert.Len(t, tracer.Find(types.DeviceOpShutdown, types.OutcomeOK), 3)

	// 可重复调用
	assert.Equal(t, 0, r.ShutdownAll())
	for _, dev := range devs {
		assert.Equal(t, 1, dev.Interrupts())
	}

	// 驱动回调里的注销是预期内的
	for _, dev := range devs {
		assert.NoError(t, r.Unregister(dev))
	}
	assert.Empty(t, tracer.Anomalies())

	t.Log("✅ ShutdownAll 中断并移除所有设备")
}

func TestRegistry_ShutdownAll_Empty(t *testing.T) {
	r, tracer, _ := newTestRegistry(t)

	assert.Equal(t, 0, r.ShutdownAll())
	assert.Empty(t, tracer.Events())
}

func TestRegistry_ShutdownAll_ReentrantUnregister(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	for _, hw := range []string{"AA:01", "AA:02", "AA:03"} {
		dev := registerDevice(t, r, hw, "")
		dev.InterruptFunc = func() {
			// 中断回调里注销自己，以及注销一个不存在的设备
			_ = r.Unregister(dev)
			_ = r.Unregister(mocks.NewMockBLEDevice("FF:FF", ""))
		}
	}

	assert.Equal(t, 3, r.ShutdownAll())
	assert.Equal(t, 0, r.Len())
}
