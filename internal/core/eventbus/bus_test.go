package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

func recv(t *testing.T, ch <-chan interface{}) interface{} {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("等待事件超时")
		return nil
	}
}

func TestBus_SubscribeEmit(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(types.DeviceEvent))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(types.DeviceEvent))
	require.NoError(t, err)
	defer em.Close()

	require.NoError(t, em.Emit(types.DeviceEvent{Op: types.DeviceOpRegister, HardwareAddr: "AA:01"}))

	evt, ok := recv(t, sub.Out()).(types.DeviceEvent)
	require.True(t, ok)
	assert.Equal(t, "AA:01", evt.HardwareAddr)

	t.Log("✅ 订阅者收到发射的事件")
}

func TestBus_InvalidType(t *testing.T) {
	bus := NewBus()

	_, err := bus.Subscribe(nil)
	assert.ErrorIs(t, err, ErrInvalidEventType)

	_, err = bus.Subscribe(types.DeviceEvent{})
	assert.ErrorIs(t, err, ErrNonPointerType)

	_, err = bus.Emitter(types.DeviceEvent{})
	assert.ErrorIs(t, err, ErrNonPointerType)
}

func TestBus_Stateful(t *testing.T) {
	bus := NewBus()

	em, err := bus.Emitter(new(types.DeviceEvent), Stateful())
	require.NoError(t, err)
	require.NoError(t, em.Emit(types.DeviceEvent{Op: types.DeviceOpShutdown}))

	// 后订阅者立即收到最后一个事件
	sub, err := bus.Subscribe(new(types.DeviceEvent))
	require.NoError(t, err)
	defer sub.Close()

	evt := recv(t, sub.Out()).(types.DeviceEvent)
	assert.Equal(t, types.DeviceOpShutdown, evt.Op)
}

func TestBus_SlowConsumer(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(types.DeviceEvent), BufSize(1))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(types.DeviceEvent))
	require.NoError(t, err)

	// 缓冲区满时发射不阻塞
	for i := 0; i < 10; i++ {
		require.NoError(t, em.Emit(types.DeviceEvent{Size: i}))
	}

	evt := recv(t, sub.Out()).(types.DeviceEvent)
	assert.Equal(t, 0, evt.Size)
}

func TestBus_CloseSubscription(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(types.DeviceEvent))
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, ok := <-sub.Out()
	assert.False(t, ok, "通道应已关闭")

	// 没有订阅者和发射器时节点被删除
	assert.Empty(t, bus.EventTypes())
}

func TestBus_Emitter_Close(t *testing.T) {
	bus := NewBus()

	em, err := bus.Emitter(new(types.DeviceEvent))
	require.NoError(t, err)
	assert.Len(t, bus.EventTypes(), 1)

	require.NoError(t, em.Close())
	assert.ErrorIs(t, em.Emit(types.DeviceEvent{}), ErrEmitterClosed)
	assert.Empty(t, bus.EventTypes())
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(types.DeviceEvent))
	require.NoError(t, err)
	em, err := bus.Emitter(new(types.DeviceEvent))
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	_, ok := <-sub.Out()
	assert.False(t, ok)

	assert.NoError(t, em.Emit(types.DeviceEvent{}), "总线关闭后发射静默丢弃")

	_, err = bus.Subscribe(new(types.DeviceEvent))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = bus.Emitter(new(types.DeviceEvent))
	assert.ErrorIs(t, err, ErrClosed)
}
