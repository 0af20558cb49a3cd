package eventbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

// TestBus_ConcurrentSubscribeEmit 订阅、取消和发射并发进行
func TestBus_ConcurrentSubscribeEmit(t *testing.T) {
	bus := NewBus()

	em, err := bus.Emitter(new(types.DeviceEvent))
	require.NoError(t, err)
	defer em.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = em.Emit(types.DeviceEvent{Size: j})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				sub, err := bus.Subscribe(new(types.DeviceEvent), BufSize(4))
				if err != nil {
					return
				}
				_ = sub.Close()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, bus.EventTypes(), 1)
}
