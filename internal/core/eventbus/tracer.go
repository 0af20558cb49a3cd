package eventbus

import (
	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

// DeviceEventTracer 把注册表事件发射到事件总线
type DeviceEventTracer struct {
	emitter pkgif.Emitter
}

var _ pkgif.DeviceTracer = (*DeviceEventTracer)(nil)

// NewDeviceEventTracer 创建注册表事件发射器
//
// 发射器是有状态的，新订阅者会立即收到最近一个事件。
func NewDeviceEventTracer(bus pkgif.EventBus) (*DeviceEventTracer, error) {
	em, err := bus.Emitter(new(types.DeviceEvent), Stateful())
	if err != nil {
		return nil, err
	}
	return &DeviceEventTracer{emitter: em}, nil
}

// Trace 实现 DeviceTracer
func (t *DeviceEventTracer) Trace(evt types.DeviceEvent) {
	if err := t.emitter.Emit(evt); err != nil {
		logger.Debug("注册表事件未发射", "type", evt.Type(), "error", err)
	}
}

// Close 关闭发射器
func (t *DeviceEventTracer) Close() error {
	return t.emitter.Close()
}
