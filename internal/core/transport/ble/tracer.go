package ble

import (
	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

// NopTracer 丢弃所有事件（默认观测接口）
type NopTracer struct{}

var _ pkgif.DeviceTracer = NopTracer{}

// Trace 实现 DeviceTracer
func (NopTracer) Trace(types.DeviceEvent) {}

// MultiTracer 把事件依次分发给多个观测接口
type MultiTracer []pkgif.DeviceTracer

var _ pkgif.DeviceTracer = MultiTracer(nil)

// Trace 实现 DeviceTracer
func (m MultiTracer) Trace(evt types.DeviceEvent) {
	for _, t := range m {
		t.Trace(evt)
	}
}

// CombineTracers 合并观测接口，忽略 nil
//
// 没有有效观测接口时返回 NopTracer，只有一个时直接返回它。
func CombineTracers(tracers ...pkgif.DeviceTracer) pkgif.DeviceTracer {
	valid := make(MultiTracer, 0, len(tracers))
	for _, t := range tracers {
		if t != nil {
			valid = append(valid, t)
		}
	}

	switch len(valid) {
	case 0:
		return NopTracer{}
	case 1:
		return valid[0]
	default:
		return valid
	}
}
