package eventbus

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
)

// ============================================================================
// Fx 模块
// ============================================================================

// Result Fx 模块输出结果
type Result struct {
	fx.Out

	Bus         *Bus
	EventBus    pkgif.EventBus
	EventTracer *DeviceEventTracer
	Tracer      pkgif.DeviceTracer `group:"ble_tracers"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("eventbus",
		fx.Provide(ProvideEventBus),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideEventBus 提供 EventBus 实例和注册表事件发射器
func ProvideEventBus() (Result, error) {
	bus := NewBus()
	tracer, err := NewDeviceEventTracer(bus)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Bus:         bus,
		EventBus:    bus,
		EventTracer: tracer,
		Tracer:      tracer,
	}, nil
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In

	LC     fx.Lifecycle
	Bus    *Bus
	Tracer *DeviceEventTracer
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return multierr.Append(input.Tracer.Close(), input.Bus.Close())
		},
	})
}
