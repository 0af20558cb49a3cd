// Package eventbus 实现事件总线
//
// 按事件类型分发的发布/订阅机制，用于把 BLE 设备注册表的事件
// （types.DeviceEvent）推送给感兴趣的组件。
//
// # 使用示例
//
//	bus := eventbus.NewBus()
//
//	sub, _ := bus.Subscribe(new(types.DeviceEvent), eventbus.BufSize(64))
//	defer sub.Close()
//
//	em, _ := bus.Emitter(new(types.DeviceEvent))
//	em.Emit(types.DeviceEvent{Op: types.DeviceOpRegister})
//
//	evt := (<-sub.Out()).(types.DeviceEvent)
//
// # 注册表观测
//
// DeviceEventTracer 实现 DeviceTracer，把注册表的每个事件发射到总线。
// Fx 模块会把它加入 value group "ble_tracers"。
//
// # 慢消费者
//
// 发射从不阻塞：订阅者缓冲区满时事件被丢弃，并周期性记录警告。
package eventbus
