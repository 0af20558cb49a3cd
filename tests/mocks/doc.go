// Package mocks 提供统一的测试 Mock 实现
//
// # 核心 Mock
//
//   - MockBLEDevice: 模拟 interfaces.BLEDevice 连接句柄
//   - MockTracer: 模拟 interfaces.DeviceTracer，记录所有注册表事件
//
// # 设计原则
//
// 1. 函数式注入: 通过 XxxFunc 字段注入自定义行为
// 2. 调用记录: 记录 Interrupt / Disconnect / Write 调用，便于验证测试行为
//
// # 使用示例
//
//	dev := mocks.NewMockBLEDevice("AA:BB:CC:DD:EE:01", "/ble/peer-1")
//	dev.WriteFunc = func(p []byte) (bool, error) {
//	    return false, errors.New("link lost")
//	}
//
//	tracer := mocks.NewMockTracer()
//	reg := ble.NewRegistry(ble.WithTracer(tracer))
//	_ = reg.Register(dev)
//	reg.CloseConn("/ble/peer-1")
//
//	if len(dev.Disconnects()) != 1 {
//	    t.Error("expected disconnect")
//	}
package mocks
