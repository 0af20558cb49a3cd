// Package transport 实现传输层抽象
//
// TransportManager 创建设备注册表和 BLE 传输，并负责它们的生命周期。
//
// # 核心职责
//
//   - 注册表：为原生 BLE 驱动提供设备注册表（ble.Registry）
//   - BLE 传输：在配置的地址上监听，包装已识别的设备为连接
//   - 地址处理：Multiaddr 解析，按地址选择传输
//
// # 支持的传输协议
//
//   - BLE: /ble/<id>
//
// # 使用示例
//
//	tm := transport.NewTransportManager(transport.NewConfig(), tracer, nil)
//
//	// 监听连接
//	listener, err := tm.Listen()
//
//	// 接受连接
//	conn, err := listener.Accept()
//
//	// 拨号连接
//	t, err := tm.TransportFor(remoteAddr)
//	conn, err := t.Dial(ctx, remoteAddr, remotePeer)
//
// # Fx 模块集成
//
//	app := fx.New(
//	    transport.Module(),
//	    fx.Invoke(func(reg *ble.Registry) {
//	        // 原生驱动使用注册表
//	    }),
//	)
//
// 观测接口通过 value group "ble_tracers" 注入，多个观测接口会被合并。
//
// 公共接口：pkg/interfaces/transport.go
package transport
