// Package ble 实现 BLE 设备注册表和 BLE 传输
//
// 原生 BLE 驱动（Android / iOS）自行扫描并连接附近的设备，每个远端设备
// 对应一个连接句柄（pkg/interfaces.BLEDevice）。本包负责：
//
//   - 设备注册表：以硬件地址（MAC）为主键跟踪连接句柄
//   - 地址解析：按 libp2p 逻辑地址（/ble/<id>）找到对应句柄
//   - 传输入口：Dial / Send / CloseConn / ShutdownAll 委派给句柄
//   - 传输层：实现 pkgif.Transport，把句柄包装成 libp2p 风格的连接
//
// # 地址
//
//   - 硬件地址：设备 MAC，注册表主键，句柄生命周期内不变
//   - 逻辑地址：识别握手后才确定，形如 /ble/<peer-uuid>
//
// # 生命周期
//
//	dev 创建 → Register → 链路连接 → 识别握手 → Identify → HandlePeerFound
//	         → Send / ReceiveFromDevice ...
//	         → CloseConn（注册表先移除，再中断并断开）→ 驱动回调 Unregister
//	         或 设备侧断链 → HandlePeerLost（只关闭连接）→ 驱动回调 Unregister
//
// # 失败语义
//
// 传输入口只返回 bool 或不返回值，失败通过 DeviceTracer 上报
// types.DeviceEvent，注册表始终保持可用。索引异常（重复注册、
// 移除不存在的设备、逻辑地址冲突、逻辑地址歧义）同样作为事件上报。
//
// # 并发安全
//
// 注册表使用 sync.RWMutex：查询可以并发，修改互斥。对句柄的调用
// 一律在释放锁之后进行，句柄回调里重入注册表不会死锁。
//
// # 使用示例
//
//	reg := ble.NewRegistry(ble.WithTracer(tracer))
//	t := ble.NewTransport(localPeer, reg, ble.NewConfig())
//
//	l, err := t.Listen(laddr)
//	conn, err := l.Accept()
//
// 公共接口：pkg/interfaces/ble.go, pkg/interfaces/transport.go
package ble
