// Package blesim 提供模拟的 BLE 连接句柄
//
// 在没有真实蓝牙硬件的环境（CLI 演示、集成测试）中替代原生驱动：
//
//   - Device 实现 pkg/interfaces.BLEDevice，自带驱动链路的 worker
//   - Central 批量创建设备并并发运行它们
//
// 设备生命周期与原生驱动一致：
//
//	Register → connecting → connected → 识别握手 → Identify → HandlePeerFound
//	         → ... → Disconnect / ctx 取消 → Unregister
//
// blesim 只依赖 Registrar 和 PeerHandler 两个小接口，ble.Registry 和
// ble.Transport 分别满足它们。
package blesim
