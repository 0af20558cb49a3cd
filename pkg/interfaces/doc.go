// Package interfaces 定义 dep2p-ble 的公共接口
//
// # 文件组织
//
//   - ble.go        - BLEDevice 连接句柄契约、DeviceTracer 观测接口
//   - transport.go  - BLE 传输层（Transport / Listener / Connection）
//   - eventbus.go   - 事件总线
//
// 接口只依赖 pkg/types 和 go-multiaddr，内部实现位于 internal/core。
package interfaces
