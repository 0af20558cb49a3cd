// Package types 定义 dep2p-ble 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - ids.go     - PeerID
//   - enums.go   - Direction, LinkState
//   - events.go  - DeviceOp, DeviceOutcome, DeviceEvent
//   - errors.go  - 公共错误定义
package types
