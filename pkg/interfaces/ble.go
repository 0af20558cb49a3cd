package interfaces

import "github.com/dep2p/go-dep2p-ble/pkg/types"

// ============================================================================
//                              BLEDevice - 连接句柄
// ============================================================================

// BLEDevice 单个远端 BLE 设备的连接句柄
//
// 每个远端设备对应一个实例，由连接建立模块创建并注册到设备注册表。
// 句柄自己拥有链路状态和驱动链路的 worker，注册表只读取以下信息
// 并向其委派操作。
//
// 所有方法都必须并发安全。
type BLEDevice interface {
	// HardwareAddr 返回硬件地址（不可变，注册表主键）
	HardwareAddr() string

	// LogicalAddr 返回逻辑地址
	//
	// 识别握手完成前返回空字符串。
	LogicalAddr() string

	// IsLinkConnected 链路当前是否处于已连接状态
	IsLinkConnected() bool

	// IsIdentified 是否已完成识别，可以收发应用数据
	IsIdentified() bool

	// Interrupt 通知 worker 放弃进行中的操作并开始回退
	//
	// 非阻塞；没有进行中的操作时调用也必须安全。
	Interrupt()

	// Write 写入应用数据
	//
	// 返回 false 表示设备报告写入失败；返回错误表示写入被中断。
	Write(payload []byte) (bool, error)

	// Disconnect 请求有序断开
	Disconnect(reason string)
}

// ============================================================================
//                              DeviceTracer - 观测接口
// ============================================================================

// DeviceTracer 注册表观测接口
//
// 注册表的每次操作都会调用 Trace。实现必须快速返回且不能回调注册表，
// 调用时注册表锁已释放。
type DeviceTracer interface {
	Trace(evt types.DeviceEvent)
}

// DeviceTracerFunc 函数适配器
type DeviceTracerFunc func(evt types.DeviceEvent)

// Trace 实现 DeviceTracer
func (f DeviceTracerFunc) Trace(evt types.DeviceEvent) {
	f(evt)
}
