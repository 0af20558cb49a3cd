package ble

import "errors"

// 解析与就绪错误：以布尔失败返回给调用方
var (
	// ErrNotFound 地址没有被跟踪的设备
	ErrNotFound = errors.New("ble: device not found")

	// ErrNotReady 设备存在但尚未完成识别
	ErrNotReady = errors.New("ble: device not ready")

	// ErrLinkInterrupted 写入或连接操作被中断
	ErrLinkInterrupted = errors.New("ble: link interrupted")
)

// 注册表内部异常：只通过观测通道上报
var (
	// ErrDuplicateKey 硬件地址已被跟踪
	ErrDuplicateKey = errors.New("ble: hardware address already tracked")

	// ErrStaleRemoval 移除未跟踪的设备
	ErrStaleRemoval = errors.New("ble: device not tracked")

	// ErrDuplicateLogicalAddr 逻辑地址已被其他设备占用
	ErrDuplicateLogicalAddr = errors.New("ble: logical address held by another device")
)

// 参数错误
var (
	// ErrNilDevice 设备为 nil
	ErrNilDevice = errors.New("ble: nil device")

	// ErrEmptyHardwareAddr 硬件地址为空
	ErrEmptyHardwareAddr = errors.New("ble: empty hardware address")

	// ErrNoLogicalAddr 设备尚无逻辑地址
	ErrNoLogicalAddr = errors.New("ble: device has no logical address")

	// ErrRegistryFull 设备数量达到上限
	ErrRegistryFull = errors.New("ble: registry full")
)

// 传输层错误
var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("ble: transport closed")

	// ErrNoListener 没有活跃的监听器（原生驱动在监听时初始化）
	ErrNoListener = errors.New("ble: no active listener")

	// ErrListenerExists BLE 只允许一个监听器
	ErrListenerExists = errors.New("ble: one listener maximum")

	// ErrListenerClosed 监听器已关闭
	ErrListenerClosed = errors.New("ble: listener closed")

	// ErrInvalidAddr 地址不是 /ble/<id>
	ErrInvalidAddr = errors.New("ble: invalid multiaddr")

	// ErrNotConnected 原生驱动没有连接到该设备
	ErrNotConnected = errors.New("ble: peer not connected through BLE")

	// ErrAlreadyConnected 该地址已存在连接
	ErrAlreadyConnected = errors.New("ble: already connected to this address")

	// ErrConnClosed 连接已关闭
	ErrConnClosed = errors.New("ble: connection closed")

	// ErrWriteFailed 写入设备失败
	ErrWriteFailed = errors.New("ble: write to device failed")
)
