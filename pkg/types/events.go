package types

import "time"

// ============================================================================
//                              设备注册表事件
// ============================================================================

// DeviceOp 注册表操作名
type DeviceOp string

const (
	DeviceOpRegister      DeviceOp = "register"
	DeviceOpUnregister    DeviceOp = "unregister"
	DeviceOpIdentify      DeviceOp = "identify"
	DeviceOpLookup        DeviceOp = "lookup"
	DeviceOpLookupLogical DeviceOp = "lookup_logical"
	DeviceOpDial          DeviceOp = "dial"
	DeviceOpSend          DeviceOp = "send"
	DeviceOpClose         DeviceOp = "close"
	DeviceOpShutdown      DeviceOp = "shutdown"
	DeviceOpReceive       DeviceOp = "receive"
)

// DeviceOutcome 操作结果
type DeviceOutcome string

const (
	// OutcomeOK 成功
	OutcomeOK DeviceOutcome = "ok"
	// OutcomeNotFound 地址未被跟踪
	OutcomeNotFound DeviceOutcome = "not_found"
	// OutcomeNotReady 设备存在但未完成识别
	OutcomeNotReady DeviceOutcome = "not_ready"
	// OutcomeNotConnected 设备存在但链路未连接
	OutcomeNotConnected DeviceOutcome = "not_connected"
	// OutcomeInterrupted 写入被中断
	OutcomeInterrupted DeviceOutcome = "interrupted"
	// OutcomeWriteFailed 设备报告写入失败
	OutcomeWriteFailed DeviceOutcome = "write_failed"
	// OutcomeDuplicateKey 硬件地址重复注册
	OutcomeDuplicateKey DeviceOutcome = "duplicate_key"
	// OutcomeStaleRemoval 移除未跟踪的设备
	OutcomeStaleRemoval DeviceOutcome = "stale_removal"
	// OutcomeEvicted 设备已被注册表主动移除（预期内的迟到注销）
	OutcomeEvicted DeviceOutcome = "evicted"
	// OutcomeDuplicateLogical 逻辑地址已被其他设备占用
	OutcomeDuplicateLogical DeviceOutcome = "duplicate_logical"
	// OutcomeAmbiguous 逻辑地址匹配多个设备
	OutcomeAmbiguous DeviceOutcome = "ambiguous"
	// OutcomeRejected 其他拒绝（容量已满、参数无效）
	OutcomeRejected DeviceOutcome = "rejected"
)

// IsAnomaly 判断结果是否属于注册表内部异常
//
// 异常只通过观测通道上报，不会作为失败传播给无关调用方。
func (o DeviceOutcome) IsAnomaly() bool {
	switch o {
	case OutcomeDuplicateKey, OutcomeStaleRemoval, OutcomeDuplicateLogical, OutcomeAmbiguous:
		return true
	default:
		return false
	}
}

// DeviceEvent 注册表操作事件
type DeviceEvent struct {
	// Op 操作名
	Op DeviceOp
	// HardwareAddr 硬件地址（可能为空，如按逻辑地址解析失败时）
	HardwareAddr string
	// LogicalAddr 逻辑地址
	LogicalAddr string
	// Outcome 结果
	Outcome DeviceOutcome
	// Err 关联错误
	Err error
	// Size 负载字节数（仅 send / receive）
	Size int
	// Tracked 操作后注册表中的设备数量
	Tracked int
	// Time 事件时间
	Time time.Time
}

// Type 返回事件类型
func (e DeviceEvent) Type() string {
	return "ble." + string(e.Op)
}

// OK 判断操作是否成功
func (e DeviceEvent) OK() bool {
	return e.Outcome == OutcomeOK
}
