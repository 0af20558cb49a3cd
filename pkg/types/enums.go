package types

// ============================================================================
//                              Direction - 连接方向
// ============================================================================

// Direction 连接方向
type Direction int

const (
	// DirUnknown 未知方向
	DirUnknown Direction = iota
	// DirInbound 入站连接
	DirInbound
	// DirOutbound 出站连接
	DirOutbound
)

// String 返回方向的字符串表示
func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              LinkState - 链路状态
// ============================================================================

// LinkState BLE 链路状态
//
// 只由连接句柄自身修改，注册表只读取 IsLinkConnected。
type LinkState int32

const (
	// LinkDisconnected 已断开
	LinkDisconnected LinkState = iota
	// LinkConnecting 连接中
	LinkConnecting
	// LinkConnected 已连接
	LinkConnected
	// LinkDisconnecting 断开中
	LinkDisconnecting
)

// String 返回链路状态的字符串表示
func (s LinkState) String() string {
	switch s {
	case LinkDisconnected:
		return "disconnected"
	case LinkConnecting:
		return "connecting"
	case LinkConnected:
		return "connected"
	case LinkDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}
