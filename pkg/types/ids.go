package types

// ============================================================================
//                              PeerID - 节点标识
// ============================================================================

// PeerID 节点标识
//
// BLE 传输只把 PeerID 当作不透明字符串使用：构造默认监听地址、
// 标记连接两端。
type PeerID string

// EmptyPeerID 空节点ID
const EmptyPeerID PeerID = ""

// String 返回 PeerID 的字符串表示
func (p PeerID) String() string {
	return string(p)
}

// ShortString 返回前 8 个字符，用于日志
func (p PeerID) ShortString() string {
	if len(p) > 8 {
		return string(p[:8])
	}
	return string(p)
}

// IsEmpty 检查 PeerID 是否为空
func (p PeerID) IsEmpty() bool {
	return p == EmptyPeerID
}

// Validate 校验 PeerID
func (p PeerID) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPeerID
	}
	return nil
}
