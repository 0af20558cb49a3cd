package types

import "errors"

var (
	// ErrEmptyPeerID 空的节点 ID
	ErrEmptyPeerID = errors.New("empty peer ID")
)
