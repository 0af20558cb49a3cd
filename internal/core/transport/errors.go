// Package transport 实现传输层
package transport

import "errors"

var (
	// ErrNoTransport 没有可用的传输
	ErrNoTransport = errors.New("no suitable transport for address")

	// ErrInvalidAddress 无效地址
	ErrInvalidAddress = errors.New("invalid multiaddr")

	// ErrTransportDisabled BLE 传输未启用
	ErrTransportDisabled = errors.New("ble transport disabled")
)
