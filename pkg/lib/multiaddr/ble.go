package multiaddr

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	ma "github.com/multiformats/go-multiaddr"
)

// P_BLE BLE 协议代码
const P_BLE = 0x0042

// ProtocolName BLE 协议名称
const ProtocolName = "ble"

// maxValueLen BLE 地址值的最大长度
const maxValueLen = 128

var (
	// ErrEmptyValue BLE 地址值为空
	ErrEmptyValue = errors.New("ble multiaddr: empty value")

	// ErrInvalidValue BLE 地址值无效
	ErrInvalidValue = errors.New("ble multiaddr: invalid value")

	// ErrNotBLE 地址不是纯 BLE 地址
	ErrNotBLE = errors.New("ble multiaddr: not a /ble/<id> address")
)

// ProtocolBLE BLE 协议描述
var ProtocolBLE = ma.Protocol{
	Name:       ProtocolName,
	Code:       P_BLE,
	VCode:      ma.CodeToVarint(P_BLE),
	Size:       ma.LengthPrefixedVarSize,
	Transcoder: ma.NewTranscoderFromFunctions(bleStringToBytes, bleBytesToString, validateBytes),
}

func init() {
	if err := ma.AddProtocol(ProtocolBLE); err != nil {
		panic(fmt.Errorf("register ble protocol: %w", err))
	}
}

// ValidateValue 校验 BLE 地址值
func ValidateValue(s string) error {
	if s == "" {
		return ErrEmptyValue
	}
	if len(s) > maxValueLen || strings.Contains(s, "/") || !utf8.ValidString(s) {
		return fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	return nil
}

func bleStringToBytes(s string) ([]byte, error) {
	if err := ValidateValue(s); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func bleBytesToString(b []byte) (string, error) {
	if err := validateBytes(b); err != nil {
		return "", err
	}
	return string(b), nil
}

func validateBytes(b []byte) error {
	return ValidateValue(string(b))
}

// NewBLE 构造 /ble/<id> 地址
func NewBLE(id string) (ma.Multiaddr, error) {
	if err := ValidateValue(id); err != nil {
		return nil, err
	}
	return ma.NewMultiaddr("/" + ProtocolName + "/" + id)
}

// FormatBLE 返回 /ble/<id> 的字符串形式，不做校验
func FormatBLE(id string) string {
	return "/" + ProtocolName + "/" + id
}

// IsBLE 检查地址是否为纯 BLE 地址（仅含一个 ble 组件）
func IsBLE(addr ma.Multiaddr) bool {
	if addr == nil {
		return false
	}
	protos := addr.Protocols()
	return len(protos) == 1 && protos[0].Code == P_BLE
}

// BLEValue 提取 BLE 地址值
func BLEValue(addr ma.Multiaddr) (string, error) {
	if !IsBLE(addr) {
		return "", ErrNotBLE
	}
	return addr.ValueForProtocol(P_BLE)
}

// Parse 解析 BLE 地址字符串
func Parse(s string) (ma.Multiaddr, error) {
	addr, err := ma.NewMultiaddr(s)
	if err != nil {
		return nil, err
	}
	if !IsBLE(addr) {
		return nil, fmt.Errorf("%w: %s", ErrNotBLE, s)
	}
	return addr, nil
}
