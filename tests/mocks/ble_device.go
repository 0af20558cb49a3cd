package mocks

import (
	"sync"

	"github.com/dep2p/go-dep2p-ble/pkg/interfaces"
)

// MockBLEDevice 模拟 BLEDevice 接口实现
//
// 默认行为：链路已连接、已识别、写入成功。
type MockBLEDevice struct {
	mu sync.Mutex

	// 基本属性
	HWAddr     string
	Logical    string
	Connected  bool
	Identified bool

	// 可覆盖的方法
	WriteFunc      func(payload []byte) (bool, error)
	InterruptFunc  func()
	DisconnectFunc func(reason string)

	// 调用记录
	InterruptCalls  int
	DisconnectCalls []string
	WriteCalls      [][]byte
}

var _ interfaces.BLEDevice = (*MockBLEDevice)(nil)

// NewMockBLEDevice 创建已连接且已识别的 MockBLEDevice
func NewMockBLEDevice(hwAddr, logical string) *MockBLEDevice {
	return &MockBLEDevice{
		HWAddr:     hwAddr,
		Logical:    logical,
		Connected:  true,
		Identified: true,
	}
}

// HardwareAddr 返回硬件地址
func (m *MockBLEDevice) HardwareAddr() string {
	return m.HWAddr
}

// LogicalAddr 返回逻辑地址
func (m *MockBLEDevice) LogicalAddr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Logical
}

// SetLogicalAddr 设置逻辑地址
func (m *MockBLEDevice) SetLogicalAddr(logical string) {
	m.mu.Lock()
	m.Logical = logical
	m.mu.Unlock()
}

// IsLinkConnected 链路是否已连接
func (m *MockBLEDevice) IsLinkConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Connected
}

// SetConnected 设置链路状态
func (m *MockBLEDevice) SetConnected(connected bool) {
	m.mu.Lock()
	m.Connected = connected
	m.mu.Unlock()
}

// IsIdentified 是否已完成识别
func (m *MockBLEDevice) IsIdentified() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Identified
}

// SetIdentified 设置识别状态
func (m *MockBLEDevice) SetIdentified(identified bool) {
	m.mu.Lock()
	m.Identified = identified
	m.mu.Unlock()
}

// Interrupt 记录中断调用
func (m *MockBLEDevice) Interrupt() {
	m.mu.Lock()
	m.InterruptCalls++
	fn := m.InterruptFunc
	m.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Write 记录写入数据
func (m *MockBLEDevice) Write(payload []byte) (bool, error) {
	m.mu.Lock()
	m.WriteCalls = append(m.WriteCalls, append([]byte(nil), payload...))
	fn := m.WriteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(payload)
	}
	return true, nil
}

// Disconnect 记录断开原因
func (m *MockBLEDevice) Disconnect(reason string) {
	m.mu.Lock()
	m.DisconnectCalls = append(m.DisconnectCalls, reason)
	fn := m.DisconnectFunc
	m.mu.Unlock()

	if fn != nil {
		fn(reason)
	}
}

// Interrupts 返回中断次数
func (m *MockBLEDevice) Interrupts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.InterruptCalls
}

// Disconnects 返回断开原因记录
func (m *MockBLEDevice) Disconnects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.DisconnectCalls...)
}

// Writes 返回写入记录
func (m *MockBLEDevice) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.WriteCalls...)
}
