package mocks

import (
	"sync"

	"github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

// MockTracer 记录注册表事件
type MockTracer struct {
	mu     sync.Mutex
	events []types.DeviceEvent
}

var _ interfaces.DeviceTracer = (*MockTracer)(nil)

// NewMockTracer 创建 MockTracer
func NewMockTracer() *MockTracer {
	return &MockTracer{}
}

// Trace 记录事件
func (m *MockTracer) Trace(evt types.DeviceEvent) {
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
}

// Events 返回所有事件
func (m *MockTracer) Events() []types.DeviceEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.DeviceEvent(nil), m.events...)
}

// Find 返回指定操作和结果的事件
func (m *MockTracer) Find(op types.DeviceOp, outcome types.DeviceOutcome) []types.DeviceEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.DeviceEvent
	for _, evt := range m.events {
		if evt.Op == op && evt.Outcome == outcome {
			out = append(out, evt)
		}
	}
	return out
}

// Anomalies 返回所有索引异常事件
func (m *MockTracer) Anomalies() []types.DeviceEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.DeviceEvent
	for _, evt := range m.events {
		if evt.Outcome.IsAnomaly() {
			out = append(out, evt)
		}
	}
	return out
}

// Reset 清空记录
func (m *MockTracer) Reset() {
	m.mu.Lock()
	m.events = nil
	m.mu.Unlock()
}
