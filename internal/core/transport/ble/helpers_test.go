package ble

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dep2p-ble/tests/mocks"
)

// newTestRegistry 创建带 MockTracer 和 mock 时钟的注册表
func newTestRegistry(t *testing.T, opts ...RegistryOption) (*Registry, *mocks.MockTracer, *clock.Mock) {
	t.Helper()

	tracer := mocks.NewMockTracer()
	clk := clock.NewMock()
	opts = append([]RegistryOption{WithTracer(tracer), WithClock(clk)}, opts...)
	return NewRegistry(opts...), tracer, clk
}

// registerDevice 注册一个已连接、已识别的设备
func registerDevice(t *testing.T, r *Registry, hwAddr, logical string) *mocks.MockBLEDevice {
	t.Helper()

	dev := mocks.NewMockBLEDevice(hwAddr, logical)
	require.NoError(t, r.Register(dev))
	if logical != "" {
		require.NoError(t, r.Identify(dev))
	}
	return dev
}
