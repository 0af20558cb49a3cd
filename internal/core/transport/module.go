// Package transport 实现传输层
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-dep2p-ble/config"
	"github.com/dep2p/go-dep2p-ble/internal/core/transport/ble"
	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	blema "github.com/dep2p/go-dep2p-ble/pkg/lib/multiaddr"
	"github.com/dep2p/go-dep2p-ble/pkg/lib/log"
	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

var logger = log.Logger("core/transport")

// Config 传输层配置
type Config struct {
	// 协议开关
	EnableBLE bool

	// BLE 配置
	BLE ble.Config

	// LocalPeer 本地节点 ID
	LocalPeer types.PeerID
}

// ConfigFromUnified 从统一配置创建传输配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return NewConfig()
	}
	return Config{
		EnableBLE: cfg.BLE.Enable,
		BLE:       ble.ConfigFromUnified(cfg),
		LocalPeer: types.PeerID(cfg.PeerID),
	}
}

// NewConfig 创建默认配置
func NewConfig() Config {
	return Config{
		EnableBLE: true, // BLE 默认启用
		BLE:       ble.NewConfig(),
	}
}

// TransportManager 传输管理器
type TransportManager struct {
	config     Config
	registry   *ble.Registry
	ble        *ble.Transport
	transports []pkgif.Transport
}

// NewTransportManager 创建传输管理器
//
// 注册表总是会被创建；BLE 传输只在启用时创建。
func NewTransportManager(cfg Config, tracer pkgif.DeviceTracer, clk clock.Clock) *TransportManager {
	logger.Debug("创建传输管理器", "enableBLE", cfg.EnableBLE, "localPeer", cfg.LocalPeer.ShortString())

	opts := cfg.BLE.RegistryOptions()
	if tracer != nil {
		opts = append(opts, ble.WithTracer(tracer))
	}
	if clk != nil {
		opts = append(opts, ble.WithClock(clk))
	}

	tm := &TransportManager{
		config:     cfg,
		registry:   ble.NewRegistry(opts...),
		transports: make([]pkgif.Transport, 0, 1),
	}

	if cfg.EnableBLE {
		tm.ble = ble.NewTransport(cfg.LocalPeer, tm.registry, cfg.BLE)
		tm.transports = append(tm.transports, tm.ble)
		logger.Debug("BLE 传输已创建")
	}

	logger.Info("传输管理器创建成功", "transportCount", len(tm.transports))
	return tm
}

// GetTransports 获取所有传输
func (tm *TransportManager) GetTransports() []pkgif.Transport {
	return tm.transports
}

// Registry 返回设备注册表
func (tm *TransportManager) Registry() *ble.Registry {
	return tm.registry
}

// BLE 返回 BLE 传输，未启用时返回 nil
func (tm *TransportManager) BLE() *ble.Transport {
	return tm.ble
}

// TransportFor 返回可以拨号到指定地址的传输
func (tm *TransportManager) TransportFor(addr ma.Multiaddr) (pkgif.Transport, error) {
	if addr == nil {
		return nil, ErrInvalidAddress
	}
	for _, t := range tm.transports {
		if t.CanDial(addr) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoTransport, addr)
}

// Listen 在配置的地址上启动 BLE 监听
func (tm *TransportManager) Listen() (pkgif.Listener, error) {
	if tm.ble == nil {
		return nil, ErrTransportDisabled
	}

	laddr, err := blema.Parse(tm.config.BLE.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return tm.ble.Listen(laddr)
}

// Close 关闭所有传输
//
// BLE 传输未启用时仍然会断开注册表中的设备。
func (tm *TransportManager) Close() error {
	var err error
	for _, t := range tm.transports {
		err = multierr.Append(err, t.Close())
	}
	if tm.ble == nil {
		tm.registry.ShutdownAll()
	}
	return err
}

// TransportOutput Fx 输出
type TransportOutput struct {
	fx.Out

	TransportManager *TransportManager
	Registry         *ble.Registry
	Transports       []pkgif.Transport `group:"transports,flatten"` // 提供到 group
}

// Params Fx 依赖参数
type Params struct {
	fx.In

	Config  Config
	Tracers []pkgif.DeviceTracer `group:"ble_tracers"` // value groups 不能设置 optional
	Clock   clock.Clock          `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(
			ProvideConfig,
			ProvideTransports,
		),
		fx.Invoke(registerLifecycle),
	)
}

// UnifiedParams 统一配置参数
type UnifiedParams struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ProvideConfig 从统一配置提供传输配置
func ProvideConfig(p UnifiedParams) Config {
	return ConfigFromUnified(p.UnifiedCfg)
}

// ProvideTransports 提供 TransportManager、设备注册表和 Transport 列表
func ProvideTransports(p Params) TransportOutput {
	tm := NewTransportManager(p.Config, ble.CombineTracers(p.Tracers...), p.Clock)
	return TransportOutput{
		TransportManager: tm,
		Registry:         tm.Registry(),
		Transports:       tm.GetTransports(),
	}
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, tm *TransportManager) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if tm.BLE() == nil {
				return nil
			}
			l, err := tm.Listen()
			if err != nil {
				return fmt.Errorf("start ble transport: %w", err)
			}
			logger.Info("BLE 传输已启动", "addr", l.Multiaddr().String())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return closeWithTimeout(ctx, tm, tm.config.BLE.ShutdownTimeout)
		},
	})
}

// closeWithTimeout 在超时内关闭传输管理器
//
// 设备回调阻塞时不会拖住整个应用的关闭流程。
func closeWithTimeout(ctx context.Context, tm *TransportManager, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- tm.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		logger.Warn("关闭传输超时", "timeout", timeout)
		return ctx.Err()
	}
}
