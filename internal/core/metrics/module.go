package metrics

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-dep2p-ble/config"
	"github.com/dep2p/go-dep2p-ble/internal/core/transport/ble"
	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	"github.com/dep2p/go-dep2p-ble/pkg/lib/log"
)

var logger = log.Logger("core/metrics")

// Config 指标配置
type Config struct {
	// Enabled 是否启用 Prometheus 指标
	Enabled bool

	// Namespace 指标命名空间
	Namespace string

	// ListenAddr /metrics 端点地址，空表示不暴露
	ListenAddr string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromUnified(nil)
}

// ConfigFromUnified 从统一配置创建指标配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := config.DefaultMetricsConfig()
	if cfg != nil {
		c = cfg.Metrics
	}
	return Config{
		Enabled:    c.Enable,
		Namespace:  c.Namespace,
		ListenAddr: c.ListenAddr,
	}
}

// Params Metrics 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Clock      clock.Clock    `optional:"true"`
}

// Output Metrics 输出
type Output struct {
	fx.Out

	Traffic   *TrafficCounter
	Reporter  Reporter
	Registry  *prometheus.Registry
	Collector *Collector // 未启用时为 nil
	Tracer    pkgif.DeviceTracer `group:"ble_tracers"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideMetrics),
		fx.Invoke(bindRegistry),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideMetrics 从参数创建指标组件
//
// 未启用 Prometheus 时仍然提供流量计数器。
func ProvideMetrics(p Params) (Output, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	traffic := NewTrafficCounterWithClock(p.Clock)
	reg := prometheus.NewRegistry()

	out := Output{
		Traffic:  traffic,
		Reporter: traffic,
		Registry: reg,
		Tracer:   traffic,
	}
	if !cfg.Enabled {
		return out, nil
	}

	collector := NewCollector(cfg.Namespace, traffic)
	if err := collector.Register(reg); err != nil {
		return Output{}, err
	}
	out.Collector = collector
	out.Tracer = collector
	return out, nil
}

type bindParams struct {
	fx.In

	Collector *Collector
	Registry  *ble.Registry `optional:"true"`
}

// bindRegistry 让 tracked_devices 直接读取设备注册表
func bindRegistry(p bindParams) {
	if p.Collector == nil || p.Registry == nil {
		return
	}
	p.Collector.Bind(p.Registry)
}

type lifecycleParams struct {
	fx.In

	LC         fx.Lifecycle
	UnifiedCfg *config.Config `optional:"true"`
	Registry   *prometheus.Registry
}

// registerLifecycle 启用且配置了地址时启动 /metrics 端点
func registerLifecycle(p lifecycleParams) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if !cfg.Enabled || cfg.ListenAddr == "" {
		return
	}

	srv := NewServer(cfg.ListenAddr, p.Registry)
	p.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop(ctx)
		},
	})
}
