package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-dep2p-ble/config"
	"github.com/dep2p/go-dep2p-ble/internal/core/eventbus"
	"github.com/dep2p/go-dep2p-ble/internal/core/metrics"
	"github.com/dep2p/go-dep2p-ble/internal/core/transport"
	"github.com/dep2p/go-dep2p-ble/internal/core/transport/ble"
	"github.com/dep2p/go-dep2p-ble/internal/core/transport/ble/blesim"
	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖（「这次运行」想怎么跑）
//   配置文件：持久化配置
//
// ═══════════════════════════════════════════════════════════════════════════
var runFlags struct {
	LogFile     string
	Peers       int
	PeerID      string
	MetricsAddr string
	Report      time.Duration
}

// runCmd 启动 BLE 传输并运行模拟设备
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "启动 BLE 传输并运行模拟设备",
	Long: `启动 BLE 传输层，并用模拟中心连接若干模拟设备。

每个设备识别后产生一个入站连接，节点向其发送问候，设备回显数据。
运行期间周期性输出注册表中的设备和流量统计，按 Ctrl+C 退出。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode(cmd)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.LogFile, "log", "", "日志文件路径（覆盖配置文件）")
	f.IntVar(&runFlags.Peers, "peers", 0, "模拟设备数量（覆盖配置文件）")
	f.StringVar(&runFlags.PeerID, "peer-id", "", "本地节点 ID（默认随机生成）")
	f.StringVar(&runFlags.MetricsAddr, "metrics-addr", "", "Prometheus 指标端点地址，如 127.0.0.1:9100")
	f.DurationVar(&runFlags.Report, "report", 10*time.Second, "设备状态输出间隔")

	rootCmd.AddCommand(runCmd)
}

// buildConfig 加载配置文件并应用命令行覆盖
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(globalFlags.ConfigFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log") {
		cfg.Log.File = runFlags.LogFile
	}
	if flags.Changed("peers") {
		cfg.Sim.Peers = runFlags.Peers
	}
	if flags.Changed("peer-id") {
		cfg.PeerID = runFlags.PeerID
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Enable = true
		cfg.Metrics.ListenAddr = runFlags.MetricsAddr
	}
	if cfg.PeerID == "" {
		cfg.PeerID = string(blesim.NewPeerID())
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置错误: %w", err)
	}
	return cfg, nil
}

// node 运行中的组件
type node struct {
	Transports *transport.TransportManager
	Registry   *ble.Registry
	Bus        pkgif.EventBus
	Reporter   metrics.Reporter
}

// newApp 组装 Fx 应用
func newApp(cfg *config.Config, n *node) *fx.App {
	return fx.New(
		fx.Supply(cfg),
		eventbus.Module(),
		metrics.Module(),
		transport.Module(),
		fx.Populate(&n.Transports, &n.Registry, &n.Bus, &n.Reporter),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)
}

func runNode(cmd *cobra.Command) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	logger.Info("启动 BLE 节点", "version", Version, "commit", GitCommit, "peer", cfg.PeerID)

	var n node
	app := newApp(cfg, &n)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if tr := n.Transports.BLE(); tr != nil {
		if err := startSimulation(ctx, cfg, tr, n.Registry, n.Bus); err != nil {
			_ = app.Stop(context.Background())
			return err
		}
	} else {
		logger.Warn("BLE 传输未启用，不运行模拟设备")
	}

	go reportLoop(ctx, n.Registry, n.Reporter, runFlags.Report)

	fmt.Fprintf(cmd.OutOrStdout(), "📦 %s\n", versionInfo())
	fmt.Fprintln(cmd.OutOrStdout(), "节点已启动，按 Ctrl+C 退出")
	waitForSignal()

	fmt.Fprintln(cmd.OutOrStdout(), "\n正在关闭...")
	cancel()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), cfg.BLE.ShutdownTimeout.Duration()+5*time.Second)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("关闭失败: %w", err)
	}
	logger.Info("BLE 节点已关闭")
	return nil
}

// startSimulation 启动入站连接处理、事件订阅和模拟设备
func startSimulation(ctx context.Context, cfg *config.Config, tr *ble.Transport, reg *ble.Registry, bus pkgif.EventBus) error {
	l := tr.Listener()
	if l == nil {
		return errors.New("BLE 传输没有监听器")
	}

	sub, err := bus.Subscribe(new(types.DeviceEvent))
	if err != nil {
		return fmt.Errorf("订阅设备事件: %w", err)
	}
	go watchEvents(ctx, sub)
	go acceptLoop(l, tr.LocalPeer())

	central := blesim.NewCentral(reg, tr, blesim.Options{
		LinkDelay:     cfg.Sim.LinkDelay.Duration(),
		IdentifyDelay: cfg.Sim.IdentifyDelay.Duration(),
		WriteLatency:  cfg.Sim.WriteLatency.Duration(),
		OnWrite: func(d *blesim.Device, payload []byte) {
			// 投递会阻塞到连接读取数据，不能在写入方的 goroutine 中完成
			echo := append([]byte("echo:"), payload...)
			go func() { _ = d.Deliver(echo) }()
		},
	})

	devs := central.Spawn(cfg.Sim.Peers)
	go func() {
		if err := central.Run(ctx, devs); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("模拟设备异常退出", "error", err)
		}
	}()

	logger.Info("模拟设备已启动", "count", len(devs), "listen", l.Multiaddr().String())
	return nil
}

// acceptLoop 接受入站连接直到监听器关闭
func acceptLoop(l pkgif.Listener, local types.PeerID) {
	for {
		c, err := l.Accept()
		if err != nil {
			if !errors.Is(err, ble.ErrListenerClosed) {
				logger.Warn("接受连接失败", "error", err)
			}
			return
		}
		go serveConn(c, local)
	}
}

// serveConn 向设备发送问候并输出收到的数据
func serveConn(c pkgif.Connection, local types.PeerID) {
	defer func() { _ = c.Close() }()

	remote := c.RemoteMultiaddr().String()
	logger.Info("接受入站连接", "remote", remote, "peer", c.RemotePeer().ShortString())

	if _, err := c.Write([]byte("hello from " + local.ShortString())); err != nil {
		logger.Warn("发送问候失败", "remote", remote, "error", err)
		return
	}

	buf := make([]byte, 512)
	for {
		n, err := c.Read(buf)
		if n > 0 {
			logger.Info("收到设备数据", "remote", remote, "data", string(buf[:n]))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("读取结束", "remote", remote, "error", err)
			}
			return
		}
	}
}

// watchEvents 输出注册表异常事件
func watchEvents(ctx context.Context, sub pkgif.Subscription) {
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-sub.Out():
			if !ok {
				return
			}
			evt, ok := v.(types.DeviceEvent)
			if !ok {
				continue
			}
			if evt.Outcome.IsAnomaly() {
				logger.Warn("注册表异常事件", "type", evt.Type(), "outcome", evt.Outcome, "addr", evt.HardwareAddr, "logical", evt.LogicalAddr)
			} else {
				logger.Debug("注册表事件", "type", evt.Type(), "outcome", evt.Outcome, "tracked", evt.Tracked)
			}
		}
	}
}

// reportLoop 周期性输出设备列表和流量统计
func reportLoop(ctx context.Context, reg *ble.Registry, reporter metrics.Reporter, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			devices := reg.Devices()
			totals := reporter.GetBandwidthTotals()
			logger.Info("设备状态", "tracked", len(devices), "bytesIn", totals.TotalIn, "bytesOut", totals.TotalOut)
			for _, d := range devices {
				logger.Debug("设备", "addr", d.HardwareAddr, "logical", d.LogicalAddr,
					"connected", d.Connected, "identified", d.Identified, "since", d.AddedAt.Format(time.RFC3339))
			}
		}
	}
}

// waitForSignal 等待退出信号
func waitForSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
}
