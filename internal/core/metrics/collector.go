package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

const subsystem = "ble"

// Collector 把注册表事件转换为 Prometheus 指标
type Collector struct {
	traffic *TrafficCounter

	// mu 保护 devices
	mu      sync.RWMutex
	devices DeviceCounter

	tracked   prometheus.GaugeFunc
	ops       *prometheus.CounterVec
	anomalies *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	rateIn    prometheus.GaugeFunc
	rateOut   prometheus.GaugeFunc
}

// DeviceCounter 报告当前被跟踪的设备数量，*ble.Registry 实现了该接口
type DeviceCounter interface {
	Len() int
}

// 确保实现接口
var _ pkgif.DeviceTracer = (*Collector)(nil)

// NewCollector 创建指标收集器
//
// traffic 为 nil 时创建新的流量计数器。
func NewCollector(namespace string, traffic *TrafficCounter) *Collector {
	if traffic == nil {
		traffic = NewTrafficCounter()
	}
	rateOpts := func(direction string) prometheus.GaugeOpts {
		return prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "bytes_per_second",
			Help:        "Average payload rate over the last 60 seconds",
			ConstLabels: prometheus.Labels{"direction": direction},
		}
	}

	c := &Collector{
		traffic: traffic,
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operations_total",
			Help:      "Registry operations by op and outcome",
		}, []string{"op", "outcome"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "index_anomalies_total",
			Help:      "Registry index anomalies by outcome",
		}, []string{"outcome"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_total",
			Help:      "Payload bytes exchanged with devices",
		}, []string{"direction"}),
		// 速率在采集时计算
		rateIn: prometheus.NewGaugeFunc(rateOpts("in"), func() float64 {
			return traffic.GetBandwidthTotals().RateIn
		}),
		rateOut: prometheus.NewGaugeFunc(rateOpts("out"), func() float64 {
			return traffic.GetBandwidthTotals().RateOut
		}),
	}
	// 设备数量在采集时直接读取注册表
	c.tracked = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "tracked_devices",
		Help:      "Number of devices currently tracked by the registry",
	}, func() float64 {
		return float64(c.trackedDevices())
	})
	return c
}

// Bind 绑定设备数量来源，未绑定时 tracked_devices 为 0
func (c *Collector) Bind(devices DeviceCounter) {
	c.mu.Lock()
	c.devices = devices
	c.mu.Unlock()
}

func (c *Collector) trackedDevices() int {
	c.mu.RLock()
	devices := c.devices
	c.mu.RUnlock()

	if devices == nil {
		return 0
	}
	return devices.Len()
}

// Traffic 返回流量计数器
func (c *Collector) Traffic() *TrafficCounter {
	return c.traffic
}

// Register 在指定注册表中注册所有指标
func (c *Collector) Register(reg prometheus.Registerer) error {
	var err error
	for _, m := range c.collectors() {
		err = multierr.Append(err, reg.Register(m))
	}
	return err
}

// MustRegister 注册所有指标，失败时 panic
func (c *Collector) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c.collectors()...)
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{c.tracked, c.ops, c.anomalies, c.bytes, c.rateIn, c.rateOut}
}

// Trace 实现 DeviceTracer
func (c *Collector) Trace(evt types.DeviceEvent) {
	c.ops.WithLabelValues(string(evt.Op), string(evt.Outcome)).Inc()

	if evt.Outcome.IsAnomaly() {
		c.anomalies.WithLabelValues(string(evt.Outcome)).Inc()
	}

	switch evt.Op {
	case types.DeviceOpSend:
		if evt.OK() {
			c.bytes.WithLabelValues("out").Add(float64(evt.Size))
		}
	case types.DeviceOpReceive:
		if evt.OK() {
			c.bytes.WithLabelValues("in").Add(float64(evt.Size))
		}
	}

	c.traffic.Trace(evt)
}
