// Package metrics 提供 BLE 设备注册表的监控指标
//
// metrics 模块以 DeviceTracer 的形式接入注册表，提供：
//   - 流量统计（全局 / 按设备逻辑地址）
//   - 流量速率计算（60 秒滑动窗口）
//   - Prometheus 指标（被跟踪设备数、操作结果、索引异常、字节数）
//   - 可选的 /metrics HTTP 端点
//
// # 快速开始
//
//	counter := metrics.NewTrafficCounter()
//	collector := metrics.NewCollector("dep2p", counter)
//
//	reg := prometheus.NewRegistry()
//	collector.MustRegister(reg)
//
//	registry := ble.NewRegistry(ble.WithTracer(collector))
//
//	stats := counter.GetBandwidthTotals()
//	fmt.Printf("In: %d, Out: %d\n", stats.TotalIn, stats.TotalOut)
//
// # Fx 模块
//
//	app := fx.New(
//	    metrics.Module(),
//	    transport.Module(),
//	)
//
// Module 把 Collector 加入 value group "ble_tracers"，transport 模块会自动
// 接入。
//
// # 内存管理
//
// 设备被注销或断开后，其按设备统计会被移除。
package metrics
