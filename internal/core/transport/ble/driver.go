package ble

import (
	"errors"
	"fmt"

	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

// ============================================================================
//                              传输层入口
// ============================================================================
//
// 以下操作都按逻辑地址解析设备，再委派给对应的连接句柄。
// 所有失败都是软失败：返回 false 并上报事件，注册表保持可用。

// Dial 报告设备当前是否可用
//
// 只有设备存在且链路处于已连接状态时返回 true。Dial 不会发起连接，
// 连接建立由原生驱动负责。
func (r *Registry) Dial(logical string) bool {
	logger.Info("拨号设备", "logical", logical)

	e, ok := r.resolve(types.DeviceOpDial, logical)
	if !ok {
		r.trace(types.DeviceEvent{Op: types.DeviceOpDial, LogicalAddr: logical, Outcome: types.OutcomeNotFound, Err: ErrNotFound, Tracked: r.Len()})
		return false
	}

	if !e.dev.IsLinkConnected() {
		r.trace(types.DeviceEvent{Op: types.DeviceOpDial, HardwareAddr: e.hwAddr, LogicalAddr: logical, Outcome: types.OutcomeNotConnected, Tracked: r.Len()})
		return false
	}

	r.trace(types.DeviceEvent{Op: types.DeviceOpDial, HardwareAddr: e.hwAddr, LogicalAddr: logical, Outcome: types.OutcomeOK, Tracked: r.Len()})
	return true
}

// Send 向设备写入数据
//
// 设备不存在或尚未识别时返回 false；否则委派给设备写入并返回其结果。
// 写入过程中的中断（错误或 panic）转换为 false。
func (r *Registry) Send(logical string, payload []byte) bool {
	logger.Debug("写入设备", "logical", logical, "length", len(payload))

	e, ok := r.resolve(types.DeviceOpSend, logical)
	if !ok {
		// 设备可能已经完全断开，而上层尚未感知
		logger.Error("写入失败：未知设备", "logical", logical)
		r.trace(types.DeviceEvent{Op: types.DeviceOpSend, LogicalAddr: logical, Outcome: types.OutcomeNotFound, Err: ErrNotFound, Size: len(payload), Tracked: r.Len()})
		return false
	}

	if !e.dev.IsIdentified() {
		// 设备可能正在重连
		logger.Error("写入失败：设备尚未就绪", "logical", logical, "addr", e.hwAddr)
		r.trace(types.DeviceEvent{Op: types.DeviceOpSend, HardwareAddr: e.hwAddr, LogicalAddr: logical, Outcome: types.OutcomeNotReady, Err: ErrNotReady, Size: len(payload), Tracked: r.Len()})
		return false
	}

	written, err := writeDevice(e.dev, payload)
	switch {
	case err != nil:
		logger.Error("写入失败", "logical", logical, "addr", e.hwAddr, "error", err)
		r.trace(types.DeviceEvent{Op: types.DeviceOpSend, HardwareAddr: e.hwAddr, LogicalAddr: logical, Outcome: types.OutcomeInterrupted, Err: err, Size: len(payload), Tracked: r.Len()})
		return false
	case !written:
		r.trace(types.DeviceEvent{Op: types.DeviceOpSend, HardwareAddr: e.hwAddr, LogicalAddr: logical, Outcome: types.OutcomeWriteFailed, Size: len(payload), Tracked: r.Len()})
		return false
	}

	r.trace(types.DeviceEvent{Op: types.DeviceOpSend, HardwareAddr: e.hwAddr, LogicalAddr: logical, Outcome: types.OutcomeOK, Size: len(payload), Tracked: r.Len()})
	return true
}

// writeDevice 调用设备写入，把中断错误和 panic 统一转换为 ErrLinkInterrupted
func writeDevice(dev pkgif.BLEDevice, payload []byte) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			err = fmt.Errorf("%w: panic: %v", ErrLinkInterrupted, rec)
		}
	}()

	ok, err = dev.Write(payload)
	if err != nil && !errors.Is(err, ErrLinkInterrupted) {
		err = fmt.Errorf("%w: %w", ErrLinkInterrupted, err)
	}
	return ok, err
}

// CloseConn 使用默认断开原因关闭与设备的连接
func (r *Registry) CloseConn(logical string) {
	r.CloseConnWithReason(logical, r.disconnectReason)
}

// CloseConnWithReason 关闭与设备的连接
//
// 条目在同一个临界区内被解析并移除，返回前设备对其他调用方已不可见；
// 随后中断设备的进行中操作并请求断开。设备断开回调里的 Unregister
// 会被识别为预期内的迟到注销。
func (r *Registry) CloseConnWithReason(logical, reason string) {
	r.closeConn(logical, nil, reason)
}

// closeHandle 仅在逻辑地址仍解析到 dev 时断开
//
// 传输连接关闭时使用：同一逻辑地址上的新句柄（重连）不受旧连接影响。
func (r *Registry) closeHandle(logical string, dev pkgif.BLEDevice) {
	r.closeConn(logical, dev, r.disconnectReason)
}

func (r *Registry) closeConn(logical string, want pkgif.BLEDevice, reason string) {
	logger.Info("断开设备", "logical", logical, "reason", reason)

	e, ok, replaced := r.take(logical, want)
	if replaced {
		logger.Debug("句柄已被取代，跳过断开", "logical", logical, "addr", e.hwAddr)
		return
	}
	if !ok {
		logger.Error("断开失败：未知设备", "logical", logical)
		r.trace(types.DeviceEvent{Op: types.DeviceOpClose, LogicalAddr: logical, Outcome: types.OutcomeStaleRemoval, Err: ErrStaleRemoval, Tracked: r.Len()})
		return
	}

	e.dev.Interrupt()
	e.dev.Disconnect(reason)

	r.trace(types.DeviceEvent{Op: types.DeviceOpClose, HardwareAddr: e.hwAddr, LogicalAddr: logical, Outcome: types.OutcomeOK, Tracked: r.Len()})
}

// take 在一个写临界区内解析逻辑地址并移除条目
//
// want 非 nil 时只移除该句柄；解析到其他句柄时不做修改并返回 replaced。
func (r *Registry) take(logical string, want pkgif.BLEDevice) (found *entry, ok, replaced bool) {
	if logical == "" {
		return nil, false, false
	}

	r.mu.Lock()
	if hw, ok := r.byLogical[logical]; ok {
		if e, ok := r.devices[hw]; ok && e.dev.LogicalAddr() == logical {
			found = e
		}
	}
	if found == nil {
		for _, e := range r.devices {
			if e.dev.LogicalAddr() == logical && (found == nil || e.seq < found.seq) {
				found = e
			}
		}
	}
	if found != nil && want != nil && found.dev != want {
		r.mu.Unlock()
		return found, false, true
	}
	if found != nil {
		r.removeLocked(found)
		// 与移除处于同一临界区，句柄的断开回调不会落在两者之间
		r.evicted.Add(found.hwAddr, found.dev)
	}
	r.mu.Unlock()

	return found, found != nil, false
}

// ShutdownAll 中断并移除所有被跟踪的设备
//
// 先在读锁下复制设备列表，释放锁后逐个处理：每个设备的移除是独立的短
// 临界区，随后中断其连接活动。期间并发的 Register / Unregister / 查询
// 都是安全的；调用之后才注册的设备不在本次处理范围内。
//
// 可以重复调用，返回本次实际移除的设备数量。
func (r *Registry) ShutdownAll() int {
	entries := r.snapshot()
	logger.Debug("断开所有设备", "count", len(entries))

	removed := 0
	for _, e := range entries {
		r.mu.Lock()
		cur, ok := r.devices[e.hwAddr]
		stillTracked := ok && cur == e
		if stillTracked {
			r.removeLocked(e)
			r.evicted.Add(e.hwAddr, e.dev)
		}
		n := len(r.devices)
		r.mu.Unlock()

		if stillTracked {
			removed++
		}
		e.dev.Interrupt()

		outcome := types.OutcomeOK
		if !stillTracked {
			outcome = types.OutcomeEvicted
		}
		r.trace(types.DeviceEvent{Op: types.DeviceOpShutdown, HardwareAddr: e.hwAddr, LogicalAddr: e.logical, Outcome: outcome, Tracked: n})
	}

	if removed > 0 {
		logger.Info("已断开所有设备", "removed", removed)
	}
	return removed
}
