package ble

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	"github.com/dep2p/go-dep2p-ble/pkg/lib/log"
	"github.com/dep2p/go-dep2p-ble/pkg/types"
)

var logger = log.Logger("core/transport/ble")

const defaultRecentEvictions = 128

// ============================================================================
//                              Registry 实现
// ============================================================================

// Registry BLE 设备注册表
//
// 以硬件地址为主键跟踪每个远端设备的连接句柄，并支持按逻辑地址解析。
// 表中是否存在某个硬件地址是"设备是否被跟踪"的唯一依据；注册表只拥有
// 映射条目，不拥有句柄的内部状态。
//
// 所有表访问都在 mu 保护的短临界区内完成，对句柄的 I/O（Write、
// Disconnect、Interrupt）一律在释放锁之后进行。
//
// BLEDevice 实现必须是可比较类型（通常为指针），注册表用 == 判断
// 是否为同一个句柄实例。
type Registry struct {
	mu sync.RWMutex

	// devices 硬件地址 → 条目
	devices map[string]*entry

	// byLogical 逻辑地址 → 硬件地址，由 Identify 维护
	byLogical map[string]string

	// seq 注册序号，用于按注册顺序遍历
	seq uint64

	// evicted 最近被注册表主动移除的句柄（CloseConn / ShutdownAll）
	evicted *lru.Cache[string, pkgif.BLEDevice]

	tracer           pkgif.DeviceTracer
	clock            clock.Clock
	maxDevices       int
	disconnectReason string
}

// entry 注册表条目
type entry struct {
	dev     pkgif.BLEDevice
	hwAddr  string
	logical string // Identify 记录的逻辑地址
	addedAt time.Time
	seq     uint64
}

// DeviceInfo 设备快照
type DeviceInfo struct {
	HardwareAddr string
	LogicalAddr  string
	Connected    bool
	Identified   bool
	AddedAt      time.Time
}

// RegistryOption 注册表选项
type RegistryOption func(*registryOptions)

type registryOptions struct {
	tracer           pkgif.DeviceTracer
	clock            clock.Clock
	maxDevices       int
	recentEvictions  int
	disconnectReason string
}

// WithTracer 设置观测接口
func WithTracer(t pkgif.DeviceTracer) RegistryOption {
	return func(o *registryOptions) {
		o.tracer = t
	}
}

// WithClock 设置时钟（测试时可注入 clock.NewMock()）
func WithClock(c clock.Clock) RegistryOption {
	return func(o *registryOptions) {
		o.clock = c
	}
}

// WithMaxDevices 设置设备上限，0 表示不限制
func WithMaxDevices(n int) RegistryOption {
	return func(o *registryOptions) {
		o.maxDevices = n
	}
}

// WithRecentEvictions 设置最近移除记录的容量
func WithRecentEvictions(n int) RegistryOption {
	return func(o *registryOptions) {
		o.recentEvictions = n
	}
}

// WithDisconnectReason 设置 CloseConn 使用的断开原因
func WithDisconnectReason(reason string) RegistryOption {
	return func(o *registryOptions) {
		o.disconnectReason = reason
	}
}

// NewRegistry 创建设备注册表
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{
		tracer:           NopTracer{},
		clock:            clock.New(),
		recentEvictions:  defaultRecentEvictions,
		disconnectReason: "libp2p request",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = NopTracer{}
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.recentEvictions <= 0 {
		o.recentEvictions = defaultRecentEvictions
	}

	// 容量为正时 lru.New 不会返回错误
	evicted, _ := lru.New[string, pkgif.BLEDevice](o.recentEvictions)

	return &Registry{
		devices:          make(map[string]*entry),
		byLogical:        make(map[string]string),
		evicted:          evicted,
		tracer:           o.tracer,
		clock:            o.clock,
		maxDevices:       o.maxDevices,
		disconnectReason: o.disconnectReason,
	}
}

// ============================================================================
//                              索引管理
// ============================================================================

// Register 注册设备
//
// 硬件地址已存在时拒绝插入（不覆盖），原条目保持不变，返回 ErrDuplicateKey。
func (r *Registry) Register(dev pkgif.BLEDevice) error {
	if dev == nil {
		return ErrNilDevice
	}
	addr := dev.HardwareAddr()
	if addr == "" {
		r.trace(types.DeviceEvent{Op: types.DeviceOpRegister, Outcome: types.OutcomeRejected, Err: ErrEmptyHardwareAddr})
		return ErrEmptyHardwareAddr
	}

	r.mu.Lock()
	if _, ok := r.devices[addr]; ok {
		n := len(r.devices)
		r.mu.Unlock()

		logger.Error("设备已在索引中", "addr", addr, "size", n)
		err := fmt.Errorf("%w: %s", ErrDuplicateKey, addr)
		r.trace(types.DeviceEvent{Op: types.DeviceOpRegister, HardwareAddr: addr, Outcome: types.OutcomeDuplicateKey, Err: err, Tracked: n})
		return err
	}
	if r.maxDevices > 0 && len(r.devices) >= r.maxDevices {
		n := len(r.devices)
		r.mu.Unlock()

		logger.Warn("设备数量已达上限", "addr", addr, "max", r.maxDevices)
		r.trace(types.DeviceEvent{Op: types.DeviceOpRegister, HardwareAddr: addr, Outcome: types.OutcomeRejected, Err: ErrRegistryFull, Tracked: n})
		return ErrRegistryFull
	}

	r.seq++
	r.devices[addr] = &entry{
		dev:     dev,
		hwAddr:  addr,
		addedAt: r.clock.Now(),
		seq:     r.seq,
	}
	n := len(r.devices)
	r.mu.Unlock()

	logger.Debug("设备加入索引", "addr", addr, "size", n)
	r.trace(types.DeviceEvent{Op: types.DeviceOpRegister, HardwareAddr: addr, Outcome: types.OutcomeOK, Tracked: n})
	return nil
}

// Unregister 注销设备
//
// 只有当表中条目指向同一个句柄实例时才会移除，重连后注册的新句柄
// 不会被旧句柄的迟到回调删除。
//
// 如果句柄刚被注册表主动移除（CloseConn / ShutdownAll），这次注销是预期内的，
// 返回 nil；否则视为异常，返回 ErrStaleRemoval，表保持不变。
func (r *Registry) Unregister(dev pkgif.BLEDevice) error {
	if dev == nil {
		return ErrNilDevice
	}
	addr := dev.HardwareAddr()

	r.mu.Lock()
	e, ok := r.devices[addr]
	if ok && e.dev == dev {
		r.removeLocked(e)
		n := len(r.devices)
		r.mu.Unlock()

		logger.Debug("设备移出索引", "addr", addr, "size", n)
		r.trace(types.DeviceEvent{Op: types.DeviceOpUnregister, HardwareAddr: addr, LogicalAddr: e.logical, Outcome: types.OutcomeOK, Tracked: n})
		return nil
	}
	n := len(r.devices)
	r.mu.Unlock()

	if prev, ok := r.evicted.Peek(addr); ok && prev == dev {
		r.evicted.Remove(addr)
		logger.Debug("设备已被注册表移除", "addr", addr)
		r.trace(types.DeviceEvent{Op: types.DeviceOpUnregister, HardwareAddr: addr, Outcome: types.OutcomeEvicted, Tracked: n})
		return nil
	}

	logger.Error("设备不在索引中", "addr", addr, "superseded", ok)
	err := fmt.Errorf("%w: %s", ErrStaleRemoval, addr)
	r.trace(types.DeviceEvent{Op: types.DeviceOpUnregister, HardwareAddr: addr, Outcome: types.OutcomeStaleRemoval, Err: err, Tracked: n})
	return err
}

// Identify 记录设备的逻辑地址
//
// 设备完成识别握手后调用。逻辑地址已被另一个被跟踪的设备占用时拒绝，
// 返回 ErrDuplicateLogicalAddr。
func (r *Registry) Identify(dev pkgif.BLEDevice) error {
	if dev == nil {
		return ErrNilDevice
	}
	addr := dev.HardwareAddr()
	logical := dev.LogicalAddr()
	if logical == "" {
		r.trace(types.DeviceEvent{Op: types.DeviceOpIdentify, HardwareAddr: addr, Outcome: types.OutcomeRejected, Err: ErrNoLogicalAddr})
		return ErrNoLogicalAddr
	}

	r.mu.Lock()
	e, ok := r.devices[addr]
	if !ok || e.dev != dev {
		n := len(r.devices)
		r.mu.Unlock()

		r.trace(types.DeviceEvent{Op: types.DeviceOpIdentify, HardwareAddr: addr, LogicalAddr: logical, Outcome: types.OutcomeNotFound, Err: ErrNotFound, Tracked: n})
		return fmt.Errorf("%w: %s", ErrNotFound, addr)
	}

	if owner := r.logicalOwnerLocked(logical, e); owner != nil {
		n := len(r.devices)
		r.mu.Unlock()

		logger.Error("逻辑地址已被占用", "addr", addr, "logical", logical, "owner", owner.hwAddr)
		err := fmt.Errorf("%w: %s held by %s", ErrDuplicateLogicalAddr, logical, owner.hwAddr)
		r.trace(types.DeviceEvent{Op: types.DeviceOpIdentify, HardwareAddr: addr, LogicalAddr: logical, Outcome: types.OutcomeDuplicateLogical, Err: err, Tracked: n})
		return err
	}

	if e.logical != "" && r.byLogical[e.logical] == addr {
		delete(r.byLogical, e.logical)
	}
	e.logical = logical
	r.byLogical[logical] = addr
	n := len(r.devices)
	r.mu.Unlock()

	logger.Debug("设备已识别", "addr", addr, "logical", logical)
	r.trace(types.DeviceEvent{Op: types.DeviceOpIdentify, HardwareAddr: addr, LogicalAddr: logical, Outcome: types.OutcomeOK, Tracked: n})
	return nil
}

// logicalOwnerLocked 返回除 self 之外占用该逻辑地址的条目
//
// 调用方必须持有 mu。
func (r *Registry) logicalOwnerLocked(logical string, self *entry) *entry {
	if hw, ok := r.byLogical[logical]; ok && hw != self.hwAddr {
		if owner, ok := r.devices[hw]; ok && owner.dev.LogicalAddr() == logical {
			return owner
		}
	}
	for _, other := range r.devices {
		if other != self && other.dev.LogicalAddr() == logical {
			return other
		}
	}
	return nil
}

// removeLocked 删除条目及其逻辑地址索引
//
// 调用方必须持有 mu。
func (r *Registry) removeLocked(e *entry) {
	delete(r.devices, e.hwAddr)
	if e.logical != "" && r.byLogical[e.logical] == e.hwAddr {
		delete(r.byLogical, e.logical)
	}
}

// ============================================================================
//                              查询
// ============================================================================

// Lookup 按硬件地址查找设备
func (r *Registry) Lookup(hwAddr string) (pkgif.BLEDevice, bool) {
	r.mu.RLock()
	e, ok := r.devices[hwAddr]
	n := len(r.devices)
	r.mu.RUnlock()

	if !ok {
		logger.Warn("未找到设备", "addr", hwAddr)
		r.trace(types.DeviceEvent{Op: types.DeviceOpLookup, HardwareAddr: hwAddr, Outcome: types.OutcomeNotFound, Err: ErrNotFound, Tracked: n})
		return nil, false
	}
	r.trace(types.DeviceEvent{Op: types.DeviceOpLookup, HardwareAddr: hwAddr, Outcome: types.OutcomeOK, Tracked: n})
	return e.dev, true
}

// LookupLogical 按逻辑地址查找设备
func (r *Registry) LookupLogical(logical string) (pkgif.BLEDevice, bool) {
	e, ok := r.resolve(types.DeviceOpLookupLogical, logical)
	if !ok {
		logger.Error("未找到逻辑地址对应的设备", "logical", logical)
		r.trace(types.DeviceEvent{Op: types.DeviceOpLookupLogical, LogicalAddr: logical, Outcome: types.OutcomeNotFound, Err: ErrNotFound, Tracked: r.Len()})
		return nil, false
	}
	r.trace(types.DeviceEvent{Op: types.DeviceOpLookupLogical, HardwareAddr: e.hwAddr, LogicalAddr: logical, Outcome: types.OutcomeOK, Tracked: r.Len()})
	return e.dev, true
}

// handle 返回逻辑地址当前对应的句柄，不上报查询事件
func (r *Registry) handle(logical string) pkgif.BLEDevice {
	e, ok := r.resolve(types.DeviceOpLookupLogical, logical)
	if !ok {
		return nil
	}
	return e.dev
}

// resolve 解析逻辑地址
//
// 先查 Identify 建立的索引；索引未命中（设备未调用 Identify，或逻辑地址
// 已变化）时按注册顺序扫描整张表，第一个匹配者胜出，多个匹配作为异常上报。
// 整个过程持有读锁，不会观察到修改到一半的表。
func (r *Registry) resolve(op types.DeviceOp, logical string) (*entry, bool) {
	if logical == "" {
		return nil, false
	}

	r.mu.RLock()
	if hw, ok := r.byLogical[logical]; ok {
		if e, ok := r.devices[hw]; ok && e.dev.LogicalAddr() == logical {
			r.mu.RUnlock()
			return e, true
		}
	}

	var first *entry
	matches := 0
	for _, e := range r.devices {
		if e.dev.LogicalAddr() != logical {
			continue
		}
		matches++
		if first == nil || e.seq < first.seq {
			first = e
		}
	}
	n := len(r.devices)
	r.mu.RUnlock()

	if matches > 1 {
		logger.Error("逻辑地址匹配多个设备", "logical", logical, "matches", matches, "chosen", first.hwAddr)
		r.trace(types.DeviceEvent{Op: op, HardwareAddr: first.hwAddr, LogicalAddr: logical, Outcome: types.OutcomeAmbiguous, Tracked: n})
	}
	return first, first != nil
}

// Contains 检查硬件地址是否被跟踪
func (r *Registry) Contains(hwAddr string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[hwAddr]
	return ok
}

// Len 返回被跟踪的设备数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Devices 返回按注册顺序排列的设备快照
//
// 句柄状态在释放锁之后读取，快照中的状态可能已经过时。
func (r *Registry) Devices() []DeviceInfo {
	entries := r.snapshot()

	infos := make([]DeviceInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, DeviceInfo{
			HardwareAddr: e.hwAddr,
			LogicalAddr:  e.dev.LogicalAddr(),
			Connected:    e.dev.IsLinkConnected(),
			Identified:   e.dev.IsIdentified(),
			AddedAt:      e.addedAt,
		})
	}
	return infos
}

// snapshot 在读锁下复制条目列表，按注册顺序排序
func (r *Registry) snapshot() []*entry {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.devices))
	for _, e := range r.devices {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})
	return entries
}

// trace 上报事件，调用时不能持有 mu
func (r *Registry) trace(evt types.DeviceEvent) {
	if evt.Time.IsZero() {
		evt.Time = r.clock.Now()
	}
	r.tracer.Trace(evt)
}
