package eventbus

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
	"github.com/dep2p/go-dep2p-ble/pkg/lib/log"
)

var logger = log.Logger("core/eventbus")

const defaultBuffer = 16

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrClosed 事件总线已关闭
	ErrClosed = errors.New("eventbus closed")
	// ErrInvalidEventType 无效的事件类型
	ErrInvalidEventType = errors.New("invalid event type")
	// ErrNonPointerType 非指针类型
	ErrNonPointerType = errors.New("subscribe called with non-pointer type")
	// ErrEmitterClosed 发射器已关闭
	ErrEmitterClosed = errors.New("emitter is closed")
)

// ============================================================================
// Bus 实现
// ============================================================================

// Bus 事件总线
type Bus struct {
	mu sync.RWMutex

	// nodes 事件类型节点映射
	nodes map[reflect.Type]*node

	closed atomic.Bool
}

// 确保实现接口
var _ pkgif.EventBus = (*Bus)(nil)

// node 事件类型节点
type node struct {
	lk        sync.Mutex
	typ       reflect.Type
	sinks     []*Subscription // 订阅者列表
	nEmitters atomic.Int32    // 发射器引用计数
	keepLast  bool            // 是否保持最后一个事件（Stateful）
	last      interface{}     // 最后一个事件
	dropCount atomic.Int64    // 丢弃事件计数
}

// NewBus 创建新的事件总线
func NewBus() *Bus {
	return &Bus{
		nodes: make(map[reflect.Type]*node),
	}
}

// elemType 校验并返回事件类型指针指向的类型
func elemType(eventType interface{}) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	typ := reflect.TypeOf(eventType)
	if typ.Kind() != reflect.Ptr {
		return nil, ErrNonPointerType
	}
	return typ.Elem(), nil
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(eventType interface{}, opts ...pkgif.SubscriptionOpt) (pkgif.Subscription, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	settings := pkgif.SubscriptionSettings{Buffer: defaultBuffer}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.Buffer < 0 {
		settings.Buffer = 0
	}

	sub := &Subscription{
		bus: b,
		typ: typ,
		out: make(chan interface{}, settings.Buffer),
	}

	b.withNode(typ, func(n *node) {
		n.sinks = append(n.sinks, sub)

		// 有状态节点立即补发最后的事件
		if n.keepLast && n.last != nil {
			select {
			case sub.out <- n.last:
			default:
			}
		}
	})

	return sub, nil
}

// Emitter 获取发射器
func (b *Bus) Emitter(eventType interface{}, opts ...pkgif.EmitterOpt) (pkgif.Emitter, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	var settings pkgif.EmitterSettings
	for _, opt := range opts {
		opt(&settings)
	}

	var n *node
	b.withNode(typ, func(nd *node) {
		n = nd
		n.nEmitters.Add(1)
		if settings.Stateful {
			n.keepLast = true
		}
	})

	return &Emitter{bus: b, node: n, typ: typ}, nil
}

// EventTypes 返回所有已注册事件类型的零值
func (b *Bus) EventTypes() []interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]interface{}, 0, len(b.nodes))
	for typ := range b.nodes {
		out = append(out, reflect.Zero(typ).Interface())
	}
	return out
}

// Close 关闭事件总线并关闭所有订阅
//
// 关闭后 Subscribe / Emitter 返回 ErrClosed，已有发射器的 Emit 静默丢弃。
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.RLock()
	var subs []*Subscription
	for _, n := range b.nodes {
		n.lk.Lock()
		subs = append(subs, n.sinks...)
		n.lk.Unlock()
	}
	b.mu.RUnlock()

	for _, s := range subs {
		_ = s.Close()
	}
	logger.Debug("事件总线已关闭", "subscriptions", len(subs))
	return nil
}

// ============================================================================
// 内部方法
// ============================================================================

// withNode 在节点锁内执行操作，节点不存在时创建
func (b *Bus) withNode(typ reflect.Type, cb func(*node)) {
	b.mu.Lock()
	n, ok := b.nodes[typ]
	if !ok {
		n = &node{typ: typ}
		b.nodes[typ] = n
	}
	n.lk.Lock()
	b.mu.Unlock()

	cb(n)
	n.lk.Unlock()
}

// tryDropNode 没有订阅者和发射器时删除节点
func (b *Bus) tryDropNode(typ reflect.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[typ]
	if !ok {
		return
	}

	n.lk.Lock()
	idle := len(n.sinks) == 0 && n.nEmitters.Load() == 0
	n.lk.Unlock()

	if idle {
		delete(b.nodes, typ)
	}
}

// removeSub 移除订阅
func (b *Bus) removeSub(sub *Subscription) {
	b.mu.RLock()
	n, ok := b.nodes[sub.typ]
	b.mu.RUnlock()
	if !ok {
		return
	}

	n.lk.Lock()
	for i, s := range n.sinks {
		if s == sub {
			n.sinks = append(n.sinks[:i], n.sinks[i+1:]...)
			break
		}
	}
	idle := len(n.sinks) == 0 && n.nEmitters.Load() == 0
	n.lk.Unlock()

	if idle {
		b.tryDropNode(sub.typ)
	}
}

// emit 发射事件到所有订阅者，从不阻塞
func (n *node) emit(event interface{}) {
	n.lk.Lock()
	defer n.lk.Unlock()

	if n.keepLast {
		n.last = event
	}

	for _, sub := range n.sinks {
		select {
		case sub.out <- event:
		default:
			dropped := n.dropCount.Add(1)
			// 每丢弃 100 个事件警告一次
			if dropped%100 == 1 {
				logger.Warn("慢消费者检测",
					"dropped", dropped,
					"type", n.typ.String(),
					"reason", "subscriber buffer full")
			}
		}
	}
}
