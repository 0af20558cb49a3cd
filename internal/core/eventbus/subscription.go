package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"

	pkgif "github.com/dep2p/go-dep2p-ble/pkg/interfaces"
)

// ============================================================================
// Subscription 实现
// ============================================================================

// Subscription 订阅
type Subscription struct {
	bus       *Bus
	typ       reflect.Type
	out       chan interface{}
	closeOnce sync.Once
}

var _ pkgif.Subscription = (*Subscription)(nil)

// Out 返回事件通道，订阅关闭后通道被关闭
func (s *Subscription) Out() <-chan interface{} {
	return s.out
}

// Close 取消订阅，可以多次调用
//
// 先从节点移除，之后不会再有发射写入通道，再关闭通道。
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.bus.removeSub(s)
		close(s.out)
	})
	return nil
}

// ============================================================================
// Emitter 实现
// ============================================================================

// Emitter 事件发射器
type Emitter struct {
	bus       *Bus
	node      *node
	typ       reflect.Type
	closed    atomic.Bool
	closeOnce sync.Once
}

var _ pkgif.Emitter = (*Emitter)(nil)

// Emit 发射事件
func (e *Emitter) Emit(event interface{}) error {
	if e.closed.Load() {
		return ErrEmitterClosed
	}
	if e.bus.closed.Load() {
		return nil
	}
	e.node.emit(event)
	return nil
}

// Close 关闭发射器，引用计数归零时尝试删除节点
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if e.node.nEmitters.Add(-1) == 0 {
			e.bus.tryDropNode(e.typ)
		}
	})
	return nil
}

// ============================================================================
// 选项
// ============================================================================

// BufSize 设置订阅缓冲区大小，与 pkg/interfaces.BufSize 等效
func BufSize(size int) pkgif.SubscriptionOpt {
	return pkgif.BufSize(size)
}

// Stateful 设置发射器为有状态模式，与 pkg/interfaces.Stateful 等效
func Stateful() pkgif.EmitterOpt {
	return pkgif.Stateful()
}
