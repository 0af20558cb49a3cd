package interfaces

// EventBus 定义事件总线接口
//
// EventBus 提供按类型分发的发布/订阅机制。
type EventBus interface {
	// Subscribe 订阅指定类型的事件，eventType 必须是指针，如 new(types.DeviceEvent)
	Subscribe(eventType interface{}, opts ...SubscriptionOpt) (Subscription, error)

	// Emitter 获取指定事件类型的发射器
	Emitter(eventType interface{}, opts ...EmitterOpt) (Emitter, error)
}

// Subscription 定义事件订阅接口
type Subscription interface {
	// Out 返回接收事件的通道
	Out() <-chan interface{}

	// Close 取消订阅
	Close() error
}

// Emitter 定义事件发射器接口
type Emitter interface {
	// Emit 发射事件
	Emit(event interface{}) error

	// Close 关闭发射器
	Close() error
}

// SubscriptionOpt 订阅选项函数类型
type SubscriptionOpt func(*SubscriptionSettings)

// EmitterOpt 发射器选项函数类型
type EmitterOpt func(*EmitterSettings)

// SubscriptionSettings 订阅设置
type SubscriptionSettings struct {
	Buffer int
}

// EmitterSettings 发射器设置
type EmitterSettings struct {
	// Stateful 新订阅者会立即收到最后一个事件
	Stateful bool
}

// BufSize 设置订阅缓冲区大小
func BufSize(size int) SubscriptionOpt {
	return func(s *SubscriptionSettings) {
		s.Buffer = size
	}
}

// Stateful 设置发射器为有状态模式
func Stateful() EmitterOpt {
	return func(s *EmitterSettings) {
		s.Stateful = true
	}
}
