package events

import "sync"

// Bus 同步事件总线
//
// 订阅者回调在发布方的调用栈内同步执行（与引擎的单一提交边界一致：
// 事件发出时状态转换已经完成）。回调不得再调用引擎的修改操作。
type Bus struct {
	mu   sync.RWMutex
	subs []func(Event)
}

// NewBus 创建总线
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe 注册订阅回调
func (b *Bus) Subscribe(fn func(Event)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Publish 发布事件
func (b *Bus) Publish(e Event) {
	if e == nil {
		return
	}
	b.mu.RLock()
	subs := make([]func(Event), len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}
