package event

import (
	"runtime/debug"
	"sync"

	"vigil/internal/logger"
)

// Handler 处理一条事件。panic 会被总线捕获并记录，不会影响其它订阅者。
type Handler func(Event)

const defaultQueueSize = 256

// subscriber 拥有独立的有界队列与 worker，慢订阅者不会阻塞发布方。
type subscriber struct {
	name string
	h    Handler
	ch   chan envelope
}

type envelope struct {
	evt Event
	bus *Bus
}

// Bus 是发布/订阅扇出原语。投递相对 Publish 异步；队列满时采用
// drop-oldest 背压策略（丢弃该订阅者队列中最旧的事件）。
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscriber
	queue   int
	workers sync.WaitGroup
	pending sync.WaitGroup
	closed  bool
}

// NewBus 创建事件总线。queue<=0 时使用默认队列深度。
func NewBus(queue int) *Bus {
	if queue <= 0 {
		queue = defaultQueueSize
	}
	return &Bus{queue: queue}
}

// Subscribe 注册订阅者并启动其 worker。投递顺序与订阅顺序一致。
func (b *Bus) Subscribe(name string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	sub := &subscriber{name: name, h: h, ch: make(chan envelope, b.queue)}
	b.subs = append(b.subs, sub)
	b.workers.Add(1)
	go b.runWorker(sub)
}

// Publish 将事件投递到所有订阅者队列。队列满时丢弃最旧事件并记录。
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	subs := b.subs
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return
	}
	for _, sub := range subs {
		b.pending.Add(1)
		select {
		case sub.ch <- envelope{evt: evt, bus: b}:
			continue
		default:
		}
		// 队列已满：弹出最旧的一条再尝试入队。
		select {
		case <-sub.ch:
			b.pending.Done()
			logger.Warnf("[bus] 订阅者 %s 队列已满，丢弃最旧事件", sub.name)
		default:
		}
		select {
		case sub.ch <- envelope{evt: evt, bus: b}:
		default:
			// worker 恰好在消费导致竞争，放弃本条以保持 Publish 非阻塞。
			b.pending.Done()
			logger.Warnf("[bus] 订阅者 %s 投递失败，丢弃事件 %s", sub.name, evt.Type)
		}
	}
}

// Flush 等待所有已入队事件处理完毕，主要供测试与停机使用。
func (b *Bus) Flush() {
	b.pending.Wait()
}

// Close 关闭总线并等待所有 worker 退出。
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.mu.Unlock()
	b.pending.Wait()
	for _, sub := range subs {
		close(sub.ch)
	}
	b.workers.Wait()
}

func (b *Bus) runWorker(sub *subscriber) {
	defer b.workers.Done()
	for env := range sub.ch {
		b.invoke(sub, env.evt)
		b.pending.Done()
	}
}

// invoke 隔离单个订阅者的失败：panic 只影响这一条投递。
func (b *Bus) invoke(sub *subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[bus] 订阅者 %s panic: %v\n%s", sub.name, r, debug.Stack())
		}
	}()
	sub.h(evt)
}
