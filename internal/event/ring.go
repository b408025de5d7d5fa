package event

import "sync"

// Ring 保留最近 N 条事件的环形缓冲，供新接入的消费方回填。
// 写入方通常是总线订阅者，读取方是查询路径，读写都加锁。
type Ring struct {
	mu   sync.RWMutex
	max  int
	buf  []Event
	next int
	full bool
}

// NewRing 创建容量为 max 的缓冲（max<=0 时默认 256）。
func NewRing(max int) *Ring {
	if max <= 0 {
		max = 256
	}
	return &Ring{max: max, buf: make([]Event, max)}
}

// Add 追加一条事件，满时覆盖最旧的。
func (r *Ring) Add(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = evt
	r.next = (r.next + 1) % r.max
	if r.next == 0 {
		r.full = true
	}
}

// Len 返回当前缓冲的事件数量。
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return r.max
	}
	return r.next
}

// Recent 按从旧到新的顺序返回缓冲内容的副本。
func (r *Ring) Recent() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full {
		out := make([]Event, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]Event, 0, r.max)
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
