package cep

import "vigil/internal/event"

// keyedWindow 按分区键维护时间有界的事件队列，是操作符的显式状态对象。
// 不做跨键淘汰：高基数键的增长上限由调用方的键空间决定。
type keyedWindow struct {
	windowSec int64
	buckets   map[string][]event.Event
}

func newKeyedWindow(windowSec int64) *keyedWindow {
	return &keyedWindow{
		windowSec: windowSec,
		buckets:   make(map[string][]event.Event),
	}
}

// prune 丢弃 key 分区中相对 now 超出窗口的队首事件，返回存活队列。
// 恰好等于窗口边界的事件保留。
func (w *keyedWindow) prune(key string, now int64) []event.Event {
	q := w.buckets[key]
	drop := 0
	for drop < len(q) && now-q[drop].TS > w.windowSec {
		drop++
	}
	if drop > 0 {
		q = q[drop:]
		w.buckets[key] = q
	}
	return q
}

func (w *keyedWindow) append(key string, evt event.Event) {
	w.buckets[key] = append(w.buckets[key], evt)
}

func (w *keyedWindow) replace(key string, q []event.Event) {
	w.buckets[key] = q
}
