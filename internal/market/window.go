package market

import "sync"

// Window 维护最近 N 根 K 线的滚动缓存，供指标与前端回填使用。
type Window struct {
	mu      sync.RWMutex
	max     int
	candles []Candle
}

// NewWindow 创建容量为 max 的滚动窗口（max<=0 时默认 2000）。
func NewWindow(max int) *Window {
	if max <= 0 {
		max = 2000
	}
	return &Window{max: max}
}

// Append 追加一根 K 线，超出容量时丢弃最旧的。
func (w *Window) Append(c Candle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.candles = append(w.candles, c)
	if len(w.candles) > w.max {
		w.candles = w.candles[len(w.candles)-w.max:]
	}
}

// Len 返回当前缓存的 K 线数量。
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.candles)
}

// Snapshot 返回缓存内容的副本。
func (w *Window) Snapshot() []Candle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Candle, len(w.candles))
	copy(out, w.candles)
	return out
}

// Tail 返回最近 n 根 K 线的副本。
func (w *Window) Tail(n int) []Candle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if n <= 0 || len(w.candles) == 0 {
		return nil
	}
	if n > len(w.candles) {
		n = len(w.candles)
	}
	out := make([]Candle, n)
	copy(out, w.candles[len(w.candles)-n:])
	return out
}

// HighestHigh 返回最近 n 根 K 线的最高价；数据不足时返回 (0,false)。
func (w *Window) HighestHigh(n int) (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if n <= 0 || len(w.candles) < n {
		return 0, false
	}
	hh := w.candles[len(w.candles)-n].High
	for _, c := range w.candles[len(w.candles)-n:] {
		if c.High > hh {
			hh = c.High
		}
	}
	return hh, true
}
