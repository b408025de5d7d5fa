package cep

import "vigil/internal/event"

// SlidingCountConfig 描述滑动窗口内计数达到阈值的规则。
type SlidingCountConfig struct {
	Name      string
	EventType string
	WindowSec int64
	Threshold int
	Where     FirstPredicate
	EmitType  string
}

// SlidingCountThreshold 按分区键缓存窗口内的合格事件，数量达到阈值时
// 发出聚合事件。注意：阈值满足后每条后续合格事件都会再次触发（而非仅在
// 跨越阈值的一刻），高频流下存在重复告警的可能。
type SlidingCountThreshold struct {
	cfg   SlidingCountConfig
	state *keyedWindow
}

// NewSlidingCountThreshold 创建操作符。EmitType 为空时默认 "ThresholdHit"。
func NewSlidingCountThreshold(cfg SlidingCountConfig) *SlidingCountThreshold {
	if cfg.EmitType == "" {
		cfg.EmitType = "ThresholdHit"
	}
	return &SlidingCountThreshold{
		cfg:   cfg,
		state: newKeyedWindow(cfg.WindowSec),
	}
}

func (s *SlidingCountThreshold) Name() string { return s.cfg.Name }

func (s *SlidingCountThreshold) Process(evt event.Event) []event.Event {
	if evt.Type != s.cfg.EventType {
		return nil
	}
	if s.cfg.Where != nil && !s.cfg.Where(evt) {
		return nil
	}
	s.state.append(evt.Key, evt)
	q := s.state.prune(evt.Key, evt.TS)
	if len(q) < s.cfg.Threshold {
		return nil
	}
	return []event.Event{event.NewAt(s.cfg.EmitType, evt.Key, evt.TS, map[string]any{
		"rule":  s.cfg.Name,
		"count": len(q),
		"last":  evt,
	})}
}
