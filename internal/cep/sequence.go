package cep

import "vigil/internal/event"

// FirstPredicate 过滤候选的 first 事件。
type FirstPredicate func(event.Event) bool

// PairPredicate 校验 (first, then) 组合。
type PairPredicate func(first, then event.Event) bool

// SequenceConfig 描述 "A 之后 T 秒内出现 B" 规则。
type SequenceConfig struct {
	Name       string
	FirstType  string
	ThenType   string
	WindowSec  int64
	WhereFirst FirstPredicate
	WhereThen  PairPredicate
	EmitType   string
}

// SequenceWithin 按分区键缓存未匹配的 first 事件；收到 then 事件时从
// 最新到最旧扫描（时间最近者优先），命中即发出关联事件并移除该 first，
// 保证一个 first 至多匹配一个 then。
type SequenceWithin struct {
	cfg   SequenceConfig
	state *keyedWindow
}

// NewSequenceWithin 创建操作符。EmitType 为空时默认 "SequenceMatched"。
func NewSequenceWithin(cfg SequenceConfig) *SequenceWithin {
	if cfg.EmitType == "" {
		cfg.EmitType = "SequenceMatched"
	}
	return &SequenceWithin{
		cfg:   cfg,
		state: newKeyedWindow(cfg.WindowSec),
	}
}

func (s *SequenceWithin) Name() string { return s.cfg.Name }

func (s *SequenceWithin) Process(evt event.Event) []event.Event {
	q := s.state.prune(evt.Key, evt.TS)
	switch evt.Type {
	case s.cfg.FirstType:
		if s.cfg.WhereFirst == nil || s.cfg.WhereFirst(evt) {
			s.state.append(evt.Key, evt)
		}
	case s.cfg.ThenType:
		for i := len(q) - 1; i >= 0; i-- {
			first := q[i]
			if s.cfg.WhereFirst != nil && !s.cfg.WhereFirst(first) {
				continue
			}
			if s.cfg.WhereThen != nil && !s.cfg.WhereThen(first, evt) {
				continue
			}
			matched := event.NewAt(s.cfg.EmitType, evt.Key, evt.TS, map[string]any{
				"rule":  s.cfg.Name,
				"first": first,
				"then":  evt,
			})
			s.state.replace(evt.Key, append(append([]event.Event{}, q[:i]...), q[i+1:]...))
			return []event.Event{matched}
		}
	}
	return nil
}
