package cep

import (
	"math"

	"vigil/internal/event"
)

// ShockConfig 描述宏观数据意外幅度的检测规则。
type ShockConfig struct {
	Series       string
	AbsThreshold float64
	EmitType     string
}

// MagnitudeShockDetector 无状态：对被监控数据系列的每次发布，比较
// |surprise| 与阈值，每次满足都发出事件。surprise 优先取显式字段，
// 缺失时回退为 actual - estimate。
type MagnitudeShockDetector struct {
	cfg ShockConfig
}

// NewMagnitudeShockDetector 创建操作符。EmitType 为空时默认 "MacroShock"。
func NewMagnitudeShockDetector(cfg ShockConfig) *MagnitudeShockDetector {
	if cfg.EmitType == "" {
		cfg.EmitType = "MacroShock"
	}
	return &MagnitudeShockDetector{cfg: cfg}
}

func (d *MagnitudeShockDetector) Name() string { return "shock:" + d.cfg.Series }

func (d *MagnitudeShockDetector) Process(evt event.Event) []event.Event {
	if evt.Type != event.TypeMacroRelease || evt.Str("series") != d.cfg.Series {
		return nil
	}
	surprise, ok := evt.Float("surprise")
	if !ok {
		actual, okA := evt.Float("actual")
		estimate, okE := evt.Float("estimate")
		if !okA || !okE {
			return nil
		}
		surprise = actual - estimate
	}
	if math.Abs(surprise) < d.cfg.AbsThreshold {
		return nil
	}
	return []event.Event{event.NewAt(d.cfg.EmitType, d.cfg.Series, evt.TS, map[string]any{
		"series":   d.cfg.Series,
		"surprise": surprise,
	})}
}
