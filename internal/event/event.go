package event

import (
	"time"

	"github.com/google/uuid"

	"vigil/internal/market"
	"vigil/internal/pkg/convert"
)

// 内置事件类型。衍生事件类型由规则配置指定。
const (
	TypeBar          = "Bar"
	TypeNewsItem     = "NewsItem"
	TypeMacroRelease = "MacroRelease"
	TypeBreakout     = "Breakout"
)

// Event 是流经引擎的统一事件。TS 为秒级时间戳，Key 为分区键（通常是
// 标的代码），缺失时归入默认分区。Data 的字段约定按 Type 区分。
type Event struct {
	Type string         `json:"type"`
	TS   int64          `json:"ts"`
	ID   string         `json:"id"`
	Key  string         `json:"key"`
	Data map[string]any `json:"data"`
}

// New 创建带 ID 与当前时间戳的事件。
func New(evtType, key string, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		Type: evtType,
		TS:   time.Now().Unix(),
		ID:   uuid.NewString(),
		Key:  key,
		Data: data,
	}
}

// NewAt 同 New，但使用指定时间戳。
func NewAt(evtType, key string, ts int64, data map[string]any) Event {
	evt := New(evtType, key, data)
	evt.TS = ts
	return evt
}

// NewBar 从一根 K 线构造 Bar 事件。
func NewBar(symbol string, c market.Candle) Event {
	return NewAt(TypeBar, symbol, c.Time, map[string]any{
		"open":   c.Open,
		"high":   c.High,
		"low":    c.Low,
		"close":  c.Close,
		"volume": c.Volume,
	})
}

// NewNewsItem 构造新闻事件。
func NewNewsItem(symbol string, sentiment float64, headline string) Event {
	return New(TypeNewsItem, symbol, map[string]any{
		"sentiment": sentiment,
		"headline":  headline,
	})
}

// NewMacroRelease 构造宏观数据发布事件，surprise = actual - estimate。
func NewMacroRelease(series string, actual, estimate float64) Event {
	return New(TypeMacroRelease, series, map[string]any{
		"series":   series,
		"actual":   actual,
		"estimate": estimate,
		"surprise": actual - estimate,
	})
}

// Float 读取 Data 中的数值字段，缺失或类型不符时返回 (0,false)。
func (e Event) Float(key string) (float64, bool) {
	return convert.LookupFloat64(e.Data, key)
}

// Str 读取 Data 中的字符串字段。
func (e Event) Str(key string) string {
	if e.Data == nil {
		return ""
	}
	s, _ := e.Data[key].(string)
	return s
}
