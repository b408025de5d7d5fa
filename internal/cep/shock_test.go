package cep

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vigil/internal/event"
)

func TestMagnitudeShockDetector_AbsoluteThreshold(t *testing.T) {
	op := NewMagnitudeShockDetector(ShockConfig{Series: "US:CPI", AbsThreshold: 0.5})

	tests := []struct {
		name     string
		actual   float64
		estimate float64
		hit      bool
	}{
		{"正向超出阈值", 3.9, 3.1, true},
		{"负向超出阈值", 2.3, 3.1, true},
		{"恰好等于阈值", 3.6, 3.1, true},
		{"阈值以内", 3.3, 3.1, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := op.Process(event.NewMacroRelease("US:CPI", tc.actual, tc.estimate))
			if tc.hit {
				assert.Len(t, out, 1)
				assert.Equal(t, "MacroShock", out[0].Type)
				assert.Equal(t, "US:CPI", out[0].Key)
				assert.InDelta(t, tc.actual-tc.estimate, out[0].Data["surprise"].(float64), 1e-9)
			} else {
				assert.Empty(t, out)
			}
		})
	}
}

func TestMagnitudeShockDetector_SeriesFilter(t *testing.T) {
	op := NewMagnitudeShockDetector(ShockConfig{Series: "US:CPI", AbsThreshold: 0.5})
	assert.Empty(t, op.Process(event.NewMacroRelease("US:NFP", 100, 0)), "其它数据系列不应触发")
	assert.Empty(t, op.Process(newsAt("US:CPI", 1000, -0.9)), "非宏观事件不应触发")
}

func TestMagnitudeShockDetector_SurpriseFallback(t *testing.T) {
	op := NewMagnitudeShockDetector(ShockConfig{Series: "US:CPI", AbsThreshold: 0.5})

	// 无 surprise 字段时回退为 actual - estimate。
	evt := event.New(event.TypeMacroRelease, "US:CPI", map[string]any{
		"series":   "US:CPI",
		"actual":   4.0,
		"estimate": 3.0,
	})
	out := op.Process(evt)
	assert.Len(t, out, 1)
	assert.InDelta(t, 1.0, out[0].Data["surprise"].(float64), 1e-9)

	// actual/estimate 也缺失则按不合格静默跳过。
	bad := event.New(event.TypeMacroRelease, "US:CPI", map[string]any{"series": "US:CPI"})
	assert.Empty(t, op.Process(bad))
}

func TestEngine_RoutesDerivedEventsToBus(t *testing.T) {
	bus := event.NewBus(16)
	defer bus.Close()

	var got []event.Event
	done := make(chan struct{})
	bus.Subscribe("capture", func(evt event.Event) {
		got = append(got, evt)
		close(done)
	})

	eng := NewEngine(bus)
	eng.Register(NewMagnitudeShockDetector(ShockConfig{Series: "US:CPI", AbsThreshold: 0.5}))
	eng.Ingest(event.NewMacroRelease("US:CPI", 4.0, 3.0))
	bus.Flush()

	<-done
	assert.Len(t, got, 1)
	assert.Equal(t, "MacroShock", got[0].Type)
}

func TestEngine_DefaultsMissingTimestamp(t *testing.T) {
	eng := NewEngine(nil)
	var seen event.Event
	eng.Register(operatorFunc(func(evt event.Event) []event.Event {
		seen = evt
		return nil
	}))
	eng.Ingest(event.Event{Type: "x", Key: "k"})
	assert.Greater(t, seen.TS, int64(0), "缺失时间戳应回退为当前时间")
}

type operatorFunc func(event.Event) []event.Event

func (f operatorFunc) Name() string                          { return "func" }
func (f operatorFunc) Process(evt event.Event) []event.Event { return f(evt) }
