package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"vigil/internal/config"
	"vigil/internal/event"
	"vigil/internal/logger"
)

func init() {
	logger.SetLevel("error")
}

func TestBuildOperators_TranslatesAllRuleKinds(t *testing.T) {
	neg := -0.5
	rules := config.RulesConfig{
		Sequences: []config.SequenceRuleConfig{{
			Name:       "NewsThenBreakout",
			First:      event.TypeNewsItem,
			Then:       event.TypeBreakout,
			WindowSec:  60,
			Emit:       "NewsDrivenBreakout",
			WhereFirst: &config.FieldCond{Field: "sentiment", Op: "<=", Value: neg},
		}},
		Sliding: []config.SlidingRuleConfig{{
			Name:      "NewsBurst",
			Type:      event.TypeNewsItem,
			WindowSec: 120,
			Threshold: 2,
			Emit:      "NewsBurst",
		}},
		Shocks: []config.ShockRuleConfig{{
			Series:    "US:CPI",
			Threshold: 0.5,
			Emit:      "MacroShock",
		}},
	}
	ops := buildOperators(rules)
	assert.Len(t, ops, 3)
}

func TestBuildOperators_SequencePredicateFromConfig(t *testing.T) {
	rules := config.RulesConfig{
		Sequences: []config.SequenceRuleConfig{{
			Name:       "NewsThenBreakout",
			First:      event.TypeNewsItem,
			Then:       event.TypeBreakout,
			WindowSec:  60,
			Emit:       "NewsDrivenBreakout",
			WhereFirst: &config.FieldCond{Field: "sentiment", Op: "<=", Value: -0.5},
		}},
	}
	op := buildOperators(rules)[0]

	// 正面新闻不入窗，随后的突破不应触发。
	op.Process(event.NewAt(event.TypeNewsItem, "SPY", 1000, map[string]any{"sentiment": 0.8}))
	assert.Empty(t, op.Process(event.NewAt(event.TypeBreakout, "SPY", 1010, map[string]any{"close": 451.0})))

	// 负面新闻入窗，窗口内的突破触发关联事件。
	op.Process(event.NewAt(event.TypeNewsItem, "SPY", 1020, map[string]any{"sentiment": -0.8}))
	out := op.Process(event.NewAt(event.TypeBreakout, "SPY", 1030, map[string]any{"close": 452.0}))
	assert.Len(t, out, 1)
	assert.Equal(t, "NewsDrivenBreakout", out[0].Type)
}

func TestBuildOperators_MissingFieldFailsPredicate(t *testing.T) {
	rules := config.RulesConfig{
		Sliding: []config.SlidingRuleConfig{{
			Name:      "NegBurst",
			Type:      event.TypeNewsItem,
			WindowSec: 300,
			Threshold: 1,
			Where:     &config.FieldCond{Field: "sentiment", Op: "<=", Value: 0},
		}},
	}
	op := buildOperators(rules)[0]
	// 字段缺失按不满足处理，不应 panic 也不应触发。
	assert.Empty(t, op.Process(event.NewAt(event.TypeNewsItem, "SPY", 1000, nil)))
}

func TestApp_EndToEndDemoFlow(t *testing.T) {
	cfg := config.Default()
	cfg.Feed.Seed = 11
	cfg.Feed.History = 60
	cfg.Store.Enabled = false
	cfg.Report.Enabled = false

	a, err := New(cfg)
	assert.NoError(t, err)
	defer a.Close()

	// 绕过数据源节奏，直接通过引擎验证整条规则链。
	eng := a.engine
	eng.Ingest(event.NewAt(event.TypeNewsItem, "SPY", 1000, map[string]any{"sentiment": -0.8}))
	out := make(chan event.Event, 1)
	a.bus.Subscribe("test", func(evt event.Event) {
		if evt.Type == "NewsDrivenBreakout" {
			select {
			case out <- evt:
			default:
			}
		}
	})
	eng.Ingest(event.NewAt(event.TypeBreakout, "SPY", 1010, map[string]any{"close": 450.0}))
	a.bus.Flush()

	select {
	case evt := <-out:
		assert.Equal(t, "SPY", evt.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("未收到衍生事件")
	}
}

func TestApp_RunBacktestWithStoreAndReport(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Feed.Seed = 5
	cfg.Feed.History = 120
	cfg.Store.Enabled = true
	cfg.Store.Path = filepath.Join(dir, "vigil.db")
	cfg.Report.Enabled = true
	cfg.Report.Path = filepath.Join(dir, "report.html")

	a, err := New(cfg)
	assert.NoError(t, err)
	defer a.Close()

	assert.NoError(t, a.RunBacktest(context.Background()))
	assert.FileExists(t, cfg.Report.Path)

	summaries, err := a.db.ListBacktests(context.Background(), 20)
	assert.NoError(t, err)
	assert.NotEmpty(t, summaries, "回测摘要应落库")
}

func TestApp_RunStopsOnContextCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Feed.Seed = 2
	cfg.Feed.History = 30
	cfg.Store.Enabled = false

	a, err := New(cfg)
	assert.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run 未在取消后退出")
	}
}
