package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
feed:
  mode: binance
  symbol: ETHUSDT
  interval: 5m
  history: 300
rules:
  shocks:
    - name: CPIShock
      series: "US:CPI"
      threshold: 0.4
store:
  enabled: true
  path: /tmp/test.db
`)
	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "binance", cfg.Feed.Mode)
	assert.Equal(t, "ETHUSDT", cfg.Feed.Symbol)
	assert.Equal(t, 300, cfg.Feed.History)
	assert.True(t, cfg.Store.Enabled)

	assert.Len(t, cfg.Rules.Shocks, 1)
	assert.Equal(t, 0.4, cfg.Rules.Shocks[0].Threshold)
	assert.Empty(t, cfg.Rules.Sequences, "显式给出规则集时不再注入默认规则")
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  level: info\n"))
	assert.NoError(t, err)
	assert.Equal(t, "demo", cfg.Feed.Mode)
	assert.Equal(t, "SPY", cfg.Feed.Symbol)
	assert.Equal(t, 256, cfg.Engine.QueueSize)
	assert.Equal(t, 3, cfg.Backtest.MinTrades)
	assert.Equal(t, -0.25, cfg.Backtest.MaxDrawdown)
	assert.NotEmpty(t, cfg.Rules.Sequences, "空规则集应注入默认规则")
	assert.NotEmpty(t, cfg.Rules.Sliding)
	assert.NotEmpty(t, cfg.Rules.Shocks)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"非法数据源", "feed:\n  mode: kafka\n"},
		{"非法日志级别", "log:\n  level: verbose\n"},
		{"非法K线周期", "feed:\n  interval: 5x\n"},
		{"序列规则缺 then", "rules:\n  sequences:\n    - name: x\n      first: NewsItem\n      window_sec: 60\n"},
		{"滑窗阈值为零", "rules:\n  sliding:\n    - name: x\n      type: NewsItem\n      window_sec: 60\n      threshold: 0\n"},
		{"冲击规则缺 series", "rules:\n  shocks:\n    - name: x\n      threshold: 0.5\n"},
		{"条件操作符非法", "rules:\n  sequences:\n    - name: x\n      first: NewsItem\n      then: Bar\n      window_sec: 60\n      where_first:\n        field: sentiment\n        op: \"==\"\n        value: 0\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, validate(cfg))
	assert.Equal(t, "demo", cfg.Feed.Mode)
}

func TestFieldCond_Matches(t *testing.T) {
	le := &FieldCond{Field: "sentiment", Op: "<=", Value: -0.5}
	assert.True(t, le.Matches(-0.7))
	assert.True(t, le.Matches(-0.5))
	assert.False(t, le.Matches(0.0))

	gt := &FieldCond{Field: "count", Op: ">", Value: 3}
	assert.True(t, gt.Matches(4))
	assert.False(t, gt.Matches(3))

	var nilCond *FieldCond
	assert.True(t, nilCond.Matches(123), "空条件恒为真")
}
