package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateGrid_TooFewCandles(t *testing.T) {
	assert.Nil(t, EvaluateGrid(context.Background(), trendCandles(49), nil, GridOptions{}))
}

func TestEvaluateGrid_RanksBySharpeDesc(t *testing.T) {
	results := EvaluateGrid(context.Background(), trendCandles(150), nil, GridOptions{Workers: 2})
	assert.NotEmpty(t, results)
	for i := 1; i < len(results); i++ {
		if results[i-1].Sharpe == results[i].Sharpe {
			assert.GreaterOrEqual(t, results[i-1].TotalReturn, results[i].TotalReturn)
			continue
		}
		assert.Greater(t, results[i-1].Sharpe, results[i].Sharpe)
	}
}

func TestEvaluateGrid_IncludesPineCandidates(t *testing.T) {
	code := "strategy(title=\"CustomMA\")\nfast = ta.sma(close, 5)\nslow = ta.sma(close, 20)\n"
	results := EvaluateGrid(context.Background(), trendCandles(150), []string{code}, GridOptions{
		MinTrades: 1, MaxDrawdown: -1,
	})
	found := false
	for _, r := range results {
		if r.Name == "CustomMA" {
			found = true
		}
	}
	assert.True(t, found, "合法的 pine 脚本应进入候选集")
}

func TestEvaluateGrid_SkipsBrokenPine(t *testing.T) {
	broken := "???"
	clean := EvaluateGrid(context.Background(), trendCandles(150), nil, GridOptions{})
	withBroken := EvaluateGrid(context.Background(), trendCandles(150), []string{broken}, GridOptions{})
	assert.Equal(t, len(clean), len(withBroken), "编译失败的脚本应被跳过而不是中断")
}

func TestEvaluateGrid_FilterFallsBackWhenEmpty(t *testing.T) {
	// 苛刻到没有候选能通过时退回完整排名。
	results := EvaluateGrid(context.Background(), trendCandles(150), nil, GridOptions{MinTrades: 10000})
	assert.NotEmpty(t, results)
}

func TestEvaluateGrid_CanceledContextReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() {
		_ = EvaluateGrid(ctx, trendCandles(150), nil, GridOptions{})
	})
}
