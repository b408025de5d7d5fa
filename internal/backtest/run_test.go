package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"vigil/internal/logger"
	"vigil/internal/market"
	"vigil/internal/pine"
)

func init() {
	logger.SetLevel("error")
}

func candlesFromCloses(closes []float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			Time:   int64(1_700_000_000 + i*60),
			Open:   c,
			High:   c * 1.001,
			Low:    c * 0.999,
			Close:  c,
			Volume: 1000,
		}
	}
	return out
}

func trendCandles(n int) []market.Candle {
	closes := make([]float64, n)
	price := 100.0
	for i := 0; i < n; i++ {
		// 先跌后涨，制造一次明确的均线金叉。
		if i < n/3 {
			price *= 0.995
		} else {
			price *= 1.006
		}
		closes[i] = price
	}
	return candlesFromCloses(closes)
}

func TestRun_ConstantPricesStayFlat(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	cs, err := pine.Compile("ma5 = ta.sma(close, 5)\nma20 = ta.sma(close, 20)\n")
	assert.NoError(t, err)

	res := Run(cs, candlesFromCloses(closes))
	assert.Zero(t, res.TotalReturn)
	assert.Zero(t, res.Sharpe)
	assert.Zero(t, res.MaxDrawdown)
	assert.Empty(t, res.Trades, "价格不动时均线永不交叉，不应有成交")
}

func TestRun_TooFewCandlesIsNeutral(t *testing.T) {
	cs, err := pine.Compile("ma5 = ta.sma(close, 5)\nma20 = ta.sma(close, 20)\n")
	assert.NoError(t, err)
	res := Run(cs, candlesFromCloses([]float64{100}))
	assert.Zero(t, res.TotalReturn)
	assert.Empty(t, res.Trades)
}

func TestRun_NilStrategyIsNeutral(t *testing.T) {
	res := Run(nil, trendCandles(60))
	assert.Equal(t, "PineStrategy", res.Name)
	assert.Zero(t, res.TotalReturn)
}

func TestRun_MACrossReturnMatchesHoldingInterval(t *testing.T) {
	candles := trendCandles(90)
	cs, err := pine.Compile("fast = ta.sma(close, 5)\nslow = ta.sma(close, 20)\n")
	assert.NoError(t, err)

	res := Run(cs, candles)
	assert.NotEmpty(t, res.Trades, "先跌后涨应触发一次金叉入场")
	assert.Equal(t, SideBuy, res.Trades[0].Side)

	// 单次入场且持有到结束时，总收益等于入场价到收盘价的涨幅。
	if len(res.Trades) == 1 {
		entry := res.Trades[0].Price
		last := candles[len(candles)-1].Close
		assert.InDelta(t, last/entry-1, res.TotalReturn, 1e-9)
	}
	assert.LessOrEqual(t, res.MaxDrawdown, 0.0)
}

func TestRun_Deterministic(t *testing.T) {
	candles := trendCandles(120)
	cs, err := pine.Compile("fast = ta.ema(close, 10)\nslow = ta.ema(close, 30)\n")
	assert.NoError(t, err)

	a := Run(cs, candles)
	b := Run(cs, candles)
	assert.Equal(t, a.TotalReturn, b.TotalReturn, "同输入必须逐位一致")
	assert.Equal(t, a.Sharpe, b.Sharpe)
	assert.Equal(t, a.MaxDrawdown, b.MaxDrawdown)
	assert.Equal(t, a.Trades, b.Trades)
}

func TestRun_CompareRuleWithNaNWarmup(t *testing.T) {
	// RSI 预热期内条件永不满足，不会在未定义段入场。
	src := "r = ta.rsi(close, 14)\nif r <= 101: strategy.entry(\"long\", strategy.long)\n"
	cs, err := pine.Compile(src)
	assert.NoError(t, err)

	candles := trendCandles(40)
	res := Run(cs, candles)
	if assert.NotEmpty(t, res.Trades) {
		warmupEnd := candles[14].Time
		assert.GreaterOrEqual(t, res.Trades[0].TS, warmupEnd, "预热期内不应有成交")
	}
}

func TestRun_ExitBeforeEntrySameBar(t *testing.T) {
	// 入场与出场条件同时为真时先平后开，同一棒允许重新入场。
	src := "r = ta.rsi(close, 5)\n" +
		"if r >= 0: strategy.entry(\"long\", strategy.long)\n" +
		"if r >= 0: strategy.close(\"long\")\n"
	cs, err := pine.Compile(src)
	assert.NoError(t, err)

	res := Run(cs, trendCandles(30))
	assert.NotEmpty(t, res.Trades)
	// 首棒只会入场；之后每棒先卖后买交替出现。
	assert.Equal(t, SideBuy, res.Trades[0].Side)
	for i := 1; i < len(res.Trades); i++ {
		expect := SideSell
		if res.Trades[i-1].Side == SideSell {
			expect = SideBuy
		}
		assert.Equal(t, expect, res.Trades[i].Side)
	}
}

func TestPositionReturns_Formula(t *testing.T) {
	closes := []float64{100, 110, 99, 108.9}
	pos := []int{1, 1, 0, 0}
	rets, total, maxDD := positionReturns(closes, pos)

	assert.InDelta(t, 0.0, rets[0], 1e-12)
	assert.InDelta(t, 0.10, rets[1], 1e-9)
	assert.InDelta(t, -0.10, rets[2], 1e-9, "持仓期间的下跌按上一棒仓位计")
	assert.InDelta(t, 0.0, rets[3], 1e-12, "空仓期间收益为 0")

	assert.InDelta(t, 1.1*0.9-1, total, 1e-9)
	assert.InDelta(t, -0.10, maxDD, 1e-9)
}

func TestSharpeRatio_ZeroStdev(t *testing.T) {
	assert.Zero(t, sharpeRatio([]float64{0.01, 0.01, 0.01}), "零方差时夏普为 0 而不是 NaN")
	assert.Zero(t, sharpeRatio(nil))

	s := sharpeRatio([]float64{0.02, -0.01, 0.03})
	assert.False(t, math.IsNaN(s))
	assert.Greater(t, s, 0.0)
}
