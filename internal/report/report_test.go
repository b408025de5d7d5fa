package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"vigil/internal/backtest"
	"vigil/internal/market"
)

func sampleCandles() []market.Candle {
	closes := []float64{100, 102, 101, 105, 107, 104}
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{Time: int64(1000 + i*60), Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return out
}

func TestEquityCurve_ReplaysTrades(t *testing.T) {
	candles := sampleCandles()
	trades := []backtest.Trade{
		{TS: 1060, Side: backtest.SideBuy, Price: 102},
		{TS: 1240, Side: backtest.SideSell, Price: 107},
	}
	eq := equityCurve(candles, trades)
	assert.Len(t, eq, len(candles))
	assert.Equal(t, 1.0, eq[0])
	assert.Equal(t, 1.0, eq[1], "入场棒当棒不计收益")
	assert.InDelta(t, 101.0/102, eq[2], 1e-9)
	assert.InDelta(t, 107.0/102, eq[4], 1e-9, "持有区间按收盘价累乘")
	assert.InDelta(t, 107.0/102, eq[5], 1e-9, "出场后权益不再变动")
}

func TestEquityCurve_NoTradesStaysFlat(t *testing.T) {
	eq := equityCurve(sampleCandles(), nil)
	for _, v := range eq {
		assert.Equal(t, 1.0, v)
	}
}

func TestWriteHTML_ProducesRenderableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.html")
	in := Input{
		Symbol:  "SPY",
		Candles: sampleCandles(),
		Result: backtest.Result{
			Name:        "MovingAvgCross(5,20)",
			TotalReturn: 0.049,
			Sharpe:      0.8,
			MaxDrawdown: -0.02,
			Trades: []backtest.Trade{
				{TS: 1060, Side: backtest.SideBuy, Price: 102},
			},
		},
	}
	assert.NoError(t, WriteHTML(path, in))

	raw, err := os.ReadFile(path)
	assert.NoError(t, err)
	html := string(raw)
	assert.True(t, strings.Contains(html, "SPY"))
	assert.True(t, strings.Contains(html, "Equity"))
}

func TestWriteHTML_RequiresCandles(t *testing.T) {
	err := WriteHTML(filepath.Join(t.TempDir(), "r.html"), Input{Symbol: "SPY"})
	assert.Error(t, err)
}
