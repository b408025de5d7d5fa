package backtest

import (
	"fmt"
	"math"
	"sort"

	"vigil/internal/indicator"
	"vigil/internal/market"
)

// 内置策略：以仓位序列表达的经典组合，作为网格搜索的基线候选。

// tradesFromPositions 把仓位序列的 0/1 翻转折算成按收盘成交的交易。
func tradesFromPositions(candles []market.Candle, closes []float64, pos []int) []Trade {
	var trades []Trade
	cur := 0
	for i := 1; i < len(pos); i++ {
		if pos[i] == cur {
			continue
		}
		cur = pos[i]
		side := SideSell
		if cur == 1 {
			side = SideBuy
		}
		trades = append(trades, Trade{TS: candles[i].Time, Side: side, Price: closes[i]})
	}
	return trades
}

func resultFromPositions(name string, candles []market.Candle, closes []float64, pos []int, details map[string]any) Result {
	rets, total, maxDD := positionReturns(closes, pos)
	return Result{
		Name:        name,
		TotalReturn: total,
		Sharpe:      sharpeRatio(rets),
		MaxDrawdown: maxDD,
		Trades:      tradesFromPositions(candles, closes, pos),
		Details:     details,
	}
}

// MovingAvgCross 短均线在长均线上方时持仓。
func MovingAvgCross(candles []market.Candle, short, long int) Result {
	name := fmt.Sprintf("MovingAvgCross(%d,%d)", short, long)
	details := map[string]any{"short": short, "long": long}
	if len(candles) < 2 {
		return neutralResult(name, details)
	}
	closes := market.Closes(candles)
	maS := indicator.SMA(closes, short)
	maL := indicator.SMA(closes, long)
	pos := make([]int, len(closes))
	for i := range closes {
		if !math.IsNaN(maS[i]) && !math.IsNaN(maL[i]) && maS[i] > maL[i] {
			pos[i] = 1
		}
	}
	return resultFromPositions(name, candles, closes, pos, details)
}

// BollingerBreakout 收盘突破上轨时持仓。
func BollingerBreakout(candles []market.Candle, period int, k float64) Result {
	name := fmt.Sprintf("BollingerBreakout(%d,%g)", period, k)
	details := map[string]any{"period": period, "k": k}
	if len(candles) < 2 {
		return neutralResult(name, details)
	}
	closes := market.Closes(candles)
	_, upper, _ := indicator.Bollinger(closes, period, k)
	pos := make([]int, len(closes))
	for i := range closes {
		if !math.IsNaN(upper[i]) && closes[i] > upper[i] {
			pos[i] = 1
		}
	}
	return resultFromPositions(name, candles, closes, pos, details)
}

// RSIReversion 超卖入场、回归阈值出场的均值回归。
func RSIReversion(candles []market.Candle, period int, buyTh, exitTh float64) Result {
	name := fmt.Sprintf("RSI(%d,%g,%g)", period, buyTh, exitTh)
	details := map[string]any{"period": period, "buy": buyTh, "exit": exitTh}
	if len(candles) < 2 {
		return neutralResult(name, details)
	}
	closes := market.Closes(candles)
	rsi := indicator.RSI(closes, period)
	pos := make([]int, len(closes))
	holding := false
	for i := range closes {
		switch {
		case !holding && !math.IsNaN(rsi[i]) && rsi[i] <= buyTh:
			holding = true
		case holding && !math.IsNaN(rsi[i]) && rsi[i] >= exitTh:
			holding = false
		}
		if holding {
			pos[i] = 1
		}
	}
	return resultFromPositions(name, candles, closes, pos, details)
}

// PickBest 在一组固定的内置策略里按 (sharpe, totalReturn) 选优。
// K 线不足 30 根时返回空仓结果。
func PickBest(candles []market.Candle) Result {
	if len(candles) < 30 {
		return neutralResult("NoStrategy", map[string]any{})
	}
	cands := []Result{
		MovingAvgCross(candles, 10, 20),
		MovingAvgCross(candles, 20, 50),
		BollingerBreakout(candles, 20, 2.0),
		RSIReversion(candles, 14, 30.0, 55.0),
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Sharpe != cands[j].Sharpe {
			return cands[i].Sharpe < cands[j].Sharpe
		}
		return cands[i].TotalReturn < cands[j].TotalReturn
	})
	return cands[len(cands)-1]
}

// Explain 生成结果的两段式文字说明。
func Explain(best Result) string {
	para1 := fmt.Sprintf(
		"The optimal strategy is %s. It achieved a total return of %.2f%% with a Sharpe of %.2f and a maximum drawdown of %.2f%%. This balance of returns versus risk outperformed the other candidates.",
		best.Name, best.TotalReturn*100, best.Sharpe, best.MaxDrawdown*100)
	para2 := fmt.Sprintf(
		"Across %d entries, the strategy captured the prevailing structure in the recent data (trend/mean-reversion), while keeping drawdowns contained. Its rules fit the current volatility regime better than alternatives, leading to a superior risk-adjusted profile.",
		best.BuyCount())
	return para1 + "\n\n" + para2
}
