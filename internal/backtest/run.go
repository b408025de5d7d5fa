// Package backtest 对编译后的策略做确定性回测：同一策略与同一 K 线
// 数组的两次运行产生逐位一致的结果。Run 是纯函数，可在参数网格间并发。
package backtest

import (
	"math"

	"vigil/internal/indicator"
	"vigil/internal/market"
	"vigil/internal/pine"
)

// Run 在 K 线数组上解释执行编译后的策略。
//
// 序列按声明顺序物化（后声明者可读先声明者）；指标预热期为 NaN，
// NaN 不满足任何条件。多条入场（或出场）规则按逻辑或合并。仓位状态机
// 只做多、不加仓：flat+entry→holding（按收盘买入），holding+exit→flat
//（按收盘卖出）。K 线不足两根时返回空仓中性结果。
func Run(cs *pine.CompiledStrategy, candles []market.Candle) Result {
	name := "PineStrategy"
	details := map[string]any{}
	if cs != nil {
		name = cs.Name
		details["params"] = cs.Params
	}
	if cs == nil || len(candles) < 2 {
		return neutralResult(name, details)
	}

	n := len(candles)
	closes := market.Closes(candles)
	cache := map[string][]float64{
		"close": closes,
		"open":  market.Opens(candles),
		"high":  market.Highs(candles),
		"low":   market.Lows(candles),
	}
	for _, ns := range cs.Series {
		cache[ns.Name] = materialize(ns.Spec, cache, candles)
	}

	lookup := func(sname string) []float64 {
		if s, ok := cache[sname]; ok {
			return s
		}
		return nanSeries(n)
	}

	pos := make([]int, n)
	holding := false
	var trades []Trade
	for i := 0; i < n; i++ {
		entryFire, exitFire := false, false
		for _, rule := range cs.Rules {
			if !condHolds(rule.Cond, lookup, i) {
				continue
			}
			if rule.Kind == pine.RuleEntry {
				entryFire = true
			} else {
				exitFire = true
			}
		}
		// 先结后开：同一根 K 线上允许平仓后随即重新入场。
		if holding && exitFire {
			holding = false
			trades = append(trades, Trade{TS: candles[i].Time, Side: SideSell, Price: closes[i]})
		}
		if !holding && entryFire {
			holding = true
			trades = append(trades, Trade{TS: candles[i].Time, Side: SideBuy, Price: closes[i]})
		}
		if holding {
			pos[i] = 1
		}
	}

	rets, total, maxDD := positionReturns(closes, pos)
	return Result{
		Name:        name,
		TotalReturn: total,
		Sharpe:      sharpeRatio(rets),
		MaxDrawdown: maxDD,
		Trades:      trades,
		Details:     details,
	}
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// materialize 把单条序列定义求值为数值序列。未知来源得到全 NaN 序列，
// 让"无信号"沿规则链自然传播。
func materialize(spec pine.SeriesSpec, cache map[string][]float64, candles []market.Candle) []float64 {
	n := len(candles)
	source := func(sname string) []float64 {
		if s, ok := cache[sname]; ok {
			return s
		}
		return nanSeries(n)
	}
	switch s := spec.(type) {
	case pine.SMASpec:
		return indicator.SMA(source(s.Source), s.Period)
	case pine.EMASpec:
		return indicator.EMA(source(s.Source), s.Period)
	case pine.RSISpec:
		return indicator.RSI(source(s.Source), s.Period)
	case pine.BollingerSpec:
		basis, upper, lower := indicator.Bollinger(source(s.Source), s.Period, s.Mult)
		switch s.Band {
		case pine.BandUpper:
			return upper
		case pine.BandLower:
			return lower
		default:
			return basis
		}
	case pine.MACDSpec:
		line, sig, hist := indicator.MACD(source(s.Source), s.Fast, s.Slow, s.Signal)
		switch s.Out {
		case pine.MACDSignal:
			return sig
		case pine.MACDHist:
			return hist
		default:
			return line
		}
	case pine.StochSpec:
		k, d := indicator.Stoch(market.Highs(candles), market.Lows(candles), market.Closes(candles), s.KPeriod, s.DPeriod)
		if s.Out == pine.StochD {
			return d
		}
		return k
	case pine.SuperTrendSpec:
		line, dir := indicator.SuperTrend(market.Highs(candles), market.Lows(candles), market.Closes(candles), s.Factor, s.Period)
		if s.Out == pine.SuperTrendDirection {
			return dir
		}
		return line
	default:
		return nanSeries(n)
	}
}

func condHolds(cond pine.Condition, lookup func(string) []float64, i int) bool {
	switch c := cond.(type) {
	case pine.CrossCondition:
		a, b := lookup(c.A), lookup(c.B)
		if c.Under {
			return crossedDown(a, b, i)
		}
		return crossedUp(a, b, i)
	case pine.CompareCondition:
		v := lookup(c.Series)[i]
		if math.IsNaN(v) {
			return false
		}
		switch c.Op {
		case pine.CmpLT:
			return v < c.Value
		case pine.CmpLE:
			return v <= c.Value
		case pine.CmpGT:
			return v > c.Value
		case pine.CmpGE:
			return v >= c.Value
		}
	}
	return false
}

// crossedUp 要求 i 与 i-1 两个采样都有定义，并发生严格的相对翻转。
func crossedUp(a, b []float64, i int) bool {
	if i < 1 || !defined(a[i], b[i], a[i-1], b[i-1]) {
		return false
	}
	return a[i-1] <= b[i-1] && a[i] > b[i]
}

func crossedDown(a, b []float64, i int) bool {
	if i < 1 || !defined(a[i], b[i], a[i-1], b[i-1]) {
		return false
	}
	return a[i-1] >= b[i-1] && a[i] < b[i]
}

func defined(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}
