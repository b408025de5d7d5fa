// Package indicator 封装常用技术指标。底层计算复用 go-talib，但把
// 预热区间统一改写为 NaN 哨兵：TALib 用 0 填充预热段，而回测规则要求
// 未定义值永远不满足任何条件，NaN 表达更准确。
package indicator

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// warmupNaN 把序列前 lookback 个值置为 NaN。
func warmupNaN(series []float64, lookback int) []float64 {
	if lookback > len(series) {
		lookback = len(series)
	}
	for i := 0; i < lookback; i++ {
		series[i] = math.NaN()
	}
	return series
}

// valid 表示参数与数据量是否足以产生至少一个有效值。
func valid(n, period int) bool {
	return period > 0 && n >= period
}

// SMA 简单移动平均，前 period-1 个值为 NaN。
func SMA(values []float64, period int) []float64 {
	if !valid(len(values), period) {
		return nanSlice(len(values))
	}
	return warmupNaN(talib.Sma(values, period), period-1)
}

// EMA 指数移动平均（SMA 种子），前 period-1 个值为 NaN。
func EMA(values []float64, period int) []float64 {
	if !valid(len(values), period) {
		return nanSlice(len(values))
	}
	return warmupNaN(talib.Ema(values, period), period-1)
}

// RSI Wilder 平滑，前 period 个值为 NaN。
func RSI(values []float64, period int) []float64 {
	if period <= 0 || len(values) <= period {
		return nanSlice(len(values))
	}
	return warmupNaN(talib.Rsi(values, period), period)
}

// StdDev 滚动总体标准差，前 period-1 个值为 NaN。
func StdDev(values []float64, period int) []float64 {
	if !valid(len(values), period) {
		return nanSlice(len(values))
	}
	return warmupNaN(talib.StdDev(values, period, 1.0), period-1)
}

// Bollinger 返回中轨/上轨/下轨（basis ± k*stdev）。
func Bollinger(values []float64, period int, k float64) (basis, upper, lower []float64) {
	basis = SMA(values, period)
	sd := StdDev(values, period)
	upper = make([]float64, len(values))
	lower = make([]float64, len(values))
	for i := range values {
		if math.IsNaN(basis[i]) || math.IsNaN(sd[i]) {
			upper[i] = math.NaN()
			lower[i] = math.NaN()
			continue
		}
		upper[i] = basis[i] + k*sd[i]
		lower[i] = basis[i] - k*sd[i]
	}
	return basis, upper, lower
}

// MACD 返回 DIF/DEA/柱体。line 的预热为 slow-1，signal 与 hist 再叠加
// signal-1。
func MACD(values []float64, fast, slow, signal int) (line, sig, hist []float64) {
	if fast <= 0 || slow <= 0 || signal <= 0 || len(values) < slow+signal-1 {
		return nanSlice(len(values)), nanSlice(len(values)), nanSlice(len(values))
	}
	line, sig, hist = talib.Macd(values, fast, slow, signal)
	line = warmupNaN(line, slow-1)
	sig = warmupNaN(sig, slow+signal-2)
	hist = warmupNaN(hist, slow+signal-2)
	return line, sig, hist
}

// Stoch 随机指标：%K 为 kPeriod 窗口原始值，%D 为 %K 的 dPeriod 简单平均。
func Stoch(highs, lows, closes []float64, kPeriod, dPeriod int) (k, d []float64) {
	n := len(closes)
	if kPeriod <= 0 || dPeriod <= 0 || n < kPeriod+dPeriod-1 {
		return nanSlice(n), nanSlice(n)
	}
	k, d = talib.Stoch(highs, lows, closes, kPeriod, 1, talib.SMA, dPeriod, talib.SMA)
	k = warmupNaN(k, kPeriod-1)
	d = warmupNaN(d, kPeriod+dPeriod-2)
	return k, d
}

// SuperTrend 返回趋势线与方向序列（1=多头轨道，-1=空头轨道）。
// ATR 预热区间内两条序列均为 NaN。
func SuperTrend(highs, lows, closes []float64, factor float64, period int) (line, dir []float64) {
	n := len(closes)
	line = nanSlice(n)
	dir = nanSlice(n)
	if period <= 0 || n <= period {
		return line, dir
	}
	atr := warmupNaN(talib.Atr(highs, lows, closes, period), period)
	trend := 1.0
	prevUpper, prevLower := math.NaN(), math.NaN()
	for i := 0; i < n; i++ {
		if math.IsNaN(atr[i]) {
			continue
		}
		hl2 := (highs[i] + lows[i]) / 2
		upper := hl2 + factor*atr[i]
		lower := hl2 - factor*atr[i]
		if math.IsNaN(prevUpper) {
			prevUpper, prevLower = upper, lower
		}
		if closes[i] > prevUpper {
			trend = 1
		} else if closes[i] < prevLower {
			trend = -1
		}
		if trend == 1 {
			line[i] = lower
		} else {
			line[i] = upper
		}
		dir[i] = trend
		prevUpper, prevLower = upper, lower
	}
	return line, dir
}
