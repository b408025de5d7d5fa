package backtest

import "math"

// positionReturns 由收盘价与仓位序列推导逐棒收益、总收益与最大回撤。
//
//	r[i] = pos[i-1] * (close[i]/close[i-1] - 1)，r[0] = 0
//	equity 为 (1+r) 的累积乘积，totalReturn = equity[last] - 1
//	回撤取 equity/历史峰值 - 1 的最小值（最深为负）
func positionReturns(closes []float64, pos []int) (rets []float64, total, maxDD float64) {
	if len(closes) == 0 {
		return nil, 0, 0
	}
	rets = make([]float64, 1, len(closes))
	eq := 1.0
	peak := 1.0
	for i := 1; i < len(closes); i++ {
		r := 0.0
		if pos[i-1] != 0 && closes[i-1] != 0 {
			r = closes[i]/closes[i-1] - 1
		}
		rets = append(rets, r)
		eq *= 1 + r
		if eq > peak {
			peak = eq
		}
		if dd := eq/peak - 1; dd < maxDD {
			maxDD = dd
		}
	}
	return rets, eq - 1, maxDD
}

// sharpeRatio = mean/stdev（总体标准差，不做年化）；stdev 为 0 时返回 0。
func sharpeRatio(rets []float64) float64 {
	if len(rets) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	variance := 0.0
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(rets))
	sd := math.Sqrt(variance)
	if sd == 0 {
		return 0
	}
	return mean / sd
}
