package backtest

// 交易方向。
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Trade 回测中的一笔成交，价格取信号所在 K 线的收盘价。
type Trade struct {
	TS    int64   `json:"ts"`
	Side  string  `json:"side"`
	Price float64 `json:"price"`
}

// Result 单次回测的产物。每次调用都是全新值，运行之间不共享可变状态。
type Result struct {
	Name        string         `json:"name"`
	TotalReturn float64        `json:"total_return"`
	Sharpe      float64        `json:"sharpe"`
	MaxDrawdown float64        `json:"max_drawdown"`
	Trades      []Trade        `json:"trades"`
	Details     map[string]any `json:"details,omitempty"`
}

// BuyCount 返回入场次数，用于网格筛选。
func (r Result) BuyCount() int {
	n := 0
	for _, t := range r.Trades {
		if t.Side == SideBuy {
			n++
		}
	}
	return n
}

// neutralResult 是数据不足时的空仓结果：零收益、零交易，而不是错误。
func neutralResult(name string, details map[string]any) Result {
	return Result{Name: name, Details: details}
}
