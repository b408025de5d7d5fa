package backtest

import (
	"context"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"vigil/internal/logger"
	"vigil/internal/market"
	"vigil/internal/pine"
)

// GridOptions 控制网格搜索的筛选与并发度。
type GridOptions struct {
	MinTrades   int     // 至少入场次数，默认 3
	MaxDrawdown float64 // 回撤下限（负数），默认 -0.25
	Workers     int     // 并发回测数，默认 4
}

func (o GridOptions) withDefaults() GridOptions {
	if o.MinTrades <= 0 {
		o.MinTrades = 3
	}
	if o.MaxDrawdown >= 0 {
		o.MaxDrawdown = -0.25
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	return o
}

type gridTask struct {
	run func() Result
}

// EvaluateGrid 对内置策略的参数网格与可选的 Pine 脚本做并发回测，
// 返回按 (sharpe, totalReturn) 降序的排名。回测彼此独立，通过 errgroup
// 并发执行；ctx 取消时停止派发并返回已完成的部分结果（外部限时的网格
// 搜索拿到的是截断排名，不是错误）。
//
// K 线不足 50 根时不评估，返回 nil。
func EvaluateGrid(ctx context.Context, candles []market.Candle, pineCodes []string, opts GridOptions) []Result {
	if len(candles) < 50 {
		return nil
	}
	opts = opts.withDefaults()
	tasks := buildTasks(candles, pineCodes)

	var mu sync.Mutex
	results := make([]Result, 0, len(tasks))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Workers)
	for _, task := range tasks {
		if groupCtx.Err() != nil {
			break
		}
		task := task
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return nil
			}
			res := task.run()
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		logger.Warnf("[grid] 评估中断: %v", err)
	}

	filtered := make([]Result, 0, len(results))
	for _, r := range results {
		if accept(r, opts) {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		// 全部被过滤时退回完整排名，让调用方自行取舍。
		filtered = results
	}
	rank(filtered)
	return filtered
}

func buildTasks(candles []market.Candle, pineCodes []string) []gridTask {
	var tasks []gridTask
	for _, s := range []int{5, 10, 20} {
		for _, l := range []int{20, 50, 100} {
			if s >= l {
				continue
			}
			s, l := s, l
			tasks = append(tasks, gridTask{run: func() Result { return MovingAvgCross(candles, s, l) }})
		}
	}
	for _, p := range []int{20, 40} {
		for _, k := range []float64{1.5, 2.0, 2.5} {
			p, k := p, k
			tasks = append(tasks, gridTask{run: func() Result { return BollingerBreakout(candles, p, k) }})
		}
	}
	for _, b := range []float64{25, 30, 35} {
		for _, e := range []float64{50, 55, 60} {
			if b >= e {
				continue
			}
			b, e := b, e
			tasks = append(tasks, gridTask{run: func() Result { return RSIReversion(candles, 14, b, e) }})
		}
	}
	for _, code := range pineCodes {
		// 候选脚本走严格编译：进网格的脚本必须完整可解析，
		// 垃圾脚本在这里被拒掉而不是变成空策略占位。
		cs, err := pine.CompileWithOptions(code, pine.Options{Strict: true})
		if err != nil {
			logger.Warnf("[grid] pine 编译失败，跳过: %v", err)
			continue
		}
		tasks = append(tasks, gridTask{run: func() Result { return Run(cs, candles) }})
	}
	return tasks
}

func accept(r Result, opts GridOptions) bool {
	if r.BuyCount() < opts.MinTrades {
		return false
	}
	if r.MaxDrawdown < opts.MaxDrawdown {
		return false
	}
	if math.IsNaN(r.Sharpe) || math.IsNaN(r.TotalReturn) {
		return false
	}
	return true
}

// rank 按 sharpe、totalReturn 降序；再按名称兜底，保证排序确定。
func rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Sharpe != results[j].Sharpe {
			return results[i].Sharpe > results[j].Sharpe
		}
		if results[i].TotalReturn != results[j].TotalReturn {
			return results[i].TotalReturn > results[j].TotalReturn
		}
		return results[i].Name < results[j].Name
	})
}
