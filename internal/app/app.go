// Package app 负责装配与运行：配置翻译成引擎算子，数据源、总线、
// 存储与回测编排在这里接线。
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"vigil/internal/backtest"
	"vigil/internal/cep"
	"vigil/internal/config"
	"vigil/internal/event"
	"vigil/internal/feed"
	"vigil/internal/logger"
	"vigil/internal/market"
	"vigil/internal/report"
	"vigil/internal/store"
)

// source 是数据源的公共面：把事件写进 out，阻塞到 ctx 取消。
type source interface {
	Run(ctx context.Context, out chan<- event.Event) error
	Window() *market.Window
}

// App 持有一次运行的全部组件。
type App struct {
	cfg    *config.Config
	bus    *event.Bus
	engine *cep.Engine
	db     *store.Store
	src    source
	demo   *feed.Demo
	bn     *feed.Binance
	events chan event.Event
	recent *event.Ring
}

// New 按配置装配应用，不启动任何 goroutine。
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger.SetLevel(cfg.Log.Level)

	bus := event.NewBus(cfg.Engine.QueueSize)
	engine := cep.NewEngine(bus)
	engine.Register(buildOperators(cfg.Rules)...)

	a := &App{
		cfg:    cfg,
		bus:    bus,
		engine: engine,
		events: make(chan event.Event, cfg.Engine.QueueSize),
		recent: event.NewRing(0),
	}

	switch strings.ToLower(cfg.Feed.Mode) {
	case "binance":
		a.bn = feed.NewBinance(feed.BinanceConfig{
			Symbol:   cfg.Feed.Symbol,
			Interval: cfg.Feed.Interval,
			History:  cfg.Feed.History,
		})
		a.src = a.bn
	default:
		a.demo = feed.NewDemo(feed.DemoConfig{
			Symbol:   cfg.Feed.Symbol,
			SeedBars: cfg.Feed.History,
			Seed:     cfg.Feed.Seed,
		})
		a.src = a.demo
	}

	if cfg.Store.Enabled {
		db, err := store.New(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("打开存储失败: %w", err)
		}
		a.db = db
	}

	a.subscribe()
	return a, nil
}

// subscribe 注册衍生事件的消费方：日志与回填缓冲始终开启，存储按配置挂接。
func (a *App) subscribe() {
	a.bus.Subscribe("log", func(evt event.Event) {
		logger.Infof("[signal] type=%s key=%s ts=%d data=%v", evt.Type, evt.Key, evt.TS, evt.Data)
	})
	a.bus.Subscribe("recent", a.recent.Add)
	if a.db != nil {
		db := a.db
		a.bus.Subscribe("store", func(evt event.Event) {
			if err := db.AppendSignal(context.Background(), evt); err != nil {
				logger.Errorf("[store] 信号落库失败: %v", err)
			}
		})
	}
}

// Run 启动数据源与派发循环，阻塞到 ctx 取消。派发循环是引擎唯一的
// 写者，数据源的并发都收敛到 events 通道上。
func (a *App) Run(ctx context.Context) error {
	logger.Infof("[app] 启动 mode=%s symbol=%s", a.cfg.Feed.Mode, a.cfg.Feed.Symbol)
	if a.bn != nil {
		if _, err := a.bn.FetchHistory(ctx); err != nil {
			logger.Warnf("[app] 历史回补失败，仅依赖实时流: %v", err)
		}
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return a.src.Run(ctx, a.events) })
	group.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case evt := <-a.events:
				a.engine.Ingest(evt)
			}
		}
	})
	err := group.Wait()
	if err == context.Canceled {
		err = nil
	}
	return err
}

// RunBacktest 在数据源的历史 K 线上跑一轮网格搜索，落库并产出报告。
func (a *App) RunBacktest(ctx context.Context) error {
	candles := a.src.Window().Snapshot()
	if a.bn != nil && len(candles) == 0 {
		fetched, err := a.bn.FetchHistory(ctx)
		if err != nil {
			return fmt.Errorf("历史回补失败: %w", err)
		}
		candles = fetched
	}
	codes, err := loadPineCodes(a.cfg.Backtest.PineFiles)
	if err != nil {
		return err
	}
	results := backtest.EvaluateGrid(ctx, candles, codes, backtest.GridOptions{
		MinTrades:   a.cfg.Backtest.MinTrades,
		MaxDrawdown: a.cfg.Backtest.MaxDrawdown,
		Workers:     a.cfg.Backtest.Workers,
	})
	if len(results) == 0 {
		logger.Warnf("[backtest] 历史数据不足，退回固定候选集")
		results = []backtest.Result{backtest.PickBest(candles)}
	}
	best := results[0]
	logger.Infof("[backtest] 共 %d 个候选，最优 %s return=%.2f%% sharpe=%.2f maxDD=%.2f%%",
		len(results), best.Name, best.TotalReturn*100, best.Sharpe, best.MaxDrawdown*100)
	logger.Debugf("[backtest] %s", backtest.Explain(best))

	if a.db != nil {
		top := results
		if len(top) > 10 {
			top = top[:10]
		}
		for _, r := range top {
			if err := a.db.SaveBacktest(ctx, r); err != nil {
				logger.Errorf("[backtest] 摘要落库失败: %v", err)
			}
		}
	}
	if a.cfg.Report.Enabled {
		in := report.Input{
			Symbol:      a.cfg.Feed.Symbol,
			Candles:     candles,
			Result:      best,
			Explanation: backtest.Explain(best),
		}
		if err := report.WriteHTML(a.cfg.Report.Path, in); err != nil {
			return fmt.Errorf("报告渲染失败: %w", err)
		}
		logger.Infof("[backtest] 报告已写入 %s", a.cfg.Report.Path)
	}
	return nil
}

// RecentSignals 返回回填缓冲中的最近衍生事件（从旧到新）。
func (a *App) RecentSignals() []event.Event {
	return a.recent.Recent()
}

// Close 停掉总线与存储。先排空总线，保证落库订阅者收尾。
func (a *App) Close() {
	a.bus.Flush()
	a.bus.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warnf("[app] 关闭存储失败: %v", err)
		}
	}
}

func loadPineCodes(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("读取脚本失败 (%s): %w", p, err)
		}
		out = append(out, string(raw))
	}
	return out, nil
}

// buildOperators 把声明式规则翻译为引擎算子。
func buildOperators(rules config.RulesConfig) []cep.Operator {
	var ops []cep.Operator
	for _, r := range rules.Sequences {
		r := r
		cfg := cep.SequenceConfig{
			Name:      r.Name,
			FirstType: r.First,
			ThenType:  r.Then,
			WindowSec: r.WindowSec,
			EmitType:  r.Emit,
		}
		if r.WhereFirst != nil {
			cond := *r.WhereFirst
			cfg.WhereFirst = func(evt event.Event) bool {
				v, ok := evt.Float(cond.Field)
				return ok && cond.Matches(v)
			}
		}
		if r.WhereThen != nil {
			cond := *r.WhereThen
			cfg.WhereThen = func(_, then event.Event) bool {
				v, ok := then.Float(cond.Field)
				return ok && cond.Matches(v)
			}
		}
		ops = append(ops, cep.NewSequenceWithin(cfg))
	}
	for _, r := range rules.Sliding {
		r := r
		cfg := cep.SlidingCountConfig{
			Name:      r.Name,
			EventType: r.Type,
			WindowSec: r.WindowSec,
			Threshold: r.Threshold,
			EmitType:  r.Emit,
		}
		if r.Where != nil {
			cond := *r.Where
			cfg.Where = func(evt event.Event) bool {
				v, ok := evt.Float(cond.Field)
				return ok && cond.Matches(v)
			}
		}
		ops = append(ops, cep.NewSlidingCountThreshold(cfg))
	}
	for _, r := range rules.Shocks {
		ops = append(ops, cep.NewMagnitudeShockDetector(cep.ShockConfig{
			Series:       r.Series,
			AbsThreshold: r.Threshold,
			EmitType:     r.Emit,
		}))
	}
	return ops
}
