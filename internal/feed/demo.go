// Package feed 产生进入引擎的原始事件流。所有数据源都把事件写进
// 同一个 out 通道，由上层的单一派发循环按到达顺序摄入，数据源本身
// 不直接触碰引擎。
package feed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"vigil/internal/event"
	"vigil/internal/logger"
	"vigil/internal/market"
)

// DemoConfig 控制合成数据流的节奏与形状。
type DemoConfig struct {
	Symbol           string
	BasePrice        float64
	SeedBars         int
	BarInterval      time.Duration
	NewsInterval     time.Duration
	MacroInterval    time.Duration
	BreakoutLookback int
	MacroSeries      string
	Seed             int64 // 0 表示用当前时间播种
}

func (c DemoConfig) withDefaults() DemoConfig {
	if c.Symbol == "" {
		c.Symbol = "SPY"
	}
	if c.BasePrice <= 0 {
		c.BasePrice = 450
	}
	if c.SeedBars <= 0 {
		c.SeedBars = 200
	}
	if c.BarInterval <= 0 {
		c.BarInterval = 2 * time.Second
	}
	if c.NewsInterval <= 0 {
		c.NewsInterval = 7 * time.Second
	}
	if c.MacroInterval <= 0 {
		c.MacroInterval = 31 * time.Second
	}
	if c.BreakoutLookback <= 0 {
		c.BreakoutLookback = 20
	}
	if c.MacroSeries == "" {
		c.MacroSeries = "US:CPI"
	}
	return c
}

var demoHeadlines = []struct {
	sentiment float64
	headline  string
}{
	{0.8, "Earnings beat expectations across megacap tech"},
	{0.7, "Fed officials signal patience on further hikes"},
	{-0.7, "Supply chain disruptions weigh on guidance"},
	{-0.8, "Regulators open probe into sector leaders"},
}

// Demo 是无外部依赖的合成数据源：随机游走 K 线、轮播新闻与周期性
// 宏观发布。构造时即生成一段历史 K 线，既作为回测样本，也让指标
// 在流式阶段一开始就有足够的预热数据。
type Demo struct {
	cfg  DemoConfig
	rng  *rand.Rand
	win  *market.Window
	last float64
}

func NewDemo(cfg DemoConfig) *Demo {
	final := cfg.withDefaults()
	seed := final.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	d := &Demo{
		cfg:  final,
		rng:  rand.New(rand.NewSource(seed)),
		win:  market.NewWindow(0),
		last: final.BasePrice,
	}
	now := time.Now().Unix()
	start := now - int64(final.SeedBars)*int64(final.BarInterval/time.Second)
	for i := 0; i < final.SeedBars; i++ {
		ts := start + int64(i)*int64(final.BarInterval/time.Second)
		d.win.Append(d.nextCandle(ts))
	}
	return d
}

// History 返回种子阶段生成的 K 线副本，用于启动时的回测与网格搜索。
func (d *Demo) History() []market.Candle {
	return d.win.Snapshot()
}

// Window 暴露滚动缓存，供图表与持续回测读取最新快照。
func (d *Demo) Window() *market.Window {
	return d.win
}

// Run 启动三条发布循环，阻塞到 ctx 取消为止。事件只写 out，由调用方
// 串行摄入。
func (d *Demo) Run(ctx context.Context, out chan<- event.Event) error {
	logger.Infof("[feed] demo source started symbol=%s bar=%s", d.cfg.Symbol, d.cfg.BarInterval)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return d.barLoop(ctx, out) })
	group.Go(func() error { return d.newsLoop(ctx, out) })
	group.Go(func() error { return d.macroLoop(ctx, out) })
	err := group.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

func (d *Demo) barLoop(ctx context.Context, out chan<- event.Event) error {
	ticker := time.NewTicker(d.cfg.BarInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		// 突破判定用追加前的窗口，当前棒不和自己比。
		prevHigh, prevOK := d.win.HighestHigh(d.cfg.BreakoutLookback)
		c := d.nextCandle(time.Now().Unix())
		d.win.Append(c)
		if !emit(ctx, out, event.NewBar(d.cfg.Symbol, c)) {
			return ctx.Err()
		}
		if prevOK && c.Close > prevHigh {
			evt := event.NewAt(event.TypeBreakout, d.cfg.Symbol, c.Time, map[string]any{
				"close":    c.Close,
				"prevHigh": prevHigh,
				"lookback": d.cfg.BreakoutLookback,
			})
			if !emit(ctx, out, evt) {
				return ctx.Err()
			}
		}
	}
}

func (d *Demo) newsLoop(ctx context.Context, out chan<- event.Event) error {
	ticker := time.NewTicker(d.cfg.NewsInterval)
	defer ticker.Stop()
	i := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		item := demoHeadlines[i%len(demoHeadlines)]
		i++
		if !emit(ctx, out, event.NewNewsItem(d.cfg.Symbol, item.sentiment, item.headline)) {
			return ctx.Err()
		}
	}
}

func (d *Demo) macroLoop(ctx context.Context, out chan<- event.Event) error {
	ticker := time.NewTicker(d.cfg.MacroInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		estimate := 3.0
		actual := estimate + d.rng.NormFloat64()*0.3
		// 偶发一次离谱读数，保证冲击检测路径被走到。
		if d.rng.Float64() < 0.2 {
			actual = estimate + 0.6 + d.rng.Float64()*0.4
		}
		if !emit(ctx, out, event.NewMacroRelease(d.cfg.MacroSeries, actual, estimate)) {
			return ctx.Err()
		}
	}
}

// nextCandle 以对数随机游走推进价格并生成一根 K 线。
func (d *Demo) nextCandle(ts int64) market.Candle {
	open := d.last
	drift := d.rng.NormFloat64() * 0.004
	close := open * (1 + drift)
	hi := open
	if close > hi {
		hi = close
	}
	hi *= 1 + d.rng.Float64()*0.002
	lo := open
	if close < lo {
		lo = close
	}
	lo *= 1 - d.rng.Float64()*0.002
	d.last = close
	return market.Candle{
		Time:   ts,
		Open:   open,
		High:   hi,
		Low:    lo,
		Close:  close,
		Volume: 1000 + d.rng.Float64()*9000,
	}
}

func emit(ctx context.Context, out chan<- event.Event, evt event.Event) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- evt:
		return true
	}
}

// String 便于日志标识数据源。
func (d *Demo) String() string {
	return fmt.Sprintf("demo(%s)", d.cfg.Symbol)
}
