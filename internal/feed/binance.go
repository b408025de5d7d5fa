package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"vigil/internal/event"
	"vigil/internal/logger"
	"vigil/internal/market"
)

const maxHistoryLimit = 1000

// BinanceConfig 描述现货行情接入参数。
type BinanceConfig struct {
	Symbol   string // 交易所格式，如 BTCUSDT
	Interval string // 如 1m
	History  int    // 启动时回补的 K 线数量
}

func (c BinanceConfig) withDefaults() BinanceConfig {
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	if c.Symbol == "" {
		c.Symbol = "BTCUSDT"
	}
	c.Interval = strings.ToLower(strings.TrimSpace(c.Interval))
	if c.Interval == "" {
		c.Interval = "1m"
	}
	if c.History <= 0 {
		c.History = 200
	}
	if c.History > maxHistoryLimit {
		c.History = maxHistoryLimit
	}
	return c
}

// Binance 基于 go-binance SDK 的实盘数据源：REST 回补历史，websocket
// 订阅收线事件。只把收完的 K 线转成 Bar 事件，未收线的更新丢弃。
type Binance struct {
	cfg    BinanceConfig
	client *binance.Client
	win    *market.Window
}

func NewBinance(cfg BinanceConfig) *Binance {
	return &Binance{
		cfg:    cfg.withDefaults(),
		client: binance.NewClient("", ""),
		win:    market.NewWindow(0),
	}
}

// Window 暴露滚动缓存，语义同 Demo.Window。
func (b *Binance) Window() *market.Window {
	return b.win
}

// FetchHistory 拉取最近 limit 根已收线 K 线并填充窗口。
func (b *Binance) FetchHistory(ctx context.Context) ([]market.Candle, error) {
	kls, err := b.client.NewKlinesService().
		Symbol(b.cfg.Symbol).
		Interval(b.cfg.Interval).
		Limit(b.cfg.History).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", b.cfg.Symbol, b.cfg.Interval, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		c := market.Candle{
			Time:   kl.OpenTime / 1000,
			Open:   parseFloat(kl.Open),
			High:   parseFloat(kl.High),
			Low:    parseFloat(kl.Low),
			Close:  parseFloat(kl.Close),
			Volume: parseFloat(kl.Volume),
		}
		out = append(out, c)
		b.win.Append(c)
	}
	return out, nil
}

// Run 维持 websocket 订阅并在断线后指数退避重连，阻塞到 ctx 取消。
func (b *Binance) Run(ctx context.Context, out chan<- event.Event) error {
	delay := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		handler := func(ev *binance.WsKlineEvent) {
			if ev == nil || !ev.Kline.IsFinal {
				return
			}
			c := market.Candle{
				Time:   ev.Kline.StartTime / 1000,
				Open:   parseFloat(ev.Kline.Open),
				High:   parseFloat(ev.Kline.High),
				Low:    parseFloat(ev.Kline.Low),
				Close:  parseFloat(ev.Kline.Close),
				Volume: parseFloat(ev.Kline.Volume),
			}
			b.win.Append(c)
			emit(ctx, out, event.NewBar(b.cfg.Symbol, c))
		}
		errHandler := func(err error) {
			if err != nil {
				logger.Warnf("[feed] binance ws error: %v", err)
			}
		}
		doneC, stopC, err := binance.WsKlineServe(b.cfg.Symbol, b.cfg.Interval, handler, errHandler)
		if err != nil {
			logger.Warnf("[feed] binance subscribe failed: %v", err)
			if !sleepWithContext(ctx, delay) {
				return nil
			}
			delay = nextDelay(delay)
			continue
		}
		delay = time.Second
		logger.Infof("[feed] binance subscribed %s %s", b.cfg.Symbol, b.cfg.Interval)
		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return nil
		case <-doneC:
		}
		logger.Warnf("[feed] binance stream closed, reconnecting")
		if !sleepWithContext(ctx, delay) {
			return nil
		}
		delay = nextDelay(delay)
	}
}

func (b *Binance) String() string {
	return fmt.Sprintf("binance(%s,%s)", b.cfg.Symbol, b.cfg.Interval)
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(current time.Duration) time.Duration {
	if current <= 0 {
		return time.Second
	}
	next := current * 2
	if next > 30*time.Second {
		next = 30 * time.Second
	}
	return next
}
