// Package report 把回测结果渲染成自包含的 HTML 报告：K 线叠加买卖点，
// 下方附权益曲线。产物直接写文件，浏览器打开即可，不做截图。
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"vigil/internal/backtest"
	"vigil/internal/market"
)

const (
	colorBull   = "#34d399"
	colorBear   = "#f87171"
	colorEquity = "#3b82f6"

	chartWidthPx  = 1400
	klineHeightPx = 520
	lineHeightPx  = 280
)

// Input 一份报告需要的全部素材。
type Input struct {
	Symbol      string
	Candles     []market.Candle
	Result      backtest.Result
	Explanation string
}

// WriteHTML 渲染报告并写入 path，必要时创建目录。
func WriteHTML(path string, in Input) error {
	if len(in.Candles) == 0 {
		return fmt.Errorf("report: 没有可渲染的 K 线")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	page := buildPage(in)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}

func buildPage(in Input) *components.Page {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(buildKline(in), buildEquity(in))
	return page
}

func buildKline(in Input) *charts.Kline {
	kline := charts.NewKLine()
	subtitle := fmt.Sprintf("%s | return %.2f%% | sharpe %.2f | maxDD %.2f%%",
		in.Result.Name, in.Result.TotalReturn*100, in.Result.Sharpe, in.Result.MaxDrawdown*100)
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  fmt.Sprintf("%dpx", chartWidthPx),
			Height: fmt.Sprintf("%dpx", klineHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    strings.ToUpper(in.Symbol),
			Subtitle: subtitle,
			Left:     "left",
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)

	xAxis := buildXAxis(in.Candles)
	data := make([]opts.KlineData, 0, len(in.Candles))
	for _, c := range in.Candles {
		data = append(data, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", data)
	kline.Overlap(buildTradeMarkers(in, xAxis))
	return kline
}

// buildTradeMarkers 把成交映射到对应 K 线的下标，买卖分两个散点系列。
func buildTradeMarkers(in Input, xAxis []string) *charts.Scatter {
	index := make(map[int64]int, len(in.Candles))
	for i, c := range in.Candles {
		index[c.Time] = i
	}
	buys := make([]opts.ScatterData, 0)
	sells := make([]opts.ScatterData, 0)
	for _, t := range in.Result.Trades {
		i, ok := index[t.TS]
		if !ok {
			continue
		}
		point := opts.ScatterData{Value: []any{xAxis[i], t.Price}, SymbolSize: 12}
		if t.Side == backtest.SideBuy {
			point.Symbol = "triangle"
			buys = append(buys, point)
		} else {
			point.Symbol = "pin"
			sells = append(sells, point)
		}
	}
	scatter := charts.NewScatter()
	scatter.SetXAxis(xAxis)
	scatter.AddSeries("Buy", buys, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBull}))
	scatter.AddSeries("Sell", sells, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBear}))
	return scatter
}

func buildEquity(in Input) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  fmt.Sprintf("%dpx", chartWidthPx),
			Height: fmt.Sprintf("%dpx", lineHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{Title: "Equity", Left: "left"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}),
	)
	equity := equityCurve(in.Candles, in.Result.Trades)
	points := make([]opts.LineData, len(equity))
	for i, v := range equity {
		points[i] = opts.LineData{Value: round(v, 6)}
	}
	line.SetXAxis(buildXAxis(in.Candles))
	line.AddSeries("Equity", points)
	return line
}

// equityCurve 由成交序列重放仓位，再按收盘价累乘权益。
func equityCurve(candles []market.Candle, trades []backtest.Trade) []float64 {
	byTS := make(map[int64]string, len(trades))
	for _, t := range trades {
		byTS[t.TS] = t.Side
	}
	out := make([]float64, len(candles))
	eq := 1.0
	holding := false
	prevPos := 0
	for i, c := range candles {
		if i > 0 && prevPos == 1 && candles[i-1].Close != 0 {
			eq *= c.Close / candles[i-1].Close
		}
		out[i] = eq
		switch byTS[c.Time] {
		case backtest.SideBuy:
			holding = true
		case backtest.SideSell:
			holding = false
		}
		prevPos = 0
		if holding {
			prevPos = 1
		}
	}
	return out
}

func buildXAxis(candles []market.Candle) []string {
	x := make([]string, len(candles))
	for i, c := range candles {
		x[i] = time.Unix(c.Time, 0).UTC().Format("01-02 15:04")
	}
	return x
}

func round(val float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}
