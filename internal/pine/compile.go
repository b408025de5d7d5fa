package pine

import (
	"fmt"
	"strings"
)

// Options 控制编译行为。
type Options struct {
	// Strict 关闭宽容模式：无法识别的行报错而不是跳过。
	Strict bool
}

// Compile 以宽容模式编译脚本：无法识别的行静默跳过，便于向前兼容。
func Compile(src string) (*CompiledStrategy, error) {
	return CompileWithOptions(src, Options{})
}

// CompileWithOptions 编译脚本。产物创建后只读，可安全地在并发回测间复用。
func CompileWithOptions(src string, opts Options) (*CompiledStrategy, error) {
	cs := &CompiledStrategy{
		Name:   "PineStrategy",
		Params: map[string]float64{},
	}
	for lineNo, line := range strings.Split(src, "\n") {
		st, err := parseLine(line)
		if err != nil {
			if opts.Strict {
				return nil, fmt.Errorf("第 %d 行: %w", lineNo+1, err)
			}
			continue
		}
		if st == nil {
			continue
		}
		if err := cs.lower(st); err != nil {
			if opts.Strict {
				return nil, fmt.Errorf("第 %d 行: %w", lineNo+1, err)
			}
			continue
		}
	}
	cs.synthesizeFallbackRules()
	return cs, nil
}

func (cs *CompiledStrategy) lower(st stmt) error {
	switch s := st.(type) {
	case strategyStmt:
		if s.Title != "" {
			cs.Name = s.Title
		}
	case inputStmt:
		cs.Params[s.Name] = s.Value
	case indicatorStmt:
		return cs.lowerIndicator(s)
	case triggerStmt:
		cs.Rules = append(cs.Rules, Rule{Kind: s.Action, Cond: lowerCond(s.Cond)})
	}
	return nil
}

func lowerCond(c condExpr) Condition {
	switch e := c.(type) {
	case crossExpr:
		return CrossCondition{Under: e.Under, A: e.A, B: e.B}
	case compareExpr:
		return CompareCondition{Series: e.Series, Op: e.Op, Value: e.Value}
	}
	return nil
}

// resolve 实参取值：数字字面量优先，其次查具名参数；都失败时给 0，
// 宁可产生全 NaN 的序列也不中断编译。
func (cs *CompiledStrategy) resolve(a arg) float64 {
	if a.IsNum {
		return a.Num
	}
	if v, ok := cs.Params[a.Ident]; ok {
		return v
	}
	return 0
}

func (cs *CompiledStrategy) argNum(args []arg, idx int) float64 {
	if idx >= len(args) {
		return 0
	}
	return cs.resolve(args[idx])
}

func argSource(args []arg, idx int) string {
	if idx >= len(args) || args[idx].IsNum {
		return "close"
	}
	return args[idx].Ident
}

func (cs *CompiledStrategy) lowerIndicator(s indicatorStmt) error {
	switch s.Func {
	case "sma", "ema", "rsi":
		if len(s.Targets) != 1 {
			return fmt.Errorf("%s 需要单个目标", s.Func)
		}
		src := argSource(s.Args, 0)
		period := int(cs.argNum(s.Args, 1))
		var spec SeriesSpec
		switch s.Func {
		case "sma":
			spec = SMASpec{Source: src, Period: period}
		case "ema":
			spec = EMASpec{Source: src, Period: period}
		case "rsi":
			spec = RSISpec{Source: src, Period: period}
		}
		cs.declare(s.Targets[0], spec)
	case "bbands":
		if len(s.Targets) != 3 {
			return fmt.Errorf("bbands 需要 [basis, upper, lower] 三个目标")
		}
		src := argSource(s.Args, 0)
		period := int(cs.argNum(s.Args, 1))
		mult := cs.argNum(s.Args, 2)
		for i, band := range []BollingerBand{BandBasis, BandUpper, BandLower} {
			cs.declare(s.Targets[i], BollingerSpec{Source: src, Period: period, Mult: mult, Band: band})
		}
	case "macd":
		if len(s.Targets) != 3 {
			return fmt.Errorf("macd 需要 [line, signal, hist] 三个目标")
		}
		src := argSource(s.Args, 0)
		fast := int(cs.argNum(s.Args, 1))
		slow := int(cs.argNum(s.Args, 2))
		signal := int(cs.argNum(s.Args, 3))
		for i, out := range []MACDOut{MACDLine, MACDSignal, MACDHist} {
			cs.declare(s.Targets[i], MACDSpec{Source: src, Fast: fast, Slow: slow, Signal: signal, Out: out})
		}
	case "stoch":
		if len(s.Targets) != 2 {
			return fmt.Errorf("stoch 需要 [k, d] 两个目标")
		}
		// 前三个实参按约定是 high/low/close，计算直接取 K 线数据。
		kPeriod := int(cs.argNum(s.Args, 3))
		dPeriod := int(cs.argNum(s.Args, 4))
		cs.declare(s.Targets[0], StochSpec{KPeriod: kPeriod, DPeriod: dPeriod, Out: StochK})
		cs.declare(s.Targets[1], StochSpec{KPeriod: kPeriod, DPeriod: dPeriod, Out: StochD})
	case "supertrend":
		if len(s.Targets) != 2 {
			return fmt.Errorf("supertrend 需要 [line, dir] 两个目标")
		}
		factor := cs.argNum(s.Args, 0)
		period := int(cs.argNum(s.Args, 1))
		cs.declare(s.Targets[0], SuperTrendSpec{Factor: factor, Period: period, Out: SuperTrendValue})
		cs.declare(s.Targets[1], SuperTrendSpec{Factor: factor, Period: period, Out: SuperTrendDirection})
	default:
		return fmt.Errorf("未知指标 %s", s.Func)
	}
	return nil
}

func (cs *CompiledStrategy) declare(name string, spec SeriesSpec) {
	cs.Series = append(cs.Series, NamedSeries{Name: name, Spec: spec})
}

// synthesizeFallbackRules 在脚本没有任何触发语句时，用最先声明的两条
// 均线族序列合成上穿入场/下穿出场，保证策略总是可回测。
func (cs *CompiledStrategy) synthesizeFallbackRules() {
	if len(cs.Rules) > 0 {
		return
	}
	var mas []string
	for _, s := range cs.Series {
		switch s.Spec.(type) {
		case SMASpec, EMASpec:
			mas = append(mas, s.Name)
		}
		if len(mas) == 2 {
			break
		}
	}
	if len(mas) < 2 {
		return
	}
	cs.Rules = append(cs.Rules,
		Rule{Kind: RuleEntry, Cond: CrossCondition{A: mas[0], B: mas[1]}},
		Rule{Kind: RuleExit, Cond: CrossCondition{Under: true, A: mas[0], B: mas[1]}},
	)
}
