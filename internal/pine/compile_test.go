package pine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const maCrossScript = `
//@version=5
strategy(title="MA Cross Demo", overlay=true)
fastLen = input.int(5, title="Fast")
slowLen = input.int(20, title="Slow")
ma5 = ta.sma(close, fastLen)
ma20 = ta.sma(close, slowLen)
if ta.crossover(ma5, ma20): strategy.entry("long", strategy.long)
if ta.crossunder(ma5, ma20): strategy.close("long")
`

func TestCompile_MACrossScript(t *testing.T) {
	cs, err := Compile(maCrossScript)
	assert.NoError(t, err)
	assert.Equal(t, "MA Cross Demo", cs.Name)
	assert.Equal(t, 5.0, cs.Params["fastLen"])
	assert.Equal(t, 20.0, cs.Params["slowLen"])

	assert.Len(t, cs.Series, 2)
	assert.Equal(t, "ma5", cs.Series[0].Name)
	assert.Equal(t, SMASpec{Source: "close", Period: 5}, cs.Series[0].Spec, "具名参数应解析为数值")
	assert.Equal(t, SMASpec{Source: "close", Period: 20}, cs.Series[1].Spec)

	assert.Len(t, cs.Rules, 2)
	assert.Equal(t, RuleEntry, cs.Rules[0].Kind)
	assert.Equal(t, CrossCondition{A: "ma5", B: "ma20"}, cs.Rules[0].Cond)
	assert.Equal(t, RuleExit, cs.Rules[1].Kind)
	assert.Equal(t, CrossCondition{Under: true, A: "ma5", B: "ma20"}, cs.Rules[1].Cond)
}

func TestCompile_FallbackRuleSynthesis(t *testing.T) {
	src := `
strategy(title="Just Series")
ma5 = ta.sma(close, 5)
ma20 = ta.ema(close, 20)
`
	cs, err := Compile(src)
	assert.NoError(t, err)
	assert.Len(t, cs.Rules, 2, "没有触发语句时用前两条均线合成规则")
	assert.Equal(t, Rule{Kind: RuleEntry, Cond: CrossCondition{A: "ma5", B: "ma20"}}, cs.Rules[0])
	assert.Equal(t, Rule{Kind: RuleExit, Cond: CrossCondition{Under: true, A: "ma5", B: "ma20"}}, cs.Rules[1])
}

func TestCompile_NoFallbackWithoutTwoMAs(t *testing.T) {
	src := `
r = ta.rsi(close, 14)
ma = ta.sma(close, 10)
`
	cs, err := Compile(src)
	assert.NoError(t, err)
	assert.Empty(t, cs.Rules, "均线族不足两条时不合成规则")
}

func TestCompile_LenientSkipsUnknownLines(t *testing.T) {
	src := `
strategy(title="Tolerant")
plot(ma5, color=color.blue)
alertcondition(cross, "ping")
ma5 = ta.sma(close, 5)
some nonsense @@@ line
ma20 = ta.sma(close, 20)
`
	cs, err := Compile(src)
	assert.NoError(t, err)
	assert.Equal(t, "Tolerant", cs.Name)
	assert.Len(t, cs.Series, 2)
}

func TestCompileWithOptions_StrictReportsLine(t *testing.T) {
	src := "ma5 = ta.sma(close, 5)\nplot(ma5)\n"
	_, err := CompileWithOptions(src, Options{Strict: true})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "第 2 行")
}

func TestCompile_CommentsAndComparisons(t *testing.T) {
	src := `
// 均值回归示例
r = ta.rsi(close, 14)
if r <= 30: strategy.entry("long", strategy.long)
if r >= 55: strategy.close("long")
`
	cs, err := Compile(src)
	assert.NoError(t, err)
	assert.Len(t, cs.Rules, 2)
	assert.Equal(t, CompareCondition{Series: "r", Op: CmpLE, Value: 30}, cs.Rules[0].Cond)
	assert.Equal(t, CompareCondition{Series: "r", Op: CmpGE, Value: 55}, cs.Rules[1].Cond)
}

func TestCompile_MultiAssignIndicators(t *testing.T) {
	src := `
[b, u, l] = ta.bbands(close, 20, 2.0)
[m, s, h] = ta.macd(close, 12, 26, 9)
[k, d] = ta.stoch(high, low, close, 14, 3)
[st, dir] = ta.supertrend(3.0, 10)
`
	cs, err := Compile(src)
	assert.NoError(t, err)
	assert.Len(t, cs.Series, 10)

	assert.Equal(t, BollingerSpec{Source: "close", Period: 20, Mult: 2.0, Band: BandBasis}, cs.Series[0].Spec)
	assert.Equal(t, BollingerSpec{Source: "close", Period: 20, Mult: 2.0, Band: BandUpper}, cs.Series[1].Spec)
	assert.Equal(t, BollingerSpec{Source: "close", Period: 20, Mult: 2.0, Band: BandLower}, cs.Series[2].Spec)

	assert.Equal(t, MACDSpec{Source: "close", Fast: 12, Slow: 26, Signal: 9, Out: MACDLine}, cs.Series[3].Spec)
	assert.Equal(t, MACDSpec{Source: "close", Fast: 12, Slow: 26, Signal: 9, Out: MACDSignal}, cs.Series[4].Spec)
	assert.Equal(t, MACDSpec{Source: "close", Fast: 12, Slow: 26, Signal: 9, Out: MACDHist}, cs.Series[5].Spec)

	assert.Equal(t, StochSpec{KPeriod: 14, DPeriod: 3, Out: StochK}, cs.Series[6].Spec)
	assert.Equal(t, StochSpec{KPeriod: 14, DPeriod: 3, Out: StochD}, cs.Series[7].Spec)

	assert.Equal(t, SuperTrendSpec{Factor: 3.0, Period: 10, Out: SuperTrendValue}, cs.Series[8].Spec)
	assert.Equal(t, SuperTrendSpec{Factor: 3.0, Period: 10, Out: SuperTrendDirection}, cs.Series[9].Spec)
}

func TestCompile_UnresolvedParamDefaultsToZero(t *testing.T) {
	src := "ma = ta.sma(close, missingLen)\n"
	cs, err := Compile(src)
	assert.NoError(t, err)
	assert.Equal(t, SMASpec{Source: "close", Period: 0}, cs.Series[0].Spec, "未定义的参数按 0 处理")
}

func TestCompile_StrategyTitlePositional(t *testing.T) {
	cs, err := Compile(`strategy("Positional Title", overlay=true)` + "\n")
	assert.NoError(t, err)
	assert.Equal(t, "Positional Title", cs.Name)
}

func TestCompile_EmptyScript(t *testing.T) {
	cs, err := Compile("")
	assert.NoError(t, err)
	assert.Equal(t, "PineStrategy", cs.Name)
	assert.Empty(t, cs.Series)
	assert.Empty(t, cs.Rules)
}
