package pine

// SeriesSpec 是序列定义的带标签变体，按具体类型派发。
type SeriesSpec interface{ seriesSpec() }

// SMASpec 简单移动平均。
type SMASpec struct {
	Source string
	Period int
}

// EMASpec 指数移动平均。
type EMASpec struct {
	Source string
	Period int
}

// RSISpec 相对强弱指标。
type RSISpec struct {
	Source string
	Period int
}

// BollingerBand 标识布林带的一条轨道。
type BollingerBand int

const (
	BandBasis BollingerBand = iota
	BandUpper
	BandLower
)

// BollingerSpec 布林带的单条输出。
type BollingerSpec struct {
	Source string
	Period int
	Mult   float64
	Band   BollingerBand
}

// MACDOut 标识 MACD 的一条输出。
type MACDOut int

const (
	MACDLine MACDOut = iota
	MACDSignal
	MACDHist
)

// MACDSpec MACD 的单条输出。
type MACDSpec struct {
	Source string
	Fast   int
	Slow   int
	Signal int
	Out    MACDOut
}

// StochOut 标识随机指标的 %K 或 %D。
type StochOut int

const (
	StochK StochOut = iota
	StochD
)

// StochSpec 随机指标输出，基于 K 线高/低/收计算。
type StochSpec struct {
	KPeriod int
	DPeriod int
	Out     StochOut
}

// SuperTrendOut 标识 SuperTrend 的趋势线或方向。
type SuperTrendOut int

const (
	SuperTrendValue SuperTrendOut = iota
	SuperTrendDirection
)

// SuperTrendSpec SuperTrend 输出。
type SuperTrendSpec struct {
	Factor float64
	Period int
	Out    SuperTrendOut
}

func (SMASpec) seriesSpec()        {}
func (EMASpec) seriesSpec()        {}
func (RSISpec) seriesSpec()        {}
func (BollingerSpec) seriesSpec()  {}
func (MACDSpec) seriesSpec()       {}
func (StochSpec) seriesSpec()      {}
func (SuperTrendSpec) seriesSpec() {}

// NamedSeries 保留声明顺序：序列只能引用先于自己声明的序列。
type NamedSeries struct {
	Name string
	Spec SeriesSpec
}

// RuleKind 区分入场与出场规则。
type RuleKind int

const (
	RuleEntry RuleKind = iota
	RuleExit
)

// CmpOp 数值比较操作符。
type CmpOp string

const (
	CmpLT CmpOp = "<"
	CmpLE CmpOp = "<="
	CmpGT CmpOp = ">"
	CmpGE CmpOp = ">="
)

// Condition 是规则条件的带标签变体。
type Condition interface{ condition() }

// CrossCondition 两条序列的交叉关系在相邻两个采样间翻转。
type CrossCondition struct {
	Under bool // false=上穿 true=下穿
	A, B  string
}

// CompareCondition 序列当前值与字面量比较。
type CompareCondition struct {
	Series string
	Op     CmpOp
	Value  float64
}

func (CrossCondition) condition()   {}
func (CompareCondition) condition() {}

// Rule 把条件绑定到入场或出场动作。
type Rule struct {
	Kind RuleKind
	Cond Condition
}

// CompiledStrategy 编译产物。创建后只读，可在多次回测间复用。
type CompiledStrategy struct {
	Name   string
	Params map[string]float64
	Series []NamedSeries
	Rules  []Rule
}
