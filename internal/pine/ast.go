// Package pine 把受限的 Pine 脚本子集编译为可重复回测的中间表示。
//
// 支持的构造：
//   - strategy(title="...")
//   - x = input.int(...) / input.float(...)
//   - x = ta.sma|ta.ema|ta.rsi(src, n)
//   - [basis, upper, lower] = ta.bbands(src, n, k)   （别名 ta.bb）
//   - [line, signal, hist] = ta.macd(src, fast, slow, signal)
//   - [k, d] = ta.stoch(high, low, close, klen, dlen)
//   - [st, dir] = ta.supertrend(factor, period)
//   - if ta.crossover(a,b): strategy.entry(...)  / strategy.close(...)
//   - if x >= 30: strategy.entry(...) / strategy.close(...)
//
// 限制：单标的、只做多、同一时刻至多一个仓位、不加仓。
package pine

// stmt 是单行语句的 AST 节点。
type stmt interface{ stmtNode() }

type strategyStmt struct {
	Title string
}

type inputStmt struct {
	Name  string
	Value float64
}

// arg 是指标调用的实参：数字字面量或标识符（参数名/序列名）。
type arg struct {
	Ident string
	Num   float64
	IsNum bool
}

type indicatorStmt struct {
	Targets []string
	Func    string // sma/ema/rsi/bbands/macd/stoch/supertrend
	Args    []arg
}

type triggerStmt struct {
	Cond   condExpr
	Action RuleKind
}

func (strategyStmt) stmtNode()  {}
func (inputStmt) stmtNode()     {}
func (indicatorStmt) stmtNode() {}
func (triggerStmt) stmtNode()   {}

// condExpr 是触发条件的 AST 节点。
type condExpr interface{ condNode() }

type crossExpr struct {
	Under bool
	A, B  string
}

type compareExpr struct {
	Series string
	Op     CmpOp
	Value  float64
}

func (crossExpr) condNode()   {}
func (compareExpr) condNode() {}
