package pine

import "fmt"

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) accept(kind tokKind) (token, bool) {
	t, ok := p.peek()
	if !ok || t.kind != kind {
		return token{}, false
	}
	p.pos++
	return t, true
}

func (p *parser) expect(kind tokKind, what string) (token, error) {
	t, ok := p.accept(kind)
	if !ok {
		return token{}, fmt.Errorf("期望 %s", what)
	}
	return t, nil
}

// parseLine 解析一行脚本。空行与注释行返回 (nil, nil)。
func parseLine(line string) (stmt, error) {
	toks, err := lexLine(stripComment(line))
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, nil
	}
	p := &parser{toks: toks}
	head := toks[0]
	switch {
	case head.kind == tokIdent && head.text == "if":
		return p.parseTrigger()
	case head.kind == tokLBracket:
		return p.parseMultiAssign()
	case head.kind == tokIdent && head.text == "strategy" && len(toks) > 1 && toks[1].kind == tokLParen:
		return p.parseStrategyDecl()
	case head.kind == tokIdent && len(toks) > 1 && toks[1].kind == tokAssign:
		return p.parseAssign()
	default:
		return nil, fmt.Errorf("无法识别的语句")
	}
}

// parseStrategyDecl 只关心 title：优先 title="..."，否则取第一个字符串。
func (p *parser) parseStrategyDecl() (stmt, error) {
	title := ""
	for i := 0; i < len(p.toks); i++ {
		t := p.toks[i]
		if t.kind == tokIdent && t.text == "title" && i+2 < len(p.toks) &&
			p.toks[i+1].kind == tokAssign && p.toks[i+2].kind == tokString {
			return strategyStmt{Title: p.toks[i+2].text}, nil
		}
		if t.kind == tokString && title == "" {
			title = t.text
		}
	}
	return strategyStmt{Title: title}, nil
}

func (p *parser) parseAssign() (stmt, error) {
	nameTok, _ := p.next()
	if _, err := p.expect(tokAssign, "="); err != nil {
		return nil, err
	}
	fnTok, err := p.expect(tokIdent, "函数调用")
	if err != nil {
		return nil, err
	}
	ns, fn := splitFunc(fnTok.text)
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	switch {
	case ns == "input" && (fn == "int" || fn == "float"):
		for _, a := range args {
			if a.IsNum {
				return inputStmt{Name: nameTok.text, Value: a.Num}, nil
			}
		}
		// 无数字实参：行被接受但不产生参数（与原始语义一致）。
		return nil, nil
	case ns == "ta" && (fn == "sma" || fn == "ema" || fn == "rsi"):
		return indicatorStmt{Targets: []string{nameTok.text}, Func: fn, Args: args}, nil
	default:
		return nil, fmt.Errorf("不支持的赋值来源 %s", fnTok.text)
	}
}

func (p *parser) parseMultiAssign() (stmt, error) {
	if _, err := p.expect(tokLBracket, "["); err != nil {
		return nil, err
	}
	var targets []string
	for {
		t, err := p.expect(tokIdent, "目标序列名")
		if err != nil {
			return nil, err
		}
		targets = append(targets, t.text)
		if _, ok := p.accept(tokComma); ok {
			continue
		}
		break
	}
	if _, err := p.expect(tokRBracket, "]"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokAssign, "="); err != nil {
		return nil, err
	}
	fnTok, err := p.expect(tokIdent, "指标调用")
	if err != nil {
		return nil, err
	}
	ns, fn := splitFunc(fnTok.text)
	if ns != "ta" {
		return nil, fmt.Errorf("不支持的命名空间 %s", ns)
	}
	if fn == "bb" {
		fn = "bbands"
	}
	switch fn {
	case "bbands", "macd", "stoch", "supertrend":
	default:
		return nil, fmt.Errorf("不支持的多输出指标 %s", fn)
	}
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	return indicatorStmt{Targets: targets, Func: fn, Args: args}, nil
}

// parseArgs 解析 (a, 1, k=2) 形式的实参表；关键字实参被忽略。
func (p *parser) parseArgs() ([]arg, error) {
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	var args []arg
	for {
		t, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("实参表未闭合")
		}
		switch t.kind {
		case tokRParen:
			p.pos++
			return args, nil
		case tokComma:
			p.pos++
		case tokNumber:
			p.pos++
			args = append(args, arg{Num: t.num, IsNum: true})
		case tokString:
			p.pos++
		case tokIdent:
			p.pos++
			if _, ok := p.accept(tokAssign); ok {
				// 关键字实参：消费其值后丢弃。
				p.next()
				continue
			}
			args = append(args, arg{Ident: t.text})
		default:
			return nil, fmt.Errorf("实参表中出现 %q", t.text)
		}
	}
}

func (p *parser) parseTrigger() (stmt, error) {
	if _, err := p.expect(tokIdent, "if"); err != nil {
		return nil, err
	}
	cond, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon, ":"); err != nil {
		return nil, err
	}
	actTok, err := p.expect(tokIdent, "strategy.entry/close")
	if err != nil {
		return nil, err
	}
	ns, fn := splitFunc(actTok.text)
	if ns != "strategy" {
		return nil, fmt.Errorf("不支持的动作 %s", actTok.text)
	}
	var action RuleKind
	switch fn {
	case "entry":
		action = RuleEntry
	case "close":
		action = RuleExit
	default:
		return nil, fmt.Errorf("不支持的动作 strategy.%s", fn)
	}
	// entry/close 的实参（订单标签等）与本 IR 无关，忽略行尾。
	return triggerStmt{Cond: cond, Action: action}, nil
}

func (p *parser) parseCond() (condExpr, error) {
	t, err := p.expect(tokIdent, "条件表达式")
	if err != nil {
		return nil, err
	}
	ns, fn := splitFunc(t.text)
	if ns == "ta" && (fn == "crossover" || fn == "crossunder") {
		if _, err := p.expect(tokLParen, "("); err != nil {
			return nil, err
		}
		a, err := p.expect(tokIdent, "序列名")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return nil, err
		}
		b, err := p.expect(tokIdent, "序列名")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return crossExpr{Under: fn == "crossunder", A: a.text, B: b.text}, nil
	}
	if ns != "" {
		return nil, fmt.Errorf("不支持的条件 %s", t.text)
	}
	opTok, err := p.expect(tokCmp, "比较运算符")
	if err != nil {
		return nil, err
	}
	numTok, err := p.expect(tokNumber, "数字字面量")
	if err != nil {
		return nil, err
	}
	return compareExpr{Series: t.text, Op: CmpOp(opTok.text), Value: numTok.num}, nil
}
