package pine

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokKind int

const (
	tokIdent tokKind = iota
	tokNumber
	tokString
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokAssign
	tokColon
	tokCmp
)

type token struct {
	kind tokKind
	text string
	num  float64
}

// stripComment 去掉行内 // 注释（引号内的 // 保留）。
func stripComment(line string) string {
	inStr := false
	for i := 0; i+1 < len(line); i++ {
		switch {
		case line[i] == '"':
			inStr = !inStr
		case !inStr && line[i] == '/' && line[i+1] == '/':
			return line[:i]
		}
	}
	return line
}

// lexLine 把一行脚本切成 token。标识符允许包含点号（ta.sma、input.int）。
func lexLine(line string) ([]token, error) {
	var toks []token
	runes := []rune(line)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case r == '[':
			toks = append(toks, token{kind: tokLBracket, text: "["})
			i++
		case r == ']':
			toks = append(toks, token{kind: tokRBracket, text: "]"})
			i++
		case r == ',':
			toks = append(toks, token{kind: tokComma, text: ","})
			i++
		case r == ':':
			toks = append(toks, token{kind: tokColon, text: ":"})
			i++
		case r == '<' || r == '>':
			op := string(r)
			if i+1 < len(runes) && runes[i+1] == '=' {
				op += "="
				i++
			}
			toks = append(toks, token{kind: tokCmp, text: op})
			i++
		case r == '=':
			if i+1 < len(runes) && runes[i+1] == '=' {
				return nil, fmt.Errorf("不支持 == 运算符")
			}
			toks = append(toks, token{kind: tokAssign, text: "="})
			i++
		case r == '"':
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("字符串未闭合")
			}
			toks = append(toks, token{kind: tokString, text: string(runes[i+1 : j])})
			i = j + 1
		case unicode.IsDigit(r) || ((r == '-' || r == '+') && i+1 < len(runes) && (unicode.IsDigit(runes[i+1]) || runes[i+1] == '.')):
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			text := string(runes[i:j])
			num, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("非法数字 %q", text)
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: num})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("无法识别的字符 %q", string(r))
		}
	}
	return toks, nil
}

// splitFunc 把 ta.sma 拆成命名空间与函数名。
func splitFunc(ident string) (ns, fn string) {
	idx := strings.LastIndex(ident, ".")
	if idx < 0 {
		return "", ident
	}
	return ident[:idx], ident[idx+1:]
}
