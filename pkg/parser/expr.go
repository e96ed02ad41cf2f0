package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cherrylang/cherryscript/pkg/ast"
	"github.com/cherrylang/cherryscript/pkg/lexer"
)

var (
	intRe      = regexp.MustCompile(`^-?[0-9]+$`)
	floatRe    = regexp.MustCompile(`^-?[0-9]+\.[0-9]+$`)
	identRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	callNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
)

// ParseExpr parses a single expression text.
func ParseExpr(text string, span ast.Span) (ast.Expr, error) {
	return parseExpr(text, span)
}

type opTok struct {
	tok string
	op  ast.BinaryOp
}

// Operator levels from loosest to tightest binding. Within a level the
// rightmost top-level occurrence splits the expression, which yields left
// associativity; multi-character tokens are listed before their prefixes.
var binaryLevels = [][]opTok{
	{{" or ", ast.OpOr}},
	{{" and ", ast.OpAnd}},
	{
		{"==", ast.OpEq}, {"!=", ast.OpNe},
		{">=", ast.OpGe}, {"<=", ast.OpLe},
		{">", ast.OpGt}, {"<", ast.OpLt},
	},
	{{"+", ast.OpAdd}, {"-", ast.OpSub}},
	{{"//", ast.OpFloorDiv}, {"*", ast.OpMul}, {"/", ast.OpDiv}, {"%", ast.OpMod}},
}

func parseExpr(text string, span ast.Span) (ast.Expr, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, errf(span, "empty expression")
	}

	if expr, ok, err := parseStringLit(s, span); ok || err != nil {
		return expr, err
	}
	switch s {
	case "true":
		return &ast.BoolLit{Value: true, Span: span}, nil
	case "false":
		return &ast.BoolLit{Value: false, Span: span}, nil
	case "null":
		return &ast.NullLit{Span: span}, nil
	}
	if intRe.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errf(span, "integer literal out of range: %s", s)
		}
		return &ast.IntLit{Value: n, Span: span}, nil
	}
	if floatRe.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errf(span, "malformed number: %s", s)
		}
		return &ast.FloatLit{Value: f, Span: span}, nil
	}

	// Fully wrapped delimiters: (expr), [array], {dict}.
	if end, ok := lexer.MatchDelim(s, 0); ok && end == len(s)-1 {
		switch s[0] {
		case '(':
			return parseExpr(s[1:end], span)
		case '[':
			return parseArrayLit(s[1:end], span)
		case '{':
			return parseDictLit(s[1:end], span)
		}
	}

	if strings.HasPrefix(s, "not ") {
		inner, err := parseExpr(s[len("not "):], span)
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: ast.OpNot, Expr: inner, Span: span}, nil
	}

	if name, argSrc, ok := callShape(s); ok {
		return parseCall(name, argSrc, span)
	}

	if expr, ok, err := parseTernary(s, span); ok || err != nil {
		return expr, err
	}

	for _, level := range binaryLevels {
		idx, op, n, found := findBinary(s, level)
		if !found {
			continue
		}
		left, err := parseExpr(s[:idx], span)
		if err != nil {
			return nil, err
		}
		right, err := parseExpr(s[idx+n:], span)
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: op, Left: left, Right: right, Span: span}, nil
	}

	// Exponentiation binds tighter than the levels above and associates to
	// the right, so the leftmost occurrence splits.
	if idx := findPower(s); idx > 0 {
		left, err := parseExpr(s[:idx], span)
		if err != nil {
			return nil, err
		}
		right, err := parseExpr(s[idx+2:], span)
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: ast.OpPow, Left: left, Right: right, Span: span}, nil
	}

	if s[0] == '-' {
		inner, err := parseExpr(s[1:], span)
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: ast.OpNeg, Expr: inner, Span: span}, nil
	}

	if expr, ok, err := parseSubscript(s, span); ok || err != nil {
		return expr, err
	}

	if parts := lexer.SplitTop(s, '.'); len(parts) >= 2 {
		allIdent := true
		for _, p := range parts {
			if !identRe.MatchString(p) {
				allIdent = false
				break
			}
		}
		if allIdent {
			return &ast.Member{Path: parts, Span: span}, nil
		}
	}

	if identRe.MatchString(s) {
		return &ast.Ident{Name: s, Span: span}, nil
	}
	return nil, errf(span, "cannot parse expression: %q", s)
}

// callShape matches a whole-expression call: a dotted name whose first '('
// closes at the final byte.
func callShape(s string) (name, argSrc string, ok bool) {
	open := strings.IndexByte(s, '(')
	if open <= 0 {
		return "", "", false
	}
	name = strings.TrimSpace(s[:open])
	if !callNameRe.MatchString(name) {
		return "", "", false
	}
	end, found := lexer.MatchDelim(s, open)
	if !found || end != len(s)-1 {
		return "", "", false
	}
	return name, s[open+1 : end], true
}

func parseCall(name, argSrc string, span ast.Span) (ast.Expr, error) {
	call := &ast.Call{Path: strings.Split(name, "."), Span: span}
	for _, part := range call.Path {
		if part == "" {
			return nil, errf(span, "malformed call target: %q", name)
		}
	}
	for _, piece := range lexer.SplitTop(argSrc, ',') {
		arg, err := parseExpr(piece, span)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
	}
	return call, nil
}

func parseArrayLit(inner string, span ast.Span) (ast.Expr, error) {
	lit := &ast.ArrayLit{Span: span}
	for _, piece := range lexer.SplitTop(inner, ',') {
		elem, err := parseExpr(piece, span)
		if err != nil {
			return nil, err
		}
		lit.Elems = append(lit.Elems, elem)
	}
	return lit, nil
}

func parseDictLit(inner string, span ast.Span) (ast.Expr, error) {
	lit := &ast.DictLit{Span: span}
	for _, piece := range lexer.SplitTop(inner, ',') {
		mask := lexer.TopLevel(piece)
		colon := -1
		for i := 0; i < len(piece); i++ {
			if piece[i] == ':' && mask[i] {
				colon = i
				break
			}
		}
		if colon < 0 {
			return nil, errf(span, "malformed dict entry: %q", piece)
		}
		key, err := parseExpr(piece[:colon], span)
		if err != nil {
			return nil, err
		}
		val, err := parseExpr(piece[colon+1:], span)
		if err != nil {
			return nil, err
		}
		lit.Entries = append(lit.Entries, ast.DictEntry{Key: key, Value: val})
	}
	return lit, nil
}

// parseTernary recognizes `then if cond else otherwise`. The rightmost
// top-level ` if ` that has a matching ` else ` after it wins.
func parseTernary(s string, span ast.Span) (ast.Expr, bool, error) {
	mask := lexer.TopLevel(s)
	var ifPos []int
	for i := 0; i+4 <= len(s); i++ {
		if mask[i] && s[i:i+4] == " if " {
			ifPos = append(ifPos, i)
		}
	}
	for k := len(ifPos) - 1; k >= 0; k-- {
		pos := ifPos[k]
		rest := s[pos+4:]
		rmask := lexer.TopLevel(rest)
		for j := 0; j+6 <= len(rest); j++ {
			if rmask[j] && rest[j:j+6] == " else " {
				thenSrc := strings.TrimSpace(s[:pos])
				condSrc := strings.TrimSpace(rest[:j])
				elseSrc := strings.TrimSpace(rest[j+6:])
				if thenSrc == "" || condSrc == "" || elseSrc == "" {
					break
				}
				thenExpr, err := parseExpr(thenSrc, span)
				if err != nil {
					return nil, true, err
				}
				condExpr, err := parseExpr(condSrc, span)
				if err != nil {
					return nil, true, err
				}
				elseExpr, err := parseExpr(elseSrc, span)
				if err != nil {
					return nil, true, err
				}
				return &ast.Ternary{Cond: condExpr, Then: thenExpr, Else: elseExpr, Span: span}, true, nil
			}
		}
	}
	return nil, false, nil
}

// findBinary locates the rightmost top-level operator of the level in s.
func findBinary(s string, level []opTok) (idx int, op ast.BinaryOp, n int, found bool) {
	mask := lexer.TopLevel(s)
	for i := 0; i < len(s); i++ {
		if !mask[i] {
			continue
		}
		for _, t := range level {
			if !strings.HasPrefix(s[i:], t.tok) {
				continue
			}
			if !operatorAllowed(s, i, t.tok) {
				continue
			}
			idx, op, n, found = i, t.op, len(t.tok), true
			i += len(t.tok) - 1
			break
		}
	}
	return
}

// operatorAllowed filters out token matches that are really part of another
// operator or a unary sign.
func operatorAllowed(s string, i int, tok string) bool {
	switch tok {
	case "*":
		// Not either half of "**".
		if i+1 < len(s) && s[i+1] == '*' {
			return false
		}
		if i > 0 && s[i-1] == '*' {
			return false
		}
	case "/":
		if i > 0 && s[i-1] == '/' {
			return false
		}
	case "+", "-":
		left := strings.TrimSpace(s[:i])
		if left == "" {
			return false
		}
		// A sign after an operator or opening delimiter is unary.
		if strings.ContainsRune("+-*/%(<>=,[{:", rune(left[len(left)-1])) {
			return false
		}
	}
	return true
}

// findPower returns the leftmost top-level "**" with a non-empty left side.
func findPower(s string) int {
	mask := lexer.TopLevel(s)
	for i := 0; i+2 <= len(s); i++ {
		if mask[i] && s[i] == '*' && s[i+1] == '*' {
			if strings.TrimSpace(s[:i]) == "" {
				return -1
			}
			return i
		}
	}
	return -1
}

// parseSubscript matches a trailing `[index]` on a non-empty base.
func parseSubscript(s string, span ast.Span) (ast.Expr, bool, error) {
	if s[len(s)-1] != ']' {
		return nil, false, nil
	}
	mask := lexer.TopLevel(s)
	for i := 0; i < len(s); i++ {
		if s[i] != '[' || !mask[i] {
			continue
		}
		end, ok := lexer.MatchDelim(s, i)
		if !ok || end != len(s)-1 {
			continue
		}
		if strings.TrimSpace(s[:i]) == "" {
			return nil, false, nil
		}
		base, err := parseExpr(s[:i], span)
		if err != nil {
			return nil, true, err
		}
		index, err := parseExpr(s[i+1:end], span)
		if err != nil {
			return nil, true, err
		}
		return &ast.Subscript{Base: base, Index: index, Span: span}, true, nil
	}
	return nil, false, nil
}

// parseStringLit matches a whole-expression string literal. Backtick
// strings become templates with ${...} interpolation; all three quote
// styles resolve backslash escapes.
func parseStringLit(s string, span ast.Span) (ast.Expr, bool, error) {
	if len(s) < 2 {
		return nil, false, nil
	}
	q := s[0]
	if q != '"' && q != '\'' && q != '`' {
		return nil, false, nil
	}
	// The opening quote must close at the final byte.
	i := 1
	for i < len(s) {
		if s[i] == '\\' {
			i += 2
			continue
		}
		if s[i] == q {
			break
		}
		i++
	}
	if i != len(s)-1 {
		return nil, false, nil
	}
	content := s[1 : len(s)-1]
	if q != '`' {
		return &ast.StringLit{Value: unescape(content), Span: span}, true, nil
	}

	lit := &ast.TemplateLit{Span: span}
	last := 0
	for j := 0; j+1 < len(content); j++ {
		if content[j] == '\\' {
			j++
			continue
		}
		if content[j] != '$' || content[j+1] != '{' {
			continue
		}
		end, ok := lexer.MatchDelim(content, j+1)
		if !ok {
			return nil, true, errf(span, "unclosed ${...} in template string")
		}
		if j > last {
			lit.Parts = append(lit.Parts, ast.TemplatePart{Text: unescape(content[last:j])})
		}
		expr, err := parseExpr(content[j+2:end], span)
		if err != nil {
			return nil, true, err
		}
		lit.Parts = append(lit.Parts, ast.TemplatePart{Expr: expr})
		last = end + 1
		j = end
	}
	if last < len(content) {
		lit.Parts = append(lit.Parts, ast.TemplatePart{Text: unescape(content[last:])})
	}
	return lit, true, nil
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case 't':
				b.WriteByte('\t')
				i++
				continue
			case '\\', '"', '\'', '`':
				b.WriteByte(s[i+1])
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
