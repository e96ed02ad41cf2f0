// Package parser turns raw statement texts into syntax trees.
//
// Parsing is staged the same way evaluation consumes it: the lexer splits
// source into statement texts, each text is classified by its leading
// keyword or assignment shape, and block bodies are re-split and parsed
// eagerly so loops never re-parse their contents.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cherrylang/cherryscript/pkg/ast"
	"github.com/cherrylang/cherryscript/pkg/diagnostics"
	"github.com/cherrylang/cherryscript/pkg/lexer"
)

// ParseError wraps a diagnostic produced while parsing a statement.
type ParseError struct {
	Diag diagnostics.Diagnostic
}

func (e *ParseError) Error() string { return e.Diag.Error() }

func errf(span ast.Span, format string, args ...any) *ParseError {
	return &ParseError{Diag: diagnostics.New(diagnostics.EParse, fmt.Sprintf(format, args...), span)}
}

// AsDiagnostic extracts the diagnostic from a lexer or parser error,
// synthesizing one for any other error value.
func AsDiagnostic(err error, span ast.Span) diagnostics.Diagnostic {
	var le *lexer.LexError
	if errors.As(err, &le) {
		return le.Diag
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Diag
	}
	return diagnostics.New(diagnostics.EParse, err.Error(), span)
}

var (
	declRe     = regexp.MustCompile(`(?s)^(?:var|let)\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.+)$`)
	compoundRe = regexp.MustCompile(`(?s)^([A-Za-z_][A-Za-z0-9_]*)\s*(\+=|-=|\*=|/=|%=)\s*(.+)$`)
	assignRe   = regexp.MustCompile(`(?s)^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.+)$`)
	forInRe    = regexp.MustCompile(`(?s)^([A-Za-z_][A-Za-z0-9_]*)\s+in\s+(.+)$`)
	fnRe       = regexp.MustCompile(`^fn\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	undeployRe = regexp.MustCompile(`(?s)^undeploy\s+(.+)$`)
)

// Parse splits source and parses every statement. Malformed statements are
// reported as diagnostics and skipped; the returned program holds the
// statements that parsed.
func Parse(source, file string) (*ast.Program, []diagnostics.Diagnostic) {
	stmts, err := lexer.Split(source, file)
	if err != nil {
		return &ast.Program{}, []diagnostics.Diagnostic{AsDiagnostic(err, ast.Span{File: file, Line: 1})}
	}
	prog := &ast.Program{}
	var diags []diagnostics.Diagnostic
	for _, st := range stmts {
		span := ast.Span{File: file, Line: st.Line}
		node, err := ParseStatement(st.Text, span)
		if err != nil {
			diags = append(diags, AsDiagnostic(err, span))
			continue
		}
		prog.Statements = append(prog.Statements, node)
	}
	return prog, diags
}

// hasKeyword reports whether s begins with kw as a whole word, optionally
// followed directly by an opening paren.
func hasKeyword(s, kw string) bool {
	return s == kw || strings.HasPrefix(s, kw+" ") || strings.HasPrefix(s, kw+"(")
}

// ParseStatement classifies and parses a single statement text.
func ParseStatement(text string, span ast.Span) (ast.Stmt, error) {
	s := strings.TrimSpace(text)
	switch {
	case s == "":
		return nil, errf(span, "empty statement")
	case strings.HasPrefix(s, "fn "):
		return parseFn(s, span)
	case hasKeyword(s, "if"):
		return parseIf(s, span)
	case hasKeyword(s, "while"):
		return parseWhile(s, span)
	case s == "for" || strings.HasPrefix(s, "for "):
		return parseFor(s, span)
	case s == "return" || strings.HasPrefix(s, "return "):
		return parseReturn(s, span)
	}
	if m := declRe.FindStringSubmatch(s); m != nil {
		expr, err := parseExpr(m[2], span)
		if err != nil {
			return nil, err
		}
		return &ast.VarDecl{Name: m[1], Expr: expr, Span: span}, nil
	}
	if strings.HasPrefix(s, "undeploy") {
		if stmt, ok, err := parseUndeploy(s, span); ok || err != nil {
			return stmt, err
		}
	}
	if m := compoundRe.FindStringSubmatch(s); m != nil {
		expr, err := parseExpr(m[3], span)
		if err != nil {
			return nil, err
		}
		var op ast.BinaryOp
		switch m[2] {
		case "+=":
			op = ast.OpAdd
		case "-=":
			op = ast.OpSub
		case "*=":
			op = ast.OpMul
		case "/=":
			op = ast.OpDiv
		case "%=":
			op = ast.OpMod
		}
		return &ast.CompoundAssign{Name: m[1], Op: op, Expr: expr, Span: span}, nil
	}
	// Plain assignment; a leading '=' on the value means this was really
	// an equality expression.
	if m := assignRe.FindStringSubmatch(s); m != nil && !strings.HasPrefix(m[2], "=") {
		expr, err := parseExpr(m[2], span)
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Name: m[1], Expr: expr, Span: span}, nil
	}
	expr, err := parseExpr(s, span)
	if err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Expr: expr, Span: span}, nil
}

// parseBlock re-splits a block body and parses each statement, offsetting
// line numbers into the enclosing file.
func parseBlock(body string, span ast.Span) ([]ast.Stmt, error) {
	raw, err := lexer.Split(body, span.File)
	if err != nil {
		return nil, err
	}
	stmts := make([]ast.Stmt, 0, len(raw))
	for _, st := range raw {
		inner := ast.Span{File: span.File, Line: span.Line + st.Line - 1}
		node, err := ParseStatement(st.Text, inner)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, node)
	}
	return stmts, nil
}

// matchBlock consumes a leading `{ ... }` and returns its body plus any
// trailing text after the closing brace.
func matchBlock(s string, span ast.Span) (body, rest string, err error) {
	if s == "" || s[0] != '{' {
		return "", "", errf(span, "expected '{' to open a block")
	}
	end, ok := lexer.MatchDelim(s, 0)
	if !ok {
		return "", "", errf(span, "unclosed block")
	}
	return s[1:end], strings.TrimSpace(s[end+1:]), nil
}

// bodyBrace finds the top-level '{' whose matching '}' is the final byte of
// s, which is where a loop or conditional body starts. Returns -1 when no
// such brace exists.
func bodyBrace(s string) int {
	mask := lexer.TopLevel(s)
	for i := 0; i < len(s); i++ {
		if s[i] == '{' && mask[i] {
			if end, ok := lexer.MatchDelim(s, i); ok && end == len(s)-1 {
				return i
			}
		}
	}
	return -1
}

// splitCond reads a condition: parenthesized conditions run to the matching
// close paren, otherwise everything up to the opening brace of the body.
func splitCond(s string, span ast.Span) (ast.Expr, string, error) {
	t := strings.TrimSpace(s)
	if t != "" && t[0] == '(' {
		if end, ok := lexer.MatchDelim(t, 0); ok {
			rest := strings.TrimSpace(t[end+1:])
			if rest != "" && rest[0] == '{' {
				cond, err := parseExpr(t[1:end], span)
				if err != nil {
					return nil, "", err
				}
				return cond, rest, nil
			}
		}
	}
	mask := lexer.TopLevel(t)
	for i := 0; i < len(t); i++ {
		if t[i] == '{' && mask[i] {
			if i == 0 {
				return nil, "", errf(span, "missing condition")
			}
			cond, err := parseExpr(t[:i], span)
			if err != nil {
				return nil, "", err
			}
			return cond, t[i:], nil
		}
	}
	return nil, "", errf(span, "expected '{' after condition")
}

func parseIf(s string, span ast.Span) (ast.Stmt, error) {
	node := &ast.If{Span: span}
	rest := strings.TrimSpace(s[len("if"):])
	for {
		cond, blockText, err := splitCond(rest, span)
		if err != nil {
			return nil, err
		}
		body, tail, err := matchBlock(blockText, span)
		if err != nil {
			return nil, err
		}
		stmts, err := parseBlock(body, span)
		if err != nil {
			return nil, err
		}
		node.Clauses = append(node.Clauses, ast.IfClause{Cond: cond, Body: stmts})

		switch {
		case tail == "":
			return node, nil
		case strings.HasPrefix(tail, "else if"):
			rest = strings.TrimSpace(tail[len("else if"):])
		case strings.HasPrefix(tail, "elseif"):
			rest = strings.TrimSpace(tail[len("elseif"):])
		case strings.HasPrefix(tail, "else"):
			elseText := strings.TrimSpace(tail[len("else"):])
			body, tail, err := matchBlock(elseText, span)
			if err != nil {
				return nil, err
			}
			if tail != "" {
				return nil, errf(span, "unexpected text after else block: %q", tail)
			}
			stmts, err := parseBlock(body, span)
			if err != nil {
				return nil, err
			}
			node.Clauses = append(node.Clauses, ast.IfClause{Cond: nil, Body: stmts})
			return node, nil
		default:
			return nil, errf(span, "unexpected text after if block: %q", tail)
		}
	}
}

func parseWhile(s string, span ast.Span) (ast.Stmt, error) {
	cond, blockText, err := splitCond(s[len("while"):], span)
	if err != nil {
		return nil, err
	}
	body, tail, err := matchBlock(blockText, span)
	if err != nil {
		return nil, err
	}
	if tail != "" {
		return nil, errf(span, "unexpected text after while block: %q", tail)
	}
	stmts, err := parseBlock(body, span)
	if err != nil {
		return nil, err
	}
	return &ast.While{Cond: cond, Body: stmts, Span: span}, nil
}

func parseFor(s string, span ast.Span) (ast.Stmt, error) {
	t := strings.TrimSpace(s[len("for"):])
	brace := bodyBrace(t)
	if brace < 0 {
		return nil, errf(span, "expected '{ ... }' body in for statement")
	}
	header := strings.TrimSpace(t[:brace])
	body, _, err := matchBlock(t[brace:], span)
	if err != nil {
		return nil, err
	}
	stmts, err := parseBlock(body, span)
	if err != nil {
		return nil, err
	}
	if header == "" {
		return nil, errf(span, "missing for header")
	}

	if m := forInRe.FindStringSubmatch(header); m != nil {
		seq, err := parseExpr(m[2], span)
		if err != nil {
			return nil, err
		}
		return &ast.ForIn{Name: m[1], Seq: seq, Body: stmts, Span: span}, nil
	}

	parts := lexer.SplitTop(header, ';')
	if len(parts) != 3 {
		return nil, errf(span, "malformed for header: %q", header)
	}
	node := &ast.ForClassic{Body: stmts, Span: span}
	if parts[0] != "" {
		if node.Init, err = ParseStatement(parts[0], span); err != nil {
			return nil, err
		}
	}
	if parts[1] != "" {
		if node.Cond, err = parseExpr(parts[1], span); err != nil {
			return nil, err
		}
	}
	if parts[2] != "" {
		if node.Post, err = ParseStatement(parts[2], span); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func parseFn(s string, span ast.Span) (ast.Stmt, error) {
	m := fnRe.FindStringSubmatch(s)
	if m == nil {
		return nil, errf(span, "malformed function declaration")
	}
	open := strings.IndexByte(s, '(')
	end, ok := lexer.MatchDelim(s, open)
	if !ok {
		return nil, errf(span, "unclosed parameter list in fn %s", m[1])
	}
	var params []string
	for _, p := range lexer.SplitTop(s[open+1:end], ',') {
		if !identRe.MatchString(p) {
			return nil, errf(span, "invalid parameter %q in fn %s", p, m[1])
		}
		params = append(params, p)
	}
	body, tail, err := matchBlock(strings.TrimSpace(s[end+1:]), span)
	if err != nil {
		return nil, err
	}
	if tail != "" {
		return nil, errf(span, "unexpected text after fn body: %q", tail)
	}
	stmts, err := parseBlock(body, span)
	if err != nil {
		return nil, err
	}
	return &ast.FnDecl{Name: m[1], Params: params, Body: stmts, Span: span}, nil
}

func parseReturn(s string, span ast.Span) (ast.Stmt, error) {
	rest := strings.TrimSpace(s[len("return"):])
	if rest == "" {
		return &ast.Return{Span: span}, nil
	}
	expr, err := parseExpr(rest, span)
	if err != nil {
		return nil, err
	}
	return &ast.Return{Expr: expr, Span: span}, nil
}

// parseUndeploy handles both `undeploy(handle, timeout)` and the bare
// `undeploy handle` form. ok is false when the text is not an undeploy
// statement after all, in which case classification continues.
func parseUndeploy(s string, span ast.Span) (ast.Stmt, bool, error) {
	var argSrc string
	bare := false
	if name, inner, ok := callShape(s); ok && name == "undeploy" {
		argSrc = inner
	} else if m := undeployRe.FindStringSubmatch(s); m != nil {
		argSrc, bare = m[1], true
	} else {
		return nil, false, nil
	}
	args := lexer.SplitTop(argSrc, ',')
	if bare && len(args) == 1 {
		// The bare form separates target and timeout with whitespace:
		// `undeploy ctrl 10`.
		if parts := splitTopFields(args[0]); len(parts) == 2 {
			args = parts
		}
	}
	if len(args) == 0 || args[0] == "" {
		return nil, true, errf(span, "undeploy requires a target")
	}
	if len(args) > 2 {
		return nil, true, errf(span, "undeploy takes at most a target and a timeout")
	}
	node := &ast.Undeploy{Span: span}
	var err error
	if node.Target, err = parseExpr(args[0], span); err != nil {
		return nil, true, err
	}
	if len(args) == 2 {
		if node.Timeout, err = parseExpr(args[1], span); err != nil {
			return nil, true, err
		}
	}
	return node, true, nil
}

// splitTopFields splits s on top-level runs of whitespace.
func splitTopFields(s string) []string {
	mask := lexer.TopLevel(s)
	var parts []string
	start := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c == ' ' || c == '\t' || c == '\n' || c == '\r') && mask[i] {
			if start >= 0 {
				parts = append(parts, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		parts = append(parts, s[start:])
	}
	return parts
}
