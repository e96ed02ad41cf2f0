// Package lexer performs the first stage of CherryScript processing: carving
// raw source into top-level statement texts. Statements end at newlines or
// semicolons outside of strings, comments, and bracket nesting; a classic
// three-clause for header keeps its interior semicolons.
//
// The package also exposes the quote- and depth-aware scanning primitives
// (TopLevel, SplitTop, MatchDelim) that the parser uses to split statement
// texts into expression trees.
package lexer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cherrylang/cherryscript/pkg/ast"
	"github.com/cherrylang/cherryscript/pkg/diagnostics"
)

// Statement is one raw top-level statement with the line it started on.
type Statement struct {
	Text string
	Line int
}

// LexError wraps a diagnostic produced while splitting source.
type LexError struct {
	Diag diagnostics.Diagnostic
}

func (e *LexError) Error() string { return e.Diag.Error() }

var forHeaderRe = regexp.MustCompile(`^for\s`)

func lexErr(msg, file string, line int) *LexError {
	return &LexError{Diag: diagnostics.New(diagnostics.ELex, msg, ast.Span{File: file, Line: line})}
}

// Split carves source into statement texts. It understands single, double,
// and backtick quoted strings with backslash escapes, line and block
// comments, and bracket nesting; semicolons and newlines terminate
// statements only at the top level.
func Split(source, file string) ([]Statement, error) {
	var stmts []Statement
	var buf strings.Builder
	line := 1
	start := 0
	depth := 0
	var quote byte

	seen := false
	appendByte := func(c byte) {
		if !seen && !isSpace(c) {
			seen = true
			start = line
		}
		buf.WriteByte(c)
	}

	emit := func() {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		seen = false
		if text != "" {
			stmts = append(stmts, Statement{Text: text, Line: start})
		}
	}

	i := 0
	n := len(source)
	for i < n {
		c := source[i]

		if quote != 0 {
			if c == '\\' && i+1 < n {
				appendByte(c)
				appendByte(source[i+1])
				i += 2
				continue
			}
			if c == '\n' {
				line++
			}
			if c == quote {
				quote = 0
			}
			appendByte(c)
			i++
			continue
		}

		switch {
		case c == '"' || c == '\'' || c == '`':
			quote = c
			appendByte(c)
			i++

		case depth == 0 && c == '/' && i+1 < n && source[i+1] == '/' && !endsOperand(buf.String()):
			// Line comment. When the preceding character completes an
			// operand this is floor division instead, so it falls through
			// to the default case.
			for i < n && source[i] != '\n' {
				i++
			}

		case depth == 0 && c == '/' && i+1 < n && source[i+1] == '*':
			open := line
			i += 2
			for {
				if i+1 >= n {
					return nil, lexErr("unterminated block comment", file, open)
				}
				if source[i] == '\n' {
					line++
				}
				if source[i] == '*' && source[i+1] == '/' {
					i += 2
					break
				}
				i++
			}

		case c == '(' || c == '[' || c == '{':
			depth++
			appendByte(c)
			i++

		case c == ')' || c == ']' || c == '}':
			depth--
			if depth < 0 {
				return nil, lexErr(fmt.Sprintf("unmatched %q", string(c)), file, line)
			}
			appendByte(c)
			i++

		case c == ';' && depth == 0:
			if forHeaderRe.MatchString(strings.TrimSpace(buf.String())) {
				// Interior semicolon of a classic for header.
				appendByte(c)
			} else {
				emit()
			}
			i++

		case c == '\n':
			line++
			if depth == 0 {
				emit()
			} else {
				// Newlines inside a block are kept so the block body can
				// be re-split into its own statements.
				appendByte(c)
			}
			i++

		default:
			appendByte(c)
			i++
		}
	}
	if quote != 0 {
		return nil, lexErr("unterminated string literal", file, line)
	}
	emit()
	return stmts, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// endsOperand reports whether the last non-space character of s can end an
// operand, which makes a following "//" floor division rather than a comment.
func endsOperand(s string) bool {
	t := strings.TrimRight(s, " \t")
	if t == "" {
		return false
	}
	c := t[len(t)-1]
	switch {
	case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c == '_' || c == ')' || c == ']' || c == '"' || c == '\'' || c == '`':
		return true
	}
	return false
}

// TopLevel returns a per-byte mask for s: true where the byte sits outside
// string literals and at bracket depth zero. Opening delimiters are marked
// at the depth before they nest, closing delimiters at the depth after they
// unnest, so a fully wrapped "(...)" has both ends marked top-level.
func TopLevel(s string) []bool {
	mask := make([]bool, len(s))
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(', '[', '{':
			if depth == 0 {
				mask[i] = true
			}
			depth++
		case ')', ']', '}':
			depth--
			if depth <= 0 {
				if depth < 0 {
					depth = 0
				} else {
					mask[i] = true
				}
			}
		default:
			if depth == 0 {
				mask[i] = true
			}
		}
	}
	return mask
}

// SplitTop splits s on top-level occurrences of sep, trimming each piece.
// An all-whitespace s yields no pieces.
func SplitTop(s string, sep byte) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	mask := TopLevel(s)
	var parts []string
	last := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep && mask[i] {
			parts = append(parts, strings.TrimSpace(s[last:i]))
			last = i + 1
		}
	}
	parts = append(parts, strings.TrimSpace(s[last:]))
	return parts
}

// MatchDelim returns the index of the delimiter matching the opener at
// position open, respecting quoting and nesting. ok is false when the
// opener never closes.
func MatchDelim(s string, open int) (int, bool) {
	if open < 0 || open >= len(s) {
		return 0, false
	}
	var close byte
	switch s[open] {
	case '(':
		close = ')'
	case '[':
		close = ']'
	case '{':
		close = '}'
	default:
		return 0, false
	}
	oc := s[open]
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case oc:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
