// Package diagnostics defines the diagnostic record shared by the lexer,
// parser, and evaluator, plus the stable error codes the tooling keys on.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/oarkflow/json"

	"github.com/cherrylang/cherryscript/pkg/ast"
)

// Severity levels for diagnostics.
const (
	SevError   = "error"
	SevWarning = "warning"
)

// Stable diagnostic codes.
const (
	ELex         = "E_LEX"         // statement splitting failed
	EParse       = "E_PARSE"       // statement or expression is malformed
	EEval        = "E_EVAL"        // general evaluation failure
	EType        = "E_TYPE"        // operand or argument type mismatch
	EDivZero     = "E_DIV_ZERO"    // division or modulo by zero
	EUnknownFn   = "E_UNKNOWN_FN"  // call target is not defined (warning)
	EUnsupported = "E_UNSUPPORTED" // method not supported by receiver
	EGuard       = "E_GUARD"       // loop iteration guard tripped (warning)
	EIO          = "E_IO"          // collaborator or file I/O failure
)

// Diagnostic is a single reportable problem with a source location.
type Diagnostic struct {
	Severity string   `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Span     ast.Span `json:"span"`
	Hint     string   `json:"hint,omitempty"`
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s[%s]: %s (%s)", d.Severity, d.Code, d.Message, d.Span)
}

// New builds an error-severity diagnostic.
func New(code, message string, span ast.Span) Diagnostic {
	return Diagnostic{Severity: SevError, Code: code, Message: message, Span: span}
}

// Warn builds a warning-severity diagnostic.
func Warn(code, message string, span ast.Span) Diagnostic {
	return Diagnostic{Severity: SevWarning, Code: code, Message: message, Span: span}
}

// Format renders diagnostics for terminal output, one per line.
func Format(diags []Diagnostic) string {
	var b strings.Builder
	for _, d := range diags {
		fmt.Fprintf(&b, "[%s] %s: %s", d.Severity, d.Code, d.Message)
		if d.Span.Line > 0 {
			fmt.Fprintf(&b, " (%s)", d.Span)
		}
		if d.Hint != "" {
			fmt.Fprintf(&b, "\n  hint: %s", d.Hint)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatJSON renders diagnostics as a JSON array for machine consumers.
func FormatJSON(diags []Diagnostic) (string, error) {
	if diags == nil {
		diags = []Diagnostic{}
	}
	out, err := json.Marshal(diags)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
