package evaluator

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/oarkflow/log"

	"github.com/cherrylang/cherryscript/pkg/ast"
	"github.com/cherrylang/cherryscript/pkg/diagnostics"
)

// DefaultIterationGuard bounds while and classic for loops. Tripping the
// guard logs a warning and exits the loop instead of failing the script.
const DefaultIterationGuard = 1_000_000

// maxCallDepth bounds user function recursion.
const maxCallDepth = 1000

// RuntimeError is an evaluation failure carrying a diagnostic code and the
// span of the statement or expression that failed.
type RuntimeError struct {
	Code    string
	Message string
	Span    ast.Span
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Diagnostic converts the error into a reportable diagnostic.
func (e *RuntimeError) Diagnostic() diagnostics.Diagnostic {
	return diagnostics.New(e.Code, e.Message, e.Span)
}

func rtErr(code string, span ast.Span, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...), Span: span}
}

// Config parameterizes an interpreter.
type Config struct {
	Adapters       Adapters
	Output         io.Writer   // print destination, defaults to os.Stdout
	Logger         *log.Logger // defaults to log.DefaultLogger
	IterationGuard int64       // defaults to DefaultIterationGuard
	DeployURL      string      // default deploy() URL, defaults to DefaultDeployURL
}

// Interp is a stateful CherryScript interpreter. Variables and function
// definitions persist across statements, which is what lets the REPL and
// sequential script execution share the machinery.
type Interp struct {
	env       *Env
	fns       map[string]*function
	adapters  Adapters
	out       io.Writer
	logger    *log.Logger
	guard     int64
	deployURL string
	depth     int
}

type function struct {
	name   string
	params []string
	body   []ast.Stmt
}

func New(cfg Config) *Interp {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = &log.DefaultLogger
	}
	if cfg.IterationGuard <= 0 {
		cfg.IterationGuard = DefaultIterationGuard
	}
	if cfg.DeployURL == "" {
		cfg.DeployURL = DefaultDeployURL
	}
	return &Interp{
		env:       NewEnv(),
		fns:       make(map[string]*function),
		adapters:  cfg.Adapters,
		out:       cfg.Output,
		logger:    cfg.Logger,
		guard:     cfg.IterationGuard,
		deployURL: cfg.DeployURL,
	}
}

// Env exposes the variable frame, mainly for embedding and tests.
func (in *Interp) Env() *Env { return in.env }

// control-flow signal threaded through statement execution
type signalKind int

const (
	sigNone signalKind = iota
	sigReturn
)

type signal struct {
	kind  signalKind
	value Value
}

// ExecStatement runs one top-level statement. A top-level return yields its
// value; everything else yields the statement's result value or Null.
func (in *Interp) ExecStatement(ctx context.Context, st ast.Stmt) (Value, error) {
	sig, val, err := in.execStmt(ctx, st)
	if err != nil {
		return nil, err
	}
	if sig.kind == sigReturn {
		return sig.value, nil
	}
	if val == nil {
		val = Null{}
	}
	return val, nil
}

func (in *Interp) execBlock(ctx context.Context, body []ast.Stmt) (signal, error) {
	for _, st := range body {
		sig, _, err := in.execStmt(ctx, st)
		if err != nil {
			return signal{}, err
		}
		if sig.kind != sigNone {
			return sig, nil
		}
	}
	return signal{}, nil
}

func (in *Interp) execStmt(ctx context.Context, st ast.Stmt) (signal, Value, error) {
	switch t := st.(type) {
	case *ast.VarDecl:
		v, err := in.Eval(ctx, t.Expr)
		if err != nil {
			return signal{}, nil, err
		}
		in.env.Set(t.Name, v)
		return signal{}, v, nil

	case *ast.Assign:
		v, err := in.Eval(ctx, t.Expr)
		if err != nil {
			return signal{}, nil, err
		}
		in.env.Set(t.Name, v)
		return signal{}, v, nil

	case *ast.CompoundAssign:
		cur, ok := in.env.Get(t.Name)
		if !ok {
			// Unset variables start from zero, so a bare `x += 5` binds 5.
			cur = Int{Value: 0}
		}
		rhs, err := in.Eval(ctx, t.Expr)
		if err != nil {
			return signal{}, nil, err
		}
		v, err := in.binaryOp(t.Op, cur, rhs, t.Span)
		if err != nil {
			return signal{}, nil, err
		}
		in.env.Set(t.Name, v)
		return signal{}, v, nil

	case *ast.If:
		for _, cl := range t.Clauses {
			take := cl.Cond == nil
			if !take {
				cond, err := in.Eval(ctx, cl.Cond)
				if err != nil {
					return signal{}, nil, err
				}
				take = Truthiness(cond)
			}
			if take {
				sig, err := in.execBlock(ctx, cl.Body)
				return sig, nil, err
			}
		}
		return signal{}, nil, nil

	case *ast.While:
		var count int64
		for {
			if err := ctx.Err(); err != nil {
				return signal{}, nil, rtErr(diagnostics.EEval, t.Span, "execution canceled")
			}
			if count >= in.guard {
				in.warnGuard("while", t.Span)
				return signal{}, nil, nil
			}
			count++
			cond, err := in.Eval(ctx, t.Cond)
			if err != nil {
				return signal{}, nil, err
			}
			if !Truthiness(cond) {
				return signal{}, nil, nil
			}
			sig, err := in.execBlock(ctx, t.Body)
			if err != nil {
				return signal{}, nil, err
			}
			if sig.kind != sigNone {
				return sig, nil, nil
			}
		}

	case *ast.ForIn:
		seq, err := in.Eval(ctx, t.Seq)
		if err != nil {
			return signal{}, nil, err
		}
		items, err := iterate(seq, t.Span)
		if err != nil {
			return signal{}, nil, err
		}
		for _, item := range items {
			in.env.Set(t.Name, item)
			sig, err := in.execBlock(ctx, t.Body)
			if err != nil {
				return signal{}, nil, err
			}
			if sig.kind != sigNone {
				return sig, nil, nil
			}
		}
		return signal{}, nil, nil

	case *ast.ForClassic:
		if t.Init != nil {
			if sig, _, err := in.execStmt(ctx, t.Init); err != nil || sig.kind != sigNone {
				return sig, nil, err
			}
		}
		var count int64
		for {
			if err := ctx.Err(); err != nil {
				return signal{}, nil, rtErr(diagnostics.EEval, t.Span, "execution canceled")
			}
			if count >= in.guard {
				in.warnGuard("for", t.Span)
				return signal{}, nil, nil
			}
			count++
			if t.Cond != nil {
				cond, err := in.Eval(ctx, t.Cond)
				if err != nil {
					return signal{}, nil, err
				}
				if !Truthiness(cond) {
					return signal{}, nil, nil
				}
			}
			sig, err := in.execBlock(ctx, t.Body)
			if err != nil {
				return signal{}, nil, err
			}
			if sig.kind != sigNone {
				return sig, nil, nil
			}
			if t.Post != nil {
				if sig, _, err := in.execStmt(ctx, t.Post); err != nil || sig.kind != sigNone {
					return sig, nil, err
				}
			}
		}

	case *ast.FnDecl:
		in.fns[t.Name] = &function{name: t.Name, params: t.Params, body: t.Body}
		return signal{}, nil, nil

	case *ast.Return:
		v := Value(Null{})
		if t.Expr != nil {
			var err error
			if v, err = in.Eval(ctx, t.Expr); err != nil {
				return signal{}, nil, err
			}
		}
		return signal{kind: sigReturn, value: v}, nil, nil

	case *ast.Undeploy:
		target, err := in.Eval(ctx, t.Target)
		if err != nil {
			return signal{}, nil, err
		}
		timeout := 5 * time.Second
		if t.Timeout != nil {
			tv, err := in.Eval(ctx, t.Timeout)
			if err != nil {
				return signal{}, nil, err
			}
			secs, ok := numeric(tv)
			if !ok {
				return signal{}, nil, rtErr(diagnostics.EType, t.Span, "undeploy timeout must be a number, got %s", typeNameOf(tv))
			}
			timeout = time.Duration(secs * float64(time.Second))
		}
		v, err := in.undeploy(target, timeout, t.Span)
		return signal{}, v, err

	case *ast.ExprStmt:
		v, err := in.Eval(ctx, t.Expr)
		return signal{}, v, err
	}
	return signal{}, nil, rtErr(diagnostics.EEval, st.Pos(), "unhandled statement")
}

func (in *Interp) warnGuard(kind string, span ast.Span) {
	in.logger.Warn().
		Str("code", diagnostics.EGuard).
		Str("loop", kind).
		Int64("limit", in.guard).
		Str("at", span.String()).
		Msg("loop exceeded iteration limit")
}

func (in *Interp) undeploy(target Value, timeout time.Duration, span ast.Span) (Value, error) {
	if in.adapters.Undeploy == nil {
		return nil, rtErr(diagnostics.EIO, span, "deployment capability unavailable")
	}
	url := ToString(target)
	if c, ok := target.(Controller); ok {
		url = c.URL()
	}
	if in.adapters.Undeploy(target, timeout) {
		in.logger.Info().Str("url", url).Msg("undeployed")
		return Bool{Value: true}, nil
	}
	in.logger.Warn().
		Str("url", url).
		Dur("timeout", timeout).
		Msg("endpoint did not stop before timeout")
	return Bool{Value: false}, nil
}

// iterate flattens a value into the items a for-in loop visits. Null
// iterates zero times.
func iterate(v Value, span ast.Span) ([]Value, error) {
	switch t := v.(type) {
	case Null, nil:
		return nil, nil
	case *Array:
		return t.Items, nil
	case String:
		items := make([]Value, 0, len(t.Value))
		for _, r := range t.Value {
			items = append(items, String{Value: string(r)})
		}
		return items, nil
	case *Dict:
		items := make([]Value, 0, t.Len())
		for _, k := range t.Keys() {
			items = append(items, String{Value: k})
		}
		return items, nil
	case Tabular:
		rows := t.Rows()
		items := make([]Value, len(rows))
		for i, r := range rows {
			items[i] = r
		}
		return items, nil
	default:
		return nil, rtErr(diagnostics.EType, span, "%s is not iterable", typeNameOf(v))
	}
}

// Eval evaluates an expression.
func (in *Interp) Eval(ctx context.Context, expr ast.Expr) (Value, error) {
	switch t := expr.(type) {
	case *ast.NullLit:
		return Null{}, nil
	case *ast.BoolLit:
		return Bool{Value: t.Value}, nil
	case *ast.IntLit:
		return Int{Value: t.Value}, nil
	case *ast.FloatLit:
		return Float{Value: t.Value}, nil
	case *ast.StringLit:
		return String{Value: t.Value}, nil

	case *ast.TemplateLit:
		var b strings.Builder
		for _, p := range t.Parts {
			if p.Expr == nil {
				b.WriteString(p.Text)
				continue
			}
			v, err := in.Eval(ctx, p.Expr)
			if err != nil {
				return nil, err
			}
			b.WriteString(ToString(v))
		}
		return String{Value: b.String()}, nil

	case *ast.ArrayLit:
		arr := &Array{Items: make([]Value, 0, len(t.Elems))}
		for _, el := range t.Elems {
			v, err := in.Eval(ctx, el)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, v)
		}
		return arr, nil

	case *ast.DictLit:
		d := NewDict()
		for _, entry := range t.Entries {
			k, err := in.Eval(ctx, entry.Key)
			if err != nil {
				return nil, err
			}
			v, err := in.Eval(ctx, entry.Value)
			if err != nil {
				return nil, err
			}
			d.Set(ToString(k), v)
		}
		return d, nil

	case *ast.Ident:
		if v, ok := in.env.Get(t.Name); ok {
			return v, nil
		}
		// Unbound identifiers evaluate to their own name.
		return String{Value: t.Name}, nil

	case *ast.Member:
		return in.evalMember(t)

	case *ast.Subscript:
		base, err := in.Eval(ctx, t.Base)
		if err != nil {
			return nil, err
		}
		index, err := in.Eval(ctx, t.Index)
		if err != nil {
			return nil, err
		}
		return subscript(base, index), nil

	case *ast.Call:
		return in.evalCall(ctx, t)

	case *ast.Unary:
		v, err := in.Eval(ctx, t.Expr)
		if err != nil {
			return nil, err
		}
		switch t.Op {
		case ast.OpNot:
			return Bool{Value: !Truthiness(v)}, nil
		case ast.OpNeg:
			switch n := v.(type) {
			case Int:
				return Int{Value: -n.Value}, nil
			case Float:
				return Float{Value: -n.Value}, nil
			}
			return nil, rtErr(diagnostics.EType, t.Span, "cannot negate %s", typeNameOf(v))
		}

	case *ast.Binary:
		switch t.Op {
		case ast.OpAnd:
			left, err := in.Eval(ctx, t.Left)
			if err != nil {
				return nil, err
			}
			if !Truthiness(left) {
				return left, nil
			}
			return in.Eval(ctx, t.Right)
		case ast.OpOr:
			left, err := in.Eval(ctx, t.Left)
			if err != nil {
				return nil, err
			}
			if Truthiness(left) {
				return left, nil
			}
			return in.Eval(ctx, t.Right)
		}
		left, err := in.Eval(ctx, t.Left)
		if err != nil {
			return nil, err
		}
		right, err := in.Eval(ctx, t.Right)
		if err != nil {
			return nil, err
		}
		return in.binaryOp(t.Op, left, right, t.Span)

	case *ast.Ternary:
		cond, err := in.Eval(ctx, t.Cond)
		if err != nil {
			return nil, err
		}
		if Truthiness(cond) {
			return in.Eval(ctx, t.Then)
		}
		return in.Eval(ctx, t.Else)
	}
	return nil, rtErr(diagnostics.EEval, expr.Pos(), "unhandled expression")
}

// evalMember walks a dotted path. An unbound root preserves the identifier
// quirk and yields the whole path as a string; a missing attribute yields
// null.
func (in *Interp) evalMember(m *ast.Member) (Value, error) {
	cur, ok := in.env.Get(m.Path[0])
	if !ok {
		return String{Value: strings.Join(m.Path, ".")}, nil
	}
	for _, part := range m.Path[1:] {
		cur = attributeOf(cur, part)
	}
	if cur == nil {
		return Null{}, nil
	}
	return cur, nil
}

func attributeOf(v Value, name string) Value {
	switch t := v.(type) {
	case *Dict:
		if got, ok := t.Get(name); ok {
			return got
		}
		return Null{}
	case Controller:
		if name == "url" {
			return String{Value: t.URL()}
		}
	case Model:
		switch name {
		case "name":
			return String{Value: t.ModelName()}
		case "leaderboard":
			return t.Leaderboard()
		}
	case Tabular:
		if name == "rows" {
			rows := t.Rows()
			items := make([]Value, len(rows))
			for i, r := range rows {
				items[i] = r
			}
			return &Array{Items: items}
		}
	}
	return Null{}
}

// subscript indexes arrays, dicts, and strings. Misses and unsupported
// bases yield null rather than failing.
func subscript(base, index Value) Value {
	switch b := base.(type) {
	case *Array:
		i, ok := index.(Int)
		if !ok {
			return Null{}
		}
		n := i.Value
		if n < 0 {
			n += int64(len(b.Items))
		}
		if n < 0 || n >= int64(len(b.Items)) {
			return Null{}
		}
		return b.Items[n]
	case *Dict:
		if got, ok := b.Get(ToString(index)); ok {
			return got
		}
		return Null{}
	case String:
		i, ok := index.(Int)
		if !ok {
			return Null{}
		}
		n := i.Value
		if n < 0 {
			n += int64(len(b.Value))
		}
		if n < 0 || n >= int64(len(b.Value)) {
			return Null{}
		}
		return String{Value: string(b.Value[n])}
	}
	return Null{}
}

func (in *Interp) binaryOp(op ast.BinaryOp, a, b Value, span ast.Span) (Value, error) {
	switch op {
	case ast.OpEq:
		return Bool{Value: DeepEqual(a, b)}, nil
	case ast.OpNe:
		return Bool{Value: !DeepEqual(a, b)}, nil
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return compare(op, a, b), nil
	case ast.OpAdd:
		if _, ok := a.(String); ok {
			return String{Value: ToString(a) + ToString(b)}, nil
		}
		if _, ok := b.(String); ok {
			return String{Value: ToString(a) + ToString(b)}, nil
		}
		if la, ok := a.(*Array); ok {
			if lb, ok := b.(*Array); ok {
				items := make([]Value, 0, len(la.Items)+len(lb.Items))
				items = append(items, la.Items...)
				items = append(items, lb.Items...)
				return &Array{Items: items}, nil
			}
		}
	case ast.OpMul:
		if s, n, ok := stringRepeat(a, b); ok {
			if n < 0 {
				n = 0
			}
			return String{Value: strings.Repeat(s, int(n))}, nil
		}
	}
	return in.numericOp(op, a, b, span)
}

// stringRepeat matches string*int in either operand order.
func stringRepeat(a, b Value) (string, int64, bool) {
	if s, ok := a.(String); ok {
		if n, ok := b.(Int); ok {
			return s.Value, n.Value, true
		}
	}
	if s, ok := b.(String); ok {
		if n, ok := a.(Int); ok {
			return s.Value, n.Value, true
		}
	}
	return "", 0, false
}

func compare(op ast.BinaryOp, a, b Value) Bool {
	if an, ok := numeric(a); ok {
		if bn, ok := numeric(b); ok {
			return orderResult(op, an < bn, an == bn)
		}
	}
	if as, ok := a.(String); ok {
		if bs, ok := b.(String); ok {
			return orderResult(op, as.Value < bs.Value, as.Value == bs.Value)
		}
	}
	// Cross-type order comparisons are defined to be false.
	return Bool{Value: false}
}

func orderResult(op ast.BinaryOp, lt, eq bool) Bool {
	switch op {
	case ast.OpLt:
		return Bool{Value: lt}
	case ast.OpLe:
		return Bool{Value: lt || eq}
	case ast.OpGt:
		return Bool{Value: !lt && !eq}
	case ast.OpGe:
		return Bool{Value: !lt}
	}
	return Bool{}
}

func (in *Interp) numericOp(op ast.BinaryOp, a, b Value, span ast.Span) (Value, error) {
	ai, aInt := a.(Int)
	bi, bInt := b.(Int)
	an, aNum := numeric(a)
	bn, bNum := numeric(b)
	if !aNum || !bNum {
		return nil, rtErr(diagnostics.EType, span,
			"unsupported operand types for %s: %s and %s", op, typeNameOf(a), typeNameOf(b))
	}

	switch op {
	case ast.OpAdd:
		if aInt && bInt {
			return Int{Value: ai.Value + bi.Value}, nil
		}
		return Float{Value: an + bn}, nil
	case ast.OpSub:
		if aInt && bInt {
			return Int{Value: ai.Value - bi.Value}, nil
		}
		return Float{Value: an - bn}, nil
	case ast.OpMul:
		if aInt && bInt {
			return Int{Value: ai.Value * bi.Value}, nil
		}
		return Float{Value: an * bn}, nil
	case ast.OpDiv:
		if bn == 0 {
			return nil, rtErr(diagnostics.EDivZero, span, "division by zero")
		}
		// True division always yields a float.
		return Float{Value: an / bn}, nil
	case ast.OpFloorDiv:
		if bn == 0 {
			return nil, rtErr(diagnostics.EDivZero, span, "division by zero")
		}
		if aInt && bInt {
			return Int{Value: floorDivInt(ai.Value, bi.Value)}, nil
		}
		return Float{Value: math.Floor(an / bn)}, nil
	case ast.OpMod:
		if bn == 0 {
			return nil, rtErr(diagnostics.EDivZero, span, "modulo by zero")
		}
		if aInt && bInt {
			return Int{Value: floorModInt(ai.Value, bi.Value)}, nil
		}
		return Float{Value: an - math.Floor(an/bn)*bn}, nil
	case ast.OpPow:
		if aInt && bInt && bi.Value >= 0 {
			return Int{Value: powInt(ai.Value, bi.Value)}, nil
		}
		return Float{Value: math.Pow(an, bn)}, nil
	}
	return nil, rtErr(diagnostics.EType, span, "unsupported operator %s", op)
}

// floorDivInt rounds toward negative infinity, matching the floor division
// the modulo below pairs with.
func floorDivInt(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// floorModInt takes the sign of the divisor.
func floorModInt(a, b int64) int64 {
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

func powInt(base, exp int64) int64 {
	var result int64 = 1
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}
