package evaluator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cherrylang/cherryscript/pkg/ast"
	"github.com/cherrylang/cherryscript/pkg/diagnostics"
)

// DefaultDeployURL is where deploy() serves a model when no URL is given.
const DefaultDeployURL = "http://127.0.0.1:8080/predict"

// evalCall dispatches a call expression. Resolution order: builtins and
// collaborator entry points, then method calls on dotted receivers, then
// user-defined functions. An unknown target logs a warning and yields null.
func (in *Interp) evalCall(ctx context.Context, call *ast.Call) (Value, error) {
	name := strings.Join(call.Path, ".")
	args := make([]Value, len(call.Args))
	for i, a := range call.Args {
		v, err := in.Eval(ctx, a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if v, handled, err := in.callBuiltin(ctx, name, args, call.Span); handled {
		return v, err
	}
	if len(call.Path) > 1 {
		return in.evalMethod(ctx, call, args)
	}
	if fn, ok := in.fns[name]; ok {
		return in.callFunction(ctx, fn, args)
	}
	in.logger.Warn().
		Str("code", diagnostics.EUnknownFn).
		Str("function", name).
		Str("at", call.Span.String()).
		Msg("unknown function")
	return Null{}, nil
}

func (in *Interp) callFunction(ctx context.Context, fn *function, args []Value) (Value, error) {
	if in.depth >= maxCallDepth {
		return nil, rtErr(diagnostics.EEval, ast.Span{}, "call depth exceeded in %s", fn.name)
	}
	saved := in.env.Snapshot()
	for i, p := range fn.params {
		if i < len(args) {
			in.env.Set(p, args[i])
		} else {
			in.env.Set(p, Null{})
		}
	}
	in.depth++
	sig, err := in.execBlock(ctx, fn.body)
	in.depth--
	in.env.Restore(saved)
	if err != nil {
		return nil, err
	}
	if sig.kind == sigReturn {
		return sig.value, nil
	}
	return Null{}, nil
}

func (in *Interp) callBuiltin(ctx context.Context, name string, args []Value, span ast.Span) (Value, bool, error) {
	fail := func(err error) (Value, bool, error) { return nil, true, err }
	ok := func(v Value) (Value, bool, error) { return v, true, nil }

	switch name {
	case "print":
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = ToString(a)
		}
		fmt.Fprintln(in.out, strings.Join(parts, " "))
		return ok(Null{})

	case "len":
		if len(args) != 1 {
			return fail(rtErr(diagnostics.EEval, span, "len expects 1 argument, got %d", len(args)))
		}
		switch t := args[0].(type) {
		case Null:
			return ok(Int{Value: 0})
		case String:
			return ok(Int{Value: int64(utf8.RuneCountInString(t.Value))})
		case *Array:
			return ok(Int{Value: int64(len(t.Items))})
		case *Dict:
			return ok(Int{Value: int64(t.Len())})
		case Tabular:
			return ok(Int{Value: int64(len(t.Rows()))})
		}
		return fail(rtErr(diagnostics.EType, span, "len of %s", typeNameOf(args[0])))

	case "range":
		return in.builtinRange(args, span)

	case "sum":
		if len(args) == 1 {
			return in.builtinSum(args[0], span)
		}
		return in.builtinSum(&Array{Items: args}, span)

	case "min", "max":
		return in.builtinMinMax(name, args, span)

	case "format":
		if len(args) == 0 || len(args) > 2 {
			return fail(rtErr(diagnostics.EEval, span, "format expects 1 or 2 arguments, got %d", len(args)))
		}
		spec := ""
		if len(args) == 2 {
			s, isStr := args[1].(String)
			if !isStr {
				return fail(rtErr(diagnostics.EType, span, "format spec must be a string, got %s", typeNameOf(args[1])))
			}
			spec = s.Value
		}
		return ok(String{Value: formatValue(args[0], spec)})

	case "time":
		return ok(String{Value: time.Now().Format("2006-01-02 15:04:05")})

	case "append":
		if len(args) < 2 {
			return fail(rtErr(diagnostics.EEval, span, "append expects a list and a value"))
		}
		if arr, isArr := args[0].(*Array); isArr {
			arr.Items = append(arr.Items, args[1:]...)
		}
		return ok(args[0])

	case "keys":
		if len(args) == 1 {
			if d, isDict := args[0].(*Dict); isDict {
				return ok(keysArray(d))
			}
		}
		return ok(NewArray())

	case "connect":
		if in.adapters.Connect == nil {
			return fail(rtErr(diagnostics.EIO, span, "database capability unavailable"))
		}
		if len(args) == 0 {
			return fail(rtErr(diagnostics.EEval, span, "connect expects a connection URI"))
		}
		uri := ToString(args[0])
		var user, pass string
		if len(args) > 1 {
			user = ToString(args[1])
		}
		if len(args) > 2 {
			pass = ToString(args[2])
		}
		db, err := in.adapters.Connect(ctx, uri, user, pass)
		if err != nil {
			return fail(rtErr(diagnostics.EIO, span, "connect %s: %v", uri, err))
		}
		return ok(db)

	case "h2o.frame":
		if len(args) != 1 {
			return fail(rtErr(diagnostics.EEval, span, "h2o.frame expects 1 argument, got %d", len(args)))
		}
		frame, err := in.toFrame(args[0], span)
		if err != nil {
			return fail(err)
		}
		return ok(frame)

	case "h2o.preprocess":
		if len(args) != 1 {
			return fail(rtErr(diagnostics.EEval, span, "h2o.preprocess expects 1 argument, got %d", len(args)))
		}
		return ok(args[0])

	case "h2o.automl":
		if len(args) != 2 {
			return fail(rtErr(diagnostics.EEval, span, "h2o.automl expects data and a target column"))
		}
		if in.adapters.AutoML == nil {
			return fail(rtErr(diagnostics.EIO, span, "training capability unavailable"))
		}
		frame, err := in.toFrame(args[0], span)
		if err != nil {
			return fail(err)
		}
		model, err := in.adapters.AutoML(ctx, frame, ToString(args[1]))
		if err != nil {
			return fail(rtErr(diagnostics.EIO, span, "automl: %v", err))
		}
		return ok(model)

	case "deploy":
		if in.adapters.Deploy == nil {
			return fail(rtErr(diagnostics.EIO, span, "deployment capability unavailable"))
		}
		if len(args) == 0 {
			return fail(rtErr(diagnostics.EEval, span, "deploy expects a model"))
		}
		model, isModel := args[0].(Model)
		if !isModel {
			return fail(rtErr(diagnostics.EType, span, "deploy expects a model, got %s", typeNameOf(args[0])))
		}
		url := in.deployURL
		if len(args) > 1 {
			url = ToString(args[1])
		}
		v, err := in.adapters.Deploy(model, url)
		if err != nil {
			return fail(rtErr(diagnostics.EIO, span, "deploy %s: %v", url, err))
		}
		return ok(v)

	case "undeploy":
		if len(args) == 0 {
			return fail(rtErr(diagnostics.EEval, span, "undeploy expects a target"))
		}
		timeout := 5 * time.Second
		if len(args) > 1 {
			secs, isNum := numeric(args[1])
			if !isNum {
				return fail(rtErr(diagnostics.EType, span, "undeploy timeout must be a number, got %s", typeNameOf(args[1])))
			}
			timeout = time.Duration(secs * float64(time.Second))
		}
		v, err := in.undeploy(args[0], timeout, span)
		return v, true, err
	}
	return nil, false, nil
}

func (in *Interp) toFrame(v Value, span ast.Span) (Tabular, error) {
	if frame, ok := v.(Tabular); ok {
		return frame, nil
	}
	if in.adapters.Frame == nil {
		return nil, rtErr(diagnostics.EIO, span, "frame capability unavailable")
	}
	frame, err := in.adapters.Frame(v)
	if err != nil {
		return nil, rtErr(diagnostics.EType, span, "cannot build frame from %s: %v", typeNameOf(v), err)
	}
	return frame, nil
}

func (in *Interp) builtinRange(args []Value, span ast.Span) (Value, bool, error) {
	if len(args) < 1 || len(args) > 3 {
		return nil, true, rtErr(diagnostics.EEval, span, "range expects 1 to 3 arguments, got %d", len(args))
	}
	nums := make([]int64, len(args))
	for i, a := range args {
		n, ok := numeric(a)
		if !ok {
			return nil, true, rtErr(diagnostics.EType, span, "range argument %d must be a number, got %s", i+1, typeNameOf(a))
		}
		nums[i] = int64(n)
	}
	start, stop, step := int64(0), int64(0), int64(1)
	switch len(nums) {
	case 1:
		stop = nums[0]
	case 2:
		start, stop = nums[0], nums[1]
	case 3:
		start, stop, step = nums[0], nums[1], nums[2]
	}
	if step == 0 {
		return nil, true, rtErr(diagnostics.EEval, span, "range step must not be zero")
	}
	arr := NewArray()
	count := int64(0)
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		if count >= in.guard {
			in.warnGuard("range", span)
			break
		}
		count++
		arr.Items = append(arr.Items, Int{Value: i})
	}
	return arr, true, nil
}

func (in *Interp) builtinSum(v Value, span ast.Span) (Value, bool, error) {
	switch t := v.(type) {
	case Null:
		return Int{Value: 0}, true, nil
	case *Array:
		var intSum int64
		var floatSum float64
		sawFloat := false
		for _, it := range t.Items {
			switch n := it.(type) {
			case Int:
				intSum += n.Value
				floatSum += float64(n.Value)
			case Float:
				sawFloat = true
				floatSum += n.Value
			default:
				return nil, true, rtErr(diagnostics.EType, span, "sum of non-numeric element %s", typeNameOf(it))
			}
		}
		if sawFloat {
			return Float{Value: floatSum}, true, nil
		}
		return Int{Value: intSum}, true, nil
	}
	return nil, true, rtErr(diagnostics.EType, span, "sum of %s", typeNameOf(v))
}

func (in *Interp) builtinMinMax(name string, args []Value, span ast.Span) (Value, bool, error) {
	items := args
	if len(args) == 1 {
		if arr, ok := args[0].(*Array); ok {
			items = arr.Items
		}
	}
	if len(items) == 0 {
		return nil, true, rtErr(diagnostics.EEval, span, "%s of empty sequence", name)
	}
	best := items[0]
	for _, it := range items[1:] {
		less, ok := lessThan(it, best)
		if !ok {
			return nil, true, rtErr(diagnostics.EType, span,
				"%s over mixed types %s and %s", name, typeNameOf(best), typeNameOf(it))
		}
		if (name == "min") == less {
			best = it
		}
	}
	return best, true, nil
}

func lessThan(a, b Value) (less, ok bool) {
	if an, isNum := numeric(a); isNum {
		if bn, isNum := numeric(b); isNum {
			return an < bn, true
		}
		return false, false
	}
	if as, isStr := a.(String); isStr {
		if bs, isStr := b.(String); isStr {
			return as.Value < bs.Value, true
		}
	}
	return false, false
}

func keysArray(d *Dict) *Array {
	arr := &Array{Items: make([]Value, 0, d.Len())}
	for _, k := range d.Keys() {
		arr.Items = append(arr.Items, String{Value: k})
	}
	return arr
}

// evalMethod resolves a dotted call against its receiver. The method set
// is closed: each receiver type supports a fixed handful of methods and
// everything else is an unsupported-operation failure.
func (in *Interp) evalMethod(ctx context.Context, call *ast.Call, args []Value) (Value, error) {
	method := call.Path[len(call.Path)-1]
	recv, ok := in.env.Get(call.Path[0])
	if !ok {
		in.logger.Warn().
			Str("code", diagnostics.EUnknownFn).
			Str("function", strings.Join(call.Path, ".")).
			Str("at", call.Span.String()).
			Msg("unknown function")
		return Null{}, nil
	}
	for _, part := range call.Path[1 : len(call.Path)-1] {
		recv = attributeOf(recv, part)
	}

	switch r := recv.(type) {
	case Database:
		if method == "query" {
			if len(args) != 1 {
				return nil, rtErr(diagnostics.EEval, call.Span, "query expects 1 argument, got %d", len(args))
			}
			rows, err := r.Query(ctx, ToString(args[0]))
			if err != nil {
				return nil, rtErr(diagnostics.EIO, call.Span, "query: %v", err)
			}
			return rowsArray(rows), nil
		}
	case Model:
		if method == "predict" {
			if len(args) != 1 {
				return nil, rtErr(diagnostics.EEval, call.Span, "predict expects 1 argument, got %d", len(args))
			}
			frame, err := in.toFrame(args[0], call.Span)
			if err != nil {
				return nil, err
			}
			rows, err := r.Predict(frame)
			if err != nil {
				return nil, rtErr(diagnostics.EIO, call.Span, "predict: %v", err)
			}
			return rowsArray(rows), nil
		}
	case Tabular:
		if method == "describe" && len(args) == 0 {
			return r.Describe(), nil
		}
	case *Dict:
		switch method {
		case "get":
			if len(args) >= 1 {
				if v, found := r.Get(ToString(args[0])); found {
					return v, nil
				}
				if len(args) >= 2 {
					return args[1], nil
				}
				return Null{}, nil
			}
		case "keys":
			if len(args) == 0 {
				return keysArray(r), nil
			}
		}
	case *Array:
		if method == "append" {
			r.Items = append(r.Items, args...)
			return r, nil
		}
	case String:
		if method == "replace" && len(args) == 2 {
			return String{Value: strings.ReplaceAll(r.Value, ToString(args[0]), ToString(args[1]))}, nil
		}
	}
	return nil, rtErr(diagnostics.EUnsupported, call.Span,
		"%s does not support method %q", typeNameOf(recv), method)
}

func rowsArray(rows []*Dict) *Array {
	arr := &Array{Items: make([]Value, len(rows))}
	for i, r := range rows {
		arr.Items[i] = r
	}
	return arr
}

var formatSpecRe = regexp.MustCompile(`^([<>^])?([0-9]+)?(,)?(?:\.([0-9]+))?([dfs%])?$`)

// formatValue applies a Python-style format spec, best effort. Specs that
// do not parse fall back to the plain string rendering.
func formatValue(v Value, spec string) string {
	if spec == "" {
		return ToString(v)
	}
	m := formatSpecRe.FindStringSubmatch(spec)
	if m == nil {
		return ToString(v)
	}
	align, widthStr, comma, precStr, verb := m[1], m[2], m[3], m[4], m[5]

	prec := -1
	if precStr != "" {
		prec, _ = strconv.Atoi(precStr)
	}

	var s string
	numericValue, isNum := numeric(v)
	switch verb {
	case "f":
		if !isNum {
			s = ToString(v)
			break
		}
		if prec < 0 {
			prec = 6
		}
		s = strconv.FormatFloat(numericValue, 'f', prec, 64)
	case "d":
		if !isNum {
			s = ToString(v)
			break
		}
		s = strconv.FormatInt(int64(numericValue), 10)
	case "%":
		if !isNum {
			s = ToString(v)
			break
		}
		if prec < 0 {
			prec = 6
		}
		s = strconv.FormatFloat(numericValue*100, 'f', prec, 64) + "%"
	default:
		if isNum && prec >= 0 {
			s = strconv.FormatFloat(numericValue, 'f', prec, 64)
		} else {
			s = ToString(v)
		}
	}
	if comma == "," {
		s = groupThousands(s)
	}
	if widthStr != "" {
		width, _ := strconv.Atoi(widthStr)
		s = pad(s, width, align, isNum)
	}
	return s
}

// groupThousands inserts comma separators into the integer part of s.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, frac = s[:dot], s[dot:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + frac
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + frac
}

func pad(s string, width int, align string, isNum bool) string {
	gap := width - utf8.RuneCountInString(s)
	if gap <= 0 {
		return s
	}
	switch align {
	case "^":
		left := gap / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
	case "<":
		return s + strings.Repeat(" ", gap)
	case ">":
		return strings.Repeat(" ", gap) + s
	}
	// Numbers right-align by default, strings left-align.
	if isNum {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}
