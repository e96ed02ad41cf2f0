// Package runtime assembles the interpreter, collaborator adapters, and
// configuration into the engine the CLI and embedders drive. Execution is
// resilient per statement: a statement that fails to parse or evaluate is
// reported and the next statement still runs.
package runtime

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/oarkflow/log"

	"github.com/cherrylang/cherryscript/pkg/adapters"
	"github.com/cherrylang/cherryscript/pkg/ast"
	"github.com/cherrylang/cherryscript/pkg/diagnostics"
	"github.com/cherrylang/cherryscript/pkg/evaluator"
	"github.com/cherrylang/cherryscript/pkg/lexer"
	"github.com/cherrylang/cherryscript/pkg/parser"
)

// Runtime executes CherryScript source with persistent state: variables
// and functions defined by one Run call remain visible to the next.
type Runtime struct {
	logger   *log.Logger
	out      io.Writer
	cfg      *Config
	adapters *evaluator.Adapters
	guard    int64
	interp   *evaluator.Interp
}

type Option func(*Runtime)

func WithLogger(l *log.Logger) Option {
	return func(rt *Runtime) { rt.logger = l }
}

func WithOutput(w io.Writer) Option {
	return func(rt *Runtime) { rt.out = w }
}

func WithConfig(cfg *Config) Option {
	return func(rt *Runtime) { rt.cfg = cfg }
}

func WithAdapters(a evaluator.Adapters) Option {
	return func(rt *Runtime) { rt.adapters = &a }
}

func WithIterationGuard(n int64) Option {
	return func(rt *Runtime) { rt.guard = n }
}

// New builds a runtime. Without WithConfig it reads cherry.yaml from the
// working directory when present; without WithAdapters it wires the
// default collaborator set.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		logger: &log.DefaultLogger,
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.cfg == nil {
		cfg, err := LoadConfig(".")
		if err != nil {
			rt.logger.Warn().Err(err).Msg("ignoring unreadable config")
			cfg = &Config{}
		}
		rt.cfg = cfg
	}
	if rt.adapters == nil {
		wired := adapters.New(adapters.Options{
			Logger: rt.logger,
			DB: adapters.DBOptions{
				Username:     rt.cfg.Database.Username,
				Password:     rt.cfg.Database.Password,
				MaxIdleConns: rt.cfg.Database.MaxIdleConns,
				MaxOpenConns: rt.cfg.Database.MaxOpenConns,
			},
		}).Wire()
		rt.adapters = &wired
	}
	guard := rt.guard
	if guard <= 0 {
		guard = rt.cfg.IterationGuard
	}
	rt.interp = evaluator.New(evaluator.Config{
		Adapters:       *rt.adapters,
		Output:         rt.out,
		Logger:         rt.logger,
		IterationGuard: guard,
		DeployURL:      rt.cfg.DeployURL,
	})
	return rt
}

// Interp exposes the underlying interpreter.
func (rt *Runtime) Interp() *evaluator.Interp { return rt.interp }

// Lookup reads a variable from the interpreter frame.
func (rt *Runtime) Lookup(name string) (evaluator.Value, bool) {
	return rt.interp.Env().Get(name)
}

// Run executes source statement by statement. Statement-level failures are
// printed as diagnostics and execution continues; only a structural
// splitting failure aborts the whole run.
func (rt *Runtime) Run(ctx context.Context, source, file string) error {
	stmts, err := lexer.Split(source, file)
	if err != nil {
		d := parser.AsDiagnostic(err, ast.Span{File: file, Line: 1})
		fmt.Fprint(rt.out, diagnostics.Format([]diagnostics.Diagnostic{d}))
		return err
	}
	for _, st := range stmts {
		span := ast.Span{File: file, Line: st.Line}
		node, err := parser.ParseStatement(st.Text, span)
		if err != nil {
			rt.report(parser.AsDiagnostic(err, span))
			continue
		}
		if _, err := rt.interp.ExecStatement(ctx, node); err != nil {
			rt.report(rt.diagFor(err, span))
		}
	}
	return nil
}

// RunStatement parses and executes a single statement, returning its value.
// Unlike Run, errors are returned instead of printed, which is what the
// REPL wants.
func (rt *Runtime) RunStatement(ctx context.Context, text string, line int) (evaluator.Value, error) {
	span := ast.Span{File: "<repl>", Line: line}
	node, err := parser.ParseStatement(text, span)
	if err != nil {
		return nil, err
	}
	return rt.interp.ExecStatement(ctx, node)
}

// Check parses source without executing it and returns the diagnostics.
func (rt *Runtime) Check(source, file string) []diagnostics.Diagnostic {
	_, diags := parser.Parse(source, file)
	return diags
}

func (rt *Runtime) report(d diagnostics.Diagnostic) {
	fmt.Fprint(rt.out, diagnostics.Format([]diagnostics.Diagnostic{d}))
}

func (rt *Runtime) diagFor(err error, span ast.Span) diagnostics.Diagnostic {
	if re, ok := err.(*evaluator.RuntimeError); ok {
		return re.Diagnostic()
	}
	return diagnostics.New(diagnostics.EEval, err.Error(), span)
}
