package runtime

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oarkflow/log"

	"github.com/cherrylang/cherryscript/pkg/evaluator"
)

func newRuntime(out io.Writer, opts ...Option) *Runtime {
	base := []Option{
		WithLogger(&log.Logger{Writer: &log.IOWriter{Writer: io.Discard}}),
		WithOutput(out),
		WithConfig(&Config{}),
	}
	return New(append(base, opts...)...)
}

func mustRun(t *testing.T, rt *Runtime, src string) {
	t.Helper()
	if err := rt.Run(context.Background(), src, "test.cs"); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func lookupString(t *testing.T, rt *Runtime, name, want string) {
	t.Helper()
	v, ok := rt.Lookup(name)
	if !ok {
		t.Fatalf("variable %q not bound", name)
	}
	s, ok := v.(evaluator.String)
	if !ok || s.Value != want {
		t.Fatalf("%s = %#v, want %q", name, v, want)
	}
}

func TestRunScript(t *testing.T) {
	var out bytes.Buffer
	rt := newRuntime(&out)
	mustRun(t, rt, `
var hits = 0
fn bump(n) {
	return n + 1
}
for i in range(3) {
	hits = bump(hits)
}
print(`+"`hits=${hits}`"+`)
`)
	if out.String() != "hits=3\n" {
		t.Fatalf("output %q", out.String())
	}
}

func TestStatePersistsAcrossRuns(t *testing.T) {
	rt := newRuntime(io.Discard)
	mustRun(t, rt, `var greeting = "hello"`)
	mustRun(t, rt, `greeting = greeting + " again"`)
	lookupString(t, rt, "greeting", "hello again")
}

func TestStatementFailureDoesNotStopTheRun(t *testing.T) {
	var out bytes.Buffer
	rt := newRuntime(&out)
	mustRun(t, rt, "var a = 1\nvar b = 1 / 0\nvar c = a + 1")
	if _, ok := rt.Lookup("b"); ok {
		t.Fatal("failed statement should not bind its variable")
	}
	v, ok := rt.Lookup("c")
	if !ok {
		t.Fatal("statements after a failure should still run")
	}
	if n, ok := v.(evaluator.Int); !ok || n.Value != 2 {
		t.Fatalf("c = %#v", v)
	}
	if !strings.Contains(out.String(), "E_DIV_ZERO") {
		t.Fatalf("diagnostic output %q", out.String())
	}
}

func TestParseFailureIsReportedAndSkipped(t *testing.T) {
	var out bytes.Buffer
	rt := newRuntime(&out)
	mustRun(t, rt, "var x = 1\n!!!bad!!!\nvar y = 2")
	if _, ok := rt.Lookup("y"); !ok {
		t.Fatal("statement after a parse failure should still run")
	}
	if !strings.Contains(out.String(), "E_PARSE") {
		t.Fatalf("diagnostic output %q", out.String())
	}
}

func TestStructuralLexFailureAborts(t *testing.T) {
	var out bytes.Buffer
	rt := newRuntime(&out)
	err := rt.Run(context.Background(), `var s = "never closed`, "test.cs")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(out.String(), "E_LEX") {
		t.Fatalf("diagnostic output %q", out.String())
	}
}

func TestRunStatementReturnsValueAndError(t *testing.T) {
	rt := newRuntime(io.Discard)
	v, err := rt.RunStatement(context.Background(), "1 + 2", 1)
	if err != nil {
		t.Fatalf("run statement: %v", err)
	}
	if n, ok := v.(evaluator.Int); !ok || n.Value != 3 {
		t.Fatalf("got %#v", v)
	}
	if _, err := rt.RunStatement(context.Background(), "1 / 0", 2); err == nil {
		t.Fatal("expected an error")
	}
}

func TestCheckReportsWithoutExecuting(t *testing.T) {
	var out bytes.Buffer
	rt := newRuntime(&out)
	diags := rt.Check("var ok = 1\n!!!bad!!!", "test.cs")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics", len(diags))
	}
	if _, ok := rt.Lookup("ok"); ok {
		t.Fatal("check must not execute statements")
	}
}

func TestIterationGuardOption(t *testing.T) {
	rt := newRuntime(io.Discard, WithIterationGuard(5))
	mustRun(t, rt, "var n = 0\nwhile true {\n\tn += 1\n}")
	v, _ := rt.Lookup("n")
	if n, ok := v.(evaluator.Int); !ok || n.Value != 5 {
		t.Fatalf("n = %#v", v)
	}
}

func TestCollaboratorPipeline(t *testing.T) {
	var out bytes.Buffer
	rt := newRuntime(&out)
	mustRun(t, rt, `
var db = connect("db://local/warehouse")
var rows = db.query("SELECT * FROM customers WHERE active = true")
var frame = h2o.frame(rows)
var model = h2o.automl(frame, "churn")
var preds = model.predict(frame)
print(len(rows), model.name, len(preds))
`)
	if out.String() != "2 mock_automl 2\n" {
		t.Fatalf("output %q", out.String())
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("missing config: %v", err)
	}
	if cfg.DeployURL != "" || cfg.IterationGuard != 0 {
		t.Fatalf("zero config expected, got %+v", cfg)
	}

	content := "deploy_url: http://127.0.0.1:9090/predict\niteration_guard: 500\ndatabase:\n  username: cherry\n  max_open_conns: 4\n"
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadConfig(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DeployURL != "http://127.0.0.1:9090/predict" {
		t.Fatalf("deploy url %q", cfg.DeployURL)
	}
	if cfg.IterationGuard != 500 {
		t.Fatalf("guard %d", cfg.IterationGuard)
	}
	if cfg.Database.Username != "cherry" || cfg.Database.MaxOpenConns != 4 {
		t.Fatalf("database %+v", cfg.Database)
	}

	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte("{unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("malformed config should error")
	}
}
